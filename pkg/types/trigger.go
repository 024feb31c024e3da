package types

import "time"

// TriggerKind classifies what requested initialization
type TriggerKind string

const (
	// TriggerAuthState fires on every sign-in or sign-out callback
	TriggerAuthState TriggerKind = "auth_state"
	// TriggerReady fires once when the host reports it is ready
	TriggerReady TriggerKind = "ready"
	// TriggerManual is an explicit call from code or the CLI
	TriggerManual TriggerKind = "manual"
	// TriggerTimer fires after a delay
	TriggerTimer TriggerKind = "timer"
)

// Valid reports whether k is one of the known kinds
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerAuthState, TriggerReady, TriggerManual, TriggerTimer:
		return true
	}
	return false
}

// TriggerEvent is a request to run the startup procedure.
// Many may arrive; at most one causes a run.
type TriggerEvent struct {
	Kind    TriggerKind       `json:"kind" yaml:"kind"`
	Source  string            `json:"source" yaml:"source"`
	At      time.Time         `json:"at" yaml:"at"`
	Payload map[string]string `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NewTriggerEvent stamps an event with the current time
func NewTriggerEvent(kind TriggerKind, source string) TriggerEvent {
	return TriggerEvent{
		Kind:   kind,
		Source: source,
		At:     time.Now(),
	}
}

// WithPayload returns a copy of e carrying key=value
func (e TriggerEvent) WithPayload(key, value string) TriggerEvent {
	payload := make(map[string]string, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value
	e.Payload = payload
	return e
}
