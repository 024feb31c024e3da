package types

import "time"

// GuardStatus is a point-in-time snapshot of a guard.
// It is the typed verification contract; the init log line is only a
// debugging aid.
type GuardStatus struct {
	Name       string        `json:"name" yaml:"name"`
	State      State         `json:"state" yaml:"state"`
	Trigger    *TriggerEvent `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	StartedAt  time.Time     `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Requests   int64         `json:"requests" yaml:"requests"`
	Suppressed int64         `json:"suppressed" yaml:"suppressed"`
	Runs       int64         `json:"runs" yaml:"runs"`
	Err        string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Initialized reports whether the snapshot is in the Initialized state
func (s GuardStatus) Initialized() bool {
	return s.State == StateInitialized
}
