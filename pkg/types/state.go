package types

import "fmt"

// State is the lifecycle of a guarded startup procedure.
//
//	Uninitialized -> Initializing -> Initialized
//	                              \-> Failed
//
// Initialized and Failed are terminal.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateInitialized
	StateFailed
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateInitializing:  "initializing",
	StateInitialized:   "initialized",
	StateFailed:        "failed",
}

// String returns the lower-case name of the state
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateInitialized || s == StateFailed
}

// MarshalText renders the state by name for JSON and YAML output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state: %q", string(text))
}
