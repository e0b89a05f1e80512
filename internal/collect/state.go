// Package collect records simulator sensor streams into the dataset
// layout. All recording state lives in a Session owned by the caller;
// sensor callbacks are closures over that session.
package collect

import "fmt"

// RecordingState is whether a session currently keeps incoming frames.
type RecordingState int

const (
	Idle RecordingState = iota
	Recording
)

func (s RecordingState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	}
	return fmt.Sprintf("RecordingState(%d)", int(s))
}

// Toggled returns the opposite state.
func (s RecordingState) Toggled() RecordingState {
	if s == Recording {
		return Idle
	}
	return Recording
}

// MarshalText encodes the state by name.
func (s RecordingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RecordingState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "recording":
		*s = Recording
	default:
		return fmt.Errorf("unknown recording state %q", text)
	}
	return nil
}
