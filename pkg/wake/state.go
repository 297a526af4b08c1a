// Package wake runs the hands-free voice loop: a background goroutine
// scores microphone frames for the wake phrase, records the utterance
// that follows a detection, transcribes it, and routes the text to the
// terminal session of the agent it addresses.
//
// The arbiter also owns microphone handoff. Exactly one input stream is
// open per process at any instant; the foreground listen path asks the
// loop to yield the device and hands it back when done.
package wake

import "encoding/json"

// State is the arbiter's position in the wake loop.
type State int

const (
	StateDisabled State = iota
	StateListening
	StateRecording
	StateYielded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateRecording:
		return "recording"
	case StateYielded:
		return "yielded"
	default:
		return "disabled"
	}
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "listening":
		*s = StateListening
	case "recording":
		*s = StateRecording
	case "yielded":
		*s = StateYielded
	default:
		*s = StateDisabled
	}
	return nil
}
