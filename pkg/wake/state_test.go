package wake

import (
	"encoding/json"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisabled, "disabled"},
		{StateListening, "listening"},
		{StateRecording, "recording"},
		{StateYielded, "yielded"},
		{State(99), "disabled"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q; want %q", tc.state, got, tc.want)
		}
	}
}

func TestStateJSON(t *testing.T) {
	for _, state := range []State{StateDisabled, StateListening, StateRecording, StateYielded} {
		b, err := json.Marshal(state)
		if err != nil {
			t.Fatalf("Marshal State(%d): %v", state, err)
		}
		var restored State
		if err := json.Unmarshal(b, &restored); err != nil {
			t.Fatalf("Unmarshal %s: %v", b, err)
		}
		if restored != state {
			t.Errorf("State JSON roundtrip: got %v, want %v", restored, state)
		}
	}

	var s State
	if err := json.Unmarshal([]byte(`"bogus"`), &s); err != nil {
		t.Fatalf("Unmarshal bogus: %v", err)
	}
	if s != StateDisabled {
		t.Errorf("unknown state decoded to %v, want StateDisabled", s)
	}
}
