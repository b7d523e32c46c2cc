package schedule

import (
	"errors"
	"testing"
)

func TestParseState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want State
	}{
		{"created", StateCreated},
		{"Paused", StatePaused},
		{" DELETED ", StateDeleted},
	}
	for _, tt := range tests {
		got, err := ParseState(tt.in)
		if err != nil {
			t.Fatalf("ParseState(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	_, err := ParseState("running")
	var use *UnknownStateError
	if !errors.As(err, &use) || use.Value != "running" {
		t.Fatalf("ParseState(running) error = %v, want *UnknownStateError", err)
	}
}

func TestStateZeroValueInvalid(t *testing.T) {
	t.Parallel()
	var s State
	if s.Valid() {
		t.Fatal("zero State must be invalid")
	}
	if _, err := s.MarshalText(); err == nil {
		t.Fatal("MarshalText of zero State should fail")
	}
	for _, st := range States {
		if !st.Valid() {
			t.Fatalf("%v should be valid", st)
		}
		b, err := st.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error: %v", st, err)
		}
		var back State
		if err := back.UnmarshalText(b); err != nil || back != st {
			t.Fatalf("UnmarshalText(%q) = %v, %v", b, back, err)
		}
	}
	if StateDeleted.Exists() || !StatePaused.Exists() || !StateCreated.Exists() {
		t.Fatal("Exists() mismatch")
	}
}
