package schedule

import (
	"fmt"
	"strings"
)

// State is the desired lifecycle state of a schedule. It is a closed set:
// the zero value is invalid and must be rejected.
type State int

const (
	stateInvalid State = iota
	StateCreated
	StatePaused
	StateDeleted
)

// States lists every valid State in declaration order.
var States = []State{StateCreated, StatePaused, StateDeleted}

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePaused:
		return "paused"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Valid reports whether s is one of the three lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateCreated, StatePaused, StateDeleted:
		return true
	default:
		return false
	}
}

// Exists reports whether the desired end state keeps the schedule on the remote side.
func (s State) Exists() bool {
	switch s {
	case StateCreated, StatePaused:
		return true
	default:
		return false
	}
}

// ParseState maps a config value to a State. Matching is case-insensitive.
func ParseState(raw string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "created":
		return StateCreated, nil
	case "paused":
		return StatePaused, nil
	case "deleted":
		return StateDeleted, nil
	default:
		return stateInvalid, &UnknownStateError{Value: raw}
	}
}

func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, &UnknownStateError{Value: s.String()}
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
