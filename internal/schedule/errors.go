package schedule

import (
	"errors"
	"fmt"
)

// ErrMissingField is wrapped by SpecError when a required field is empty.
var ErrMissingField = errors.New("required field is empty")

// RefKind tells which reference of a spec failed to resolve.
type RefKind string

const (
	RefWorkflow RefKind = "workflow"
	RefInput    RefKind = "input_schema"
)

// DuplicateScheduleError is returned when two specs share a workflow id.
type DuplicateScheduleError struct {
	ID string
	// Names are the config keys of the two conflicting entries, when known.
	Names [2]string
}

func (e *DuplicateScheduleError) Error() string {
	if e.Names[0] != "" && e.Names[1] != "" {
		return fmt.Sprintf("duplicate schedule id %q (entries %q and %q)", e.ID, e.Names[0], e.Names[1])
	}
	return fmt.Sprintf("duplicate schedule id %q", e.ID)
}

// UnresolvableReferenceError is returned when a workflow or input schema name
// cannot be resolved.
type UnresolvableReferenceError struct {
	ID   string
	Kind RefKind
	Ref  string
	Err  error
}

func (e *UnresolvableReferenceError) Error() string {
	return fmt.Sprintf("schedule %q: cannot resolve %s %q: %v", e.ID, e.Kind, e.Ref, e.Err)
}

func (e *UnresolvableReferenceError) Unwrap() error { return e.Err }

// UnknownStateError is returned for a lifecycle state outside created/paused/deleted.
type UnknownStateError struct {
	ID    string
	Value string
}

func (e *UnknownStateError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("unknown schedule state %q (want created, paused or deleted)", e.Value)
	}
	return fmt.Sprintf("schedule %q: unknown state %q (want created, paused or deleted)", e.ID, e.Value)
}

// MissingBuiltScheduleError means a definition that must exist remotely has no
// built schedule. Builder output never triggers it.
type MissingBuiltScheduleError struct {
	ID    string
	State State
}

func (e *MissingBuiltScheduleError) Error() string {
	return fmt.Sprintf("schedule %q: desired state %s but no built schedule", e.ID, e.State)
}

// SpecError reports an invalid field of one spec.
type SpecError struct {
	ID    string
	Field string
	Err   error
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("schedule %q: %s: %v", e.ID, e.Field, e.Err)
}

func (e *SpecError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a configuration defect, i.e. a failure
// detected before any remote call that retrying cannot fix.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var (
		dup     *DuplicateScheduleError
		unres   *UnresolvableReferenceError
		unknown *UnknownStateError
		missing *MissingBuiltScheduleError
		spec    *SpecError
		iv      *IntervalError
	)
	switch {
	case errors.As(err, &dup), errors.As(err, &unres), errors.As(err, &unknown),
		errors.As(err, &missing), errors.As(err, &spec), errors.As(err, &iv):
		return true
	}
	return errors.Is(err, ErrInvalidInterval) || errors.Is(err, ErrZeroInterval)
}
