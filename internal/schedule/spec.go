package schedule

import "strings"

// Spec is one desired schedule as declared by the operator.
type Spec struct {
	// WorkflowID is the remote schedule id and the id of every triggered run.
	// It must be unique within one build.
	WorkflowID string
	// WorkflowRef names the workflow entry point; resolved through a Resolver.
	WorkflowRef string
	// InputSchemaRef optionally names a payload decoder. Empty passes Payload through untyped.
	InputSchemaRef string
	TaskQueue      string
	Interval       Interval
	// Comment is stored as the remote schedule note.
	Comment string
	Payload map[string]any
	State   State
}

// validate checks the fields the builder depends on. Deleted specs only need an id.
func (s Spec) validate() error {
	id := strings.TrimSpace(s.WorkflowID)
	if id == "" {
		return &SpecError{ID: s.WorkflowID, Field: "workflow_id", Err: ErrMissingField}
	}
	if !s.State.Valid() {
		return &UnknownStateError{ID: s.WorkflowID, Value: s.State.String()}
	}
	if strings.TrimSpace(s.WorkflowRef) == "" {
		return &SpecError{ID: s.WorkflowID, Field: "workflow", Err: ErrMissingField}
	}
	if s.State == StateDeleted {
		return nil
	}
	if strings.TrimSpace(s.TaskQueue) == "" {
		return &SpecError{ID: s.WorkflowID, Field: "task_queue", Err: ErrMissingField}
	}
	if s.Interval.Every <= 0 {
		return &SpecError{ID: s.WorkflowID, Field: "interval.every", Err: ErrZeroInterval}
	}
	if s.Interval.Offset < 0 {
		return &SpecError{ID: s.WorkflowID, Field: "interval.offset", Err: ErrInvalidInterval}
	}
	return nil
}
