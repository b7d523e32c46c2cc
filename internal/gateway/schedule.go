package gateway

import "time"

// OverlapPolicy controls what happens when a trigger fires while a previous run
// of the same schedule is still executing.
type OverlapPolicy int

const (
	OverlapUnspecified OverlapPolicy = iota
	OverlapSkip
	// OverlapBufferOne queues at most one pending run behind the in-flight one.
	OverlapBufferOne
	OverlapBufferAll
	OverlapCancelOther
	OverlapTerminateOther
	OverlapAllowAll
)

func (p OverlapPolicy) String() string {
	switch p {
	case OverlapSkip:
		return "skip"
	case OverlapBufferOne:
		return "buffer_one"
	case OverlapBufferAll:
		return "buffer_all"
	case OverlapCancelOther:
		return "cancel_other"
	case OverlapTerminateOther:
		return "terminate_other"
	case OverlapAllowAll:
		return "allow_all"
	default:
		return "unspecified"
	}
}

// Schedule is the remote-native representation of one schedule: what to start,
// when to start it, and its lifecycle flags.
type Schedule struct {
	Action Action
	Spec   Spec
	Policy Policy
	State  State
}

// Action starts one workflow run.
type Action struct {
	// WorkflowID is the id given to every triggered run.
	WorkflowID string
	// Workflow is the resolved workflow reference: a registered workflow
	// function or a workflow type name.
	Workflow  any
	Args      []any
	TaskQueue string
}

type Spec struct {
	Intervals []IntervalSpec
}

// IntervalSpec fires every Every, shifted by Offset from the epoch-aligned boundary.
type IntervalSpec struct {
	Every  time.Duration
	Offset time.Duration
}

type Policy struct {
	Overlap OverlapPolicy
}

type State struct {
	Note   string
	Paused bool
}

// Description is what Describe reports about a live remote schedule.
type Description struct {
	ID              string
	Paused          bool
	Note            string
	NumActions      int
	NextActionTimes []time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
