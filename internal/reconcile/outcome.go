package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"schedsync/internal/gateway"
	"schedsync/internal/schedule"
)

// Action is what the engine did (or would do) for one schedule.
type Action int

const (
	ActionNone Action = iota
	ActionCreated
	ActionUpdated
	ActionPaused
	ActionDeleted
	ActionAlreadyAbsent
)

func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionUpdated:
		return "updated"
	case ActionPaused:
		return "paused"
	case ActionDeleted:
		return "deleted"
	case ActionAlreadyAbsent:
		return "already_absent"
	default:
		return "none"
	}
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Outcome is the result of reconciling one schedule.
type Outcome struct {
	ID    string
	State schedule.State
	// Action is the branch taken. On failure it is the branch that was attempted,
	// or ActionNone when presence could not be determined.
	Action Action
	// Handle is set for created, updated and paused outcomes.
	Handle gateway.Handle
	// Deleted reports whether a delete call removed the schedule.
	Deleted bool
	Err     error
	Took    time.Duration
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Planned is the dry-run counterpart of Outcome.
type Planned struct {
	ID      string
	State   schedule.State
	Present bool
	Action  Action
	// NextRuns previews upcoming trigger times for schedules that will exist.
	NextRuns []time.Time
	Err      error
}

// SyncError lists the schedules that failed in a partial sync.
type SyncError struct {
	Failed []Outcome
}

func (e *SyncError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		ids = append(ids, o.ID)
	}
	if len(e.Failed) == 1 {
		return fmt.Sprintf("sync failed for schedule %s: %v", ids[0], e.Failed[0].Err)
	}
	return fmt.Sprintf("sync failed for %d schedules: %s", len(ids), strings.Join(ids, ", "))
}

// Unwrap exposes every per-schedule error to errors.Is/As.
func (e *SyncError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, o := range e.Failed {
		out = append(out, o.Err)
	}
	return out
}

// Summary counts outcomes by action.
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Paused  int `json:"paused"`
	Deleted int `json:"deleted"`
	Absent  int `json:"absent"`
	Failed  int `json:"failed"`
}

func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		if o.Err != nil {
			s.Failed++
			continue
		}
		switch o.Action {
		case ActionCreated:
			s.Created++
		case ActionUpdated:
			s.Updated++
		case ActionPaused:
			s.Paused++
		case ActionDeleted:
			s.Deleted++
		case ActionAlreadyAbsent:
			s.Absent++
		}
	}
	return s
}

func sortOutcomes(out []Outcome) {
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
}
