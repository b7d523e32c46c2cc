package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schedsync/internal/gateway"
	"schedsync/internal/gateway/gatewaytest"
	"schedsync/internal/resolve"
	"schedsync/internal/schedule"
	"schedsync/pkg/logx"
)

func spec(id string, st schedule.State) schedule.Spec {
	return schedule.Spec{
		WorkflowID:  id,
		WorkflowRef: "app.workflows:Report",
		TaskQueue:   "reports",
		Interval:    schedule.Interval{Every: 60 * time.Second},
		Comment:     "comment " + id,
		Payload:     map[string]any{"id": id},
		State:       st,
	}
}

func build(t *testing.T, specs ...schedule.Spec) map[string]schedule.Definition {
	t.Helper()
	in := make(map[string]schedule.Spec, len(specs))
	for _, s := range specs {
		in[s.WorkflowID] = s
	}
	defs, err := schedule.NewBuilder(resolve.New(resolve.WithTypeNames(true)), logx.Nop()).BuildAll(in)
	require.NoError(t, err)
	return defs
}

// seedFrom stores the built schedule of id as already present remotely.
func seedFrom(t *testing.T, mem *gatewaytest.Memory, s schedule.Spec) {
	t.Helper()
	if s.State == schedule.StateDeleted {
		mem.Seed(s.WorkflowID, gateway.Schedule{})
		return
	}
	d := build(t, s)[s.WorkflowID]
	mem.Seed(s.WorkflowID, *d.Schedule)
}

func TestDecideTable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state   schedule.State
		present bool
		want    Action
	}{
		{schedule.StateCreated, false, ActionCreated},
		{schedule.StateCreated, true, ActionUpdated},
		{schedule.StatePaused, false, ActionCreated},
		{schedule.StatePaused, true, ActionPaused},
		{schedule.StateDeleted, false, ActionAlreadyAbsent},
		{schedule.StateDeleted, true, ActionDeleted},
	}
	for _, tt := range tests {
		got, err := Decide(tt.state, tt.present)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Decide(%v, %v)", tt.state, tt.present)
	}
	_, err := Decide(schedule.State(0), true)
	var use *schedule.UnknownStateError
	assert.ErrorAs(t, err, &use)
}

func TestSyncEndToEndScenario(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	a := spec("A", schedule.StateCreated)
	b := spec("B", schedule.StateDeleted)
	seedFrom(t, mem, b)

	outcomes, err := New(mem, build(t, a, b)).Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "A", outcomes[0].ID)
	assert.Equal(t, ActionCreated, outcomes[0].Action)
	require.NotNil(t, outcomes[0].Handle)
	assert.Equal(t, "A", outcomes[0].Handle.ID())

	assert.Equal(t, "B", outcomes[1].ID)
	assert.Equal(t, ActionDeleted, outcomes[1].Action)
	assert.True(t, outcomes[1].Deleted)

	assert.Equal(t, 1, mem.Count(gateway.OpCreate, "A"))
	assert.Equal(t, 1, mem.Count(gateway.OpDelete, "B"))
	assert.Zero(t, mem.Count(gateway.OpUpdate, ""))
	assert.Zero(t, mem.Count(gateway.OpPause, ""))
	assert.Equal(t, []string{"A"}, mem.IDs())
}

func TestSyncCreateVersusUpdate(t *testing.T) {
	t.Parallel()
	a := spec("A", schedule.StateCreated)

	t.Run("absent", func(t *testing.T) {
		t.Parallel()
		mem := gatewaytest.NewMemory()
		_, err := New(mem, build(t, a)).Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, mem.Count(gateway.OpCreate, "A"))
		assert.Zero(t, mem.Count(gateway.OpUpdate, "A"))
	})
	t.Run("present", func(t *testing.T) {
		t.Parallel()
		mem := gatewaytest.NewMemory()
		mem.Seed("A", gateway.Schedule{State: gateway.State{Note: "old"}})
		outcomes, err := New(mem, build(t, a)).Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ActionUpdated, outcomes[0].Action)
		assert.Equal(t, 1, mem.Count(gateway.OpUpdate, "A"))
		assert.Zero(t, mem.Count(gateway.OpCreate, "A"))

		e, ok := mem.Get("A")
		require.True(t, ok)
		assert.Equal(t, "comment A", e.Note)
		assert.Equal(t, gateway.OverlapBufferOne, e.Schedule.Policy.Overlap)
	})
}

func TestSyncPauseDoesNotRebuild(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	p := spec("P", schedule.StatePaused)
	seedFrom(t, mem, spec("P", schedule.StateCreated))

	outcomes, err := New(mem, build(t, p)).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionPaused, outcomes[0].Action)
	assert.Equal(t, 1, mem.Count(gateway.OpPause, "P"))
	assert.Zero(t, mem.Count(gateway.OpUpdate, "P"))
	assert.Zero(t, mem.Count(gateway.OpCreate, "P"))

	e, _ := mem.Get("P")
	assert.True(t, e.Paused)
}

func TestSyncPausedAbsentCreatesPaused(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	outcomes, err := New(mem, build(t, spec("P", schedule.StatePaused))).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, outcomes[0].Action)
	assert.Zero(t, mem.Count(gateway.OpPause, "P"))

	e, ok := mem.Get("P")
	require.True(t, ok)
	assert.True(t, e.Paused)
}

func TestSyncDeletedAbsentIsNoop(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	outcomes, err := New(mem, build(t, spec("B", schedule.StateDeleted))).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionAlreadyAbsent, outcomes[0].Action)
	assert.False(t, outcomes[0].Deleted)
	assert.Zero(t, mem.Count(gateway.OpDelete, "B"))
}

func TestSyncStaleHandleIsAbsent(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	mem.LazyLookup = true
	mem.MarkStale("A")

	outcomes, err := New(mem, build(t, spec("A", schedule.StateCreated))).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, outcomes[0].Action)
	assert.Equal(t, 1, mem.Count(gateway.OpDescribe, "A"))
	assert.Zero(t, mem.Count(gateway.OpUpdate, "A"))
}

func TestSyncIdempotent(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	seedFrom(t, mem, spec("D", schedule.StateDeleted))
	defs := build(t,
		spec("A", schedule.StateCreated),
		spec("P", schedule.StatePaused),
		spec("D", schedule.StateDeleted),
	)
	eng := New(mem, defs)

	_, err := eng.Sync(context.Background())
	require.NoError(t, err)
	first := snapshot(mem)

	mem.Reset()
	outcomes, err := eng.Sync(context.Background())
	require.NoError(t, err)
	second := snapshot(mem)

	assert.Equal(t, first, second)
	assert.Equal(t, []Action{ActionUpdated, ActionAlreadyAbsent, ActionPaused},
		[]Action{outcomes[0].Action, outcomes[1].Action, outcomes[2].Action})
	assert.Zero(t, mem.Count(gateway.OpCreate, ""))
}

type remoteView struct {
	Paused bool
	Note   string
	Every  time.Duration
}

func snapshot(mem *gatewaytest.Memory) map[string]remoteView {
	out := map[string]remoteView{}
	for _, id := range mem.IDs() {
		e, _ := mem.Get(id)
		v := remoteView{Paused: e.Paused, Note: e.Note}
		if len(e.Schedule.Spec.Intervals) > 0 {
			v.Every = e.Schedule.Spec.Intervals[0].Every
		}
		out[id] = v
	}
	return out
}

func TestSyncConvergesDeleted(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	seedFrom(t, mem, spec("X", schedule.StateDeleted))
	_, err := New(mem, build(t, spec("X", schedule.StateDeleted), spec("Y", schedule.StateDeleted))).Sync(context.Background())
	require.NoError(t, err)

	for _, id := range []string{"X", "Y"} {
		_, err := mem.Lookup(context.Background(), id)
		assert.True(t, gateway.IsNotFound(err), "lookup(%s) after sync: %v", id, err)
	}
}

func TestSyncPartialPolicy(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	mem.FailOn(gateway.OpCreate, "B", status.Error(codes.Unavailable, "frontend down"), -1)

	outcomes, err := New(mem, build(t, spec("A", schedule.StateCreated), spec("B", schedule.StateCreated))).
		Sync(context.Background())

	var se *SyncError
	require.ErrorAs(t, err, &se)
	require.Len(t, se.Failed, 1)
	assert.Equal(t, "B", se.Failed[0].ID)
	assert.Equal(t, codes.Unavailable, gateway.Code(err))

	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, ActionCreated, outcomes[0].Action)
	assert.Error(t, outcomes[1].Err)
	assert.Nil(t, outcomes[1].Handle)
	assert.True(t, mem.Exists("A"))
	assert.Equal(t, Summary{Created: 1, Failed: 1}, Summarize(outcomes))
}

func TestSyncAllOrNothingPolicy(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	mem.FailOn(gateway.OpLookup, "B", status.Error(codes.PermissionDenied, "no"), -1)

	outcomes, err := New(mem, build(t, spec("A", schedule.StateCreated), spec("B", schedule.StateCreated)),
		WithPolicy(PolicyAllOrNothing)).Sync(context.Background())

	require.Error(t, err)
	assert.Nil(t, outcomes)
	var ge *gateway.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gateway.OpLookup, ge.Op)
	// The sibling is not cancelled.
	assert.True(t, mem.Exists("A"))
}

func TestSyncValidationFailsBeforeAnyCall(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		defs map[string]schedule.Definition
		as   any
	}{
		{
			name: "missing built schedule",
			defs: map[string]schedule.Definition{
				"A": {ID: "A", Spec: spec("A", schedule.StateCreated)},
			},
			as: new(*schedule.MissingBuiltScheduleError),
		},
		{
			name: "unknown state",
			defs: map[string]schedule.Definition{
				"A": {ID: "A", Spec: spec("A", schedule.State(9))},
			},
			as: new(*schedule.UnknownStateError),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mem := gatewaytest.NewMemory()
			defs := build(t, spec("OK", schedule.StateCreated))
			for k, v := range tt.defs {
				defs[k] = v
			}
			outcomes, err := New(mem, defs).Sync(context.Background())
			require.Error(t, err)
			assert.Nil(t, outcomes)
			assert.ErrorAs(t, err, tt.as)
			assert.True(t, schedule.IsConfigError(err))
			assert.Empty(t, mem.Calls())
		})
	}
}

func TestDuplicateRejectionMakesNoCalls(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	_, err := schedule.NewBuilder(resolve.New(resolve.WithTypeNames(true)), logx.Nop()).BuildAll(map[string]schedule.Spec{
		"one": spec("A", schedule.StateCreated),
		"two": spec("A", schedule.StatePaused),
	})
	var dup *schedule.DuplicateScheduleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "A", dup.ID)
	assert.Empty(t, mem.Calls())
}

func TestSyncMaxConcurrency(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	mem.Delay = 10 * time.Millisecond

	specs := make([]schedule.Spec, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		specs = append(specs, spec(id, schedule.StateCreated))
	}
	outcomes, err := New(mem, build(t, specs...), WithMaxConcurrency(2)).Sync(context.Background())
	require.NoError(t, err)
	assert.Len(t, outcomes, 8)
	assert.LessOrEqual(t, mem.MaxInFlight(), 2)
}

func TestSyncUnboundedRunsConcurrently(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	mem.Delay = 50 * time.Millisecond

	specs := make([]schedule.Spec, 0, 6)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		specs = append(specs, spec(id, schedule.StateCreated))
	}
	start := time.Now()
	_, err := New(mem, build(t, specs...)).Sync(context.Background())
	require.NoError(t, err)
	// Two sequential calls per schedule; serial execution would take >= 600ms.
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Greater(t, mem.MaxInFlight(), 1)
}

func TestSyncCancellationPropagates(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	mem.Delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	outcomes, err := New(mem, build(t, spec("A", schedule.StateCreated))).Sync(ctx)
	require.Error(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, errors.Is(outcomes[0].Err, context.DeadlineExceeded))
	assert.False(t, mem.Exists("A"))
}

type countingRecorder struct {
	mu   sync.Mutex
	seen map[string]Action
	took map[string]time.Duration
}

func (r *countingRecorder) ObserveOutcome(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[o.ID] = o.Action
	if r.took != nil {
		r.took[o.ID] = o.Took
	}
}

func TestSyncRecorder(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	rec := &countingRecorder{seen: map[string]Action{}}
	_, err := New(mem, build(t, spec("A", schedule.StateCreated), spec("B", schedule.StateDeleted)),
		WithRecorder(rec)).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]Action{"A": ActionCreated, "B": ActionAlreadyAbsent}, rec.seen)
}

func TestSyncOutcomeTook(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	mem.Delay = 20 * time.Millisecond
	rec := &countingRecorder{seen: map[string]Action{}, took: map[string]time.Duration{}}

	outcomes, err := New(mem, build(t, spec("A", schedule.StateCreated)), WithRecorder(rec)).Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.GreaterOrEqual(t, outcomes[0].Took, 20*time.Millisecond)
	assert.GreaterOrEqual(t, rec.took["A"], 20*time.Millisecond)
	assert.Equal(t, outcomes[0].Took, rec.took["A"])
}

func TestPlanMakesNoWrites(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	seedFrom(t, mem, spec("B", schedule.StateDeleted))
	seedFrom(t, mem, spec("P", schedule.StateCreated))

	planned, err := New(mem, build(t,
		spec("A", schedule.StateCreated),
		spec("B", schedule.StateDeleted),
		spec("P", schedule.StatePaused),
	)).Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, planned, 3)

	assert.Equal(t, ActionCreated, planned[0].Action)
	assert.False(t, planned[0].Present)
	assert.Len(t, planned[0].NextRuns, 3)
	assert.Equal(t, ActionDeleted, planned[1].Action)
	assert.Empty(t, planned[1].NextRuns)
	assert.Equal(t, ActionPaused, planned[2].Action)
	assert.Empty(t, planned[2].NextRuns)

	for _, c := range mem.Calls() {
		assert.Contains(t, []gateway.Op{gateway.OpLookup, gateway.OpDescribe}, c.Op)
	}
}

func TestPlanReportsInspectionFailures(t *testing.T) {
	t.Parallel()
	mem := gatewaytest.NewMemory()
	mem.Seed("A", gateway.Schedule{})
	mem.FailOn(gateway.OpDescribe, "A", status.Error(codes.Internal, "boom"), -1)

	planned, err := New(mem, build(t, spec("A", schedule.StateCreated))).Plan(context.Background())
	require.Error(t, err)
	require.Len(t, planned, 1)
	assert.Error(t, planned[0].Err)
	assert.Equal(t, ActionNone, planned[0].Action)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyPartial, p)
	p, err = ParsePolicy("all_or_nothing")
	require.NoError(t, err)
	assert.Equal(t, PolicyAllOrNothing, p)
	_, err = ParsePolicy("yolo")
	assert.Error(t, err)
}
