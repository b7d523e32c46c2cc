package schedule

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedsync/internal/gateway"
	"schedsync/pkg/logx"
)

type reportInput struct {
	Region string
	Limit  int
}

type fakeResolver struct {
	workflows map[string]any
	calls     []string
}

var errUnknownName = errors.New("unknown name")

func (r *fakeResolver) Workflow(ref string) (any, error) {
	r.calls = append(r.calls, "workflow:"+ref)
	wf, ok := r.workflows[ref]
	if !ok {
		return nil, errUnknownName
	}
	return wf, nil
}

func (r *fakeResolver) Input(ref string, payload map[string]any) (any, error) {
	r.calls = append(r.calls, "input:"+ref)
	if ref != "reportInput" {
		return nil, errUnknownName
	}
	in := reportInput{}
	if v, ok := payload["region"].(string); ok {
		in.Region = v
	}
	if v, ok := payload["limit"].(int); ok {
		in.Limit = v
	}
	return in, nil
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{workflows: map[string]any{"reports.Daily": "DailyReport", "cleanup": "Cleanup"}}
}

func validSpec(id string) Spec {
	return Spec{
		WorkflowID:  id,
		WorkflowRef: "reports.Daily",
		TaskQueue:   "reports",
		Interval:    Interval{Every: time.Minute},
		Comment:     "nightly report",
		Payload:     map[string]any{"region": "eu"},
		State:       StateCreated,
	}
}

func TestBuildCreated(t *testing.T) {
	t.Parallel()
	b := NewBuilder(newFakeResolver(), logx.Nop())

	def, err := b.Build(validSpec("A"))
	require.NoError(t, err)
	require.NotNil(t, def.Schedule)

	assert.Equal(t, "A", def.ID)
	assert.Equal(t, gateway.Action{
		WorkflowID: "A",
		Workflow:   "DailyReport",
		Args:       []any{map[string]any{"region": "eu"}},
		TaskQueue:  "reports",
	}, def.Schedule.Action)
	assert.Equal(t, gateway.OverlapBufferOne, def.Schedule.Policy.Overlap)
	assert.Equal(t, []gateway.IntervalSpec{{Every: time.Minute}}, def.Schedule.Spec.Intervals)
	assert.Equal(t, gateway.State{Note: "nightly report", Paused: false}, def.Schedule.State)
}

func TestBuildPausedSetsFlag(t *testing.T) {
	t.Parallel()
	spec := validSpec("P")
	spec.State = StatePaused
	spec.Interval.Offset = 30 * time.Second

	def, err := NewBuilder(newFakeResolver(), logx.Nop()).Build(spec)
	require.NoError(t, err)
	assert.True(t, def.Schedule.State.Paused)
	assert.Equal(t, 30*time.Second, def.Schedule.Spec.Intervals[0].Offset)
}

func TestBuildDecodesInput(t *testing.T) {
	t.Parallel()
	spec := validSpec("A")
	spec.InputSchemaRef = "reportInput"
	spec.Payload = map[string]any{"region": "us", "limit": 5}

	def, err := NewBuilder(newFakeResolver(), logx.Nop()).Build(spec)
	require.NoError(t, err)
	assert.Equal(t, []any{reportInput{Region: "us", Limit: 5}}, def.Schedule.Action.Args)
}

func TestBuildDeletedResolvesReferences(t *testing.T) {
	t.Parallel()
	res := newFakeResolver()
	spec := Spec{WorkflowID: "B", WorkflowRef: "cleanup", State: StateDeleted}

	def, err := NewBuilder(res, logx.Nop()).Build(spec)
	require.NoError(t, err)
	assert.Nil(t, def.Schedule)
	assert.Equal(t, "B", def.ID)
	assert.Equal(t, []string{"workflow:cleanup"}, res.calls)
}

func TestBuildDeletedRejectsBadReferences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		spec Spec
		kind RefKind
	}{
		{"workflow", Spec{WorkflowID: "B", WorkflowRef: "no.such:Workflow", State: StateDeleted}, RefWorkflow},
		{"input", Spec{WorkflowID: "B", WorkflowRef: "cleanup", InputSchemaRef: "no.such:Input", State: StateDeleted}, RefInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewBuilder(newFakeResolver(), logx.Nop()).BuildAll(map[string]Spec{"b": tt.spec})
			var ure *UnresolvableReferenceError
			require.ErrorAs(t, err, &ure)
			assert.Equal(t, "B", ure.ID)
			assert.Equal(t, tt.kind, ure.Kind)
		})
	}
}

func TestBuildDeletedRequiresWorkflow(t *testing.T) {
	t.Parallel()
	_, err := NewBuilder(newFakeResolver(), logx.Nop()).Build(Spec{WorkflowID: "B", State: StateDeleted})
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "workflow", se.Field)
}

type passthroughResolver struct{ *fakeResolver }

func (passthroughResolver) Input(_ string, payload map[string]any) (any, error) { return payload, nil }
func (passthroughResolver) HasInput(string) bool                              { return false }

func TestBuildWarnsOnUndecodedInput(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	spec := validSpec("A")
	spec.InputSchemaRef = "reports:Unknown"

	def, err := NewBuilder(passthroughResolver{newFakeResolver()}, logx.NewWriter(&buf, "warn")).Build(spec)
	require.NoError(t, err)
	assert.Equal(t, []any{spec.Payload}, def.Schedule.Action.Args)
	out := buf.String()
	assert.Contains(t, out, "input schema not registered")
	assert.Contains(t, out, `"id":"A"`)
	assert.Contains(t, out, `"schema":"reports:Unknown"`)
}

func TestBuildRegisteredInputDoesNotWarn(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	spec := validSpec("A")
	spec.InputSchemaRef = "reportInput"

	_, err := NewBuilder(newFakeResolver(), logx.NewWriter(&buf, "warn")).Build(spec)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestBuildUnresolvable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		edit func(*Spec)
		kind RefKind
		ref  string
	}{
		{name: "workflow", edit: func(s *Spec) { s.WorkflowRef = "missing.Flow" }, kind: RefWorkflow, ref: "missing.Flow"},
		{name: "input", edit: func(s *Spec) { s.InputSchemaRef = "MissingInput" }, kind: RefInput, ref: "MissingInput"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := validSpec("A")
			tt.edit(&spec)
			_, err := NewBuilder(newFakeResolver(), logx.Nop()).Build(spec)

			var ure *UnresolvableReferenceError
			require.ErrorAs(t, err, &ure)
			assert.Equal(t, "A", ure.ID)
			assert.Equal(t, tt.kind, ure.Kind)
			assert.Equal(t, tt.ref, ure.Ref)
			assert.ErrorIs(t, err, errUnknownName)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestBuildRejectsInvalidSpecs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		edit  func(*Spec)
		field string
		is    error
	}{
		{name: "zero every", edit: func(s *Spec) { s.Interval.Every = 0 }, field: "interval.every", is: ErrZeroInterval},
		{name: "no task queue", edit: func(s *Spec) { s.TaskQueue = "" }, field: "task_queue", is: ErrMissingField},
		{name: "no workflow", edit: func(s *Spec) { s.WorkflowRef = " " }, field: "workflow", is: ErrMissingField},
		{name: "no id", edit: func(s *Spec) { s.WorkflowID = "" }, field: "workflow_id", is: ErrMissingField},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := validSpec("A")
			tt.edit(&spec)
			_, err := NewBuilder(newFakeResolver(), logx.Nop()).Build(spec)

			var se *SpecError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.field, se.Field)
			assert.ErrorIs(t, err, tt.is)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestBuildRejectsUnknownState(t *testing.T) {
	t.Parallel()
	spec := validSpec("A")
	spec.State = State(42)
	_, err := NewBuilder(newFakeResolver(), logx.Nop()).Build(spec)

	var use *UnknownStateError
	require.ErrorAs(t, err, &use)
	assert.Equal(t, "A", use.ID)
	assert.True(t, IsConfigError(err))
}

func TestBuildAllDuplicateID(t *testing.T) {
	t.Parallel()
	res := newFakeResolver()
	specs := map[string]Spec{
		"first":  validSpec("same"),
		"second": validSpec("same"),
		"other":  validSpec("other"),
	}

	defs, err := NewBuilder(res, logx.Nop()).BuildAll(specs)
	require.Error(t, err)
	assert.Nil(t, defs)

	var dup *DuplicateScheduleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "same", dup.ID)
	assert.Equal(t, [2]string{"first", "second"}, dup.Names)
	assert.Contains(t, err.Error(), `"same"`)
	assert.True(t, IsConfigError(err))
}

func TestBuildAllKeysByWorkflowID(t *testing.T) {
	t.Parallel()
	deleted := Spec{WorkflowID: "B", WorkflowRef: "cleanup", State: StateDeleted}
	defs, err := NewBuilder(newFakeResolver(), logx.Nop()).BuildAll(map[string]Spec{
		"alpha": validSpec("A"),
		"beta":  deleted,
	})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.NotNil(t, defs["A"].Schedule)
	assert.Nil(t, defs["B"].Schedule)
}

func TestBuildAllAbortsOnFirstFailure(t *testing.T) {
	t.Parallel()
	bad := validSpec("Z")
	bad.WorkflowRef = "nope"
	_, err := NewBuilder(newFakeResolver(), logx.Nop()).BuildAll(map[string]Spec{
		"a": validSpec("A"),
		"z": bad,
	})
	var ure *UnresolvableReferenceError
	require.ErrorAs(t, err, &ure)
	assert.Equal(t, "Z", ure.ID)
}

func TestIsConfigErrorFalseForOthers(t *testing.T) {
	t.Parallel()
	assert.False(t, IsConfigError(nil))
	assert.False(t, IsConfigError(errors.New("connection refused")))
}
