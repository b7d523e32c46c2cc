package schedule

import (
	"sort"

	"schedsync/internal/gateway"
	"schedsync/pkg/logx"
)

// Resolver turns symbolic names into values the remote service accepts.
type Resolver interface {
	// Workflow resolves a workflow entry point name.
	Workflow(ref string) (any, error)
	// Input decodes payload into the type registered under ref.
	Input(ref string, payload map[string]any) (any, error)
}

// inputRegistry is implemented by resolvers that can pass an unknown input
// schema through instead of failing.
type inputRegistry interface {
	HasInput(ref string) bool
}

// Definition pairs a Spec with its built remote-native schedule.
// Schedule is nil iff the desired state is StateDeleted.
type Definition struct {
	ID       string
	Spec     Spec
	Schedule *gateway.Schedule
}

// Builder translates specs into definitions. It makes no remote calls.
type Builder struct {
	res Resolver
	log logx.Logger
}

func NewBuilder(res Resolver, log logx.Logger) *Builder {
	return &Builder{res: res, log: log.With(logx.String("comp", "builder"))}
}

// Build validates spec and resolves its references.
func (b *Builder) Build(spec Spec) (Definition, error) {
	if err := spec.validate(); err != nil {
		return Definition{}, err
	}
	def := Definition{ID: spec.WorkflowID, Spec: spec}

	switch spec.State {
	case StateCreated, StatePaused, StateDeleted:
	default:
		return Definition{}, &UnknownStateError{ID: spec.WorkflowID, Value: spec.State.String()}
	}

	wf, err := b.res.Workflow(spec.WorkflowRef)
	if err != nil {
		return Definition{}, &UnresolvableReferenceError{ID: spec.WorkflowID, Kind: RefWorkflow, Ref: spec.WorkflowRef, Err: err}
	}

	var arg any = spec.Payload
	if spec.InputSchemaRef != "" {
		arg, err = b.res.Input(spec.InputSchemaRef, spec.Payload)
		if err != nil {
			return Definition{}, &UnresolvableReferenceError{ID: spec.WorkflowID, Kind: RefInput, Ref: spec.InputSchemaRef, Err: err}
		}
		if ir, ok := b.res.(inputRegistry); ok && !ir.HasInput(spec.InputSchemaRef) {
			b.log.Warn("input schema not registered; payload sent undecoded",
				logx.String("id", spec.WorkflowID),
				logx.String("schema", spec.InputSchemaRef),
			)
		}
	}

	// A deleted schedule keeps its references checked but builds nothing remote.
	if spec.State == StateDeleted {
		return def, nil
	}

	def.Schedule = &gateway.Schedule{
		Action: gateway.Action{
			WorkflowID: spec.WorkflowID,
			Workflow:   wf,
			Args:       []any{arg},
			TaskQueue:  spec.TaskQueue,
		},
		Spec: gateway.Spec{
			Intervals: []gateway.IntervalSpec{{Every: spec.Interval.Every, Offset: spec.Interval.Offset}},
		},
		Policy: gateway.Policy{Overlap: gateway.OverlapBufferOne},
		State: gateway.State{
			Note:   spec.Comment,
			Paused: spec.State == StatePaused,
		},
	}

	if b.log.Enabled(logx.LevelDebug) {
		b.log.Debug("schedule built",
			logx.String("id", spec.WorkflowID),
			logx.String("state", spec.State.String()),
			logx.String("interval", spec.Interval.String()),
			logx.Time("next_run", NextRuns(spec.Interval, timeNow(), 1)[0]),
		)
	}
	return def, nil
}

// BuildAll builds every spec of a named map and returns definitions keyed by
// workflow id. Entries are visited in sorted name order so that the reported
// error is deterministic. Any failure aborts the whole build.
func (b *Builder) BuildAll(specs map[string]Spec) (map[string]Definition, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]Definition, len(specs))
	owner := make(map[string]string, len(specs))
	for _, name := range names {
		spec := specs[name]
		if prev, dup := owner[spec.WorkflowID]; dup {
			return nil, &DuplicateScheduleError{ID: spec.WorkflowID, Names: [2]string{prev, name}}
		}
		def, err := b.Build(spec)
		if err != nil {
			return nil, err
		}
		owner[spec.WorkflowID] = name
		out[def.ID] = def
	}
	b.log.Debug("definitions built", logx.Int("count", len(out)))
	return out, nil
}

