// Package reconcile converges the remote scheduling service onto a set of
// built schedule definitions.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"schedsync/internal/gateway"
	"schedsync/internal/schedule"
	"schedsync/pkg/logx"
)

// Policy selects how per-schedule gateway failures surface from Sync.
type Policy int

const (
	// PolicyPartial returns every outcome; failed ones carry Err and Sync
	// also returns a *SyncError.
	PolicyPartial Policy = iota
	// PolicyAllOrNothing returns no outcomes and the first failure. Sibling
	// schedules already in flight still run to completion.
	PolicyAllOrNothing
)

func (p Policy) String() string {
	if p == PolicyAllOrNothing {
		return "all_or_nothing"
	}
	return "partial"
}

// ParsePolicy accepts "partial" (default for "") and "all_or_nothing".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "partial":
		return PolicyPartial, nil
	case "all_or_nothing", "all-or-nothing", "strict":
		return PolicyAllOrNothing, nil
	default:
		return PolicyPartial, fmt.Errorf("unknown sync policy %q (want partial or all_or_nothing)", s)
	}
}

// Recorder observes finished outcomes. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveOutcome(o Outcome)
}

type Option func(*Engine)

// WithMaxConcurrency caps in-flight schedules. n <= 0 means one goroutine per schedule.
func WithMaxConcurrency(n int) Option { return func(e *Engine) { e.maxConc = n } }

func WithPolicy(p Policy) Option { return func(e *Engine) { e.policy = p } }

func WithLogger(l logx.Logger) Option { return func(e *Engine) { e.log = l } }

func WithRecorder(r Recorder) Option { return func(e *Engine) { e.rec = r } }

// Engine reconciles one immutable set of definitions. It holds no remote
// state between calls: every Sync looks handles up afresh.
type Engine struct {
	gw      gateway.Gateway
	defs    map[string]schedule.Definition
	ids     []string
	policy  Policy
	maxConc int
	log     logx.Logger
	rec     Recorder
	now     func() time.Time
}

func New(gw gateway.Gateway, defs map[string]schedule.Definition, opts ...Option) *Engine {
	e := &Engine{gw: gw, defs: defs, now: time.Now}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	e.log = e.log.With(logx.String("comp", "reconcile"))
	e.ids = make([]string, 0, len(defs))
	for id := range defs {
		e.ids = append(e.ids, id)
	}
	sort.Strings(e.ids)
	return e
}

// IDs returns the schedule ids handled by the engine, sorted.
func (e *Engine) IDs() []string { return append([]string(nil), e.ids...) }

// Decide is the per-schedule state machine: the action implied by a desired
// state and the observed remote presence.
func Decide(state schedule.State, present bool) (Action, error) {
	switch state {
	case schedule.StateCreated:
		if present {
			return ActionUpdated, nil
		}
		return ActionCreated, nil
	case schedule.StatePaused:
		if present {
			return ActionPaused, nil
		}
		return ActionCreated, nil
	case schedule.StateDeleted:
		if present {
			return ActionDeleted, nil
		}
		return ActionAlreadyAbsent, nil
	default:
		return ActionNone, &schedule.UnknownStateError{Value: state.String()}
	}
}

// validate rejects definitions that can never be dispatched. It runs before
// any remote call.
func (e *Engine) validate() error {
	for _, id := range e.ids {
		def := e.defs[id]
		if def.ID != "" && def.ID != id {
			return fmt.Errorf("definition keyed %q carries id %q", id, def.ID)
		}
		st := def.Spec.State
		if !st.Valid() {
			return &schedule.UnknownStateError{ID: id, Value: st.String()}
		}
		if st.Exists() && def.Schedule == nil {
			return &schedule.MissingBuiltScheduleError{ID: id, State: st}
		}
	}
	return nil
}

// Sync converges every definition concurrently and returns one outcome per
// schedule, sorted by id. Configuration defects are returned before any RPC.
func (e *Engine) Sync(ctx context.Context) ([]Outcome, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	out := make([]Outcome, len(e.ids))
	var g errgroup.Group
	if e.maxConc > 0 {
		g.SetLimit(e.maxConc)
	}
	for i, id := range e.ids {
		i, def := i, e.defs[id]
		g.Go(func() error {
			o := e.reconcileOne(ctx, id, def)
			out[i] = o
			if e.rec != nil {
				e.rec.ObserveOutcome(o)
			}
			return o.Err
		})
	}
	firstErr := g.Wait()

	if e.policy == PolicyAllOrNothing && firstErr != nil {
		return nil, firstErr
	}
	sortOutcomes(out)

	var failed []Outcome
	for _, o := range out {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	if len(failed) > 0 {
		return out, &SyncError{Failed: failed}
	}
	return out, nil
}

func (e *Engine) reconcileOne(ctx context.Context, id string, def schedule.Definition) (o Outcome) {
	start := e.now()
	o = Outcome{ID: id, State: def.Spec.State}
	log := e.log.With(logx.String("id", id), logx.String("state", def.Spec.State.String()))

	defer func() {
		o.Took = e.now().Sub(start)
		if o.Err != nil {
			log.Error("schedule reconcile failed",
				logx.String("action", o.Action.String()),
				logx.Duration("took", o.Took),
				logx.Err(o.Err),
			)
			return
		}
		log.Info("schedule reconciled",
			logx.String("action", o.Action.String()),
			logx.Duration("took", o.Took),
		)
	}()

	present, h, err := e.presence(ctx, id)
	if err != nil {
		o.Err = err
		return o
	}

	o.Action, o.Err = Decide(def.Spec.State, present)
	if o.Err != nil {
		o.Err = &schedule.UnknownStateError{ID: id, Value: def.Spec.State.String()}
		return o
	}

	switch o.Action {
	case ActionCreated:
		o.Handle, o.Err = e.gw.Create(ctx, id, def.Schedule)
	case ActionUpdated:
		o.Err = e.gw.Update(ctx, h, def.Schedule)
		o.Handle = h
	case ActionPaused:
		o.Err = e.gw.Pause(ctx, h, pauseNote(def))
		o.Handle = h
	case ActionDeleted:
		err := e.gw.Delete(ctx, h)
		switch {
		case err == nil:
			o.Deleted = true
		case gateway.IsNotFound(err):
			// Removed between describe and delete.
			o.Action = ActionAlreadyAbsent
		default:
			o.Err = err
		}
	case ActionAlreadyAbsent:
	}
	if o.Err != nil {
		o.Handle = nil
	}
	return o
}

func pauseNote(def schedule.Definition) string {
	if def.Spec.Comment != "" {
		return def.Spec.Comment
	}
	return "paused by schedsync"
}

// presence runs lookup then describe. Not-found at either step means absent.
func (e *Engine) presence(ctx context.Context, id string) (bool, gateway.Handle, error) {
	h, err := e.gw.Lookup(ctx, id)
	if gateway.IsNotFound(err) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if _, err := e.gw.Describe(ctx, h); err != nil {
		if gateway.IsNotFound(err) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, h, nil
}

// Plan runs only the presence protocol and reports the action Sync would
// take for every schedule. It never mutates remote state.
func (e *Engine) Plan(ctx context.Context) ([]Planned, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	out := make([]Planned, len(e.ids))
	var g errgroup.Group
	if e.maxConc > 0 {
		g.SetLimit(e.maxConc)
	}
	now := e.now()
	for i, id := range e.ids {
		i, def := i, e.defs[id]
		g.Go(func() error {
			p := Planned{ID: id, State: def.Spec.State}
			p.Present, _, p.Err = e.presence(ctx, id)
			if p.Err == nil {
				p.Action, p.Err = Decide(def.Spec.State, p.Present)
			}
			// Paused schedules do not fire.
			if p.Err == nil && def.Spec.State == schedule.StateCreated {
				p.NextRuns = schedule.NextRuns(def.Spec.Interval, now, 3)
			}
			out[i] = p
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	var errs []error
	for _, p := range out {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.ID, p.Err))
		}
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("plan: %d schedule(s) could not be inspected: %w", len(errs), errors.Join(errs...))
	}
	return out, nil
}
