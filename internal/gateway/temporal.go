package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"

	"schedsync/pkg/logx"
)

// TemporalOptions configures the connection to the Temporal frontend.
type TemporalOptions struct {
	HostPort  string
	Namespace string
	Identity  string
	// Lazy defers dialing until the first RPC.
	Lazy bool
	// RPCTimeout bounds every single gateway call. Zero means no extra bound.
	RPCTimeout time.Duration
}

// Temporal implements Gateway on top of the Temporal schedule client.
type Temporal struct {
	c       client.Client
	sc      client.ScheduleClient
	log     logx.Logger
	timeout time.Duration
	owned   bool
}

var _ Gateway = (*Temporal)(nil)

// DialTemporal connects to Temporal. The caller owns the returned gateway and
// must Close it.
func DialTemporal(ctx context.Context, opts TemporalOptions, log logx.Logger) (*Temporal, error) {
	log = log.With(logx.String("comp", "gateway.temporal"))
	copts := client.Options{
		HostPort:  strings.TrimSpace(opts.HostPort),
		Namespace: strings.TrimSpace(opts.Namespace),
		Identity:  opts.Identity,
		Logger:    NewTemporalLogger(log),
	}
	if copts.HostPort == "" {
		copts.HostPort = client.DefaultHostPort
	}
	if copts.Namespace == "" {
		copts.Namespace = client.DefaultNamespace
	}

	var (
		c   client.Client
		err error
	)
	if opts.Lazy {
		c, err = client.NewLazyClient(copts)
	} else {
		c, err = client.DialContext(ctx, copts)
	}
	if err != nil {
		return nil, fmt.Errorf("temporal dial %s/%s: %w", copts.HostPort, copts.Namespace, err)
	}
	log.Info("temporal client ready",
		logx.String("host", copts.HostPort),
		logx.String("namespace", copts.Namespace),
		logx.Bool("lazy", opts.Lazy),
	)
	t := NewTemporal(c, log, opts.RPCTimeout)
	t.owned = true
	return t, nil
}

// NewTemporal wraps an existing client. The client is not closed by Close.
func NewTemporal(c client.Client, log logx.Logger, rpcTimeout time.Duration) *Temporal {
	return &Temporal{c: c, sc: c.ScheduleClient(), log: log, timeout: rpcTimeout}
}

// Close releases the underlying client when it was created by DialTemporal.
func (t *Temporal) Close() {
	if t == nil || !t.owned || t.c == nil {
		return
	}
	t.c.Close()
}

type temporalHandle struct {
	h client.ScheduleHandle
}

func (h temporalHandle) ID() string { return h.h.GetID() }

func (t *Temporal) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

// handle recovers the SDK handle, re-resolving foreign handles by id.
func (t *Temporal) handle(ctx context.Context, h Handle) client.ScheduleHandle {
	if th, ok := h.(temporalHandle); ok {
		return th.h
	}
	return t.sc.GetHandle(ctx, h.ID())
}

// Lookup returns a handle without a round trip; the SDK handle is lazy, so
// existence is only confirmed by Describe.
func (t *Temporal) Lookup(ctx context.Context, id string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(OpLookup, id, err)
	}
	return temporalHandle{h: t.sc.GetHandle(ctx, id)}, nil
}

func (t *Temporal) Describe(ctx context.Context, h Handle) (Description, error) {
	ctx, cancel := t.callCtx(ctx)
	defer cancel()

	d, err := t.handle(ctx, h).Describe(ctx)
	if err != nil {
		return Description{}, Classify(OpDescribe, h.ID(), classifyTemporal(err))
	}
	out := Description{
		ID:              h.ID(),
		NumActions:      d.Info.NumActions,
		NextActionTimes: d.Info.NextActionTimes,
		CreatedAt:       d.Info.CreatedAt,
		UpdatedAt:       d.Info.LastUpdateAt,
	}
	if d.Schedule.State != nil {
		out.Paused = d.Schedule.State.Paused
		out.Note = d.Schedule.State.Note
	}
	return out, nil
}

func (t *Temporal) Create(ctx context.Context, id string, s *Schedule) (Handle, error) {
	if s == nil {
		return nil, &Error{Op: OpCreate, ID: id, Code: codes.InvalidArgument, Err: errors.New("nil schedule")}
	}
	ctx, cancel := t.callCtx(ctx)
	defer cancel()

	sh, err := t.sc.Create(ctx, client.ScheduleOptions{
		ID:      id,
		Spec:    toTemporalSpec(s.Spec),
		Action:  toTemporalAction(s.Action),
		Overlap: toTemporalOverlap(s.Policy.Overlap),
		Note:    s.State.Note,
		Paused:  s.State.Paused,
	})
	if err != nil {
		return nil, Classify(OpCreate, id, classifyTemporal(err))
	}
	return temporalHandle{h: sh}, nil
}

func (t *Temporal) Update(ctx context.Context, h Handle, s *Schedule) error {
	if s == nil {
		return &Error{Op: OpUpdate, ID: h.ID(), Code: codes.InvalidArgument, Err: errors.New("nil schedule")}
	}
	ctx, cancel := t.callCtx(ctx)
	defer cancel()

	spec := toTemporalSpec(s.Spec)
	err := t.handle(ctx, h).Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			return &client.ScheduleUpdate{
				Schedule: &client.Schedule{
					Action: toTemporalAction(s.Action),
					Spec:   &spec,
					Policy: &client.SchedulePolicies{Overlap: toTemporalOverlap(s.Policy.Overlap)},
					State:  &client.ScheduleState{Note: s.State.Note, Paused: s.State.Paused},
				},
			}, nil
		},
	})
	return Classify(OpUpdate, h.ID(), classifyTemporal(err))
}

func (t *Temporal) Pause(ctx context.Context, h Handle, note string) error {
	ctx, cancel := t.callCtx(ctx)
	defer cancel()

	err := t.handle(ctx, h).Pause(ctx, client.SchedulePauseOptions{Note: note})
	return Classify(OpPause, h.ID(), classifyTemporal(err))
}

func (t *Temporal) Delete(ctx context.Context, h Handle) error {
	ctx, cancel := t.callCtx(ctx)
	defer cancel()

	err := t.handle(ctx, h).Delete(ctx)
	return Classify(OpDelete, h.ID(), classifyTemporal(err))
}

// classifyTemporal maps the SDK's not-found error onto ErrNotFound.
func classifyTemporal(err error) error {
	if err == nil {
		return nil
	}
	var nf *serviceerror.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", ErrNotFound, nf.Message)
	}
	return err
}

func toTemporalSpec(s Spec) client.ScheduleSpec {
	out := client.ScheduleSpec{Intervals: make([]client.ScheduleIntervalSpec, 0, len(s.Intervals))}
	for _, iv := range s.Intervals {
		out.Intervals = append(out.Intervals, client.ScheduleIntervalSpec{Every: iv.Every, Offset: iv.Offset})
	}
	return out
}

func toTemporalAction(a Action) *client.ScheduleWorkflowAction {
	return &client.ScheduleWorkflowAction{
		ID:        a.WorkflowID,
		Workflow:  a.Workflow,
		Args:      a.Args,
		TaskQueue: a.TaskQueue,
	}
}

func toTemporalOverlap(p OverlapPolicy) enumspb.ScheduleOverlapPolicy {
	switch p {
	case OverlapSkip:
		return enumspb.SCHEDULE_OVERLAP_POLICY_SKIP
	case OverlapBufferOne:
		return enumspb.SCHEDULE_OVERLAP_POLICY_BUFFER_ONE
	case OverlapBufferAll:
		return enumspb.SCHEDULE_OVERLAP_POLICY_BUFFER_ALL
	case OverlapCancelOther:
		return enumspb.SCHEDULE_OVERLAP_POLICY_CANCEL_OTHER
	case OverlapTerminateOther:
		return enumspb.SCHEDULE_OVERLAP_POLICY_TERMINATE_OTHER
	case OverlapAllowAll:
		return enumspb.SCHEDULE_OVERLAP_POLICY_ALLOW_ALL
	default:
		return enumspb.SCHEDULE_OVERLAP_POLICY_UNSPECIFIED
	}
}
