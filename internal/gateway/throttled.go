package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"schedsync/pkg/logx"
)

// ThrottleOptions tunes Throttled. Zero values disable the matching feature.
type ThrottleOptions struct {
	// RatePerSec caps RPCs per second across all goroutines. <= 0 means unlimited.
	RatePerSec float64
	Burst      int
	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Observe, when set, is called once per attempt.
	Observe func(op Op, err error, took time.Duration)
}

// Throttled rate-limits and retries calls to an inner Gateway.
//
// Only idempotent operations are retried, and only for transient status codes
// (see Retryable). Create is attempted exactly once.
type Throttled struct {
	inner   Gateway
	limiter *rate.Limiter
	opts    ThrottleOptions
	log     logx.Logger
}

var _ Gateway = (*Throttled)(nil)

func NewThrottled(inner Gateway, opts ThrottleOptions, log logx.Logger) *Throttled {
	t := &Throttled{inner: inner, opts: opts, log: log.With(logx.String("comp", "gateway.throttled"))}
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RatePerSec)
			if burst < 1 {
				burst = 1
			}
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	if t.opts.BaseDelay <= 0 {
		t.opts.BaseDelay = 200 * time.Millisecond
	}
	if t.opts.MaxDelay <= 0 {
		t.opts.MaxDelay = 5 * time.Second
	}
	return t
}

func (t *Throttled) newBackOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = t.opts.BaseDelay
	exp.MaxInterval = t.opts.MaxDelay
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, t.opts.MaxRetries), ctx)
}

// attempt runs fn once behind the limiter and reports it to Observe.
func (t *Throttled) attempt(ctx context.Context, op Op, fn func() error) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	start := time.Now()
	err := fn()
	if t.opts.Observe != nil {
		t.opts.Observe(op, err, time.Since(start))
	}
	return err
}

// do runs fn, retrying transient failures when retry is set.
func (t *Throttled) do(ctx context.Context, op Op, id string, retry bool, fn func() error) error {
	if !retry || t.opts.MaxRetries == 0 {
		return t.attempt(ctx, op, fn)
	}
	n := 0
	return backoff.RetryNotify(func() error {
		n++
		err := t.attempt(ctx, op, fn)
		if err == nil {
			return nil
		}
		if !Retryable(Code(err)) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, t.newBackOff(ctx), func(err error, wait time.Duration) {
		t.log.Warn("transient gateway failure, retrying",
			logx.String("op", string(op)),
			logx.String("id", id),
			logx.Int("attempt", n),
			logx.Duration("wait", wait),
			logx.Err(err),
		)
	})
}

func (t *Throttled) Lookup(ctx context.Context, id string) (Handle, error) {
	var h Handle
	err := t.do(ctx, OpLookup, id, true, func() error {
		var err error
		h, err = t.inner.Lookup(ctx, id)
		return err
	})
	return h, err
}

func (t *Throttled) Describe(ctx context.Context, h Handle) (Description, error) {
	var d Description
	err := t.do(ctx, OpDescribe, h.ID(), true, func() error {
		var err error
		d, err = t.inner.Describe(ctx, h)
		return err
	})
	return d, err
}

func (t *Throttled) Create(ctx context.Context, id string, s *Schedule) (Handle, error) {
	var h Handle
	err := t.do(ctx, OpCreate, id, false, func() error {
		var err error
		h, err = t.inner.Create(ctx, id, s)
		return err
	})
	return h, err
}

func (t *Throttled) Update(ctx context.Context, h Handle, s *Schedule) error {
	return t.do(ctx, OpUpdate, h.ID(), true, func() error { return t.inner.Update(ctx, h, s) })
}

func (t *Throttled) Pause(ctx context.Context, h Handle, note string) error {
	return t.do(ctx, OpPause, h.ID(), true, func() error { return t.inner.Pause(ctx, h, note) })
}

func (t *Throttled) Delete(ctx context.Context, h Handle) error {
	return t.do(ctx, OpDelete, h.ID(), true, func() error { return t.inner.Delete(ctx, h) })
}
