package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"schedsync/internal/config"
	"schedsync/internal/gateway"
	"schedsync/internal/observability/metrics"
	"schedsync/internal/reconcile"
	"schedsync/internal/resolve"
	"schedsync/internal/schedule"
	logx "schedsync/pkg/logx"
)

// Options wires an App. Zero values fall back to defaults.
type Options struct {
	// Config loads and watches the config file. Required.
	Config *config.ConfigManager
	// Registry resolves workflow and input schema names. Nil builds an empty one.
	Registry *resolve.Registry
	// Gateway replaces the Temporal connection, e.g. with gatewaytest.Memory.
	Gateway gateway.Gateway
	// Metrics is shared with the /metrics endpoint. Nil builds a fresh set.
	Metrics *metrics.Metrics
	// Logs is the live logging service. Nil logs to the console only.
	Logs *logx.Service
}

// App drives reconciliation passes from the current config.
type App struct {
	cfgm    *config.ConfigManager
	reg     *resolve.Registry
	metrics *metrics.Metrics
	logs    *logx.Service
	log     logx.Logger

	gwMu     sync.Mutex
	gw       gateway.Gateway
	gwFixed  bool
	gwClose  func()
	gwTarget string

	passMu sync.Mutex

	lastMu   sync.Mutex
	lastAt   time.Time
	lastErr  error
	lastRuns int
}

// Report is the result of one sync pass.
type Report struct {
	RunID    string
	Outcomes []reconcile.Outcome
	Summary  reconcile.Summary
	Took     time.Duration
}

// ErrPassInProgress is returned when a pass is requested while another runs.
var ErrPassInProgress = errors.New("sync pass already in progress")

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config manager is required")
	}
	if opts.Config.Get() == nil {
		if _, err := opts.Config.Load(); err != nil {
			return nil, err
		}
	}
	a := &App{
		cfgm:    opts.Config,
		reg:     opts.Registry,
		metrics: opts.Metrics,
		logs:    opts.Logs,
	}
	if a.reg == nil {
		a.reg = resolve.New()
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}
	if a.logs != nil {
		a.log = a.logs.Logger()
	} else {
		a.log = logx.NewConsole(a.cfgm.Get().Logging.Level)
	}
	a.log = a.log.With(logx.String("comp", "app"))
	if opts.Gateway != nil {
		a.gw = opts.Gateway
		a.gwFixed = true
	}
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	return a, nil
}

// Close releases the remote connection.
func (a *App) Close() {
	a.gwMu.Lock()
	defer a.gwMu.Unlock()
	a.dropGatewayLocked()
}

func (a *App) dropGatewayLocked() {
	if a.gwFixed {
		return
	}
	if a.gwClose != nil {
		a.gwClose()
	}
	a.gw, a.gwClose, a.gwTarget = nil, nil, ""
}

// gateway returns the throttled remote gateway for rt, dialing on first use or
// when the target changed.
func (a *App) gateway(ctx context.Context, rt config.Runtime) (gateway.Gateway, error) {
	a.gwMu.Lock()
	defer a.gwMu.Unlock()

	if a.gwFixed {
		return a.throttle(a.gw, rt), nil
	}
	target := fmt.Sprintf("%s/%s|%v|%d|%s|%s|%s", rt.Host, rt.Namespace, rt.RatePerSec, rt.RetryMax, rt.RetryBase, rt.RetryMaxDelay, rt.RPCTimeout)
	if a.gw != nil && a.gwTarget == target {
		return a.gw, nil
	}
	a.dropGatewayLocked()

	t, err := gateway.DialTemporal(ctx, gateway.TemporalOptions{
		HostPort:   rt.Host,
		Namespace:  rt.Namespace,
		Identity:   rt.Identity,
		Lazy:       rt.Lazy,
		RPCTimeout: rt.RPCTimeout,
	}, a.log)
	if err != nil {
		return nil, err
	}
	a.gw = a.throttle(t, rt)
	a.gwClose = t.Close
	a.gwTarget = target
	return a.gw, nil
}

func (a *App) throttle(gw gateway.Gateway, rt config.Runtime) gateway.Gateway {
	return gateway.NewThrottled(gw, gateway.ThrottleOptions{
		RatePerSec: rt.RatePerSec,
		MaxRetries: uint64(max(rt.RetryMax, 0)),
		BaseDelay:  rt.RetryBase,
		MaxDelay:   rt.RetryMaxDelay,
		Observe:    a.metrics.ObserveRPC,
	}, a.log)
}

// snapshot returns the committed config with its parsed runtime settings.
func (a *App) snapshot() (*config.Config, config.Runtime, error) {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return nil, config.Runtime{}, errors.New("config not loaded")
	}
	rt, err := cfg.Runtime()
	if err != nil {
		return nil, config.Runtime{}, err
	}
	return cfg, rt, nil
}

// Validate converts and builds every schedule without touching the remote
// service. The returned definitions are keyed by schedule id.
func (a *App) Validate() (map[string]schedule.Definition, error) {
	cfg, rt, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	return a.build(cfg, rt)
}

func (a *App) build(cfg *config.Config, rt config.Runtime) (map[string]schedule.Definition, error) {
	specs, err := cfg.ToSpecs()
	if err != nil {
		return nil, err
	}
	a.reg.SetTypeNames(rt.AllowTypeNames)
	return schedule.NewBuilder(a.reg, a.log).BuildAll(specs)
}

func (a *App) engine(ctx context.Context, log logx.Logger) (*reconcile.Engine, config.Runtime, error) {
	cfg, rt, err := a.snapshot()
	if err != nil {
		return nil, rt, err
	}
	defs, err := a.build(cfg, rt)
	if err != nil {
		return nil, rt, err
	}
	gw, err := a.gateway(ctx, rt)
	if err != nil {
		return nil, rt, err
	}
	eng := reconcile.New(gw, defs,
		reconcile.WithPolicy(rt.Policy),
		reconcile.WithMaxConcurrency(rt.MaxConcurrency),
		reconcile.WithLogger(log),
		reconcile.WithRecorder(a.metrics),
	)
	return eng, rt, nil
}

// SyncOnce runs one reconciliation pass against the committed config.
func (a *App) SyncOnce(ctx context.Context) (Report, error) {
	if !a.passMu.TryLock() {
		return Report{}, ErrPassInProgress
	}
	defer a.passMu.Unlock()

	rep := Report{RunID: uuid.NewString()}
	log := a.log.With(logx.String("run_id", rep.RunID))
	start := time.Now()

	eng, rt, err := a.engine(ctx, log)
	if err != nil {
		a.finish(log, &rep, start, 0, err)
		return rep, err
	}
	if rt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.Timeout)
		defer cancel()
	}

	log.Info("sync started", logx.Int("schedules", len(eng.IDs())), logx.String("policy", rt.Policy.String()))
	rep.Outcomes, err = eng.Sync(ctx)
	rep.Summary = reconcile.Summarize(rep.Outcomes)
	a.finish(log, &rep, start, len(eng.IDs()), err)
	return rep, err
}

func (a *App) finish(log logx.Logger, rep *Report, start time.Time, n int, err error) {
	rep.Took = time.Since(start)
	a.metrics.ObserveSync(n, rep.Took, err)

	a.lastMu.Lock()
	a.lastAt, a.lastErr, a.lastRuns = time.Now(), err, a.lastRuns+1
	a.lastMu.Unlock()

	s := rep.Summary
	fields := []logx.Field{
		logx.Int("created", s.Created),
		logx.Int("updated", s.Updated),
		logx.Int("paused", s.Paused),
		logx.Int("deleted", s.Deleted),
		logx.Int("absent", s.Absent),
		logx.Int("failed", s.Failed),
		logx.Duration("took", rep.Took),
	}
	if err != nil {
		log.Error("sync finished with errors", append(fields, logx.Err(err))...)
		return
	}
	log.Info("sync finished", fields...)
}

// Plan reports what a sync pass would do without changing anything remotely.
func (a *App) Plan(ctx context.Context) ([]reconcile.Planned, error) {
	eng, rt, err := a.engine(ctx, a.log)
	if err != nil {
		return nil, err
	}
	if rt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.Timeout)
		defer cancel()
	}
	return eng.Plan(ctx)
}

// Health summarises the last pass for /healthz.
func (a *App) Health() metrics.Health {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	h := metrics.Health{OK: a.lastErr == nil, LastSync: a.lastAt}
	if a.lastErr != nil {
		h.LastErr = a.lastErr.Error()
	}
	return h
}
