package app

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"schedsync/internal/config"
	"schedsync/internal/observability/metrics"
	rtsup "schedsync/internal/runtime/supervisor"
	"schedsync/internal/schedule"
	logx "schedsync/pkg/logx"
)

const stopTimeout = 10 * time.Second

func metricsConfig(rt config.Runtime) metrics.Config {
	return metrics.Config{
		Enabled:     rt.MetricsEnabled,
		Addr:        rt.MetricsAddr,
		ReadTimeout: rt.MetricsReadLimit,
		IdleTimeout: rt.MetricsIdle,
	}
}

// watcher owns the periodic trigger of a Watch run.
type watcher struct {
	a   *App
	log logx.Logger
	sd  notifier

	mu      sync.Mutex
	c       *cron.Cron
	entry   cron.EntryID
	trigger string
}

// Watch runs a pass immediately, then on every watch trigger until ctx ends.
// Config file changes are applied live; with sync.watch.on_change they also
// start a pass. Overlapping passes are skipped.
func (a *App) Watch(ctx context.Context) (StopReason, error) {
	_, rt, err := a.snapshot()
	if err != nil {
		return StopFatalError, err
	}

	sup := rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))), rtsup.WithCancelOnError(true))
	cl := cronLogger{a.log.With(logx.String("comp", "cron"))}
	w := &watcher{
		a:   a,
		log: a.log.With(logx.String("comp", "watch")),
		sd:  newNotifier(a.log.With(logx.String("comp", "systemd"))),
		c: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if err := w.schedule(sup.Context(), rt.WatchTrigger); err != nil {
		sup.Cancel()
		return StopFatalError, err
	}

	msrv := metrics.NewService(metricsConfig(rt), a.metrics, a.log)
	msrv.SetHealth(func() metrics.Health {
		h := a.Health()
		h.Tasks = sup.Snapshot()
		return h
	})
	msrv.Reconfigure(sup.Context(), metricsConfig(rt))

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		rt, err := cfg.Runtime()
		if err != nil {
			return err
		}
		_, err = a.build(cfg, rt)
		return err
	})
	a.cfgm.OnReload(a.metrics.ObserveReload)
	sub := a.cfgm.Subscribe(8)

	w.pass(sup.Context(), "startup")
	w.c.Start()

	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go("config.apply", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		w.applyLoop(c, sub, msrv)
		return nil
	})
	sup.Go("systemd.watchdog", w.sd.watchdog)

	w.sd.Ready()
	w.log.Info("watch started", logx.String("trigger", w.trigger), logx.Bool("on_change", rt.WatchOnChange))

	<-sup.Context().Done()
	w.sd.Stopping()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	select {
	case <-w.c.Stop().Done():
	case <-stopCtx.Done():
		w.log.Warn("in-flight sync pass did not finish before shutdown")
	}
	msrv.Stop(stopCtx)
	serr := sup.Stop(stopCtx)

	if ctx.Err() != nil {
		w.log.Info("watch stopped", logx.String("reason", string(StopSignal)))
		return StopSignal, nil
	}
	if serr == nil {
		serr = errors.New("watch stopped unexpectedly")
	}
	w.log.Error("watch stopped", logx.String("reason", string(StopFatalError)), logx.Err(serr))
	return StopFatalError, serr
}

// schedule installs or replaces the periodic pass.
func (w *watcher) schedule(ctx context.Context, t schedule.Trigger) error {
	s, err := t.Schedule()
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.entry != 0 {
		w.c.Remove(w.entry)
	}
	w.entry = w.c.Schedule(s, cron.FuncJob(func() { w.pass(ctx, "tick") }))
	w.trigger = t.String()
	return nil
}

func (w *watcher) pass(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	_, err := w.a.SyncOnce(ctx)
	if errors.Is(err, ErrPassInProgress) {
		w.log.Debug("sync pass skipped; previous pass still running", logx.String("reason", reason))
	}
}

// applyLoop applies published configs, coalescing bursts.
func (w *watcher) applyLoop(ctx context.Context, sub chan *config.Config, msrv *metrics.Service) {
	last := w.a.cfgm.Get()
	for {
		var next *config.Config
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			next = cfg
		}
	drain:
		for {
			select {
			case newer := <-sub:
				if newer != nil {
					next = newer
				}
			default:
				break drain
			}
		}
		w.apply(ctx, last, next, msrv)
		last = next
	}
}

func (w *watcher) apply(ctx context.Context, prev, next *config.Config, msrv *metrics.Service) {
	sections, attrs, _ := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		w.log.Debug("config reload received, but no effective changes detected")
		return
	}
	w.log.Info("applying config", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	if slices.Contains(sections, "logging") && w.a.logs != nil {
		w.a.logs.Apply(LogConfig(next.Logging))
	}

	rt, err := next.Runtime()
	if err != nil {
		w.log.Warn("invalid runtime config; keeping previous", logx.Err(err))
		return
	}
	msrv.Reconfigure(ctx, metricsConfig(rt))
	if rt.WatchTrigger.String() != w.currentTrigger() {
		if err := w.schedule(ctx, rt.WatchTrigger); err != nil {
			w.log.Warn("invalid watch trigger; keeping previous", logx.Err(err))
		} else {
			w.log.Info("watch trigger changed", logx.String("trigger", rt.WatchTrigger.String()))
		}
	}

	if rt.WatchOnChange && (slices.Contains(sections, "schedules") || slices.Contains(sections, "sync") || slices.Contains(sections, "temporalio")) {
		w.sd.Reloading()
		w.pass(ctx, "config")
		w.sd.Ready()
	}
}

func (w *watcher) currentTrigger() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.trigger
}
