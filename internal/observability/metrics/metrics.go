package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"schedsync/internal/gateway"
	"schedsync/internal/reconcile"
)

const namespace = "schedsync"

// Metrics holds the collectors for one process on a private registry.
//
// It implements reconcile.Recorder, and ObserveRPC matches the gateway
// ThrottleOptions.Observe hook.
type Metrics struct {
	reg *prometheus.Registry

	outcomes     *prometheus.CounterVec
	outcomeTime  *prometheus.HistogramVec
	rpcs         *prometheus.CounterVec
	rpcTime      *prometheus.HistogramVec
	syncs        *prometheus.CounterVec
	syncTime     prometheus.Histogram
	lastSync     prometheus.Gauge
	lastSuccess  prometheus.Gauge
	managed      prometheus.Gauge
	configReload *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_outcomes_total",
			Help:      "Per-schedule reconciliation outcomes by action, desired state and result.",
		}, []string{"action", "state", "result"}),
		outcomeTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_reconcile_seconds",
			Help:      "Time spent reconciling one schedule.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		rpcs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_rpcs_total",
			Help:      "Remote schedule RPC attempts by operation and status code.",
		}, []string{"op", "code"}),
		rpcTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_rpc_seconds",
			Help:      "Remote schedule RPC latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		syncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Reconciliation runs by result.",
		}, []string{"result"}),
		syncTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of a full reconciliation run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		lastSync: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last finished reconciliation run.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_success_timestamp_seconds",
			Help:      "Unix time of the last reconciliation run without failures.",
		}),
		managed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "managed_schedules",
			Help:      "Number of schedules in the current desired set.",
		}),
		configReload: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Config reload attempts by result.",
		}, []string{"result"}),
	}
}

// Registry exposes the private registry for serving and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveOutcome records one schedule outcome.
func (m *Metrics) ObserveOutcome(o reconcile.Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(o.Action.String(), o.State.String(), result(o.Err)).Inc()
	m.outcomeTime.WithLabelValues(o.Action.String()).Observe(o.Took.Seconds())
}

// ObserveRPC records one gateway attempt.
func (m *Metrics) ObserveRPC(op gateway.Op, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.rpcs.WithLabelValues(string(op), gateway.Code(err).String()).Inc()
	m.rpcTime.WithLabelValues(string(op)).Observe(took.Seconds())
}

// ObserveSync records a finished run. schedules is the size of the desired set.
func (m *Metrics) ObserveSync(schedules int, took time.Duration, err error) {
	if m == nil {
		return
	}
	now := float64(time.Now().Unix())
	m.syncs.WithLabelValues(result(err)).Inc()
	m.syncTime.Observe(took.Seconds())
	m.lastSync.Set(now)
	m.managed.Set(float64(schedules))
	if err == nil {
		m.lastSuccess.Set(now)
	}
}

// ObserveReload records a config reload attempt.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	m.configReload.WithLabelValues(result(err)).Inc()
}
