package config

import "encoding/json"

type Config struct {
	Temporal TemporalConfig `json:"temporalio"`
	Logging  LoggingConfig  `json:"logging"`
	Sync     SyncConfig     `json:"sync"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`

	// Schedules maps a config entry name to one desired schedule.
	Schedules map[string]ScheduleConfig `json:"schedules"`
}

// TemporalConfig describes how to reach the Temporal frontend.
//
// The worker-process keys at the bottom are accepted and ignored so the same
// file can be shared with a Temporal worker deployment.
//
// Defaults (when fields are omitted/zero):
//   - host: "localhost:7233"
//   - namespace: "default"
//   - lazy: true
//   - rate_per_sec: 0 (unlimited)
//   - retry_max: 3
//   - retry_base: "200ms"
//   - retry_max_delay: "5s"
//   - rpc_timeout: "0s" (disabled)
type TemporalConfig struct {
	Host      string `json:"host"`
	Namespace string `json:"namespace"`
	Identity  string `json:"identity,omitempty"`
	Lazy      *bool  `json:"lazy,omitempty"`

	RatePerSec    float64 `json:"rate_per_sec,omitempty"`
	RetryMax      *int    `json:"retry_max,omitempty"`
	RetryBase     string  `json:"retry_base,omitempty"`
	RetryMaxDelay string  `json:"retry_max_delay,omitempty"`
	RPCTimeout    string  `json:"rpc_timeout,omitempty"`

	Workers                       []json.RawMessage `json:"workers,omitempty"`
	Interceptors                  []string          `json:"interceptors,omitempty"`
	Converter                     *string           `json:"converter,omitempty"`
	DefaultFactory                string            `json:"default_factory,omitempty"`
	PreInit                       []string          `json:"pre_init,omitempty"`
	MaxConcurrentActivities       int               `json:"max_concurrent_activities,omitempty"`
	MaxConcurrentWorkflowTasks    int               `json:"max_concurrent_workflow_tasks,omitempty"`
	DisableEagerActivityExecution *bool             `json:"disable_eager_activity_execution,omitempty"`
	MetricBindAddress             string            `json:"metric_bind_address,omitempty"`
	EnableMetrics                 bool              `json:"enable_metrics,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level"`
	// Format is "console" (default) or "json".
	Format    string      `json:"format,omitempty"`
	UseColors *bool       `json:"use_colors,omitempty"`
	Console   *bool       `json:"console,omitempty"`
	File      LoggingFile `json:"file"`
	// LogConfig is accepted for compatibility with worker configs and ignored.
	LogConfig json.RawMessage `json:"log_config,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SyncConfig controls reconciliation runs.
//
// Defaults:
//   - policy: "partial"
//   - max_concurrency: 0 (one goroutine per schedule)
//   - timeout: "0s" (disabled)
//   - default_task_queue: "default"
//   - allow_type_names: true
type SyncConfig struct {
	Policy           string      `json:"policy,omitempty"`
	MaxConcurrency   int         `json:"max_concurrency,omitempty"`
	Timeout          string      `json:"timeout,omitempty"`
	DefaultTaskQueue string      `json:"default_task_queue,omitempty"`
	AllowTypeNames   *bool       `json:"allow_type_names,omitempty"`
	Watch            WatchConfig `json:"watch,omitempty"`
}

// WatchConfig drives the long-running watch command.
type WatchConfig struct {
	// Every is a cron expression or an interval (see schedule.ParseTrigger).
	// Default: "5m".
	Every string `json:"every,omitempty"`
	// OnChange re-syncs immediately after a config file change.
	OnChange bool `json:"on_change,omitempty"`
}

// MetricsConfig controls the optional Prometheus HTTP endpoint.
//
// Security note: prefer binding to localhost (e.g. "127.0.0.1:9464").
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9464"

	ReadTimeout string `json:"read_timeout,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`
}

// ScheduleConfig is one entry of the schedules section.
type ScheduleConfig struct {
	WorkflowID  string         `json:"workflow_id"`
	Workflow    string         `json:"workflow"`
	InputSchema string         `json:"input_schema,omitempty"`
	TaskQueue   string         `json:"task_queue,omitempty"`
	Interval    IntervalConfig `json:"interval,omitempty"`
	Comment     string         `json:"comment,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	// State is created (default), paused or deleted.
	State string `json:"state,omitempty"`
}

// IntervalConfig holds "1h30m15s"-style texts. An empty every means "86400s".
type IntervalConfig struct {
	Every  string `json:"every,omitempty"`
	Offset string `json:"offset,omitempty"`
}
