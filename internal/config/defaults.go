package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"schedsync/internal/reconcile"
	"schedsync/internal/schedule"
)

const (
	DefaultHost             = "localhost:7233"
	DefaultNamespace        = "default"
	DefaultTaskQueue        = "default"
	DefaultEvery            = "86400s"
	DefaultWatchEvery       = "5m"
	DefaultMetricsAddr      = "127.0.0.1:9464"
	DefaultRetryMax         = 3
	defaultRetryBase        = 200 * time.Millisecond
	defaultRetryMaxDelay    = 5 * time.Second
	defaultMetricsReadLimit = 5 * time.Second
)

// Env var names honoured by ApplyEnv.
const (
	EnvHost      = "SCHEDSYNC_HOST"
	EnvNamespace = "SCHEDSYNC_NAMESPACE"
	EnvConfig    = "SCHEDSYNC_CONFIG"
)

// Default returns a config with every default applied and no schedules.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills omitted fields. It is idempotent.
func (c *Config) ApplyDefaults() {
	t := &c.Temporal
	if strings.TrimSpace(t.Host) == "" {
		t.Host = DefaultHost
	}
	if strings.TrimSpace(t.Namespace) == "" {
		t.Namespace = DefaultNamespace
	}
	if t.Lazy == nil {
		t.Lazy = boolPtr(true)
	}
	if t.RetryMax == nil {
		n := DefaultRetryMax
		t.RetryMax = &n
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.UseColors == nil {
		c.Logging.UseColors = boolPtr(true)
	}
	if c.Logging.Console == nil {
		c.Logging.Console = boolPtr(true)
	}

	if strings.TrimSpace(c.Sync.Policy) == "" {
		c.Sync.Policy = reconcile.PolicyPartial.String()
	}
	if strings.TrimSpace(c.Sync.DefaultTaskQueue) == "" {
		c.Sync.DefaultTaskQueue = DefaultTaskQueue
	}
	if c.Sync.AllowTypeNames == nil {
		c.Sync.AllowTypeNames = boolPtr(true)
	}
	if strings.TrimSpace(c.Sync.Watch.Every) == "" {
		c.Sync.Watch.Every = DefaultWatchEvery
	}

	if strings.TrimSpace(c.Metrics.Addr) == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Schedules == nil {
		c.Schedules = map[string]ScheduleConfig{}
	}
}

// ApplyEnv overrides host and namespace from the environment. A nil getenv uses os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvHost)); v != "" {
		c.Temporal.Host = v
	}
	if v := strings.TrimSpace(getenv(EnvNamespace)); v != "" {
		c.Temporal.Namespace = v
	}
}

// Validate checks every section. Schedule entries are converted with ToSpecs,
// so interval and state defects surface here with the entry name.
func (c *Config) Validate() error {
	if _, err := c.Runtime(); err != nil {
		return err
	}
	if _, err := c.ToSpecs(); err != nil {
		return err
	}
	return nil
}

// Runtime holds the parsed, typed form of the non-schedule sections.
type Runtime struct {
	Host          string
	Namespace     string
	Identity      string
	Lazy          bool
	RatePerSec    float64
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RPCTimeout    time.Duration

	Policy           reconcile.Policy
	MaxConcurrency   int
	Timeout          time.Duration
	AllowTypeNames   bool
	WatchTrigger     schedule.Trigger
	WatchOnChange    bool
	MetricsEnabled   bool
	MetricsAddr      string
	MetricsReadLimit time.Duration
	MetricsIdle      time.Duration
}

// Runtime parses durations, policy and the watch trigger.
func (c *Config) Runtime() (Runtime, error) {
	var (
		r   Runtime
		err error
	)
	t := c.Temporal
	r.Host = strings.TrimSpace(t.Host)
	r.Namespace = strings.TrimSpace(t.Namespace)
	r.Identity = t.Identity
	r.Lazy = t.Lazy == nil || *t.Lazy
	if t.RatePerSec < 0 {
		return r, fmt.Errorf("temporalio.rate_per_sec: must be >= 0")
	}
	r.RatePerSec = t.RatePerSec
	r.RetryMax = DefaultRetryMax
	if t.RetryMax != nil {
		if *t.RetryMax < 0 {
			return r, fmt.Errorf("temporalio.retry_max: must be >= 0")
		}
		r.RetryMax = *t.RetryMax
	}
	if r.RetryBase, err = ParseDurationOrDefault("temporalio.retry_base", t.RetryBase, defaultRetryBase); err != nil {
		return r, err
	}
	if r.RetryMaxDelay, err = ParseDurationOrDefault("temporalio.retry_max_delay", t.RetryMaxDelay, defaultRetryMaxDelay); err != nil {
		return r, err
	}
	if r.RPCTimeout, err = ParseDurationField("temporalio.rpc_timeout", t.RPCTimeout); err != nil {
		return r, err
	}

	s := c.Sync
	if r.Policy, err = reconcile.ParsePolicy(s.Policy); err != nil {
		return r, fmt.Errorf("sync.policy: %w", err)
	}
	if s.MaxConcurrency < 0 {
		return r, fmt.Errorf("sync.max_concurrency: must be >= 0")
	}
	r.MaxConcurrency = s.MaxConcurrency
	if r.Timeout, err = ParseDurationField("sync.timeout", s.Timeout); err != nil {
		return r, err
	}
	r.AllowTypeNames = s.AllowTypeNames == nil || *s.AllowTypeNames
	every := s.Watch.Every
	if strings.TrimSpace(every) == "" {
		every = DefaultWatchEvery
	}
	if r.WatchTrigger, err = schedule.ParseTrigger(every); err != nil {
		return r, fmt.Errorf("sync.watch.every: %w", err)
	}
	r.WatchOnChange = s.Watch.OnChange

	r.MetricsEnabled = c.Metrics.Enabled
	r.MetricsAddr = strings.TrimSpace(c.Metrics.Addr)
	if r.MetricsAddr == "" {
		r.MetricsAddr = DefaultMetricsAddr
	}
	if r.MetricsReadLimit, err = ParseDurationOrDefault("metrics.read_timeout", c.Metrics.ReadTimeout, defaultMetricsReadLimit); err != nil {
		return r, err
	}
	if r.MetricsIdle, err = ParseDurationField("metrics.idle_timeout", c.Metrics.IdleTimeout); err != nil {
		return r, err
	}
	return r, nil
}

func boolPtr(b bool) *bool { return &b }
