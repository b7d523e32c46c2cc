package config

import (
	"reflect"
	"sort"
	"strings"

	logx "schedsync/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) the names of schedule entries
// that were added, removed or modified.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Temporal connection (worker-only keys are ignored)
	ot, nt := oldCfg.Temporal, newCfg.Temporal
	if strings.TrimSpace(ot.Host) != strings.TrimSpace(nt.Host) ||
		strings.TrimSpace(ot.Namespace) != strings.TrimSpace(nt.Namespace) ||
		ot.Identity != nt.Identity ||
		!reflect.DeepEqual(ot.Lazy, nt.Lazy) ||
		ot.RatePerSec != nt.RatePerSec ||
		!reflect.DeepEqual(ot.RetryMax, nt.RetryMax) ||
		ot.RetryBase != nt.RetryBase ||
		ot.RetryMaxDelay != nt.RetryMaxDelay ||
		ot.RPCTimeout != nt.RPCTimeout {
		changed = append(changed, "temporalio")
		attrs = append(attrs,
			logx.String("temporalio.host", strings.TrimSpace(nt.Host)),
			logx.String("temporalio.namespace", strings.TrimSpace(nt.Namespace)),
			logx.Any("temporalio.rate_per_sec", nt.RatePerSec),
		)
	}

	// Logging
	if !reflect.DeepEqual(loggingKey(oldCfg.Logging), loggingKey(newCfg.Logging)) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.String("logging.format", newCfg.Logging.Format),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Sync
	if !reflect.DeepEqual(oldCfg.Sync, newCfg.Sync) {
		changed = append(changed, "sync")
		attrs = append(attrs,
			logx.String("sync.policy", newCfg.Sync.Policy),
			logx.Int("sync.max_concurrency", newCfg.Sync.MaxConcurrency),
			logx.String("sync.watch.every", newCfg.Sync.Watch.Every),
		)
	}

	// Metrics
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", strings.TrimSpace(newCfg.Metrics.Addr)),
		)
	}

	// Schedules (summarize only; names returned separately)
	schedChanged := diffSchedules(oldCfg.Schedules, newCfg.Schedules)
	if len(schedChanged) > 0 {
		changed = append(changed, "schedules")
		attrs = append(attrs,
			logx.Int("schedules.changed_count", len(schedChanged)),
			logx.Int("schedules.count", len(newCfg.Schedules)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, schedChanged
}

// loggingKey drops the ignored log_config blob from comparisons.
func loggingKey(l LoggingConfig) LoggingConfig {
	l.LogConfig = nil
	return l
}

func diffSchedules(oldM, newM map[string]ScheduleConfig) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, ook := oldM[name]
		n, nok := newM[name]
		if ook != nok || !reflect.DeepEqual(o, n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
