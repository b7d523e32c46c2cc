package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerKind describes how a watch trigger string was interpreted.
type TriggerKind int

const (
	TriggerCron TriggerKind = iota
	TriggerInterval
)

// Trigger is a parsed re-sync cadence for watch mode.
//
// Supported forms:
//   - Cron: "*/5 * * * *", "@hourly", "@every 10m"
//   - Interval: "10m", "1h30m" (compact or Go duration syntax)
//   - Interval HH:MM: "00:30" (30 minutes)
//
// Optional prefixes "cron:" and "every:" force one interpretation.
type Trigger struct {
	Kind   TriggerKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "interval" | "hhmm"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseTrigger parses a watch cadence string.
func ParseTrigger(raw string) (Trigger, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Trigger{}, fmt.Errorf("trigger required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Trigger{}, fmt.Errorf("cron expression required after 'cron:'")
		}
		return parseCronTrigger(expr)
	case strings.HasPrefix(low, "every:"):
		return parseIntervalTrigger(strings.TrimSpace(s[len("every:"):]))
	}

	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCronTrigger(s)
	}
	return parseIntervalTrigger(s)
}

func parseCronTrigger(expr string) (Trigger, error) {
	if _, err := cronParser.Parse(expr); err != nil {
		return Trigger{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Trigger{Kind: TriggerCron, Cron: expr, Source: "cron"}, nil
}

func parseIntervalTrigger(v string) (Trigger, error) {
	if v == "" {
		return Trigger{}, fmt.Errorf("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		var hh, mm int
		_, _ = fmt.Sscanf(m[1], "%d", &hh)
		_, _ = fmt.Sscanf(m[2], "%d", &mm)
		if mm > 59 {
			return Trigger{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return Trigger{}, fmt.Errorf("interval must be > 0")
		}
		return Trigger{Kind: TriggerInterval, Every: d, Source: "hhmm"}, nil
	}

	d, err := ParseInterval(v)
	if err != nil {
		// Fall back to Go syntax ("1.5h", "250ms").
		gd, gerr := time.ParseDuration(v)
		if gerr != nil {
			return Trigger{}, fmt.Errorf("invalid trigger %q (use cron like '*/5 * * * *', HH:MM like '00:30', or interval like '10m')", v)
		}
		d = gd
	}
	if d <= 0 {
		return Trigger{}, fmt.Errorf("interval must be > 0")
	}
	return Trigger{Kind: TriggerInterval, Every: d, Source: "interval"}, nil
}

// Schedule returns the cron.Schedule that fires this trigger.
func (t Trigger) Schedule() (cron.Schedule, error) {
	switch t.Kind {
	case TriggerCron:
		return cronParser.Parse(t.Cron)
	case TriggerInterval:
		if t.Every <= 0 {
			return nil, fmt.Errorf("interval must be > 0")
		}
		return cron.Every(t.Every), nil
	default:
		return nil, fmt.Errorf("unknown trigger kind %d", t.Kind)
	}
}

func (t Trigger) String() string {
	if t.Kind == TriggerCron {
		return "cron:" + t.Cron
	}
	return "every:" + FormatInterval(t.Every)
}
