package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

var timeNow = time.Now

// alignedSchedule fires at every instant t where (t - Offset) is a multiple
// of Every counted from the Unix epoch, the way the remote service aligns
// interval specs.
type alignedSchedule struct {
	every  time.Duration
	offset time.Duration
}

var _ cron.Schedule = alignedSchedule{}

// AlignedSchedule returns a cron.Schedule for iv. Every must be positive.
func AlignedSchedule(iv Interval) cron.Schedule {
	return alignedSchedule{every: iv.Every, offset: iv.Offset % iv.Every}
}

// Next returns the first trigger strictly after t.
func (s alignedSchedule) Next(t time.Time) time.Time {
	if s.every <= 0 {
		return time.Time{}
	}
	since := time.Duration(t.UnixNano()) - s.offset
	k := since / s.every
	if since < 0 && since%s.every != 0 {
		k--
	}
	next := time.Unix(0, int64(k*s.every+s.offset))
	if !next.After(t) {
		next = next.Add(s.every)
	}
	return next.In(t.Location())
}

// NextRuns previews the next n trigger times of iv after from.
// A non-positive Every yields nil.
func NextRuns(iv Interval, from time.Time, n int) []time.Time {
	if iv.Every <= 0 || n <= 0 {
		return nil
	}
	sched := AlignedSchedule(iv)
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		out = append(out, t)
	}
	return out
}
