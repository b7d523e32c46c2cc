package schedule

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidInterval is returned when text is not of the form [<n>h][<n>m][<n>s].
	ErrInvalidInterval = errors.New("invalid interval format")
	// ErrZeroInterval is returned for a zero repeat interval on a schedule that must exist remotely.
	ErrZeroInterval = errors.New("interval every must be > 0")
)

// IntervalError reports the offending text of a failed ParseInterval.
type IntervalError struct {
	Text string
	Err  error
}

func (e *IntervalError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, ErrInvalidInterval) {
		return fmt.Sprintf("%s %q: %v", ErrInvalidInterval, e.Text, e.Err)
	}
	return fmt.Sprintf("%s %q (use e.g. '90s', '1h30m', '2h0m15s')", ErrInvalidInterval, e.Text)
}

func (e *IntervalError) Unwrap() []error {
	if e.Err == nil || errors.Is(e.Err, ErrInvalidInterval) {
		return []error{ErrInvalidInterval}
	}
	return []error{ErrInvalidInterval, e.Err}
}

var reInterval = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseInterval parses "1h30m15s"-style text. Every unit is optional but the
// order is fixed (hours, minutes, seconds) and magnitudes are non-negative
// integers. The empty string parses to zero.
func ParseInterval(text string) (time.Duration, error) {
	s := strings.TrimSpace(text)
	m := reInterval.FindStringSubmatch(s)
	if m == nil {
		return 0, &IntervalError{Text: text}
	}

	var total time.Duration
	units := [...]time.Duration{time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		raw := m[i+1]
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, &IntervalError{Text: text, Err: err}
		}
		if n > int64(math.MaxInt64/unit) {
			return 0, &IntervalError{Text: text, Err: errors.New("value out of range")}
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, &IntervalError{Text: text, Err: errors.New("value out of range")}
		}
		total += part
	}
	return total, nil
}

// FormatInterval renders d in the syntax accepted by ParseInterval, omitting
// zero units. Sub-second precision is truncated. Zero and negative durations
// render as "0s".
func FormatInterval(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d <= 0 {
		return "0s"
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	var b strings.Builder
	if h > 0 {
		b.WriteString(strconv.FormatInt(int64(h), 10))
		b.WriteByte('h')
	}
	if m > 0 {
		b.WriteString(strconv.FormatInt(int64(m), 10))
		b.WriteByte('m')
	}
	if s > 0 {
		b.WriteString(strconv.FormatInt(int64(s), 10))
		b.WriteByte('s')
	}
	return b.String()
}

// Interval is the trigger cadence of a schedule. A zero Offset means no offset.
type Interval struct {
	Every  time.Duration
	Offset time.Duration
}

// ParseIntervalPair parses the every/offset texts of a config entry.
func ParseIntervalPair(every, offset string) (Interval, error) {
	e, err := ParseInterval(every)
	if err != nil {
		return Interval{}, fmt.Errorf("every: %w", err)
	}
	o, err := ParseInterval(offset)
	if err != nil {
		return Interval{}, fmt.Errorf("offset: %w", err)
	}
	return Interval{Every: e, Offset: o}, nil
}

func (iv Interval) String() string {
	if iv.Offset == 0 {
		return "every " + FormatInterval(iv.Every)
	}
	return "every " + FormatInterval(iv.Every) + " offset " + FormatInterval(iv.Offset)
}
