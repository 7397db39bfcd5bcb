package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression
// (minute hour day-of-month month day-of-week). It implements Schedule, so
// fixed-time jobs (daily activity injection, weekly summaries) register on
// the same scheduler as interval jobs.
//
// Examples:
//   - "*/5 * * * *" - every 5 minutes
//   - "0 21 * * *"  - every day at 21:00
//   - "0 0 * * 1"   - every Monday at midnight
//
// Each field is stored as a bitmask: bit n set means value n matches.
type CronExpression struct {
	raw      string
	minutes  uint64 // 0-59
	hours    uint64 // 0-23
	days     uint64 // 1-31
	months   uint64 // 1-12
	weekdays uint64 // 0-6, 0 = Sunday
}

// ParseCronExpression parses a cron expression string.
// Supported field syntax: *, */n, n, n-m, n-m/s, n,m,o.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		name     string
		dst      *uint64
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}

	for i, spec := range specs {
		mask, err := parseCronField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = mask
	}

	return ce, nil
}

// MustParseCron parses a cron expression or panics. For static schedules
// known at compile time.
func MustParseCron(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

// parseCronField parses one field into a bitmask. Comma-separated terms are
// parsed independently and OR-ed together.
func parseCronField(field string, min, max int) (uint64, error) {
	var mask uint64
	for _, term := range strings.Split(field, ",") {
		m, err := parseCronTerm(strings.TrimSpace(term), min, max)
		if err != nil {
			return 0, err
		}
		mask |= m
	}
	if mask == 0 {
		return 0, fmt.Errorf("empty field %q", field)
	}
	return mask, nil
}

// parseCronTerm parses a single term: *, */n, n, n-m or n-m/s.
func parseCronTerm(term string, min, max int) (uint64, error) {
	step := 1
	if idx := strings.IndexByte(term, '/'); idx >= 0 {
		s, err := strconv.Atoi(term[idx+1:])
		if err != nil || s <= 0 {
			return 0, fmt.Errorf("invalid step in %q", term)
		}
		step = s
		term = term[:idx]
	}

	start, end := min, max
	switch {
	case term == "*":
		// full range
	case strings.Contains(term, "-"):
		parts := strings.SplitN(term, "-", 2)
		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA != nil || errB != nil || a > b {
			return 0, fmt.Errorf("invalid range %q", term)
		}
		start, end = a, b
	default:
		v, err := strconv.Atoi(term)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", term)
		}
		if v < min || v > max {
			return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
		}
		if step == 1 {
			return 1 << uint(v), nil
		}
		// "n/step" means n..max with the given step
		start = v
	}

	var mask uint64
	for v := start; v <= end; v += step {
		if v >= min && v <= max {
			mask |= 1 << uint(v)
		}
	}
	return mask, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Add(time.Minute).Truncate(time.Minute)

	// A valid expression matches within a year; the bound guards against a
	// pathological mask like day 31 in 30-day months only.
	limit := t.AddDate(1, 0, 1)
	for t.Before(limit) {
		if ce.months&(1<<uint(t.Month())) == 0 {
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
			continue
		}
		if ce.days&(1<<uint(t.Day())) == 0 || ce.weekdays&(1<<uint(t.Weekday())) == 0 {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
			continue
		}
		if ce.hours&(1<<uint(t.Hour())) == 0 {
			t = t.Truncate(time.Hour).Add(time.Hour)
			continue
		}
		if ce.minutes&(1<<uint(t.Minute())) == 0 {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}

	return time.Time{}
}
