package scheduler

import (
	"fmt"
	"math/rand"
	"time"
)

// IntervalSchedule fires at a fixed period, optionally smeared with random
// jitter so replicas of the engine don't hit Postgres in lockstep.
type IntervalSchedule struct {
	Interval time.Duration
	Jitter   time.Duration
}

// NewIntervalSchedule creates a schedule that fires every interval.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// WithJitter adds up to max of random delay to every fire time.
func (s *IntervalSchedule) WithJitter(max time.Duration) *IntervalSchedule {
	s.Jitter = max
	return s
}

// Next returns the next fire time after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	next := t.Add(s.Interval)
	if s.Jitter > 0 {
		next = next.Add(time.Duration(rand.Int63n(int64(s.Jitter))))
	}
	return next
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	if s.Jitter > 0 {
		return fmt.Sprintf("@every %s (jitter %s)", s.Interval, s.Jitter)
	}
	return fmt.Sprintf("@every %s", s.Interval)
}
