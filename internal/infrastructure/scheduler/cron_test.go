package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpressionRejectsBadInput(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"5-1 * * * *",
		"*/0 * * * *",
		"abc * * * *",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q must not parse", expr)
	}
}

func TestCronNextEveryFiveMinutes(t *testing.T) {
	ce, err := ParseCronExpression("*/5 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 8, 29, 10, 2, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 5, 0, 0, time.UTC), ce.Next(after))

	// Strictly after: from an exact boundary the next slot is returned.
	onBoundary := time.Date(2026, 8, 29, 10, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 10, 0, 0, time.UTC), ce.Next(onBoundary))
}

func TestCronNextDailyAtFixedHour(t *testing.T) {
	ce := MustParseCron("0 21 * * *")

	morning := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 21, 0, 0, 0, time.UTC), ce.Next(morning))

	evening := time.Date(2026, 8, 29, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC), ce.Next(evening))
}

func TestCronNextWeekday(t *testing.T) {
	// Midnight on Mondays. 2026-08-29 is a Saturday.
	ce := MustParseCron("0 0 * * 1")

	saturday := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	next := ce.Next(saturday)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestCronNextCrossesMonth(t *testing.T) {
	ce := MustParseCron("30 8 1 * *")

	midMonth := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC), ce.Next(midMonth))
}

func TestCronFieldLists(t *testing.T) {
	ce := MustParseCron("0 9,18 * * *")

	after := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronRangeWithStep(t *testing.T) {
	ce := MustParseCron("10-30/10 * * * *")

	after := time.Date(2026, 8, 29, 10, 21, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC), ce.Next(after))
}

func TestCronStringKeepsOriginal(t *testing.T) {
	assert.Equal(t, "0 0 * * 1", MustParseCron("0 0 * * 1").String())
}

func TestIntervalScheduleNext(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(10*time.Minute), s.Next(now))
}

func TestIntervalScheduleJitterStaysInRange(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute).WithJitter(30 * time.Second)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		next := s.Next(now)
		assert.False(t, next.Before(now.Add(10*time.Minute)))
		assert.True(t, next.Before(now.Add(10*time.Minute+30*time.Second)))
	}
}
