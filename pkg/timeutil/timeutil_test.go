package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	late := time.Date(2026, 8, 29, 23, 59, 59, 1, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), StartOfDay(late))
}

func TestStartOfDayConvertsToEngineLocation(t *testing.T) {
	// 01:30 on Aug 30 in UTC+3 is still Aug 29 in UTC.
	plus3 := time.FixedZone("UTC+3", 3*60*60)
	local := time.Date(2026, 8, 30, 1, 30, 0, 0, plus3)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), StartOfDay(local))
}

func TestStartOfWeek(t *testing.T) {
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	saturday := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, StartOfWeek(saturday))

	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, StartOfWeek(sunday))

	assert.Equal(t, monday, StartOfWeek(monday))
}
