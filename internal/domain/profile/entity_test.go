package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

func testKey() shared.ProgressKey {
	return shared.ProgressKey{UserID: 42, GroupID: -1001}
}

func TestNewProfileDefaults(t *testing.T) {
	p := NewProfile(testKey())

	assert.Equal(t, shared.MinLevel, p.Level)
	assert.Equal(t, shared.Points(0), p.TotalPoints)
	assert.Zero(t, p.ExperiencePoints)
	assert.Empty(t, p.Titles)
	assert.False(t, p.JoinedAt.IsZero())
	assert.Nil(t, p.LastAchievementAt)
}

func TestAddPointsIncreasesBothCounters(t *testing.T) {
	p := NewProfile(testKey())

	p.AddPoints(50)
	assert.Equal(t, shared.Points(50), p.TotalPoints)
	assert.Equal(t, 50, p.ExperiencePoints)
}

func TestAddPointsLevelsUp(t *testing.T) {
	p := NewProfile(testKey())

	// Level 2 threshold is int(100 * 2^1.5) = 282.
	old, now := p.AddPoints(282)
	assert.Equal(t, shared.Level(1), old)
	assert.Equal(t, shared.Level(2), now)

	// One point short of level 3 (threshold 519).
	_, now = p.AddPoints(236) // total 518
	assert.Equal(t, shared.Level(2), now)

	_, now = p.AddPoints(1)
	assert.Equal(t, shared.Level(3), now)
}

func TestAddPointsLevelsUpAcrossMultipleThresholds(t *testing.T) {
	p := NewProfile(testKey())

	// A single large grant can cross several thresholds at once.
	_, now := p.AddPoints(1000) // level 4 needs 800, level 5 needs 1118
	assert.Equal(t, shared.Level(4), now)
}

func TestAddPointsIgnoresNonPositive(t *testing.T) {
	p := NewProfile(testKey())
	p.AddPoints(0)
	p.AddPoints(-10)

	assert.Equal(t, shared.Points(0), p.TotalPoints)
	assert.Equal(t, shared.Level(1), p.Level)
}

func TestRewardSetsAreIdempotent(t *testing.T) {
	p := NewProfile(testKey())

	p.AddTitle("newcomer")
	p.AddTitle("newcomer")
	p.AddBadge("chatter_badge")
	p.AddBadge("chatter_badge")
	p.AddPrivilege("profile_access")
	p.AddPrivilege("profile_access")

	assert.Len(t, p.Titles, 1)
	assert.Len(t, p.Badges, 1)
	assert.Len(t, p.Privileges, 1)
	assert.True(t, p.HasPrivilege("profile_access"))
	assert.False(t, p.HasPrivilege("admin"))
}

func TestMarkCompletedAndClaimed(t *testing.T) {
	p := NewProfile(testKey())

	p.MarkCompleted()
	p.MarkCompleted()
	assert.Equal(t, 2, p.AchievementsCompleted)

	p.MarkClaimed()
	assert.Equal(t, 1, p.AchievementsClaimed)
	require.NotNil(t, p.LastAchievementAt)
}

func TestProgressToNextLevel(t *testing.T) {
	p := NewProfile(testKey())
	p.AddPoints(141) // halfway to level 2 (threshold 282)

	lp := p.ProgressToNextLevel()
	assert.Equal(t, shared.Level(1), lp.CurrentLevel)
	assert.Equal(t, shared.Level(2), lp.NextLevel)
	assert.Equal(t, 141, lp.CurrentExp)
	assert.Equal(t, 282, lp.NeededExp)
	assert.InDelta(t, 50.0, lp.Percentage, 0.001)
}

func TestSetFromSliceRoundTrip(t *testing.T) {
	set := SetFromSlice([]string{"a", "b", "a"})
	assert.Len(t, set, 2)

	p := NewProfile(testKey())
	p.Titles = set
	assert.ElementsMatch(t, []string{"a", "b"}, p.TitleList())
}
