package eventhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeProfileInvalidator struct {
	keys []shared.ProgressKey
	err  error
}

func (f *fakeProfileInvalidator) Invalidate(_ context.Context, key shared.ProgressKey) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	return nil
}

type fakeLeaderboardInvalidator struct {
	groups []shared.GroupID
	err    error
}

func (f *fakeLeaderboardInvalidator) Invalidate(_ context.Context, groupID shared.GroupID) error {
	if f.err != nil {
		return f.err
	}
	f.groups = append(f.groups, groupID)
	return nil
}

func testKey(t *testing.T) shared.ProgressKey {
	t.Helper()
	key, err := shared.NewProgressKey(42, -100500)
	require.NoError(t, err)
	return key
}

// ─────────────────────────────────────────────────────────────────────────────
// OnAchievementCompletedHandler
// ─────────────────────────────────────────────────────────────────────────────

func TestOnAchievementCompletedInvalidatesProfile(t *testing.T) {
	key := testKey(t)
	cache := &fakeProfileInvalidator{}
	handler := NewOnAchievementCompletedHandler(cache, nil, DefaultAchievementCompletedConfig())

	event := shared.NewAchievementCompletedEvent(key, "first_message", "Первое слово")
	require.NoError(t, handler.Handle(event))

	require.Len(t, cache.keys, 1)
	assert.Equal(t, key, cache.keys[0])
	assert.Equal(t, int64(1), handler.TotalHandled())
}

func TestOnAchievementCompletedIgnoresForeignEvents(t *testing.T) {
	cache := &fakeProfileInvalidator{}
	handler := NewOnAchievementCompletedHandler(cache, nil, DefaultAchievementCompletedConfig())

	event := shared.NewLevelUpEvent(testKey(t), 1, 2)
	require.NoError(t, handler.Handle(event))

	assert.Empty(t, cache.keys)
	assert.Equal(t, int64(0), handler.TotalHandled())
}

func TestOnAchievementCompletedReportsCacheFailure(t *testing.T) {
	cache := &fakeProfileInvalidator{err: errors.New("redis down")}
	handler := NewOnAchievementCompletedHandler(cache, nil, DefaultAchievementCompletedConfig())

	event := shared.NewAchievementCompletedEvent(testKey(t), "first_message", "Первое слово")
	err := handler.Handle(event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidate profile cache")
}

func TestOnAchievementCompletedWithoutCache(t *testing.T) {
	handler := NewOnAchievementCompletedHandler(nil, nil, DefaultAchievementCompletedConfig())

	event := shared.NewAchievementCompletedEvent(testKey(t), "veteran", "Ветеран")
	require.NoError(t, handler.Handle(event))
	assert.Equal(t, int64(1), handler.TotalHandled())
}

// ─────────────────────────────────────────────────────────────────────────────
// OnRewardsClaimedHandler
// ─────────────────────────────────────────────────────────────────────────────

func TestOnRewardsClaimedInvalidatesBothCaches(t *testing.T) {
	key := testKey(t)
	lb := &fakeLeaderboardInvalidator{}
	pc := &fakeProfileInvalidator{}
	handler := NewOnRewardsClaimedHandler(lb, pc, nil, DefaultRewardsClaimedConfig())

	event := shared.NewRewardsClaimedEvent(key, "veteran", 250, 2)
	require.NoError(t, handler.Handle(event))

	require.Len(t, lb.groups, 1)
	assert.Equal(t, key.GroupID, lb.groups[0])
	require.Len(t, pc.keys, 1)
	assert.Equal(t, key, pc.keys[0])
	assert.Equal(t, int64(250), handler.TotalPointsSeen())
}

func TestOnRewardsClaimedContinuesAfterLeaderboardFailure(t *testing.T) {
	lb := &fakeLeaderboardInvalidator{err: errors.New("redis down")}
	pc := &fakeProfileInvalidator{}
	handler := NewOnRewardsClaimedHandler(lb, pc, nil, DefaultRewardsClaimedConfig())

	event := shared.NewRewardsClaimedEvent(testKey(t), "veteran", 250, 2)
	err := handler.Handle(event)

	// Сбой одного кэша не мешает сбросить второй.
	require.Error(t, err)
	require.Len(t, pc.keys, 1)
}

func TestOnRewardsClaimedRespectsConfig(t *testing.T) {
	lb := &fakeLeaderboardInvalidator{}
	pc := &fakeProfileInvalidator{}
	config := DefaultRewardsClaimedConfig()
	config.InvalidateLeaderboard = false
	handler := NewOnRewardsClaimedHandler(lb, pc, nil, config)

	event := shared.NewRewardsClaimedEvent(testKey(t), "veteran", 100, 1)
	require.NoError(t, handler.Handle(event))

	assert.Empty(t, lb.groups)
	require.Len(t, pc.keys, 1)
}

// ─────────────────────────────────────────────────────────────────────────────
// OnLevelUpHandler
// ─────────────────────────────────────────────────────────────────────────────

func TestOnLevelUpCountsEvents(t *testing.T) {
	handler := NewOnLevelUpHandler(nil, DefaultLevelUpConfig())

	require.NoError(t, handler.Handle(shared.NewLevelUpEvent(testKey(t), 4, 5)))
	require.NoError(t, handler.Handle(shared.NewLevelUpEvent(testKey(t), 5, 6)))

	assert.Equal(t, int64(2), handler.TotalHandled())
}

func TestOnLevelUpMilestoneDetection(t *testing.T) {
	handler := NewOnLevelUpHandler(nil, DefaultLevelUpConfig())

	assert.True(t, handler.isMilestone(10))
	assert.False(t, handler.isMilestone(11))
}
