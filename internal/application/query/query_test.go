package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/leaderboard"
	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type memProgressRepo struct {
	records map[string]*achievement.Progress
}

func newMemProgressRepo() *memProgressRepo {
	return &memProgressRepo{records: make(map[string]*achievement.Progress)}
}

func (r *memProgressRepo) id(key shared.ProgressKey, achievementID string) string {
	return key.String() + "/" + achievementID
}

func (r *memProgressRepo) Find(_ context.Context, key shared.ProgressKey, achievementID string) (*achievement.Progress, error) {
	p, ok := r.records[r.id(key, achievementID)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return p, nil
}

func (r *memProgressRepo) FindOrCreate(_ context.Context, key shared.ProgressKey, achievementID string) (*achievement.Progress, error) {
	id := r.id(key, achievementID)
	if p, ok := r.records[id]; ok {
		return p, nil
	}
	p := achievement.NewProgress(key, achievementID)
	r.records[id] = p
	return p, nil
}

func (r *memProgressRepo) FindAll(_ context.Context, key shared.ProgressKey) (map[string]*achievement.Progress, error) {
	result := make(map[string]*achievement.Progress)
	for _, p := range r.records {
		if p.Key == key {
			result[p.AchievementID] = p
		}
	}
	return result, nil
}

func (r *memProgressRepo) Save(_ context.Context, p *achievement.Progress) error {
	r.records[r.id(p.Key, p.AchievementID)] = p
	return nil
}

func (r *memProgressRepo) Claim(_ context.Context, key shared.ProgressKey, achievementID string, claimedAt time.Time) error {
	p, ok := r.records[r.id(key, achievementID)]
	if !ok {
		return shared.ErrProgressNotFound
	}
	switch p.Status {
	case achievement.StatusClaimed:
		return shared.ErrAlreadyClaimed
	case achievement.StatusCompleted:
		p.Status = achievement.StatusClaimed
		p.ClaimedAt = &claimedAt
		p.UpdatedAt = claimedAt
		return nil
	default:
		return shared.ErrNotCompleted
	}
}

func (r *memProgressRepo) StatusOf(_ context.Context, key shared.ProgressKey, achievementIDs []string) (map[string]achievement.Status, error) {
	result := make(map[string]achievement.Status, len(achievementIDs))
	for _, id := range achievementIDs {
		if p, ok := r.records[r.id(key, id)]; ok {
			result[id] = p.Status
		} else {
			result[id] = achievement.StatusLocked
		}
	}
	return result, nil
}

func (r *memProgressRepo) CountByStatus(_ context.Context, key shared.ProgressKey) (map[achievement.Status]int, error) {
	result := make(map[achievement.Status]int)
	for _, p := range r.records {
		if p.Key == key {
			result[p.Status]++
		}
	}
	return result, nil
}

type memProfileRepo struct {
	profiles map[string]*profile.Profile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: make(map[string]*profile.Profile)}
}

func (r *memProfileRepo) Find(_ context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	p, ok := r.profiles[key.String()]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p, nil
}

func (r *memProfileRepo) FindOrCreate(_ context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	if p, ok := r.profiles[key.String()]; ok {
		return p, nil
	}
	p := profile.NewProfile(key)
	r.profiles[key.String()] = p
	return p, nil
}

func (r *memProfileRepo) Save(_ context.Context, p *profile.Profile) error {
	r.profiles[p.Key.String()] = p
	return nil
}

func (r *memProfileRepo) Top(_ context.Context, _ shared.GroupID, _ string, _ int) ([]*profile.Profile, error) {
	return nil, nil
}

type memLeaderboardRepo struct {
	entries []leaderboard.Entry
}

func (r *memLeaderboardRepo) Top(_ context.Context, _ shared.GroupID, _ leaderboard.Metric, limit int) ([]leaderboard.Entry, error) {
	ranked := leaderboard.AssignRanks(append([]leaderboard.Entry(nil), r.entries...))
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (r *memLeaderboardRepo) RankOf(_ context.Context, key shared.ProgressKey, _ leaderboard.Metric) (shared.Rank, error) {
	ranked := leaderboard.AssignRanks(append([]leaderboard.Entry(nil), r.entries...))
	for _, e := range ranked {
		if e.UserID == key.UserID {
			return e.Rank, nil
		}
	}
	return shared.Unranked, shared.ErrNotFound
}

type memLeaderboardCache struct {
	entries map[string][]leaderboard.Entry
	sets    int
}

func newMemLeaderboardCache() *memLeaderboardCache {
	return &memLeaderboardCache{entries: make(map[string][]leaderboard.Entry)}
}

func cacheID(groupID shared.GroupID, metric leaderboard.Metric) string {
	return groupID.String() + "/" + metric.String()
}

func (c *memLeaderboardCache) GetTop(_ context.Context, groupID shared.GroupID, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, error) {
	entries, ok := c.entries[cacheID(groupID, metric)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *memLeaderboardCache) SetTop(_ context.Context, groupID shared.GroupID, metric leaderboard.Metric, entries []leaderboard.Entry) error {
	c.entries[cacheID(groupID, metric)] = entries
	c.sets++
	return nil
}

func (c *memLeaderboardCache) Invalidate(_ context.Context, groupID shared.GroupID) error {
	for _, metric := range leaderboard.AllMetrics() {
		delete(c.entries, cacheID(groupID, metric))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func testCatalog(t *testing.T) *achievement.Catalog {
	t.Helper()
	catalog, err := achievement.NewSystemCatalog()
	require.NoError(t, err)
	return catalog
}

func TestGetProgressReturnsLockedForUntouchedAchievement(t *testing.T) {
	h := NewGetProgressHandler(testCatalog(t), newMemProgressRepo())

	dto, err := h.Handle(context.Background(), GetProgressQuery{
		UserID:        42,
		GroupID:       -1,
		AchievementID: "active_chatter",
	})
	require.NoError(t, err)

	assert.Equal(t, string(achievement.StatusLocked), dto.Status)
	assert.Equal(t, float64(0), dto.Percentage)
	assert.False(t, dto.Claimable)
	require.Len(t, dto.Requirements, 1)
	assert.Equal(t, "messages_count", dto.Requirements[0].Type)
	assert.Equal(t, float64(100), dto.Requirements[0].Target)
}

func TestGetProgressMarksCompletedAsClaimable(t *testing.T) {
	progressRepo := newMemProgressRepo()
	key := shared.ProgressKey{UserID: 42, GroupID: -1}
	p, err := progressRepo.FindOrCreate(context.Background(), key, "first_message")
	require.NoError(t, err)
	require.NoError(t, p.Complete())

	h := NewGetProgressHandler(testCatalog(t), progressRepo)
	dto, err := h.Handle(context.Background(), GetProgressQuery{
		UserID:        42,
		GroupID:       -1,
		AchievementID: "first_message",
	})
	require.NoError(t, err)

	assert.True(t, dto.Claimable)
	assert.NotNil(t, dto.CompletedAt)
}

func TestGetProgressRejectsUnknownAchievement(t *testing.T) {
	h := NewGetProgressHandler(testCatalog(t), newMemProgressRepo())

	_, err := h.Handle(context.Background(), GetProgressQuery{
		UserID:        42,
		GroupID:       -1,
		AchievementID: "world_domination",
	})
	assert.ErrorIs(t, err, shared.ErrAchievementNotFound)
}

func TestGetAllProgressShowsWholeCatalog(t *testing.T) {
	catalog := testCatalog(t)
	h := NewGetAllProgressHandler(catalog, newMemProgressRepo())

	result, err := h.Handle(context.Background(), GetAllProgressQuery{UserID: 42, GroupID: -1})
	require.NoError(t, err)

	assert.Equal(t, catalog.Size(), result.TotalVisible)
	assert.Equal(t, 0, result.CompletedCount)
}

func TestGetAllProgressFiltersByCategory(t *testing.T) {
	h := NewGetAllProgressHandler(testCatalog(t), newMemProgressRepo())

	result, err := h.Handle(context.Background(), GetAllProgressQuery{
		UserID:   42,
		GroupID:  -1,
		Category: string(achievement.CategorySocial),
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Achievements)
	for _, dto := range result.Achievements {
		assert.Equal(t, string(achievement.CategorySocial), dto.Category)
	}
}

func TestGetProfileReturnsFreshProfileForNewcomer(t *testing.T) {
	h := NewGetProfileHandler(newMemProfileRepo(), nil)

	dto, err := h.Handle(context.Background(), GetProfileQuery{UserID: 42, GroupID: -1})
	require.NoError(t, err)

	assert.Equal(t, 0, dto.TotalPoints)
	assert.Equal(t, 1, dto.Level)
	assert.Equal(t, 2, dto.LevelProgress.NextLevel)
	assert.Empty(t, dto.Titles)
}

func TestGetSummaryCountsByStatusAndCategory(t *testing.T) {
	catalog := testCatalog(t)
	progressRepo := newMemProgressRepo()
	profileRepo := newMemProfileRepo()
	key := shared.ProgressKey{UserID: 42, GroupID: -1}

	completed, err := progressRepo.FindOrCreate(context.Background(), key, "first_message")
	require.NoError(t, err)
	require.NoError(t, completed.Complete())

	started, err := progressRepo.FindOrCreate(context.Background(), key, "active_chatter")
	require.NoError(t, err)
	started.Start()

	h := NewGetSummaryHandler(catalog, progressRepo, profileRepo)
	summary, err := h.Handle(context.Background(), GetSummaryQuery{UserID: 42, GroupID: -1})
	require.NoError(t, err)

	assert.Equal(t, catalog.Size(), summary.TotalAchievements)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.InProgress)
	assert.Equal(t, 1, summary.Claimable)
	assert.Equal(t, catalog.Size()-2, summary.Locked)
	assert.InDelta(t, 100.0/float64(catalog.Size()), summary.CompletionRate, 0.001)

	var social *CategoryStatsDTO
	for i := range summary.Categories {
		if summary.Categories[i].Category == string(achievement.CategorySocial) {
			social = &summary.Categories[i]
		}
	}
	require.NotNil(t, social)
	assert.Equal(t, 1, social.Completed)
	assert.Equal(t, 1, social.InProgress)
}

func TestGetLeaderboardOrdersByScore(t *testing.T) {
	repo := &memLeaderboardRepo{entries: []leaderboard.Entry{
		{UserID: 1, GroupID: -1, Score: 10, TotalPoints: 10},
		{UserID: 2, GroupID: -1, Score: 30, TotalPoints: 30},
		{UserID: 3, GroupID: -1, Score: 20, TotalPoints: 20},
	}}

	h := NewGetLeaderboardHandler(repo, nil)
	result, err := h.Handle(context.Background(), GetLeaderboardQuery{GroupID: -1})
	require.NoError(t, err)

	require.Len(t, result.Entries, 3)
	assert.Equal(t, int64(2), result.Entries[0].UserID)
	assert.Equal(t, int64(3), result.Entries[1].UserID)
	assert.Equal(t, int64(1), result.Entries[2].UserID)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, "🥇", result.Entries[0].Medal)
	assert.False(t, result.FromCache)
}

func TestGetLeaderboardPrefersCacheAndBackfills(t *testing.T) {
	repo := &memLeaderboardRepo{entries: []leaderboard.Entry{
		{UserID: 1, GroupID: -1, Score: 10},
	}}
	cache := newMemLeaderboardCache()
	h := NewGetLeaderboardHandler(repo, cache)

	// First read misses the cache and backfills it.
	result, err := h.Handle(context.Background(), GetLeaderboardQuery{GroupID: -1})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache.
	result, err = h.Handle(context.Background(), GetLeaderboardQuery{GroupID: -1})
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, cache.sets)
}

func TestGetLeaderboardIncludesRequesterRank(t *testing.T) {
	repo := &memLeaderboardRepo{entries: []leaderboard.Entry{
		{UserID: 1, GroupID: -1, Score: 10},
		{UserID: 2, GroupID: -1, Score: 30},
		{UserID: 3, GroupID: -1, Score: 20},
	}}

	h := NewGetLeaderboardHandler(repo, nil)
	result, err := h.Handle(context.Background(), GetLeaderboardQuery{
		GroupID:   -1,
		Limit:     2,
		ForUserID: 1,
	})
	require.NoError(t, err)

	// User 1 is outside the top-2 page but their rank is still reported.
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 3, result.RequesterRank)
}

func TestGetLeaderboardRejectsUnknownMetric(t *testing.T) {
	h := NewGetLeaderboardHandler(&memLeaderboardRepo{}, nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{GroupID: -1, Metric: "karma"})
	assert.ErrorIs(t, err, shared.ErrInvalidMetric)
}
