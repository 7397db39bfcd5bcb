package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/leaderboard"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeSweeper struct {
	evicted   int
	remaining int
	calls     int
}

func (f *fakeSweeper) SweepDedup() int {
	f.calls++
	return f.evicted
}

func (f *fakeSweeper) DedupSize() int { return f.remaining }

type fakeSink struct {
	envelopes []shared.Envelope
	failAfter int // reject enqueues once this many succeeded; 0 = never fail
}

func (f *fakeSink) Enqueue(envelope shared.Envelope) error {
	if f.failAfter > 0 && len(f.envelopes) >= f.failAfter {
		return shared.ErrQueueFull
	}
	f.envelopes = append(f.envelopes, envelope)
	return nil
}

type fakeActivitySource struct {
	keys   []shared.ProgressKey
	window shared.TimeRange
	err    error
}

func (f *fakeActivitySource) ActiveKeys(_ context.Context, window shared.TimeRange) ([]shared.ProgressKey, error) {
	f.window = window
	return f.keys, f.err
}

type fakeMessageCounter struct {
	counts map[shared.ProgressKey]int
	window shared.TimeRange
}

func (f *fakeMessageCounter) CountMessages(_ context.Context, window shared.TimeRange) (map[shared.ProgressKey]int, error) {
	f.window = window
	return f.counts, nil
}

type fakeLeaderboardSource struct {
	groups  []shared.GroupID
	entries map[int64][]leaderboard.Entry
	topErr  error
}

func (f *fakeLeaderboardSource) Groups(_ context.Context) ([]shared.GroupID, error) {
	return f.groups, nil
}

func (f *fakeLeaderboardSource) Top(_ context.Context, groupID shared.GroupID, _ leaderboard.Metric, _ int) ([]leaderboard.Entry, error) {
	if f.topErr != nil {
		return nil, f.topErr
	}
	return f.entries[groupID.Int64()], nil
}

type fakeLeaderboardCache struct {
	pages map[string][]leaderboard.Entry
}

func newFakeLeaderboardCache() *fakeLeaderboardCache {
	return &fakeLeaderboardCache{pages: make(map[string][]leaderboard.Entry)}
}

func (f *fakeLeaderboardCache) GetTop(_ context.Context, groupID shared.GroupID, metric leaderboard.Metric, _ int) ([]leaderboard.Entry, error) {
	page, ok := f.pages[groupID.String()+"/"+metric.String()]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return page, nil
}

func (f *fakeLeaderboardCache) SetTop(_ context.Context, groupID shared.GroupID, metric leaderboard.Metric, entries []leaderboard.Entry) error {
	f.pages[groupID.String()+"/"+metric.String()] = entries
	return nil
}

func (f *fakeLeaderboardCache) Invalidate(_ context.Context, groupID shared.GroupID) error {
	for _, metric := range leaderboard.AllMetrics() {
		delete(f.pages, groupID.String()+"/"+metric.String())
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP DEDUP
// ══════════════════════════════════════════════════════════════════════════════

func TestSweepDedupJobAccumulatesEvictions(t *testing.T) {
	sweeper := &fakeSweeper{evicted: 7, remaining: 3}
	job := NewSweepDedupJob(sweeper, nil)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 2, sweeper.calls)
	assert.Equal(t, int64(14), job.TotalEvicted())
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

func TestDailyActivityJobInjectsOneEventPerActiveUser(t *testing.T) {
	source := &fakeActivitySource{keys: []shared.ProgressKey{
		{UserID: 1, GroupID: -100},
		{UserID: 2, GroupID: -100},
		{UserID: 1, GroupID: -200},
	}}
	sink := &fakeSink{}
	job := NewDailyActivityJob(source, sink, nil, DefaultDailyActivityConfig())

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, sink.envelopes, 3)
	for _, env := range sink.envelopes {
		assert.Equal(t, shared.EventDailyActivity, env.Type)
		assert.Contains(t, env.Data, "date")
		assert.NoError(t, env.Validate())
	}

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.UsersFound)
	assert.Equal(t, 3, stats.EventsInjected)
	assert.Zero(t, stats.EventsDropped)

	// The window is the previous calendar day, not "the last 24 hours".
	assert.True(t, source.window.IsValid())
	assert.True(t, source.window.From.Before(time.Now().AddDate(0, 0, -1).Add(time.Second)))
	assert.Equal(t, 24*time.Hour, source.window.To.Sub(source.window.From))
}

func TestDailyActivityJobCountsDropsOnFullQueue(t *testing.T) {
	source := &fakeActivitySource{keys: []shared.ProgressKey{
		{UserID: 1, GroupID: -100},
		{UserID: 2, GroupID: -100},
		{UserID: 3, GroupID: -100},
	}}
	sink := &fakeSink{failAfter: 1}
	job := NewDailyActivityJob(source, sink, nil, DefaultDailyActivityConfig())

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.EventsInjected)
	assert.Equal(t, 2, stats.EventsDropped)
}

func TestDailyActivityJobPropagatesSourceError(t *testing.T) {
	source := &fakeActivitySource{err: errors.New("storage down")}
	job := NewDailyActivityJob(source, &fakeSink{}, nil, DefaultDailyActivityConfig())

	require.Error(t, job.Run(context.Background()))
	assert.Nil(t, job.LastRunStats())
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

func TestWeeklySummaryJobInjectsAggregates(t *testing.T) {
	counter := &fakeMessageCounter{counts: map[shared.ProgressKey]int{
		{UserID: 1, GroupID: -100}: 42,
		{UserID: 2, GroupID: -100}: 7,
	}}
	sink := &fakeSink{}
	job := NewWeeklySummaryJob(counter, sink, nil, DefaultWeeklySummaryConfig())

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, sink.envelopes, 2)
	byUser := make(map[shared.UserID]shared.Envelope)
	for _, env := range sink.envelopes {
		assert.Equal(t, shared.EventWeeklySummary, env.Type)
		assert.Contains(t, env.Data, "week_start")
		byUser[env.UserID] = env
	}
	assert.Equal(t, 42, byUser[1].Data["messages"])
	assert.Equal(t, 7, byUser[2].Data["messages"])

	// Exactly one full week, half-open.
	assert.True(t, counter.window.IsValid())
	assert.Equal(t, 7*24*time.Hour, counter.window.To.Sub(counter.window.From))
}

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestRebuildLeaderboardJobRefreshesAllPages(t *testing.T) {
	source := &fakeLeaderboardSource{
		groups: []shared.GroupID{-100, -200},
		entries: map[int64][]leaderboard.Entry{
			-100: {{UserID: 1, GroupID: -100, Rank: 1, Score: 50}},
			-200: {{UserID: 2, GroupID: -200, Rank: 1, Score: 10}},
		},
	}
	cache := newFakeLeaderboardCache()
	job := NewRebuildLeaderboardJob(source, cache, nil, DefaultRebuildLeaderboardConfig())

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.GroupsProcessed)
	assert.Equal(t, 2*len(leaderboard.AllMetrics()), stats.PagesRebuilt)
	assert.Empty(t, stats.Errors)

	page, err := cache.GetTop(context.Background(), -100, leaderboard.MetricTotalPoints, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, shared.UserID(1), page[0].UserID)
}

func TestRebuildLeaderboardJobReportsPageErrors(t *testing.T) {
	source := &fakeLeaderboardSource{
		groups: []shared.GroupID{-100},
		topErr: errors.New("query failed"),
	}
	job := NewRebuildLeaderboardJob(source, newFakeLeaderboardCache(), nil, DefaultRebuildLeaderboardConfig())

	err := job.Run(context.Background())
	require.Error(t, err)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Zero(t, stats.PagesRebuilt)
	assert.Len(t, stats.Errors, len(leaderboard.AllMetrics()))
}
