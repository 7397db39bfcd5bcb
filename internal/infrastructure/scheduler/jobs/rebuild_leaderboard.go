package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/leaderboard"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardSource reads ranked pages from primary storage. Groups comes
// from the concrete Postgres repository rather than the domain contract:
// only this job needs to enumerate groups.
type LeaderboardSource interface {
	Groups(ctx context.Context) ([]shared.GroupID, error)
	Top(ctx context.Context, groupID shared.GroupID, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, error)
}

// RebuildLeaderboardJob refreshes the cached leaderboard pages from primary
// storage. Pages expire on their own; the rebuild keeps hot groups warm so
// readers rarely pay for the Postgres ranking query.
type RebuildLeaderboardJob struct {
	source LeaderboardSource
	cache  leaderboard.Cache
	logger *slog.Logger
	config RebuildLeaderboardConfig

	lastRunStats atomic.Value // *RebuildStats
}

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// PageSize is how many rows each cached page holds.
	PageSize int

	// Timeout is the maximum duration for one rebuild run.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		PageSize: 100,
		Timeout:  2 * time.Minute,
	}
}

// RebuildStats contains statistics from a rebuild run.
type RebuildStats struct {
	StartedAt       time.Time
	CompletedAt     time.Time
	Duration        time.Duration
	GroupsProcessed int
	PagesRebuilt    int
	Errors          []error
}

// NewRebuildLeaderboardJob creates a new RebuildLeaderboardJob.
func NewRebuildLeaderboardJob(
	source LeaderboardSource,
	cache leaderboard.Cache,
	logger *slog.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}

	return &RebuildLeaderboardJob{
		source: source,
		cache:  cache,
		logger: logger,
		config: config,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Refreshes cached leaderboard pages from primary storage"
}

// Run executes one rebuild.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RebuildStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	groups, err := j.source.Groups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	for _, groupID := range groups {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for _, metric := range leaderboard.AllMetrics() {
			entries, err := j.source.Top(ctx, groupID, metric, j.config.PageSize)
			if err != nil {
				stats.Errors = append(stats.Errors, err)
				j.logger.Error("failed to read leaderboard page",
					"group_id", groupID.Int64(),
					"metric", metric.String(),
					"error", err,
				)
				continue
			}

			if err := j.cache.SetTop(ctx, groupID, metric, entries); err != nil {
				stats.Errors = append(stats.Errors, err)
				j.logger.Warn("failed to cache leaderboard page",
					"group_id", groupID.Int64(),
					"metric", metric.String(),
					"error", err,
				)
				continue
			}
			stats.PagesRebuilt++
		}
		stats.GroupsProcessed++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("rebuild_leaderboard job completed",
		"duration", stats.Duration.String(),
		"groups", stats.GroupsProcessed,
		"pages", stats.PagesRebuilt,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("rebuild completed with %d errors", len(stats.Errors))
	}
	return nil
}

// LastRunStats returns statistics from the last rebuild run.
func (j *RebuildLeaderboardJob) LastRunStats() *RebuildStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RebuildStats)
}
