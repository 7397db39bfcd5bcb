package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clanhub/achievement-engine/internal/domain/leaderboard"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
	"github.com/clanhub/achievement-engine/pkg/circuitbreaker"
	"github.com/clanhub/achievement-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// maxCachedEntries caps how many rows a cached page holds. Matches the
// largest limit the query layer accepts.
const maxCachedEntries = 100

// LeaderboardCache implements leaderboard.Cache on Redis. Each group and
// metric pair holds one ranked page stored as JSON with a short TTL.
// All operations go through a circuit breaker and a fast-fail retrier:
// a broken cache must never slow down reads.
type LeaderboardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache, logger *slog.Logger) *LeaderboardCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardCache{
		cache: cache,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("cache breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		}),
		retrier: retry.CacheRetrier(),
		logger:  logger,
	}
}

func leaderboardKey(groupID shared.GroupID, metric leaderboard.Metric) string {
	return fmt.Sprintf("%s%s:%s", PrefixLeaderboard, groupID.String(), metric.String())
}

// GetTop returns the cached ranked page or shared.ErrNotFound on a miss.
func (c *LeaderboardCache) GetTop(ctx context.Context, groupID shared.GroupID, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, error) {
	var entries []leaderboard.Entry
	var miss bool

	// A miss is a normal outcome: it must not count against the breaker.
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			err := c.cache.Get(ctx, leaderboardKey(groupID, metric), &entries)
			if err == ErrCacheMiss {
				miss = true
				return nil
			}
			if err != nil {
				return retry.Retryable(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if miss {
		return nil, shared.ErrNotFound
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// SetTop overwrites the group's cached page for a metric.
func (c *LeaderboardCache) SetTop(ctx context.Context, groupID shared.GroupID, metric leaderboard.Metric, entries []leaderboard.Entry) error {
	if len(entries) > maxCachedEntries {
		entries = entries[:maxCachedEntries]
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, leaderboardKey(groupID, metric), entries, TTLLeaderboardCache)
	})
}

// Invalidate drops the group's cached pages for all metrics.
func (c *LeaderboardCache) Invalidate(ctx context.Context, groupID shared.GroupID) error {
	metrics := leaderboard.AllMetrics()
	keys := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		keys = append(keys, leaderboardKey(groupID, metric))
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, keys...)
	})
}
