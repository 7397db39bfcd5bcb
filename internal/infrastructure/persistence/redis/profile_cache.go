package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
	"github.com/clanhub/achievement-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// cachedProfile is the wire form of a profile snapshot. Sets are flattened
// to slices for JSON.
type cachedProfile struct {
	UserID                int64      `json:"user_id"`
	GroupID               int64      `json:"group_id"`
	TotalPoints           int        `json:"total_points"`
	Level                 int        `json:"level"`
	ExperiencePoints      int        `json:"experience_points"`
	Titles                []string   `json:"titles"`
	Badges                []string   `json:"badges"`
	Privileges            []string   `json:"privileges"`
	AchievementsCompleted int        `json:"achievements_completed"`
	AchievementsClaimed   int        `json:"achievements_claimed"`
	JoinedAt              time.Time  `json:"joined_at"`
	LastAchievementAt     *time.Time `json:"last_achievement_at,omitempty"`
}

// ProfileCache caches profile snapshots keyed by (user, group). Writers
// invalidate, readers fall back to storage on a miss. Shares the breaker
// policy with the leaderboard cache: when Redis is down, stop asking.
type ProfileCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewProfileCache creates a new ProfileCache.
func NewProfileCache(cache *Cache, logger *slog.Logger) *ProfileCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileCache{
		cache: cache,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("cache breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		}),
	}
}

func profileKey(key shared.ProgressKey) string {
	return fmt.Sprintf("%s%d:%d", PrefixProfile, key.UserID.Int64(), key.GroupID.Int64())
}

// Get returns the cached profile or shared.ErrNotFound on a miss.
func (c *ProfileCache) Get(ctx context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	var cached cachedProfile
	var miss bool

	// A miss is a normal outcome: it must not count against the breaker.
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, profileKey(key), &cached)
		if err == ErrCacheMiss {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if miss {
		return nil, shared.ErrNotFound
	}

	p := &profile.Profile{
		Key:                   shared.ProgressKey{UserID: shared.UserID(cached.UserID), GroupID: shared.GroupID(cached.GroupID)},
		TotalPoints:           shared.Points(cached.TotalPoints),
		Level:                 shared.Level(cached.Level),
		ExperiencePoints:      cached.ExperiencePoints,
		Titles:                profile.SetFromSlice(cached.Titles),
		Badges:                profile.SetFromSlice(cached.Badges),
		Privileges:            profile.SetFromSlice(cached.Privileges),
		AchievementsCompleted: cached.AchievementsCompleted,
		AchievementsClaimed:   cached.AchievementsClaimed,
		JoinedAt:              cached.JoinedAt,
		LastAchievementAt:     cached.LastAchievementAt,
	}
	return p, nil
}

// Set stores a profile snapshot with the default TTL.
func (c *ProfileCache) Set(ctx context.Context, p *profile.Profile) error {
	cached := cachedProfile{
		UserID:                p.Key.UserID.Int64(),
		GroupID:               p.Key.GroupID.Int64(),
		TotalPoints:           p.TotalPoints.Int(),
		Level:                 p.Level.Int(),
		ExperiencePoints:      p.ExperiencePoints,
		Titles:                p.TitleList(),
		Badges:                p.BadgeList(),
		Privileges:            p.PrivilegeList(),
		AchievementsCompleted: p.AchievementsCompleted,
		AchievementsClaimed:   p.AchievementsClaimed,
		JoinedAt:              p.JoinedAt,
		LastAchievementAt:     p.LastAchievementAt,
	}
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, profileKey(p.Key), cached, TTLProfileCache)
	})
}

// Invalidate drops the cached snapshot for a (user, group) pair.
func (c *ProfileCache) Invalidate(ctx context.Context, key shared.ProgressKey) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, profileKey(key))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHED PROFILE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CachedProfileRepository decorates a profile.Repository with read-through
// caching. Writes go to storage first and then refresh the cache; cache
// failures are swallowed because storage remains the source of truth.
type CachedProfileRepository struct {
	inner profile.Repository
	cache *ProfileCache
}

// NewCachedProfileRepository creates a new CachedProfileRepository.
func NewCachedProfileRepository(inner profile.Repository, cache *ProfileCache) *CachedProfileRepository {
	return &CachedProfileRepository{inner: inner, cache: cache}
}

// Find reads through the cache.
func (r *CachedProfileRepository) Find(ctx context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	if p, err := r.cache.Get(ctx, key); err == nil {
		return p, nil
	}

	p, err := r.inner.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, p)
	return p, nil
}

// FindOrCreate delegates to storage and refreshes the cache.
func (r *CachedProfileRepository) FindOrCreate(ctx context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	p, err := r.inner.FindOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, p)
	return p, nil
}

// Save writes to storage and refreshes the cache.
func (r *CachedProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	if err := r.inner.Save(ctx, p); err != nil {
		return err
	}
	_ = r.cache.Set(ctx, p)
	return nil
}

// Top bypasses the cache: leaderboard pages have their own cache.
func (r *CachedProfileRepository) Top(ctx context.Context, groupID shared.GroupID, metric string, limit int) ([]*profile.Profile, error) {
	return r.inner.Top(ctx, groupID, metric, limit)
}
