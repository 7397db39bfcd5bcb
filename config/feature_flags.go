package config

import (
	"errors"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Predefined feature flag names. Each one gates a concrete wiring decision
// in cmd/engine.
const (
	// FeatureLeaderboardCache serves leaderboard pages from Redis.
	FeatureLeaderboardCache = "leaderboard.cache"

	// FeatureEventsDailyActivity injects daily_activity events for active users.
	FeatureEventsDailyActivity = "events.daily_activity"

	// FeatureEventsWeeklySummary injects weekly_summary aggregates.
	FeatureEventsWeeklySummary = "events.weekly_summary"

	// FeatureProfileLevelUpEvents publishes level-up domain events.
	FeatureProfileLevelUpEvents = "profile.levelup_events"
)

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature is a single toggle. Beyond on/off it supports percentage rollout
// (users are bucketed by a stable hash), group targeting, and a time window,
// so new mechanics can be trialed in a few groups before going engine-wide.
type Feature struct {
	Name           string
	Description    string
	Enabled        bool
	RolloutPercent int // 0-100

	// TargetGroups limits the feature to the listed groups; empty means all.
	TargetGroups []int64

	// Optional activation window.
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext identifies who is asking. A nil context evaluates the
// feature globally: enabled means enabled for everyone.
type FeatureContext struct {
	UserID  int64
	GroupID int64
	IsAdmin bool
}

// FeatureFlags holds the engine's toggles. Safe for concurrent use;
// SetRolloutPercent allows live adjustment.
type FeatureFlags struct {
	mu            sync.RWMutex
	features      map[string]*Feature
	userOverrides map[int64]map[string]bool
}

// LoadFeatureFlags builds the default flag set and applies environment
// overrides. Format: FEATURE_<NAME>=true|false|<percent>, with dots mapped
// to underscores ("events.daily_activity" -> FEATURE_EVENTS_DAILY_ACTIVITY).
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[int64]map[string]bool),
	}

	ff.register(FeatureLeaderboardCache, "Serve leaderboard pages from the Redis cache", true)
	ff.register(FeatureEventsDailyActivity, "Inject daily activity events for active users", true)
	ff.register(FeatureEventsWeeklySummary, "Inject weekly summary aggregates", true)
	ff.register(FeatureProfileLevelUpEvents, "Publish level-up domain events", true)

	ff.applyEnvironment()
	return ff
}

func (ff *FeatureFlags) register(name, description string, enabled bool) {
	percent := 0
	if enabled {
		percent = 100
	}
	ff.features[name] = &Feature{
		Name:           name,
		Description:    description,
		Enabled:        enabled,
		RolloutPercent: percent,
	}
}

func (ff *FeatureFlags) applyEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureEnvKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			feature.RolloutPercent = 0
			if b {
				feature.RolloutPercent = 100
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

func featureEnvKey(name string) string {
	return "FEATURE_" + strings.ReplaceAll(strings.ToUpper(name), ".", "_")
}

// IsEnabled evaluates a feature for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.UserID != 0 {
		if enabled, ok := ff.userOverrides[ctx.UserID][featureName]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if ctx != nil && ctx.IsAdmin {
		return true
	}
	if !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if len(feature.TargetGroups) > 0 && ctx != nil && ctx.GroupID != 0 {
		if !containsGroup(feature.TargetGroups, ctx.GroupID) {
			return false
		}
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != 0 {
		return rolloutBucket(ctx.UserID, featureName) < feature.RolloutPercent
	}

	return feature.RolloutPercent > 0
}

// SetUserOverride pins a feature on or off for one user.
func (ff *FeatureFlags) SetUserOverride(userID int64, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[userID] == nil {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// SetRolloutPercent adjusts a feature's rollout at runtime.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

func containsGroup(groups []int64, groupID int64) bool {
	for _, g := range groups {
		if g == groupID {
			return true
		}
	}
	return false
}

// rolloutBucket maps a (user, feature) pair to a stable bucket in [0, 100)
// so users do not flap in and out of a partial rollout.
func rolloutBucket(userID int64, featureName string) int {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int(h.Sum32() % 100)
}
