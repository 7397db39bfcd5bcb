package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ACHIEVEMENT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Catalog of achievements. Written on startup, read for recovery.
CREATE TABLE IF NOT EXISTS achievements (
    id VARCHAR(100) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category VARCHAR(50) NOT NULL,
    difficulty VARCHAR(20) NOT NULL,
    requirements JSONB NOT NULL DEFAULT '[]'::jsonb,
    rewards JSONB NOT NULL DEFAULT '[]'::jsonb,
    prerequisites JSONB NOT NULL DEFAULT '[]'::jsonb,
    icon VARCHAR(20) NOT NULL DEFAULT '',
    hidden BOOLEAN NOT NULL DEFAULT FALSE,
    max_progress INTEGER NOT NULL DEFAULT 100,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_achievements_category ON achievements(category);
`

const migration001Down = `
DROP TABLE IF EXISTS achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: PROGRESS RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Per-user per-group per-achievement lifecycle records. Created lazily on
-- first touch, never deleted. Status transitions are forward-only:
-- locked -> in_progress -> completed -> claimed.
CREATE TABLE IF NOT EXISTS user_achievement_progress (
    id SERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    group_id BIGINT NOT NULL,
    achievement_id VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'locked',
    percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    current_values JSONB NOT NULL DEFAULT '{}'::jsonb,
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    claimed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_progress_user_group_achievement UNIQUE (user_id, group_id, achievement_id),
    CONSTRAINT valid_progress_status CHECK (status IN ('locked', 'in_progress', 'completed', 'claimed')),
    CONSTRAINT valid_percentage CHECK (percentage >= 0 AND percentage <= 100)
);

CREATE INDEX IF NOT EXISTS idx_progress_user_group ON user_achievement_progress(user_id, group_id);
CREATE INDEX IF NOT EXISTS idx_progress_status ON user_achievement_progress(status);
CREATE INDEX IF NOT EXISTS idx_progress_achievement ON user_achievement_progress(achievement_id);
`

const migration002Down = `
DROP TABLE IF EXISTS user_achievement_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: USER PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Points, level and cosmetic rewards per (user, group). Created lazily,
-- never deleted.
CREATE TABLE IF NOT EXISTS user_profiles (
    id SERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    group_id BIGINT NOT NULL,
    total_points INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    experience_points INTEGER NOT NULL DEFAULT 0,
    titles JSONB NOT NULL DEFAULT '[]'::jsonb,
    badges JSONB NOT NULL DEFAULT '[]'::jsonb,
    privileges JSONB NOT NULL DEFAULT '[]'::jsonb,
    achievements_completed INTEGER NOT NULL DEFAULT 0,
    achievements_claimed INTEGER NOT NULL DEFAULT 0,
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    last_achievement_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT uq_profiles_user_group UNIQUE (user_id, group_id),
    CONSTRAINT valid_total_points CHECK (total_points >= 0),
    CONSTRAINT valid_level CHECK (level >= 1)
);

CREATE INDEX IF NOT EXISTS idx_profiles_group ON user_profiles(group_id);

-- Leaderboard queries order by metric, then level.
CREATE INDEX IF NOT EXISTS idx_profiles_group_points ON user_profiles(group_id, total_points DESC, level DESC);
CREATE INDEX IF NOT EXISTS idx_profiles_group_level ON user_profiles(group_id, level DESC);
CREATE INDEX IF NOT EXISTS idx_profiles_group_completed ON user_profiles(group_id, achievements_completed DESC, level DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS user_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: REWARD HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Append-only audit trail of granted rewards.
CREATE TABLE IF NOT EXISTS reward_history (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    group_id BIGINT NOT NULL,
    achievement_id VARCHAR(100) NOT NULL,
    reward_type VARCHAR(20) NOT NULL,
    reward_id VARCHAR(100) NOT NULL DEFAULT '',
    reward_name VARCHAR(200) NOT NULL DEFAULT '',
    value INTEGER NOT NULL DEFAULT 0,
    granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reward_history_user_group ON reward_history(user_id, group_id, granted_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS reward_history;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: EVENT LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
-- Append-only log of dispatched events. Used for debugging and replay,
-- never consulted during rule evaluation.
CREATE TABLE IF NOT EXISTS achievement_events (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    group_id BIGINT NOT NULL,
    event_type VARCHAR(50) NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    enqueued_at TIMESTAMP WITH TIME ZONE NOT NULL,
    logged_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_events_user_group ON achievement_events(user_id, group_id, logged_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_type ON achievement_events(event_type);
`

const migration005Down = `
DROP TABLE IF EXISTS achievement_events;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_achievements", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_progress", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_profiles", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_reward_history", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_event_log", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}
