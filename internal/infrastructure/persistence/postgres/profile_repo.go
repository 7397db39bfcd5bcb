package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const profileColumns = `user_id, group_id, total_points, level, experience_points,
	   titles, badges, privileges, achievements_completed, achievements_claimed,
	   joined_at, last_achievement_at`

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// Find returns a profile or shared.ErrProfileNotFound.
func (r *ProfileRepository) Find(ctx context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM user_profiles
		WHERE user_id = $1 AND group_id = $2
	`, profileColumns)

	row := r.conn.QueryRow(ctx, query, key.UserID.Int64(), key.GroupID.Int64())
	p, err := scanProfileRow(row.Scan)
	if IsNoRows(err) {
		return nil, shared.ErrProfileNotFound
	}
	return p, err
}

// FindOrCreate returns a profile, lazily creating it on first touch.
func (r *ProfileRepository) FindOrCreate(ctx context.Context, key shared.ProgressKey) (*profile.Profile, error) {
	p, err := r.Find(ctx, key)
	if err == nil {
		return p, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	p = profile.NewProfile(key)
	if err := r.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Save upserts a profile by its (user, group) key.
func (r *ProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO user_profiles (
			user_id, group_id, total_points, level, experience_points,
			titles, badges, privileges, achievements_completed, achievements_claimed,
			joined_at, last_achievement_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, group_id) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			level = EXCLUDED.level,
			experience_points = EXCLUDED.experience_points,
			titles = EXCLUDED.titles,
			badges = EXCLUDED.badges,
			privileges = EXCLUDED.privileges,
			achievements_completed = EXCLUDED.achievements_completed,
			achievements_claimed = EXCLUDED.achievements_claimed,
			last_achievement_at = EXCLUDED.last_achievement_at
	`

	titlesJSON, err := json.Marshal(p.TitleList())
	if err != nil {
		return fmt.Errorf("failed to marshal titles: %w", err)
	}
	badgesJSON, err := json.Marshal(p.BadgeList())
	if err != nil {
		return fmt.Errorf("failed to marshal badges: %w", err)
	}
	privilegesJSON, err := json.Marshal(p.PrivilegeList())
	if err != nil {
		return fmt.Errorf("failed to marshal privileges: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		p.Key.UserID.Int64(),
		p.Key.GroupID.Int64(),
		p.TotalPoints.Int(),
		p.Level.Int(),
		p.ExperiencePoints,
		titlesJSON,
		badgesJSON,
		privilegesJSON,
		p.AchievementsCompleted,
		p.AchievementsClaimed,
		p.JoinedAt,
		p.LastAchievementAt,
	)
	if err != nil {
		return shared.WrapError("postgres", "SaveProfile", shared.ErrStorage, "failed to save profile", err)
	}

	return nil
}

// Top returns the group's profiles ordered by metric descending, level as a
// tie breaker. The metric name is validated against a closed set before it
// reaches the query text.
func (r *ProfileRepository) Top(ctx context.Context, groupID shared.GroupID, metric string, limit int) ([]*profile.Profile, error) {
	column, ok := metricColumns[metric]
	if !ok {
		return nil, shared.ErrInvalidMetric
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM user_profiles
		WHERE group_id = $1
		ORDER BY %s DESC, level DESC
		LIMIT $2
	`, profileColumns, column)

	rows, err := r.conn.Query(ctx, query, groupID.Int64(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*profile.Profile
	for rows.Next() {
		p, err := scanProfileRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// metricColumns maps domain metric names to table columns. Acts as an
// allowlist against injection through the metric parameter.
var metricColumns = map[string]string{
	"total_points":           "total_points",
	"level":                  "level",
	"achievements_completed": "achievements_completed",
}

func scanProfileRow(scan func(...interface{}) error) (*profile.Profile, error) {
	var p profile.Profile
	var userID, groupID int64
	var totalPoints, level int
	var titlesJSON, badgesJSON, privilegesJSON []byte
	var lastAchievementAt *time.Time

	err := scan(
		&userID,
		&groupID,
		&totalPoints,
		&level,
		&p.ExperiencePoints,
		&titlesJSON,
		&badgesJSON,
		&privilegesJSON,
		&p.AchievementsCompleted,
		&p.AchievementsClaimed,
		&p.JoinedAt,
		&lastAchievementAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.Key = shared.ProgressKey{UserID: shared.UserID(userID), GroupID: shared.GroupID(groupID)}
	p.TotalPoints = shared.Points(totalPoints)
	p.Level = shared.Level(level)
	p.LastAchievementAt = lastAchievementAt

	p.Titles = unmarshalSet(titlesJSON)
	p.Badges = unmarshalSet(badgesJSON)
	p.Privileges = unmarshalSet(privilegesJSON)

	return &p, nil
}

func unmarshalSet(data []byte) map[string]struct{} {
	var ids []string
	if len(data) > 0 {
		_ = json.Unmarshal(data, &ids)
	}
	return profile.SetFromSlice(ids)
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD HISTORY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RewardHistoryRepository implements profile.RewardHistoryRepository for
// PostgreSQL. The table is append-only.
type RewardHistoryRepository struct {
	conn *Connection
}

// NewRewardHistoryRepository creates a new RewardHistoryRepository.
func NewRewardHistoryRepository(conn *Connection) *RewardHistoryRepository {
	return &RewardHistoryRepository{conn: conn}
}

// Append writes one reward record.
func (r *RewardHistoryRepository) Append(ctx context.Context, record profile.RewardRecord) error {
	query := `
		INSERT INTO reward_history (
			id, user_id, group_id, achievement_id,
			reward_type, reward_id, reward_name, value, granted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		record.ID,
		record.Key.UserID.Int64(),
		record.Key.GroupID.Int64(),
		record.AchievementID,
		record.RewardType,
		record.RewardID,
		record.RewardName,
		record.Value,
		record.GrantedAt,
	)
	if err != nil {
		return shared.WrapError("postgres", "AppendReward", shared.ErrStorage, "failed to append reward record", err)
	}

	return nil
}

// List returns one page of the reward history of a (user, group) pair,
// newest first.
func (r *RewardHistoryRepository) List(ctx context.Context, key shared.ProgressKey, page shared.Pagination) ([]profile.RewardRecord, error) {
	query := `
		SELECT id, user_id, group_id, achievement_id,
			   reward_type, reward_id, reward_name, value, granted_at
		FROM reward_history
		WHERE user_id = $1 AND group_id = $2
		ORDER BY granted_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.conn.Query(ctx, query, key.UserID.Int64(), key.GroupID.Int64(), page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to query reward history: %w", err)
	}
	defer rows.Close()

	return scanRewardRecords(rows)
}

func scanRewardRecords(rows pgx.Rows) ([]profile.RewardRecord, error) {
	var records []profile.RewardRecord
	for rows.Next() {
		var record profile.RewardRecord
		var userID, groupID int64

		err := rows.Scan(
			&record.ID,
			&userID,
			&groupID,
			&record.AchievementID,
			&record.RewardType,
			&record.RewardID,
			&record.RewardName,
			&record.Value,
			&record.GrantedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward record: %w", err)
		}

		record.Key = shared.ProgressKey{UserID: shared.UserID(userID), GroupID: shared.GroupID(groupID)}
		records = append(records, record)
	}

	return records, rows.Err()
}
