package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const progressColumns = `user_id, group_id, achievement_id, status, percentage,
	   current_values, started_at, completed_at, claimed_at, created_at, updated_at`

// ProgressRepository implements achievement.ProgressRepository for PostgreSQL.
// Uniqueness of (user, group, achievement) is enforced by the schema.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// Find returns a progress record or shared.ErrProgressNotFound.
func (r *ProgressRepository) Find(ctx context.Context, key shared.ProgressKey, achievementID string) (*achievement.Progress, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM user_achievement_progress
		WHERE user_id = $1 AND group_id = $2 AND achievement_id = $3
	`, progressColumns)

	row := r.conn.QueryRow(ctx, query, key.UserID.Int64(), key.GroupID.Int64(), achievementID)
	return scanProgress(row)
}

// FindOrCreate returns a progress record, lazily creating it in LOCKED.
func (r *ProgressRepository) FindOrCreate(ctx context.Context, key shared.ProgressKey, achievementID string) (*achievement.Progress, error) {
	p, err := r.Find(ctx, key, achievementID)
	if err == nil {
		return p, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	p = achievement.NewProgress(key, achievementID)
	if err := r.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindAll returns all progress records for a (user, group) pair, keyed by
// achievement ID.
func (r *ProgressRepository) FindAll(ctx context.Context, key shared.ProgressKey) (map[string]*achievement.Progress, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM user_achievement_progress
		WHERE user_id = $1 AND group_id = $2
	`, progressColumns)

	rows, err := r.conn.Query(ctx, query, key.UserID.Int64(), key.GroupID.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to query progress records: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*achievement.Progress)
	for rows.Next() {
		p, err := scanProgressFromRows(rows)
		if err != nil {
			return nil, err
		}
		result[p.AchievementID] = p
	}

	return result, rows.Err()
}

// Save upserts a progress record by its composite key. CLAIMED is terminal:
// the update clause skips claimed rows, so a stale snapshot written after a
// concurrent claim cannot move the status backwards.
func (r *ProgressRepository) Save(ctx context.Context, p *achievement.Progress) error {
	query := `
		INSERT INTO user_achievement_progress (
			user_id, group_id, achievement_id, status, percentage,
			current_values, started_at, completed_at, claimed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, group_id, achievement_id) DO UPDATE SET
			status = EXCLUDED.status,
			percentage = EXCLUDED.percentage,
			current_values = EXCLUDED.current_values,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			claimed_at = EXCLUDED.claimed_at,
			updated_at = EXCLUDED.updated_at
		WHERE user_achievement_progress.status <> $12
	`

	valuesJSON, err := json.Marshal(p.CurrentValues)
	if err != nil {
		return fmt.Errorf("failed to marshal progress values: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		p.Key.UserID.Int64(),
		p.Key.GroupID.Int64(),
		p.AchievementID,
		string(p.Status),
		p.Percentage,
		valuesJSON,
		p.StartedAt,
		p.CompletedAt,
		p.ClaimedAt,
		p.CreatedAt,
		p.UpdatedAt,
		string(achievement.StatusClaimed),
	)
	if err != nil {
		return shared.WrapError("postgres", "SaveProgress", shared.ErrStorage, "failed to save progress", err)
	}

	return nil
}

// Claim flips a COMPLETED record to CLAIMED with one conditional update.
// The WHERE clause is the guard: of two concurrent claims only the one that
// actually changes the row gets a non-zero row count, the other is
// classified by re-reading the record.
func (r *ProgressRepository) Claim(ctx context.Context, key shared.ProgressKey, achievementID string, claimedAt time.Time) error {
	query := `
		UPDATE user_achievement_progress
		SET status = $4, claimed_at = $5, updated_at = $5
		WHERE user_id = $1 AND group_id = $2 AND achievement_id = $3
		  AND status = $6
	`

	tag, err := r.conn.Exec(ctx, query,
		key.UserID.Int64(),
		key.GroupID.Int64(),
		achievementID,
		string(achievement.StatusClaimed),
		claimedAt,
		string(achievement.StatusCompleted),
	)
	if err != nil {
		return shared.WrapError("postgres", "ClaimProgress", shared.ErrStorage, "failed to claim progress", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	p, err := r.Find(ctx, key, achievementID)
	if err != nil {
		return err
	}
	if p.Status == achievement.StatusClaimed {
		return shared.ErrAlreadyClaimed
	}
	return shared.ErrNotCompleted
}

// StatusOf returns the status of the listed achievements. Records that were
// never touched come back as LOCKED.
func (r *ProgressRepository) StatusOf(ctx context.Context, key shared.ProgressKey, achievementIDs []string) (map[string]achievement.Status, error) {
	result := make(map[string]achievement.Status, len(achievementIDs))
	if len(achievementIDs) == 0 {
		return result, nil
	}
	for _, id := range achievementIDs {
		result[id] = achievement.StatusLocked
	}

	placeholders := make([]string, len(achievementIDs))
	args := make([]interface{}, 0, len(achievementIDs)+2)
	args = append(args, key.UserID.Int64(), key.GroupID.Int64())
	for i, id := range achievementIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT achievement_id, status
		FROM user_achievement_progress
		WHERE user_id = $1 AND group_id = $2 AND achievement_id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("failed to scan progress status: %w", err)
		}
		result[id] = achievement.Status(status)
	}

	return result, rows.Err()
}

// CountByStatus returns record counts per lifecycle status.
func (r *ProgressRepository) CountByStatus(ctx context.Context, key shared.ProgressKey) (map[achievement.Status]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM user_achievement_progress
		WHERE user_id = $1 AND group_id = $2
		GROUP BY status
	`

	rows, err := r.conn.Query(ctx, query, key.UserID.Int64(), key.GroupID.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to count progress records: %w", err)
	}
	defer rows.Close()

	result := make(map[achievement.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan progress count: %w", err)
		}
		result[achievement.Status(status)] = count
	}

	return result, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// SCAN HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func scanProgress(row pgx.Row) (*achievement.Progress, error) {
	p, err := scanProgressRow(row.Scan)
	if IsNoRows(err) {
		return nil, shared.ErrProgressNotFound
	}
	return p, err
}

func scanProgressFromRows(rows pgx.Rows) (*achievement.Progress, error) {
	return scanProgressRow(rows.Scan)
}

func scanProgressRow(scan func(...interface{}) error) (*achievement.Progress, error) {
	var p achievement.Progress
	var userID, groupID int64
	var status string
	var valuesJSON []byte
	var startedAt, completedAt, claimedAt *time.Time

	err := scan(
		&userID,
		&groupID,
		&p.AchievementID,
		&status,
		&p.Percentage,
		&valuesJSON,
		&startedAt,
		&completedAt,
		&claimedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan progress record: %w", err)
	}

	p.Key = shared.ProgressKey{UserID: shared.UserID(userID), GroupID: shared.GroupID(groupID)}
	p.Status = achievement.Status(status)
	p.StartedAt = startedAt
	p.CompletedAt = completedAt
	p.ClaimedAt = claimedAt

	p.CurrentValues = map[string]float64{}
	if len(valuesJSON) > 0 {
		if err := json.Unmarshal(valuesJSON, &p.CurrentValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal progress values: %w", err)
		}
	}

	return &p, nil
}
