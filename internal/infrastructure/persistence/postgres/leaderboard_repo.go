package postgres

import (
	"context"
	"fmt"

	"github.com/clanhub/achievement-engine/internal/domain/leaderboard"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
// The leaderboard is a read projection over user_profiles: no separate
// table, ranks are computed per query.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// Top returns the ranked rows of a group ordered by metric descending,
// level as a tie breaker.
func (r *LeaderboardRepository) Top(ctx context.Context, groupID shared.GroupID, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, error) {
	column, ok := metricColumns[metric.String()]
	if !ok {
		return nil, shared.ErrInvalidMetric
	}

	query := fmt.Sprintf(`
		SELECT user_id, group_id, %s, level, total_points, achievements_completed
		FROM user_profiles
		WHERE group_id = $1
		ORDER BY %s DESC, level DESC
		LIMIT $2
	`, column, column)

	rows, err := r.conn.Query(ctx, query, groupID.Int64(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []leaderboard.Entry
	for rows.Next() {
		var e leaderboard.Entry
		var userID, grpID int64
		var score float64

		err := rows.Scan(&userID, &grpID, &score, &e.Level, &e.TotalPoints, &e.AchievementsCompleted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}

		e.UserID = shared.UserID(userID)
		e.GroupID = shared.GroupID(grpID)
		e.Score = score
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return leaderboard.AssignRanks(entries), nil
}

// RankOf returns the user's position in the group by metric, or
// shared.Unranked with shared.ErrNotFound when the profile does not exist.
func (r *LeaderboardRepository) RankOf(ctx context.Context, key shared.ProgressKey, metric leaderboard.Metric) (shared.Rank, error) {
	column, ok := metricColumns[metric.String()]
	if !ok {
		return shared.Unranked, shared.ErrInvalidMetric
	}

	// DENSE_RANK, not ROW_NUMBER: profiles tied on both the metric and the
	// level share a rank instead of being split arbitrarily.
	query := fmt.Sprintf(`
		SELECT rank FROM (
			SELECT user_id,
				   DENSE_RANK() OVER (ORDER BY %s DESC, level DESC) AS rank
			FROM user_profiles
			WHERE group_id = $1
		) ranked
		WHERE user_id = $2
	`, column)

	var rank int
	err := r.conn.QueryRow(ctx, query, key.GroupID.Int64(), key.UserID.Int64()).Scan(&rank)
	if IsNoRows(err) {
		return shared.Unranked, shared.ErrNotFound
	}
	if err != nil {
		return shared.Unranked, fmt.Errorf("failed to query rank: %w", err)
	}

	return shared.Rank(rank), nil
}

// Groups returns every group that has at least one profile. Used by the
// cache rebuild job to know which pages to refresh.
func (r *LeaderboardRepository) Groups(ctx context.Context) ([]shared.GroupID, error) {
	rows, err := r.conn.Query(ctx, `SELECT DISTINCT group_id FROM user_profiles`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []shared.GroupID
	for rows.Next() {
		var groupID int64
		if err := rows.Scan(&groupID); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		groups = append(groups, shared.GroupID(groupID))
	}

	return groups, rows.Err()
}
