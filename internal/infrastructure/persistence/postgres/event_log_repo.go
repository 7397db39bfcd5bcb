package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventLogRepository implements achievement.EventLogRepository for PostgreSQL.
// Append-only: dispatched events are recorded for debugging and replay, the
// evaluator never reads them.
type EventLogRepository struct {
	conn *Connection
}

// NewEventLogRepository creates a new EventLogRepository.
func NewEventLogRepository(conn *Connection) *EventLogRepository {
	return &EventLogRepository{conn: conn}
}

// Append writes one event to the log.
func (r *EventLogRepository) Append(ctx context.Context, envelope shared.Envelope) error {
	query := `
		INSERT INTO achievement_events (id, user_id, group_id, event_type, data, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	dataJSON, err := json.Marshal(envelope.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		envelope.ID,
		envelope.UserID.Int64(),
		envelope.GroupID.Int64(),
		string(envelope.Type),
		dataJSON,
		envelope.EnqueuedAt,
	)
	if err != nil {
		return shared.WrapError("postgres", "AppendEvent", shared.ErrStorage, "failed to append event", err)
	}

	return nil
}

// ListRecent returns the latest events of a (user, group) pair.
func (r *EventLogRepository) ListRecent(ctx context.Context, key shared.ProgressKey, limit int) ([]shared.Envelope, error) {
	query := `
		SELECT id, user_id, group_id, event_type, data, enqueued_at
		FROM achievement_events
		WHERE user_id = $1 AND group_id = $2
		ORDER BY logged_at DESC
		LIMIT $3
	`

	rows, err := r.conn.Query(ctx, query, key.UserID.Int64(), key.GroupID.Int64(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	var events []shared.Envelope
	for rows.Next() {
		var e shared.Envelope
		var userID, groupID int64
		var eventType string
		var dataJSON []byte

		err := rows.Scan(&e.ID, &userID, &groupID, &eventType, &dataJSON, &e.EnqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		e.UserID = shared.UserID(userID)
		e.GroupID = shared.GroupID(groupID)
		e.Type = shared.EventType(eventType)
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// ActiveKeys returns the (user, group) pairs that logged at least one event
// inside the window. Synthetic events are excluded so scheduler-injected
// activity does not keep users "active" forever.
func (r *EventLogRepository) ActiveKeys(ctx context.Context, window shared.TimeRange) ([]shared.ProgressKey, error) {
	if !window.IsValid() {
		return nil, shared.ErrInvalidInput
	}

	query := `
		SELECT DISTINCT user_id, group_id
		FROM achievement_events
		WHERE logged_at >= $1 AND logged_at < $2
		  AND event_type NOT IN ($3, $4, $5)
	`

	rows, err := r.conn.Query(ctx, query, window.From, window.To,
		string(shared.EventAchievementCompleted),
		string(shared.EventDailyActivity),
		string(shared.EventWeeklySummary),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active keys: %w", err)
	}
	defer rows.Close()

	var keys []shared.ProgressKey
	for rows.Next() {
		var userID, groupID int64
		if err := rows.Scan(&userID, &groupID); err != nil {
			return nil, fmt.Errorf("failed to scan active key: %w", err)
		}
		keys = append(keys, shared.ProgressKey{
			UserID:  shared.UserID(userID),
			GroupID: shared.GroupID(groupID),
		})
	}

	return keys, rows.Err()
}

// CountMessages returns per-pair message_sent counts inside the half-open
// window.
func (r *EventLogRepository) CountMessages(ctx context.Context, window shared.TimeRange) (map[shared.ProgressKey]int, error) {
	if !window.IsValid() {
		return nil, shared.ErrInvalidInput
	}

	query := `
		SELECT user_id, group_id, COUNT(*)
		FROM achievement_events
		WHERE logged_at >= $1 AND logged_at < $2 AND event_type = $3
		GROUP BY user_id, group_id
	`

	rows, err := r.conn.Query(ctx, query, window.From, window.To, string(shared.EventMessageSent))
	if err != nil {
		return nil, fmt.Errorf("failed to query message counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[shared.ProgressKey]int)
	for rows.Next() {
		var userID, groupID int64
		var count int
		if err := rows.Scan(&userID, &groupID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan message count: %w", err)
		}
		counts[shared.ProgressKey{
			UserID:  shared.UserID(userID),
			GroupID: shared.GroupID(groupID),
		}] = count
	}

	return counts, rows.Err()
}
