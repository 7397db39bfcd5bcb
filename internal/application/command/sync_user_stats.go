package command

import (
	"context"
	"fmt"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC USER STATS COMMAND
// Game-data sync pushes a player's current statistics snapshot through the
// regular pipeline as a player_stats_updated event, so snapshot requirements
// (trophies, player level) stay current without a dedicated code path.
// ══════════════════════════════════════════════════════════════════════════════

// SyncUserStatsCommand contains a statistics snapshot for one user.
type SyncUserStatsCommand struct {
	// UserID is the user the snapshot belongs to.
	UserID shared.UserID

	// GroupID is the group to attribute progress to.
	GroupID shared.GroupID

	// Stats maps requirement field names to their current values
	// (e.g. trophies, player_level).
	Stats map[string]interface{}
}

// Validate validates the command.
func (c SyncUserStatsCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !c.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	if len(c.Stats) == 0 {
		return shared.NewDomainError("event", "SyncStats", shared.ErrValidation, "stats snapshot is empty")
	}
	return nil
}

// SyncUserStatsResult reports the injected event.
type SyncUserStatsResult struct {
	EventID  string
	SyncedAt time.Time
}

// SyncUserStatsHandler handles the SyncUserStatsCommand.
type SyncUserStatsHandler struct {
	sink EventSink
}

// NewSyncUserStatsHandler creates a new SyncUserStatsHandler.
func NewSyncUserStatsHandler(sink EventSink) *SyncUserStatsHandler {
	return &SyncUserStatsHandler{sink: sink}
}

// Handle wraps the snapshot in a player_stats_updated envelope and queues it.
func (h *SyncUserStatsHandler) Handle(_ context.Context, cmd SyncUserStatsCommand) (*SyncUserStatsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("sync_user_stats: %w", err)
	}

	data := make(map[string]interface{}, len(cmd.Stats))
	for name, value := range cmd.Stats {
		data[name] = value
	}

	envelope := shared.NewEnvelope(cmd.UserID, cmd.GroupID, shared.EventPlayerStatsUpdated, data)
	if err := h.sink.Enqueue(envelope); err != nil {
		return nil, fmt.Errorf("sync_user_stats: %w", err)
	}

	return &SyncUserStatsResult{
		EventID:  envelope.ID,
		SyncedAt: time.Now().UTC(),
	}, nil
}
