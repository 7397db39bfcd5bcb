package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clanhub/achievement-engine/internal/application/evaluator"
	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECHECK ACHIEVEMENTS COMMAND
// Administrative re-evaluation of all stored progress for one (user, group)
// pair, for recovery after catalog changes or missed events. Only stored
// requirement values are consulted; no events are replayed.
// ══════════════════════════════════════════════════════════════════════════════

// RecheckAchievementsCommand identifies the pair to re-evaluate.
type RecheckAchievementsCommand struct {
	UserID  shared.UserID
	GroupID shared.GroupID
}

// Validate validates the command.
func (c RecheckAchievementsCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !c.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	return nil
}

// RecheckAchievementsResult lists what the recheck changed.
type RecheckAchievementsResult struct {
	// Checked is the number of progress records examined.
	Checked int

	// NewlyCompleted lists achievements completed by this recheck.
	NewlyCompleted []string

	// CheckedAt is when the recheck ran.
	CheckedAt time.Time
}

// RecheckAchievementsHandler handles the RecheckAchievementsCommand.
type RecheckAchievementsHandler struct {
	evaluator    *evaluator.Evaluator
	progressRepo achievement.ProgressRepository
	profileRepo  profile.Repository
	sink         EventSink
	publisher    shared.EventPublisher
	logger       *slog.Logger
}

// NewRecheckAchievementsHandler creates a new RecheckAchievementsHandler.
func NewRecheckAchievementsHandler(
	ev *evaluator.Evaluator,
	progressRepo achievement.ProgressRepository,
	profileRepo profile.Repository,
	sink EventSink,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *RecheckAchievementsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecheckAchievementsHandler{
		evaluator:    ev,
		progressRepo: progressRepo,
		profileRepo:  profileRepo,
		sink:         sink,
		publisher:    publisher,
		logger:       logger,
	}
}

// Handle re-runs completion checks over every stored progress record.
// Completions found here behave exactly like event-driven ones: the profile
// counter moves, subscribers are notified, and a synthetic completion event
// enters the queue so prerequisite chains resolve.
func (h *RecheckAchievementsHandler) Handle(ctx context.Context, cmd RecheckAchievementsCommand) (*RecheckAchievementsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("recheck_achievements: %w", err)
	}

	key := shared.ProgressKey{UserID: cmd.UserID, GroupID: cmd.GroupID}
	records, err := h.progressRepo.FindAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("recheck_achievements: %w", err)
	}

	result := &RecheckAchievementsResult{CheckedAt: time.Now().UTC()}

	for achievementID, p := range records {
		a, ok := h.evaluator.Catalog().Get(achievementID)
		if !ok {
			// Progress for an achievement no longer in the catalog.
			continue
		}
		result.Checked++

		if p.Status.IsCompletedOrClaimed() {
			continue
		}

		prereqStatus := map[string]achievement.Status{}
		if a.HasPrerequisites() {
			prereqStatus, err = h.progressRepo.StatusOf(ctx, key, a.Prerequisites)
			if err != nil {
				h.logger.Error("recheck: prerequisite lookup failed",
					"achievement_id", achievementID, "error", err)
				continue
			}
		}

		p.RecalculatePercentage(a)
		if !h.evaluator.CheckCompletion(p, a, prereqStatus) {
			if err := h.progressRepo.Save(ctx, p); err != nil {
				h.logger.Error("recheck: save failed", "achievement_id", achievementID, "error", err)
			}
			continue
		}

		if err := p.Complete(); err != nil {
			continue
		}
		if err := h.progressRepo.Save(ctx, p); err != nil {
			h.logger.Error("recheck: completion save failed", "achievement_id", achievementID, "error", err)
			continue
		}

		if prof, err := h.profileRepo.FindOrCreate(ctx, key); err == nil {
			prof.MarkCompleted()
			if err := h.profileRepo.Save(ctx, prof); err != nil {
				h.logger.Error("recheck: profile save failed", "error", err)
			}
		}

		if h.publisher != nil {
			_ = h.publisher.Publish(shared.NewAchievementCompletedEvent(key, a.ID, a.Name))
		}
		if h.sink != nil {
			synthetic := shared.NewEnvelope(key.UserID, key.GroupID, shared.EventAchievementCompleted, map[string]interface{}{
				"achievement_id":   a.ID,
				"achievement_name": a.Name,
			})
			if err := h.sink.Enqueue(synthetic); err != nil {
				h.logger.Warn("recheck: re-injection failed", "achievement_id", a.ID, "error", err)
			}
		}

		result.NewlyCompleted = append(result.NewlyCompleted, a.ID)
	}

	return result, nil
}
