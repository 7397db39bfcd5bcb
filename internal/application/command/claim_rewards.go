package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM REWARDS COMMAND
// Claiming is explicit and separate from completion: a COMPLETED record holds
// its rewards until the user asks for them. The whole claim runs inside one
// transaction so a crash can never leave rewards granted but the record
// unclaimed.
// Flow: Flip COMPLETED→CLAIMED (storage compare-and-set) → Apply Rewards →
//
//	Write History → Update Profile → Publish Events
//
// ══════════════════════════════════════════════════════════════════════════════

// TxManager runs a function inside a storage transaction. Repository calls
// made with the derived context join that transaction.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTxManager runs the function without transactional guarantees. Used by
// tests and in-memory wiring.
type NopTxManager struct{}

// WithTx implements TxManager.
func (NopTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ClaimRewardsCommand identifies the progress record to claim.
type ClaimRewardsCommand struct {
	// UserID is the claiming user.
	UserID shared.UserID

	// GroupID is the group the progress belongs to.
	GroupID shared.GroupID

	// AchievementID is the completed achievement.
	AchievementID string
}

// Validate validates the command.
func (c ClaimRewardsCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !c.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	if c.AchievementID == "" {
		return shared.NewDomainError("achievement", "Claim", shared.ErrValidation, "achievement ID is required")
	}
	return nil
}

// Key returns the (user, group) pair.
func (c ClaimRewardsCommand) Key() shared.ProgressKey {
	return shared.ProgressKey{UserID: c.UserID, GroupID: c.GroupID}
}

// GrantedReward describes one applied reward in the result.
type GrantedReward struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// ClaimRewardsResult contains the outcome of a successful claim.
type ClaimRewardsResult struct {
	// AchievementID is the claimed achievement.
	AchievementID string

	// AchievementName is its display name.
	AchievementName string

	// Rewards lists everything that was granted.
	Rewards []GrantedReward

	// PointsGranted is the total of points-type rewards.
	PointsGranted int

	// OldLevel and NewLevel reflect any level change from granted points.
	OldLevel shared.Level
	NewLevel shared.Level

	// ClaimedAt is when the claim was recorded.
	ClaimedAt time.Time
}

// LeveledUp reports whether the claim pushed the profile past a threshold.
func (r *ClaimRewardsResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

// ClaimRewardsHandler handles the ClaimRewardsCommand.
type ClaimRewardsHandler struct {
	catalog      *achievement.Catalog
	progressRepo achievement.ProgressRepository
	profileRepo  profile.Repository
	historyRepo  profile.RewardHistoryRepository
	tx           TxManager
	publisher    shared.EventPublisher
	logger       *slog.Logger
}

// NewClaimRewardsHandler creates a new ClaimRewardsHandler.
func NewClaimRewardsHandler(
	catalog *achievement.Catalog,
	progressRepo achievement.ProgressRepository,
	profileRepo profile.Repository,
	historyRepo profile.RewardHistoryRepository,
	tx TxManager,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *ClaimRewardsHandler {
	if tx == nil {
		tx = NopTxManager{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimRewardsHandler{
		catalog:      catalog,
		progressRepo: progressRepo,
		profileRepo:  profileRepo,
		historyRepo:  historyRepo,
		tx:           tx,
		publisher:    publisher,
		logger:       logger,
	}
}

// Handle executes the claim. It fails with shared.ErrNotCompleted when the
// record has not reached COMPLETED, and with shared.ErrAlreadyClaimed when
// the rewards were granted before; a repeated claim never grants twice.
func (h *ClaimRewardsHandler) Handle(ctx context.Context, cmd ClaimRewardsCommand) (*ClaimRewardsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("claim_rewards: %w", err)
	}

	a, ok := h.catalog.Get(cmd.AchievementID)
	if !ok {
		return nil, fmt.Errorf("claim_rewards: %w", shared.ErrAchievementNotFound)
	}

	key := cmd.Key()
	var result *ClaimRewardsResult

	err := h.tx.WithTx(ctx, func(ctx context.Context) error {
		claimedAt := time.Now().UTC()

		// The storage layer checks the status and flips it in one operation,
		// so a concurrent claim of the same record loses here, before any
		// reward has been touched.
		if err := h.progressRepo.Claim(ctx, key, cmd.AchievementID, claimedAt); err != nil {
			return err
		}

		prof, err := h.profileRepo.FindOrCreate(ctx, key)
		if err != nil {
			return err
		}

		granted, points := h.applyRewards(ctx, key, a, prof)

		oldLevel, newLevel := prof.AddPoints(points)
		prof.MarkClaimed()

		if err := h.profileRepo.Save(ctx, prof); err != nil {
			return err
		}

		result = &ClaimRewardsResult{
			AchievementID:   a.ID,
			AchievementName: a.Name,
			Rewards:         granted,
			PointsGranted:   points,
			OldLevel:        oldLevel,
			NewLevel:        newLevel,
			ClaimedAt:       claimedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim_rewards: %w", err)
	}

	h.publishEvents(key, result)
	return result, nil
}

// applyRewards grants every reward of the achievement to the profile and
// records each in the history log. A malformed reward or a failed history
// write is logged and skipped: one bad reward must not void the claim.
func (h *ClaimRewardsHandler) applyRewards(ctx context.Context, key shared.ProgressKey, a achievement.Achievement, prof *profile.Profile) ([]GrantedReward, int) {
	granted := make([]GrantedReward, 0, len(a.Rewards))
	points := 0

	for _, reward := range a.Rewards {
		if err := reward.Validate(); err != nil {
			h.logger.Warn("skipping malformed reward",
				"achievement_id", a.ID,
				"reward_type", reward.Type,
				"error", err,
			)
			continue
		}

		switch reward.Type {
		case achievement.RewardPoints:
			points += reward.Value
		case achievement.RewardTitle:
			prof.AddTitle(reward.ID)
		case achievement.RewardBadge:
			prof.AddBadge(reward.ID)
		case achievement.RewardPrivilege:
			prof.AddPrivilege(reward.ID)
		}

		record := profile.RewardRecord{
			ID:            uuid.NewString(),
			Key:           key,
			AchievementID: a.ID,
			RewardType:    string(reward.Type),
			RewardID:      reward.ID,
			RewardName:    reward.Name,
			Value:         reward.Value,
			GrantedAt:     time.Now().UTC(),
		}
		if err := h.historyRepo.Append(ctx, record); err != nil {
			h.logger.Warn("reward history append failed",
				"achievement_id", a.ID,
				"reward_type", reward.Type,
				"error", err,
			)
		}

		granted = append(granted, GrantedReward{
			Type:  string(reward.Type),
			ID:    reward.ID,
			Name:  reward.Name,
			Value: reward.Value,
		})
	}

	return granted, points
}

func (h *ClaimRewardsHandler) publishEvents(key shared.ProgressKey, result *ClaimRewardsResult) {
	if h.publisher == nil {
		return
	}

	claimed := shared.NewRewardsClaimedEvent(key, result.AchievementID, result.PointsGranted, len(result.Rewards))
	if err := h.publisher.Publish(claimed); err != nil {
		h.logger.Warn("claim event publish failed", "achievement_id", result.AchievementID, "error", err)
	}

	if result.LeveledUp() {
		levelUp := shared.NewLevelUpEvent(key, result.OldLevel.Int(), result.NewLevel.Int())
		if err := h.publisher.Publish(levelUp); err != nil {
			h.logger.Warn("level-up event publish failed", "error", err)
		}
	}
}
