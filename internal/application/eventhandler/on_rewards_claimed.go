package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON REWARDS CLAIMED HANDLER
// Обрабатывает успешную выдачу наград.
//
// Ключевые функции:
// 1. Сброс кэша таблицы лидеров группы — начисленные очки меняют порядок
// 2. Сброс кэша профиля — очки и уровень изменились
// 3. Логирование выдачи для аудита
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardInvalidator сбрасывает закэшированные страницы таблицы лидеров
// группы по всем метрикам.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context, groupID shared.GroupID) error
}

// OnRewardsClaimedHandler обрабатывает событие выдачи наград.
type OnRewardsClaimedHandler struct {
	leaderboardCache LeaderboardInvalidator
	profileCache     ProfileInvalidator
	logger           *slog.Logger
	config           RewardsClaimedConfig

	totalHandled    atomic.Int64
	totalPointsSeen atomic.Int64
}

// RewardsClaimedConfig содержит конфигурацию обработчика.
type RewardsClaimedConfig struct {
	// InvalidateLeaderboard — сбрасывать ли кэш таблицы лидеров группы.
	InvalidateLeaderboard bool

	// InvalidateProfile — сбрасывать ли кэш профиля.
	InvalidateProfile bool

	// CacheTimeout — таймаут на операции с кэшем.
	CacheTimeout time.Duration
}

// DefaultRewardsClaimedConfig возвращает конфигурацию по умолчанию.
func DefaultRewardsClaimedConfig() RewardsClaimedConfig {
	return RewardsClaimedConfig{
		InvalidateLeaderboard: true,
		InvalidateProfile:     true,
		CacheTimeout:          2 * time.Second,
	}
}

// NewOnRewardsClaimedHandler создаёт новый обработчик выдачи наград.
// Любой из кэшей может быть nil — соответствующий сброс пропускается.
func NewOnRewardsClaimedHandler(
	leaderboardCache LeaderboardInvalidator,
	profileCache ProfileInvalidator,
	logger *slog.Logger,
	config RewardsClaimedConfig,
) *OnRewardsClaimedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnRewardsClaimedHandler{
		leaderboardCache: leaderboardCache,
		profileCache:     profileCache,
		logger:           logger.With("handler", "on_rewards_claimed"),
		config:           config,
	}
}

// Handle обрабатывает событие выдачи наград.
// Реализует shared.EventHandler.
func (h *OnRewardsClaimedHandler) Handle(event shared.Event) error {
	claimed, ok := event.(shared.RewardsClaimedEvent)
	if !ok {
		h.logger.Warn("received non-RewardsClaimedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	h.totalHandled.Add(1)
	h.totalPointsSeen.Add(int64(claimed.PointsGranted))

	h.logger.Info("rewards claimed",
		"user_id", claimed.UserID,
		"group_id", claimed.GroupID,
		"achievement_id", claimed.AchievementID,
		"points_granted", claimed.PointsGranted,
		"reward_count", claimed.RewardCount,
	)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.CacheTimeout)
	defer cancel()

	key := shared.ProgressKey{
		UserID:  shared.UserID(claimed.UserID),
		GroupID: shared.GroupID(claimed.GroupID),
	}

	var firstErr error

	if h.config.InvalidateLeaderboard && h.leaderboardCache != nil {
		if err := h.leaderboardCache.Invalidate(ctx, key.GroupID); err != nil {
			h.logger.Warn("failed to invalidate leaderboard cache",
				"group_id", claimed.GroupID,
				"error", err,
			)
			firstErr = fmt.Errorf("invalidate leaderboard cache: %w", err)
		}
	}

	if h.config.InvalidateProfile && h.profileCache != nil {
		if err := h.profileCache.Invalidate(ctx, key); err != nil {
			h.logger.Warn("failed to invalidate profile cache",
				"user_id", claimed.UserID,
				"group_id", claimed.GroupID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("invalidate profile cache: %w", err)
			}
		}
	}

	return firstErr
}

// TotalHandled возвращает количество обработанных событий.
func (h *OnRewardsClaimedHandler) TotalHandled() int64 {
	return h.totalHandled.Load()
}

// TotalPointsSeen возвращает сумму очков по обработанным выдачам.
func (h *OnRewardsClaimedHandler) TotalPointsSeen() int64 {
	return h.totalPointsSeen.Load()
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnRewardsClaimedHandler) EventType() shared.EventType {
	return shared.EventRewardsClaimed
}
