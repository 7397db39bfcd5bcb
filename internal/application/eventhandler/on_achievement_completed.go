// Package eventhandler содержит обработчики доменных событий движка.
//
// Обработчики подписываются на шину событий и выполняют побочные эффекты,
// которые не должны блокировать конвейер оценки: сброс кэшей, логирование
// заметных моментов. Каждый обработчик терпим к частичным сбоям — ошибка
// сброса кэша не отменяет само событие.
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
// ON ACHIEVEMENT COMPLETED HANDLER
// Обрабатывает завершение достижения.
//
// Ключевые функции:
// 1. Сброс кэша профиля — чтобы история завершений была видна сразу
// 2. Логирование завершения для операторов
//
// Синтетический achievement_completed в очередь кладёт диспетчер, а не этот
// обработчик: здесь только побочные эффекты чтения.
// ═══════════════════════════════════════════════════════════════════════════

// ProfileInvalidator сбрасывает закэшированный профиль пользователя.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, key shared.ProgressKey) error
}

// OnAchievementCompletedHandler обрабатывает событие завершения достижения.
type OnAchievementCompletedHandler struct {
	profileCache ProfileInvalidator
	logger       *slog.Logger
	config       AchievementCompletedConfig

	totalHandled atomic.Int64
}

// AchievementCompletedConfig содержит конфигурацию обработчика.
type AchievementCompletedConfig struct {
	// InvalidateProfile — сбрасывать ли кэш профиля при завершении.
	InvalidateProfile bool

	// CacheTimeout — таймаут на операции с кэшем.
	CacheTimeout time.Duration
}

// DefaultAchievementCompletedConfig возвращает конфигурацию по умолчанию.
func DefaultAchievementCompletedConfig() AchievementCompletedConfig {
	return AchievementCompletedConfig{
		InvalidateProfile: true,
		CacheTimeout:      2 * time.Second,
	}
}

// NewOnAchievementCompletedHandler создаёт новый обработчик.
// profileCache может быть nil — тогда сброс кэша пропускается.
func NewOnAchievementCompletedHandler(
	profileCache ProfileInvalidator,
	logger *slog.Logger,
	config AchievementCompletedConfig,
) *OnAchievementCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnAchievementCompletedHandler{
		profileCache: profileCache,
		logger:       logger.With("handler", "on_achievement_completed"),
		config:       config,
	}
}

// Handle обрабатывает событие завершения достижения.
// Реализует shared.EventHandler.
func (h *OnAchievementCompletedHandler) Handle(event shared.Event) error {
	completed, ok := event.(shared.AchievementCompletedEvent)
	if !ok {
		h.logger.Warn("received non-AchievementCompletedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	h.totalHandled.Add(1)

	h.logger.Info("achievement completed",
		"user_id", completed.UserID,
		"group_id", completed.GroupID,
		"achievement_id", completed.AchievementID,
		"achievement_name", completed.AchievementName,
	)

	if h.config.InvalidateProfile && h.profileCache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.config.CacheTimeout)
		defer cancel()

		key := shared.ProgressKey{
			UserID:  shared.UserID(completed.UserID),
			GroupID: shared.GroupID(completed.GroupID),
		}
		if err := h.profileCache.Invalidate(ctx, key); err != nil {
			// Кэш протухнет сам по TTL, событие не отменяем.
			h.logger.Warn("failed to invalidate profile cache",
				"user_id", completed.UserID,
				"group_id", completed.GroupID,
				"error", err,
			)
			return fmt.Errorf("invalidate profile cache: %w", err)
		}
	}

	return nil
}

// TotalHandled возвращает количество обработанных событий.
func (h *OnAchievementCompletedHandler) TotalHandled() int64 {
	return h.totalHandled.Load()
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnAchievementCompletedHandler) EventType() shared.EventType {
	return shared.EventAchievementCompleted
}
