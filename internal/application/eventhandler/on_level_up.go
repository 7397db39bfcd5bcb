package eventhandler

import (
	"log/slog"
	"sync/atomic"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Обрабатывает повышение уровня профиля.
//
// Кэши к этому моменту уже сброшены обработчиком выдачи наград (уровень
// растёт только от начисленных очков), поэтому здесь остаётся логирование:
// обычные уровни — debug, юбилейные — info, чтобы операторы видели крупные
// вехи без шума.
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelUpHandler обрабатывает событие повышения уровня.
type OnLevelUpHandler struct {
	logger *slog.Logger
	config LevelUpConfig

	totalHandled atomic.Int64
}

// LevelUpConfig содержит конфигурацию обработчика.
type LevelUpConfig struct {
	// MilestoneLevels — уровни, о которых логируем на уровне info.
	MilestoneLevels []int
}

// DefaultLevelUpConfig возвращает конфигурацию по умолчанию.
func DefaultLevelUpConfig() LevelUpConfig {
	return LevelUpConfig{
		MilestoneLevels: []int{5, 10, 25, 50, 100},
	}
}

// NewOnLevelUpHandler создаёт новый обработчик повышения уровня.
func NewOnLevelUpHandler(logger *slog.Logger, config LevelUpConfig) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnLevelUpHandler{
		logger: logger.With("handler", "on_level_up"),
		config: config,
	}
}

// Handle обрабатывает событие повышения уровня.
// Реализует shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	levelUp, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	h.totalHandled.Add(1)

	attrs := []any{
		"user_id", levelUp.UserID,
		"group_id", levelUp.GroupID,
		"old_level", levelUp.OldLevel,
		"new_level", levelUp.NewLevel,
	}

	if h.isMilestone(levelUp.NewLevel) {
		h.logger.Info("milestone level reached", attrs...)
	} else {
		h.logger.Debug("level up", attrs...)
	}

	return nil
}

func (h *OnLevelUpHandler) isMilestone(level int) bool {
	for _, m := range h.config.MilestoneLevels {
		if level == m {
			return true
		}
	}
	return false
}

// TotalHandled возвращает количество обработанных событий.
func (h *OnLevelUpHandler) TotalHandled() int64 {
	return h.totalHandled.Load()
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnLevelUpHandler) EventType() shared.EventType {
	return shared.EventLevelUp
}
