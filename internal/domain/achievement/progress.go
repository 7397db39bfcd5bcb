package achievement

import (
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет стадию жизненного цикла достижения для пользователя.
// Переходы строго однонаправленные: LOCKED → IN_PROGRESS → COMPLETED → CLAIMED.
type Status string

const (
	// StatusLocked - достижение ещё не затронуто событиями.
	StatusLocked Status = "locked"
	// StatusInProgress - есть хотя бы одно обновление прогресса.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - все требования выполнены, награды доступны.
	StatusCompleted Status = "completed"
	// StatusClaimed - награды получены. Конечное состояние.
	StatusClaimed Status = "claimed"
)

// IsValid проверяет, что статус известен.
func (s Status) IsValid() bool {
	switch s {
	case StatusLocked, StatusInProgress, StatusCompleted, StatusClaimed:
		return true
	default:
		return false
	}
}

// order возвращает позицию статуса в жизненном цикле.
func (s Status) order() int {
	switch s {
	case StatusLocked:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	case StatusClaimed:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo проверяет допустимость перехода (только вперёд, без скачков
// назад; LOCKED может сразу перейти в COMPLETED через IN_PROGRESS в одном
// событии, но сам переход всегда записывается по шагам).
func (s Status) CanTransitionTo(next Status) bool {
	return next.order() == s.order()+1
}

// IsTerminal возвращает true для конечного состояния.
func (s Status) IsTerminal() bool {
	return s == StatusClaimed
}

// IsCompletedOrClaimed возвращает true, если достижение засчитано. Именно это
// условие используется при проверке предварительных условий.
func (s Status) IsCompletedOrClaimed() bool {
	return s == StatusCompleted || s == StatusClaimed
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Progress - запись прогресса пользователя по одному достижению в одной
// группе. Создаётся лениво при первом касании и никогда не удаляется.
type Progress struct {
	// Key - пара (пользователь, группа).
	Key shared.ProgressKey

	// AchievementID - идентификатор достижения из каталога.
	AchievementID string

	// Status - текущая стадия жизненного цикла.
	Status Status

	// Percentage - процент выполнения для отображения (0-100).
	Percentage float64

	// CurrentValues - накопленные значения по именам требований.
	CurrentValues map[string]float64

	// StartedAt - время первого обновления (nil, пока LOCKED).
	StartedAt *time.Time

	// CompletedAt - время завершения (nil до COMPLETED).
	CompletedAt *time.Time

	// ClaimedAt - время получения наград (nil до CLAIMED).
	ClaimedAt *time.Time

	// CreatedAt / UpdatedAt - служебные временные метки.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProgress создаёт новую запись прогресса в состоянии LOCKED.
func NewProgress(key shared.ProgressKey, achievementID string) *Progress {
	now := time.Now()
	return &Progress{
		Key:           key,
		AchievementID: achievementID,
		Status:        StatusLocked,
		CurrentValues: map[string]float64{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Value возвращает накопленное значение метрики (0, если не тронута).
func (p *Progress) Value(requirementType string) float64 {
	return p.CurrentValues[requirementType]
}

// SetValue перезаписывает значение метрики (семантика снимка).
func (p *Progress) SetValue(requirementType string, value float64) {
	if p.CurrentValues == nil {
		p.CurrentValues = map[string]float64{}
	}
	p.CurrentValues[requirementType] = value
	p.UpdatedAt = time.Now()
}

// Increment увеличивает счётчик метрики на 1 (семантика "_count").
func (p *Progress) Increment(requirementType string) {
	if p.CurrentValues == nil {
		p.CurrentValues = map[string]float64{}
	}
	p.CurrentValues[requirementType]++
	p.UpdatedAt = time.Now()
}

// Start переводит запись из LOCKED в IN_PROGRESS и фиксирует StartedAt.
// Повторный вызов на уже начатой записи - no-op.
func (p *Progress) Start() {
	if p.Status != StatusLocked {
		return
	}
	now := time.Now()
	p.Status = StatusInProgress
	p.StartedAt = &now
	p.UpdatedAt = now
}

// Complete переводит запись в COMPLETED. Возвращает ошибку при попытке
// завершить из недопустимого состояния.
func (p *Progress) Complete() error {
	switch p.Status {
	case StatusCompleted, StatusClaimed:
		return shared.ErrAlreadyCompleted
	case StatusLocked:
		// Событие может довести достижение от LOCKED до COMPLETED за один
		// шаг: проходим через IN_PROGRESS, чтобы сохранить инвариант
		// claimed_at ⇒ completed_at ⇒ started_at.
		p.Start()
	}
	now := time.Now()
	p.Status = StatusCompleted
	p.CompletedAt = &now
	p.Percentage = 100
	p.UpdatedAt = now
	return nil
}

// Claim переводит запись в CLAIMED. Возвращает типизированные ошибки:
// ErrNotCompleted для незавершённых записей, ErrAlreadyClaimed при повторе.
func (p *Progress) Claim() error {
	switch p.Status {
	case StatusClaimed:
		return shared.ErrAlreadyClaimed
	case StatusLocked, StatusInProgress:
		return shared.ErrNotCompleted
	}
	now := time.Now()
	p.Status = StatusClaimed
	p.ClaimedAt = &now
	p.UpdatedAt = now
	return nil
}

// RecalculatePercentage пересчитывает процент выполнения как среднее долей
// выполнения требований. Ровно 100 достигается только когда выполнены все.
func (p *Progress) RecalculatePercentage(a Achievement) {
	if len(a.Requirements) == 0 {
		return
	}
	var sum float64
	allMet := true
	for _, req := range a.Requirements {
		ratio := req.Ratio(p.Value(req.Type))
		if !req.Satisfied(p.Value(req.Type)) {
			allMet = false
		}
		sum += ratio
	}
	pct := sum / float64(len(a.Requirements)) * 100
	if pct >= 100 && !allMet {
		pct = 99
	}
	if pct > 100 {
		pct = 100
	}
	p.Percentage = pct
}
