// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Возвращает прогресс одного достижения для пары (пользователь, группа).
// Отсутствующая запись означает LOCKED с нулевым прогрессом.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery содержит параметры запроса прогресса.
type GetProgressQuery struct {
	// UserID - пользователь.
	UserID shared.UserID

	// GroupID - группа.
	GroupID shared.GroupID

	// AchievementID - достижение из каталога.
	AchievementID string
}

// Validate проверяет корректность параметров запроса.
func (q GetProgressQuery) Validate() error {
	if !q.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !q.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	if q.AchievementID == "" {
		return shared.NewDomainError("query", "GetProgress", shared.ErrValidation, "achievement ID is required")
	}
	return nil
}

// RequirementProgressDTO - прогресс одного требования.
type RequirementProgressDTO struct {
	// Type - имя поля требования.
	Type string `json:"type"`

	// Current - текущее накопленное значение.
	Current float64 `json:"current"`

	// Target - целевое значение.
	Target float64 `json:"target"`

	// Comparison - оператор сравнения.
	Comparison string `json:"comparison"`

	// Satisfied - выполнено ли требование.
	Satisfied bool `json:"satisfied"`
}

// ProgressDTO - полный снимок прогресса достижения.
type ProgressDTO struct {
	// AchievementID - идентификатор достижения.
	AchievementID string `json:"achievement_id"`

	// Name, Description, Icon - данные каталога для отображения.
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`

	// Category и Difficulty - классификация из каталога.
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`

	// Status - текущий статус жизненного цикла.
	Status string `json:"status"`

	// Percentage - процент выполнения (0-100).
	Percentage float64 `json:"percentage"`

	// Requirements - прогресс по каждому требованию.
	Requirements []RequirementProgressDTO `json:"requirements"`

	// Prerequisites - достижения, которые должны быть завершены раньше.
	Prerequisites []string `json:"prerequisites,omitempty"`

	// Claimable - можно ли забрать награды прямо сейчас.
	Claimable bool `json:"claimable"`

	// StartedAt, CompletedAt, ClaimedAt - временные отметки переходов.
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
}

// GetProgressHandler обрабатывает запрос прогресса.
type GetProgressHandler struct {
	catalog      *achievement.Catalog
	progressRepo achievement.ProgressRepository
}

// NewGetProgressHandler создаёт новый обработчик.
func NewGetProgressHandler(catalog *achievement.Catalog, progressRepo achievement.ProgressRepository) *GetProgressHandler {
	return &GetProgressHandler{catalog: catalog, progressRepo: progressRepo}
}

// Handle выполняет запрос. Для достижения без записи прогресса возвращается
// снимок со статусом LOCKED.
func (h *GetProgressHandler) Handle(ctx context.Context, query GetProgressQuery) (*ProgressDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	a, ok := h.catalog.Get(query.AchievementID)
	if !ok {
		return nil, shared.ErrAchievementNotFound
	}

	key := shared.ProgressKey{UserID: query.UserID, GroupID: query.GroupID}
	p, err := h.progressRepo.Find(ctx, key, query.AchievementID)
	if err != nil {
		if shared.IsNotFound(err) {
			p = achievement.NewProgress(key, query.AchievementID)
		} else {
			return nil, shared.WrapError("query", "GetProgress", shared.ErrStorage, "failed to load progress", err)
		}
	}

	dto := buildProgressDTO(a, p)
	return &dto, nil
}

// buildProgressDTO собирает снимок из данных каталога и записи прогресса.
func buildProgressDTO(a achievement.Achievement, p *achievement.Progress) ProgressDTO {
	requirements := make([]RequirementProgressDTO, 0, len(a.Requirements))
	for _, req := range a.Requirements {
		current := p.Value(req.Type)
		requirements = append(requirements, RequirementProgressDTO{
			Type:       req.Type,
			Current:    current,
			Target:     req.Target,
			Comparison: string(req.Comparison),
			Satisfied:  req.Satisfied(current),
		})
	}

	return ProgressDTO{
		AchievementID: a.ID,
		Name:          a.Name,
		Description:   a.Description,
		Icon:          a.Icon,
		Category:      string(a.Category),
		Difficulty:    string(a.Difficulty),
		Status:        string(p.Status),
		Percentage:    p.Percentage,
		Requirements:  requirements,
		Prerequisites: a.Prerequisites,
		Claimable:     p.Status == achievement.StatusCompleted,
		StartedAt:     p.StartedAt,
		CompletedAt:   p.CompletedAt,
		ClaimedAt:     p.ClaimedAt,
	}
}
