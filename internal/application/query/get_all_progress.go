package query

import (
	"context"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ALL PROGRESS QUERY
// Возвращает прогресс пользователя по всему каталогу в порядке каталога.
// Скрытые достижения не показываются, пока не затронуты событиями.
// ══════════════════════════════════════════════════════════════════════════════

// GetAllProgressQuery содержит параметры запроса.
type GetAllProgressQuery struct {
	// UserID - пользователь.
	UserID shared.UserID

	// GroupID - группа.
	GroupID shared.GroupID

	// Category - фильтр по категории (пустая строка = все).
	Category string

	// IncludeHidden - показывать скрытые достижения даже без прогресса.
	IncludeHidden bool
}

// Validate проверяет корректность параметров запроса.
func (q GetAllProgressQuery) Validate() error {
	if !q.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !q.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	return nil
}

// GetAllProgressResult содержит снимки прогресса по каталогу.
type GetAllProgressResult struct {
	// Achievements - снимки в порядке каталога.
	Achievements []ProgressDTO `json:"achievements"`

	// CompletedCount / ClaimedCount - сводные счётчики.
	CompletedCount int `json:"completed_count"`
	ClaimedCount   int `json:"claimed_count"`

	// TotalVisible - сколько достижений показано.
	TotalVisible int `json:"total_visible"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetAllProgressHandler обрабатывает запрос.
type GetAllProgressHandler struct {
	catalog      *achievement.Catalog
	progressRepo achievement.ProgressRepository
}

// NewGetAllProgressHandler создаёт новый обработчик.
func NewGetAllProgressHandler(catalog *achievement.Catalog, progressRepo achievement.ProgressRepository) *GetAllProgressHandler {
	return &GetAllProgressHandler{catalog: catalog, progressRepo: progressRepo}
}

// Handle выполняет запрос. Каталожные достижения без записи прогресса
// показываются как LOCKED.
func (h *GetAllProgressHandler) Handle(ctx context.Context, query GetAllProgressQuery) (*GetAllProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	key := shared.ProgressKey{UserID: query.UserID, GroupID: query.GroupID}
	records, err := h.progressRepo.FindAll(ctx, key)
	if err != nil {
		return nil, shared.WrapError("query", "GetAllProgress", shared.ErrStorage, "failed to load progress", err)
	}

	result := &GetAllProgressResult{GeneratedAt: time.Now().UTC()}

	for _, a := range h.catalog.All() {
		if query.Category != "" && string(a.Category) != query.Category {
			continue
		}

		p, touched := records[a.ID]
		if p == nil {
			p = achievement.NewProgress(key, a.ID)
		}

		// Скрытое достижение остаётся сюрпризом, пока его не затронули.
		if a.Hidden && !query.IncludeHidden && (!touched || p.Status == achievement.StatusLocked) {
			continue
		}

		result.Achievements = append(result.Achievements, buildProgressDTO(a, p))
		switch p.Status {
		case achievement.StatusCompleted:
			result.CompletedCount++
		case achievement.StatusClaimed:
			result.ClaimedCount++
		}
	}

	result.TotalVisible = len(result.Achievements)
	return result, nil
}
