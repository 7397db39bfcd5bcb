package query

import (
	"context"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUMMARY QUERY
// Агрегированная сводка пользователя: счётчики по статусам, разбивка по
// категориям каталога и продвижение по уровню - всё в одном ответе.
// ══════════════════════════════════════════════════════════════════════════════

// GetSummaryQuery содержит параметры запроса сводки.
type GetSummaryQuery struct {
	// UserID - пользователь.
	UserID shared.UserID

	// GroupID - группа.
	GroupID shared.GroupID
}

// Validate проверяет корректность параметров запроса.
func (q GetSummaryQuery) Validate() error {
	if !q.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !q.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	return nil
}

// CategoryStatsDTO - статистика одной категории каталога.
type CategoryStatsDTO struct {
	// Category - имя категории.
	Category string `json:"category"`

	// Total - сколько достижений в категории.
	Total int `json:"total"`

	// Completed - сколько завершено или получено.
	Completed int `json:"completed"`

	// InProgress - сколько начато, но не завершено.
	InProgress int `json:"in_progress"`
}

// SummaryDTO - агрегированная сводка.
type SummaryDTO struct {
	UserID  int64 `json:"user_id"`
	GroupID int64 `json:"group_id"`

	// TotalAchievements - размер каталога.
	TotalAchievements int `json:"total_achievements"`

	// Locked/InProgress/Completed/Claimed - счётчики по статусам.
	// Достижения без записи прогресса считаются LOCKED.
	Locked     int `json:"locked"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Claimed    int `json:"claimed"`

	// Claimable - завершено, но не получено: столько наград ждут.
	Claimable int `json:"claimable"`

	// CompletionRate - доля засчитанных достижений (0-100).
	CompletionRate float64 `json:"completion_rate"`

	// Categories - разбивка по категориям в порядке каталога.
	Categories []CategoryStatsDTO `json:"categories"`

	// TotalPoints и Level - из профиля.
	TotalPoints int `json:"total_points"`
	Level       int `json:"level"`

	// LevelProgress - продвижение к следующему уровню.
	LevelProgress LevelProgressDTO `json:"level_progress"`

	// GeneratedAt - время генерации сводки.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetSummaryHandler обрабатывает запрос сводки.
type GetSummaryHandler struct {
	catalog      *achievement.Catalog
	progressRepo achievement.ProgressRepository
	profileRepo  profile.Repository
}

// NewGetSummaryHandler создаёт новый обработчик.
func NewGetSummaryHandler(
	catalog *achievement.Catalog,
	progressRepo achievement.ProgressRepository,
	profileRepo profile.Repository,
) *GetSummaryHandler {
	return &GetSummaryHandler{
		catalog:      catalog,
		progressRepo: progressRepo,
		profileRepo:  profileRepo,
	}
}

// Handle выполняет запрос.
func (h *GetSummaryHandler) Handle(ctx context.Context, query GetSummaryQuery) (*SummaryDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	key := shared.ProgressKey{UserID: query.UserID, GroupID: query.GroupID}
	records, err := h.progressRepo.FindAll(ctx, key)
	if err != nil {
		return nil, shared.WrapError("query", "GetSummary", shared.ErrStorage, "failed to load progress", err)
	}

	prof, err := h.profileRepo.Find(ctx, key)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, shared.WrapError("query", "GetSummary", shared.ErrStorage, "failed to load profile", err)
		}
		prof = profile.NewProfile(key)
	}

	summary := &SummaryDTO{
		UserID:            key.UserID.Int64(),
		GroupID:           key.GroupID.Int64(),
		TotalAchievements: h.catalog.Size(),
		TotalPoints:       prof.TotalPoints.Int(),
		Level:             prof.Level.Int(),
		GeneratedAt:       time.Now().UTC(),
	}

	lp := prof.ProgressToNextLevel()
	summary.LevelProgress = LevelProgressDTO{
		CurrentLevel: lp.CurrentLevel.Int(),
		NextLevel:    lp.NextLevel.Int(),
		CurrentExp:   lp.CurrentExp,
		NeededExp:    lp.NeededExp,
		Percentage:   lp.Percentage,
	}

	categoryIndex := map[achievement.Category]*CategoryStatsDTO{}
	var categoryOrder []achievement.Category

	for _, a := range h.catalog.All() {
		stats, ok := categoryIndex[a.Category]
		if !ok {
			categoryOrder = append(categoryOrder, a.Category)
			stats = &CategoryStatsDTO{Category: string(a.Category)}
			categoryIndex[a.Category] = stats
		}
		stats.Total++

		status := achievement.StatusLocked
		if p, touched := records[a.ID]; touched {
			status = p.Status
		}

		switch status {
		case achievement.StatusLocked:
			summary.Locked++
		case achievement.StatusInProgress:
			summary.InProgress++
			stats.InProgress++
		case achievement.StatusCompleted:
			summary.Completed++
			summary.Claimable++
			stats.Completed++
		case achievement.StatusClaimed:
			summary.Claimed++
			stats.Completed++
		}
	}

	if summary.TotalAchievements > 0 {
		summary.CompletionRate = float64(summary.Completed+summary.Claimed) / float64(summary.TotalAchievements) * 100
	}

	summary.Categories = make([]CategoryStatsDTO, 0, len(categoryOrder))
	for _, category := range categoryOrder {
		summary.Categories = append(summary.Categories, *categoryIndex[category])
	}

	return summary, nil
}
