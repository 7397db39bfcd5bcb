package query

import (
	"context"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/leaderboard"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Возвращает топ-N пользователей группы по выбранной метрике. Чтение идёт
// сначала из кэша; при его недоступности или промахе - из основного
// хранилища с дозаполнением кэша.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса таблицы лидеров.
type GetLeaderboardQuery struct {
	// GroupID - группа.
	GroupID shared.GroupID

	// Metric - метрика ранжирования (пустая строка = total_points).
	Metric string

	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int

	// ForUserID - если задан, в ответ включается позиция этого пользователя,
	// даже когда он не попал в топ.
	ForUserID shared.UserID
}

// Validate проверяет и нормализует параметры запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if !q.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	if q.Limit < 0 {
		return shared.NewDomainError("query", "GetLeaderboard", shared.ErrValidation, "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// LeaderboardEntryDTO - строка таблицы лидеров.
type LeaderboardEntryDTO struct {
	// Rank - позиция (начиная с 1).
	Rank int `json:"rank"`

	// Medal - медаль для первых трёх мест (пустая строка дальше).
	Medal string `json:"medal,omitempty"`

	// UserID - пользователь.
	UserID int64 `json:"user_id"`

	// Score - значение выбранной метрики.
	Score float64 `json:"score"`

	// Level, TotalPoints, AchievementsCompleted - сопутствующие показатели.
	Level                 int `json:"level"`
	TotalPoints           int `json:"total_points"`
	AchievementsCompleted int `json:"achievements_completed"`
}

// GetLeaderboardResult содержит результат запроса.
type GetLeaderboardResult struct {
	// Entries - ранжированные строки.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// Metric - применённая метрика.
	Metric string `json:"metric"`

	// RequesterRank - позиция запросившего пользователя (0, если не
	// запрашивалась или пользователь не ранжирован).
	RequesterRank int `json:"requester_rank,omitempty"`

	// FromCache - ответ собран из кэша.
	FromCache bool `json:"from_cache"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запрос таблицы лидеров.
type GetLeaderboardHandler struct {
	repo  leaderboard.Repository
	cache leaderboard.Cache
}

// NewGetLeaderboardHandler создаёт новый обработчик.
func NewGetLeaderboardHandler(repo leaderboard.Repository, cache leaderboard.Cache) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{repo: repo, cache: cache}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	metric, err := leaderboard.ParseMetric(query.Metric)
	if err != nil {
		return nil, err
	}

	entries, fromCache := h.load(ctx, query.GroupID, metric, query.Limit)

	result := &GetLeaderboardResult{
		Metric:      metric.String(),
		FromCache:   fromCache,
		GeneratedAt: time.Now().UTC(),
		Entries:     make([]LeaderboardEntryDTO, 0, len(entries)),
	}

	for _, e := range entries {
		result.Entries = append(result.Entries, LeaderboardEntryDTO{
			Rank:                  e.Rank.Int(),
			Medal:                 e.Rank.Medal(),
			UserID:                e.UserID.Int64(),
			Score:                 e.Score,
			Level:                 e.Level,
			TotalPoints:           e.TotalPoints,
			AchievementsCompleted: e.AchievementsCompleted,
		})
	}

	if query.ForUserID.IsValid() {
		key := shared.ProgressKey{UserID: query.ForUserID, GroupID: query.GroupID}
		if rank, err := h.repo.RankOf(ctx, key, metric); err == nil {
			result.RequesterRank = rank.Int()
		}
	}

	return result, nil
}

// load читает кэш, при промахе - хранилище, и дозаполняет кэш.
func (h *GetLeaderboardHandler) load(ctx context.Context, groupID shared.GroupID, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, bool) {
	if h.cache != nil {
		if entries, err := h.cache.GetTop(ctx, groupID, metric, limit); err == nil && len(entries) > 0 {
			return entries, true
		}
	}

	entries, err := h.repo.Top(ctx, groupID, metric, limit)
	if err != nil {
		return nil, false
	}

	if h.cache != nil && len(entries) > 0 {
		// Промах кэша не критичен, ошибка записи - тем более.
		_ = h.cache.SetTop(ctx, groupID, metric, entries)
	}

	return entries, false
}
