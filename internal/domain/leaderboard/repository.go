package leaderboard

import (
	"context"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// Repository определяет контракт читающего хранилища таблицы лидеров.
type Repository interface {
	// Top возвращает ранжированные строки группы по метрике.
	Top(ctx context.Context, groupID shared.GroupID, metric Metric, limit int) ([]Entry, error)

	// RankOf возвращает позицию пользователя в группе по метрике
	// (shared.Unranked, если профиля нет).
	RankOf(ctx context.Context, key shared.ProgressKey, metric Metric) (shared.Rank, error)
}

// Cache определяет контракт кэша таблицы лидеров. Кэш опционален: любое
// чтение при его недоступности деградирует к основному хранилищу.
type Cache interface {
	// GetTop возвращает закэшированные строки или shared.ErrNotFound.
	GetTop(ctx context.Context, groupID shared.GroupID, metric Metric, limit int) ([]Entry, error)

	// SetTop перезаписывает кэш группы по метрике.
	SetTop(ctx context.Context, groupID shared.GroupID, metric Metric, entries []Entry) error

	// Invalidate сбрасывает кэш группы по всем метрикам.
	Invalidate(ctx context.Context, groupID shared.GroupID) error
}
