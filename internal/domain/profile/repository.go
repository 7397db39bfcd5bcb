package profile

import (
	"context"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// RewardRecord - одна строка журнала выданных наград (append-only, аудит).
type RewardRecord struct {
	ID            string
	Key           shared.ProgressKey
	AchievementID string
	RewardType    string
	RewardID      string
	RewardName    string
	Value         int
	GrantedAt     time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища профилей.
type Repository interface {
	// Find возвращает профиль или shared.ErrNotFound.
	Find(ctx context.Context, key shared.ProgressKey) (*Profile, error)

	// FindOrCreate возвращает профиль, лениво создавая его при первом касании.
	FindOrCreate(ctx context.Context, key shared.ProgressKey) (*Profile, error)

	// Save сохраняет профиль (upsert по ключу).
	Save(ctx context.Context, profile *Profile) error

	// Top возвращает профили группы, отсортированные по метрике (по убыванию,
	// при равенстве - по уровню). Метрика задаётся именем колонки домена:
	// total_points, level, achievements_completed.
	Top(ctx context.Context, groupID shared.GroupID, metric string, limit int) ([]*Profile, error)
}

// RewardHistoryRepository определяет контракт журнала наград (append-only).
type RewardHistoryRepository interface {
	// Append дописывает строку журнала.
	Append(ctx context.Context, record RewardRecord) error

	// List возвращает страницу истории наград пары (user, group),
	// новые первыми.
	List(ctx context.Context, key shared.ProgressKey, page shared.Pagination) ([]RewardRecord, error)
}
