package achievement

import (
	"context"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository определяет контракт хранилища прогресса.
// Реализация обязана обеспечивать уникальность (user, group, achievement).
type ProgressRepository interface {
	// Find возвращает запись прогресса или shared.ErrNotFound.
	Find(ctx context.Context, key shared.ProgressKey, achievementID string) (*Progress, error)

	// FindOrCreate возвращает запись прогресса, лениво создавая её в LOCKED
	// при первом касании.
	FindOrCreate(ctx context.Context, key shared.ProgressKey, achievementID string) (*Progress, error)

	// FindAll возвращает все записи прогресса пары (user, group),
	// индексированные по ID достижения.
	FindAll(ctx context.Context, key shared.ProgressKey) (map[string]*Progress, error)

	// Save сохраняет запись (upsert по составному ключу). Запись в статусе
	// CLAIMED нельзя перевести назад: такой upsert ничего не меняет.
	Save(ctx context.Context, progress *Progress) error

	// Claim атомарно переводит запись из COMPLETED в CLAIMED: проверка
	// статуса и переход выполняются одной операцией хранилища, поэтому из
	// двух конкурентных заявок пройдёт ровно одна. Возвращает
	// shared.ErrAlreadyClaimed для уже заявленной записи,
	// shared.ErrNotCompleted для незавершённой и shared.ErrNotFound для
	// отсутствующей.
	Claim(ctx context.Context, key shared.ProgressKey, achievementID string, claimedAt time.Time) error

	// StatusOf возвращает статусы перечисленных достижений для пары
	// (user, group). Отсутствующие записи считаются LOCKED.
	StatusOf(ctx context.Context, key shared.ProgressKey, achievementIDs []string) (map[string]Status, error)

	// CountByStatus возвращает количество записей по каждому статусу.
	CountByStatus(ctx context.Context, key shared.ProgressKey) (map[Status]int, error)
}

// CatalogRepository определяет контракт хранилища каталога достижений.
// Каталог записывается при старте и читается для восстановления.
type CatalogRepository interface {
	// SaveAll записывает (upsert) все записи каталога.
	SaveAll(ctx context.Context, achievements []Achievement) error

	// LoadAll читает каталог из хранилища.
	LoadAll(ctx context.Context) ([]Achievement, error)
}

// EventLogRepository определяет контракт журнала событий (append-only).
// Журнал используется для отладки и переигрывания, не для оценки правил.
type EventLogRepository interface {
	// Append дописывает событие в журнал.
	Append(ctx context.Context, envelope shared.Envelope) error

	// ListRecent возвращает последние события пары (user, group).
	ListRecent(ctx context.Context, key shared.ProgressKey, limit int) ([]shared.Envelope, error)
}
