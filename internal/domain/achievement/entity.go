// Package achievement содержит доменную модель достижений: каталог,
// требования, награды и прогресс пользователей. Это ядро бизнес-логики -
// здесь нет внешних зависимостей.
package achievement

import (
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Category определяет категорию достижения.
type Category string

const (
	// CategorySocial - социальная активность (сообщения, общение).
	CategorySocial Category = "social"
	// CategoryGameProgress - игровой прогресс (кубки, уровень игрока).
	CategoryGameProgress Category = "game_progress"
	// CategoryClanContribution - вклад в клан (войны, донаты).
	CategoryClanContribution Category = "clan_contribution"
	// CategorySystemMastery - освоение системы (паспорт, привязка игрока).
	CategorySystemMastery Category = "system_mastery"
	// CategoryLeadership - лидерские роли в сообществе.
	CategoryLeadership Category = "leadership"
	// CategorySpecialEvents - специальные события.
	CategorySpecialEvents Category = "special_events"
	// CategoryMilestones - вехи долгосрочной активности.
	CategoryMilestones Category = "milestones"
)

// IsValid проверяет, что категория корректна.
func (c Category) IsValid() bool {
	switch c {
	case CategorySocial, CategoryGameProgress, CategoryClanContribution,
		CategorySystemMastery, CategoryLeadership, CategorySpecialEvents,
		CategoryMilestones:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление категории.
func (c Category) String() string {
	return string(c)
}

// AllCategories возвращает все известные категории.
func AllCategories() []Category {
	return []Category{
		CategorySocial, CategoryGameProgress, CategoryClanContribution,
		CategorySystemMastery, CategoryLeadership, CategorySpecialEvents,
		CategoryMilestones,
	}
}

// Difficulty определяет сложность достижения.
type Difficulty string

const (
	DifficultyBronze   Difficulty = "bronze"
	DifficultySilver   Difficulty = "silver"
	DifficultyGold     Difficulty = "gold"
	DifficultyPlatinum Difficulty = "platinum"
	DifficultyDiamond  Difficulty = "diamond"
)

// IsValid проверяет, что сложность корректна.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBronze, DifficultySilver, DifficultyGold,
		DifficultyPlatinum, DifficultyDiamond:
		return true
	default:
		return false
	}
}

// Order возвращает порядок сортировки сложности (bronze < diamond).
func (d Difficulty) Order() int {
	switch d {
	case DifficultyBronze:
		return 1
	case DifficultySilver:
		return 2
	case DifficultyGold:
		return 3
	case DifficultyPlatinum:
		return 4
	case DifficultyDiamond:
		return 5
	default:
		return 0
	}
}

// Comparison определяет оператор сравнения требования.
type Comparison string

const (
	CompareGTE Comparison = "gte"
	CompareGT  Comparison = "gt"
	CompareEQ  Comparison = "eq"
	CompareLTE Comparison = "lte"
	CompareLT  Comparison = "lt"
)

// IsValid проверяет, что оператор известен.
func (c Comparison) IsValid() bool {
	switch c {
	case CompareGTE, CompareGT, CompareEQ, CompareLTE, CompareLT:
		return true
	default:
		return false
	}
}

// Satisfied проверяет current против target по данному оператору.
func (c Comparison) Satisfied(current, target float64) bool {
	switch c {
	case CompareGTE:
		return current >= target
	case CompareGT:
		return current > target
	case CompareEQ:
		return current == target
	case CompareLTE:
		return current <= target
	case CompareLT:
		return current < target
	default:
		return false
	}
}

// RewardType определяет тип награды за достижение.
type RewardType string

const (
	RewardPoints    RewardType = "points"
	RewardTitle     RewardType = "title"
	RewardBadge     RewardType = "badge"
	RewardPrivilege RewardType = "privilege"
)

// IsValid проверяет, что тип награды известен.
func (r RewardType) IsValid() bool {
	switch r {
	case RewardPoints, RewardTitle, RewardBadge, RewardPrivilege:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUIREMENT
// ══════════════════════════════════════════════════════════════════════════════

// CounterSuffix - суффикс имени требования, означающий накопительный счётчик.
// Такие требования увеличиваются на 1 за событие; остальные перезаписываются
// последним снимком значения.
const CounterSuffix = "_count"

// Requirement описывает одно требование достижения: именованная метрика
// и целевое значение.
type Requirement struct {
	// Type - имя метрики (например, "messages_count", "trophies").
	Type string

	// Target - целевое значение метрики.
	Target float64

	// Comparison - оператор сравнения. По умолчанию gte.
	Comparison Comparison
}

// IsCounter возвращает true, если требование является счётчиком событий.
func (r Requirement) IsCounter() bool {
	return strings.HasSuffix(r.Type, CounterSuffix)
}

// Satisfied проверяет, выполнено ли требование при данном значении.
func (r Requirement) Satisfied(current float64) bool {
	return r.comparison().Satisfied(current, r.Target)
}

// Ratio возвращает долю выполнения требования (0.0-1.0). Для операторов
// eq/lt/lte доля бинарная: 0 или 1.
func (r Requirement) Ratio(current float64) float64 {
	switch r.comparison() {
	case CompareGTE, CompareGT:
		if r.Target <= 0 {
			if r.Satisfied(current) {
				return 1
			}
			return 0
		}
		ratio := current / r.Target
		if ratio > 1 {
			return 1
		}
		if ratio < 0 {
			return 0
		}
		return ratio
	default:
		if r.Satisfied(current) {
			return 1
		}
		return 0
	}
}

// Validate проверяет корректность требования.
func (r Requirement) Validate() error {
	if strings.TrimSpace(r.Type) == "" {
		return ErrEmptyRequirementType
	}
	if r.Comparison != "" && !r.Comparison.IsValid() {
		return ErrUnknownComparison
	}
	return nil
}

func (r Requirement) comparison() Comparison {
	if r.Comparison == "" {
		return CompareGTE
	}
	return r.Comparison
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD
// ══════════════════════════════════════════════════════════════════════════════

// Reward описывает одну награду достижения.
type Reward struct {
	// Type - тип награды (points/title/badge/privilege).
	Type RewardType

	// ID - идентификатор награды (например, "newcomer" для титула).
	ID string

	// Name - отображаемое имя награды.
	Name string

	// Value - числовое значение (используется только для points).
	Value int
}

// Validate проверяет корректность награды.
func (r Reward) Validate() error {
	if !r.Type.IsValid() {
		return ErrUnknownRewardType
	}
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyRewardID
	}
	if r.Type == RewardPoints && r.Value <= 0 {
		return ErrNonPositivePoints
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - неизменяемая запись каталога: именованная цель с набором
// требований, наград и предварительных условий.
type Achievement struct {
	// ID - глобально уникальный строковый идентификатор.
	ID string

	// Name - отображаемое имя достижения.
	Name string

	// Description - описание для пользователя.
	Description string

	// Category - категория достижения.
	Category Category

	// Difficulty - сложность достижения.
	Difficulty Difficulty

	// Requirements - упорядоченный список требований. Достижение завершено,
	// только когда выполнены все.
	Requirements []Requirement

	// Rewards - награды, выдаваемые при явном получении (claim).
	Rewards []Reward

	// Icon - эмодзи-иконка достижения.
	Icon string

	// Hidden - скрытое достижение (не показывается до завершения).
	Hidden bool

	// Prerequisites - ID достижений, которые должны быть завершены раньше.
	Prerequisites []string

	// MaxProgress - шкала для отображения процента (по умолчанию 100).
	MaxProgress int
}

// Validate проверяет инварианты записи каталога.
func (a Achievement) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyAchievementID
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyAchievementName
	}
	if !a.Category.IsValid() {
		return ErrUnknownCategory
	}
	if !a.Difficulty.IsValid() {
		return ErrUnknownDifficulty
	}
	if len(a.Requirements) == 0 {
		return ErrNoRequirements
	}
	for _, req := range a.Requirements {
		if err := req.Validate(); err != nil {
			return err
		}
	}
	for _, reward := range a.Rewards {
		if err := reward.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RequirementTypes возвращает множество имён метрик достижения.
func (a Achievement) RequirementTypes() map[string]struct{} {
	types := make(map[string]struct{}, len(a.Requirements))
	for _, req := range a.Requirements {
		types[req.Type] = struct{}{}
	}
	return types
}

// PointsValue возвращает суммарное количество очков среди наград.
func (a Achievement) PointsValue() int {
	total := 0
	for _, reward := range a.Rewards {
		if reward.Type == RewardPoints {
			total += reward.Value
		}
	}
	return total
}

// HasPrerequisites возвращает true, если есть предварительные условия.
func (a Achievement) HasPrerequisites() bool {
	return len(a.Prerequisites) > 0
}
