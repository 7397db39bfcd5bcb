package achievement

import (
	"sort"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - неизменяемый набор достижений, загружаемый при старте.
// При загрузке проверяются уникальность ID, существование всех
// предварительных условий и отсутствие циклов в графе зависимостей.
type Catalog struct {
	byID  map[string]Achievement
	order []string
}

// NewCatalog строит каталог из списка достижений. Возвращает ошибку при
// нарушении любого инварианта каталога.
func NewCatalog(achievements []Achievement) (*Catalog, error) {
	byID := make(map[string]Achievement, len(achievements))
	order := make([]string, 0, len(achievements))

	for _, a := range achievements {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byID[a.ID]; exists {
			return nil, shared.WrapError("achievement", "LoadCatalog", shared.ErrAlreadyExists, "duplicate achievement ID: "+a.ID, nil)
		}
		if a.MaxProgress <= 0 {
			a.MaxProgress = 100
		}
		byID[a.ID] = a
		order = append(order, a.ID)
	}

	for _, a := range byID {
		for _, prereq := range a.Prerequisites {
			if _, ok := byID[prereq]; !ok {
				return nil, shared.WrapError("achievement", "LoadCatalog", shared.ErrInvalidEntity,
					"achievement "+a.ID+" references unknown prerequisite "+prereq, nil)
			}
		}
	}

	if err := detectCycles(byID); err != nil {
		return nil, err
	}

	return &Catalog{byID: byID, order: order}, nil
}

// detectCycles обходит граф предварительных условий в глубину и возвращает
// ошибку, если найден цикл. Взаимно зависимые достижения никогда не смогут
// завершиться, поэтому такой каталог отклоняется целиком.
func detectCycles(byID map[string]Achievement) error {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(byID))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case inStack:
			return shared.WrapError("achievement", "LoadCatalog", shared.ErrInvalidEntity,
				"prerequisite cycle detected at "+id, shared.ErrPrerequisiteCycle)
		case done:
			return nil
		}
		state[id] = inStack
		for _, prereq := range byID[id].Prerequisites {
			if err := visit(prereq); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	// Детерминированный порядок обхода для воспроизводимых сообщений.
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// Get возвращает достижение по ID.
func (c *Catalog) Get(id string) (Achievement, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// All возвращает все достижения в порядке объявления.
func (c *Catalog) All() []Achievement {
	result := make([]Achievement, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.byID[id])
	}
	return result
}

// ByCategory возвращает достижения заданной категории.
func (c *Catalog) ByCategory(category Category) []Achievement {
	var result []Achievement
	for _, id := range c.order {
		if c.byID[id].Category == category {
			result = append(result, c.byID[id])
		}
	}
	return result
}

// Size возвращает количество достижений в каталоге.
func (c *Catalog) Size() int {
	return len(c.byID)
}

// Dependents возвращает ID достижений, у которых данное достижение указано
// как предварительное условие. Используется при обработке синтетического
// события achievement_completed.
func (c *Catalog) Dependents(id string) []string {
	var result []string
	for _, candidate := range c.order {
		for _, prereq := range c.byID[candidate].Prerequisites {
			if prereq == id {
				result = append(result, candidate)
				break
			}
		}
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// SYSTEM CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// SystemAchievements возвращает встроенный набор достижений сообщества.
func SystemAchievements() []Achievement {
	return []Achievement{
		{
			ID:          "first_message",
			Name:        "Первые шаги",
			Description: "Отправьте первое сообщение в чат",
			Category:    CategorySocial,
			Difficulty:  DifficultyBronze,
			Requirements: []Requirement{
				{Type: "messages_count", Target: 1},
			},
			Rewards: []Reward{
				{Type: RewardPoints, ID: "welcome_points", Name: "Приветственные очки", Value: 10},
				{Type: RewardTitle, ID: "newcomer", Name: "Новичок"},
			},
			Icon: "💬",
		},
		{
			ID:          "active_chatter",
			Name:        "Активный болтун",
			Description: "Отправьте 100 сообщений в чат",
			Category:    CategorySocial,
			Difficulty:  DifficultySilver,
			Requirements: []Requirement{
				{Type: "messages_count", Target: 100},
			},
			Rewards: []Reward{
				{Type: RewardPoints, ID: "active_points", Name: "Очки активности", Value: 50},
				{Type: RewardBadge, ID: "chatter_badge", Name: "Значок болтуна"},
			},
			Icon: "🗣️",
		},
		{
			ID:          "passport_created",
			Name:        "Оформление документов",
			Description: "Создайте свой паспорт в системе",
			Category:    CategorySystemMastery,
			Difficulty:  DifficultyBronze,
			Requirements: []Requirement{
				{Type: "passport_created", Target: 1, Comparison: CompareEQ},
			},
			Rewards: []Reward{
				{Type: RewardPoints, ID: "passport_points", Name: "Очки за паспорт", Value: 25},
				{Type: RewardPrivilege, ID: "profile_access", Name: "Доступ к профилю"},
			},
			Icon: "📋",
		},
		{
			ID:          "player_bound",
			Name:        "Связь установлена",
			Description: "Привяжите игровой аккаунт",
			Category:    CategorySystemMastery,
			Difficulty:  DifficultySilver,
			Requirements: []Requirement{
				{Type: "player_bound", Target: 1, Comparison: CompareEQ},
			},
			Rewards: []Reward{
				{Type: RewardPoints, ID: "binding_points", Name: "Очки за привязку", Value: 40},
				{Type: RewardPrivilege, ID: "game_stats", Name: "Игровая статистика"},
			},
			Prerequisites: []string{"passport_created"},
			Icon:          "🎮",
		},
		{
			ID:          "clan_member",
			Name:        "Член семьи",
			Description: "Станьте участником клана",
			Category:    CategoryClanContribution,
			Difficulty:  DifficultySilver,
			Requirements: []Requirement{
				{Type: "clan_membership", Target: 1, Comparison: CompareEQ},
			},
			Rewards: []Reward{
				{Type: RewardPoints, ID: "clan_points", Name: "Клановые очки", Value: 30},
				{Type: RewardTitle, ID: "clan_member", Name: "Клановец"},
			},
			Icon: "🏰",
		},
		{
			ID:          "trophy_hunter",
			Name:        "Охотник за кубками",
			Description: "Наберите 3000+ кубков",
			Category:    CategoryGameProgress,
			Difficulty:  DifficultyGold,
			Requirements: []Requirement{
				{Type: "trophies", Target: 3000},
			},
			Rewards: []Reward{
				{Type: RewardPoints, ID: "trophy_points", Name: "Трофейные очки", Value: 75},
				{Type: RewardBadge, ID: "trophy_badge", Name: "Золотой кубок"},
			},
			Prerequisites: []string{"player_bound"},
			Icon:          "🏆",
		},
	}
}

// NewSystemCatalog строит каталог из встроенного набора.
func NewSystemCatalog() (*Catalog, error) {
	return NewCatalog(SystemAchievements())
}
