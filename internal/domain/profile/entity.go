// Package profile содержит доменную модель профиля пользователя: очки,
// уровень, титулы, значки и привилегии. Профиль создаётся лениво при первой
// активности и никогда не удаляется.
package profile

import (
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile - агрегат очков и наград пользователя в одной группе.
type Profile struct {
	// Key - пара (пользователь, группа).
	Key shared.ProgressKey

	// TotalPoints - суммарные очки за все полученные награды.
	TotalPoints shared.Points

	// Level - уровень, выводимый из очков опыта.
	Level shared.Level

	// ExperiencePoints - очки опыта для расчёта уровня.
	ExperiencePoints int

	// Titles, Badges, Privileges - идемпотентные множества идентификаторов.
	Titles     map[string]struct{}
	Badges     map[string]struct{}
	Privileges map[string]struct{}

	// AchievementsCompleted / AchievementsClaimed - монотонные счётчики.
	AchievementsCompleted int
	AchievementsClaimed   int

	// JoinedAt - момент создания профиля.
	JoinedAt time.Time

	// LastAchievementAt - момент последнего получения наград (nil, если
	// награды ещё не получались).
	LastAchievementAt *time.Time
}

// NewProfile создаёт новый профиль первого уровня.
func NewProfile(key shared.ProgressKey) *Profile {
	return &Profile{
		Key:        key,
		Level:      shared.MinLevel,
		Titles:     map[string]struct{}{},
		Badges:     map[string]struct{}{},
		Privileges: map[string]struct{}{},
		JoinedAt:   time.Now(),
	}
}

// AddPoints начисляет очки: растут и общий счёт, и опыт, после чего профиль
// повышается в уровне, пока опыта хватает на следующий порог.
// Возвращает (старый уровень, новый уровень).
func (p *Profile) AddPoints(amount int) (shared.Level, shared.Level) {
	if amount <= 0 {
		return p.Level, p.Level
	}
	p.TotalPoints = p.TotalPoints.Add(amount)
	p.ExperiencePoints += amount

	oldLevel := p.Level
	for p.Level < shared.MaxLevel && p.ExperiencePoints >= p.Level.Next().RequiredExperience() {
		p.Level = p.Level.Next()
	}
	return oldLevel, p.Level
}

// AddTitle добавляет титул. Повторное добавление - no-op.
func (p *Profile) AddTitle(id string) {
	if p.Titles == nil {
		p.Titles = map[string]struct{}{}
	}
	p.Titles[id] = struct{}{}
}

// AddBadge добавляет значок. Повторное добавление - no-op.
func (p *Profile) AddBadge(id string) {
	if p.Badges == nil {
		p.Badges = map[string]struct{}{}
	}
	p.Badges[id] = struct{}{}
}

// AddPrivilege добавляет привилегию. Повторное добавление - no-op.
func (p *Profile) AddPrivilege(id string) {
	if p.Privileges == nil {
		p.Privileges = map[string]struct{}{}
	}
	p.Privileges[id] = struct{}{}
}

// HasPrivilege проверяет наличие привилегии.
func (p *Profile) HasPrivilege(id string) bool {
	_, ok := p.Privileges[id]
	return ok
}

// MarkCompleted увеличивает счётчик завершённых достижений.
func (p *Profile) MarkCompleted() {
	p.AchievementsCompleted++
}

// MarkClaimed увеличивает счётчик полученных наград и фиксирует момент.
func (p *Profile) MarkClaimed() {
	p.AchievementsClaimed++
	now := time.Now()
	p.LastAchievementAt = &now
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// LevelProgress описывает продвижение к следующему уровню.
type LevelProgress struct {
	CurrentLevel shared.Level `json:"current_level"`
	NextLevel    shared.Level `json:"next_level"`
	CurrentExp   int          `json:"current_exp"`
	NeededExp    int          `json:"needed_exp"`
	Percentage   float64      `json:"percentage"`
	TotalExp     int          `json:"total_exp"`
}

// ProgressToNextLevel возвращает долю опыта, набранную внутри текущего
// уровня, относительно порога следующего.
func (p *Profile) ProgressToNextLevel() LevelProgress {
	currentThreshold := p.Level.RequiredExperience()
	nextThreshold := p.Level.Next().RequiredExperience()

	earned := p.ExperiencePoints - currentThreshold
	needed := nextThreshold - currentThreshold

	pct := 100.0
	if needed > 0 {
		pct = float64(earned) / float64(needed) * 100
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
	}

	return LevelProgress{
		CurrentLevel: p.Level,
		NextLevel:    p.Level.Next(),
		CurrentExp:   earned,
		NeededExp:    needed,
		Percentage:   pct,
		TotalExp:     p.ExperiencePoints,
	}
}

// TitleList возвращает титулы срезом (для сериализации).
func (p *Profile) TitleList() []string { return setToSlice(p.Titles) }

// BadgeList возвращает значки срезом.
func (p *Profile) BadgeList() []string { return setToSlice(p.Badges) }

// PrivilegeList возвращает привилегии срезом.
func (p *Profile) PrivilegeList() []string { return setToSlice(p.Privileges) }

func setToSlice(set map[string]struct{}) []string {
	result := make([]string, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	return result
}

// SetFromSlice строит идемпотентное множество из среза.
func SetFromSlice(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
