// Package leaderboard содержит модель таблицы лидеров: чистое читающее
// представление профилей, ранжированных по выбранной метрике.
package leaderboard

import (
	"sort"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRIC
// ══════════════════════════════════════════════════════════════════════════════

// Metric определяет метрику ранжирования.
type Metric string

const (
	// MetricTotalPoints - по суммарным очкам (метрика по умолчанию).
	MetricTotalPoints Metric = "total_points"
	// MetricLevel - по уровню.
	MetricLevel Metric = "level"
	// MetricAchievements - по числу завершённых достижений.
	MetricAchievements Metric = "achievements_completed"
)

// IsValid проверяет, что метрика известна.
func (m Metric) IsValid() bool {
	switch m {
	case MetricTotalPoints, MetricLevel, MetricAchievements:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление метрики.
func (m Metric) String() string {
	return string(m)
}

// ParseMetric разбирает метрику из строки; пустая строка означает метрику
// по умолчанию.
func ParseMetric(s string) (Metric, error) {
	if s == "" {
		return MetricTotalPoints, nil
	}
	m := Metric(s)
	if !m.IsValid() {
		return "", shared.ErrInvalidMetric
	}
	return m, nil
}

// AllMetrics возвращает все метрики ранжирования.
func AllMetrics() []Metric {
	return []Metric{MetricTotalPoints, MetricLevel, MetricAchievements}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - одна строка таблицы лидеров.
type Entry struct {
	UserID                shared.UserID  `json:"user_id"`
	GroupID               shared.GroupID `json:"group_id"`
	Rank                  shared.Rank    `json:"rank"`
	Score                 float64        `json:"score"`
	Level                 int            `json:"level"`
	TotalPoints           int            `json:"total_points"`
	AchievementsCompleted int            `json:"achievements_completed"`
}

// AssignRanks проставляет плотные ранги (1-based) по убыванию счёта; при
// равенстве счёта выше тот, у кого выше уровень. Записи, совпавшие и по
// счёту, и по уровню, делят один ранг, а следующая отличная запись получает
// ранг на единицу больше - без пропусков.
func AssignRanks(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Level > entries[j].Level
	})
	rank := shared.Rank(0)
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score || entries[i].Level != entries[i-1].Level {
			rank++
		}
		entries[i].Rank = rank
	}
	return entries
}
