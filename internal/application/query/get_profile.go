package query

import (
	"context"
	"sort"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// Возвращает профиль пользователя: очки, уровень, продвижение к следующему
// уровню и полученные награды. Для пользователя без активности возвращается
// свежий профиль первого уровня.
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery содержит параметры запроса профиля.
type GetProfileQuery struct {
	// UserID - пользователь.
	UserID shared.UserID

	// GroupID - группа.
	GroupID shared.GroupID

	// HistoryLimit - сколько последних записей истории наград включить
	// (0 = не включать).
	HistoryLimit int
}

// Validate проверяет корректность параметров запроса.
func (q GetProfileQuery) Validate() error {
	if !q.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !q.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	if q.HistoryLimit < 0 {
		return shared.NewDomainError("query", "GetProfile", shared.ErrValidation, "history limit cannot be negative")
	}
	return nil
}

// LevelProgressDTO - продвижение к следующему уровню.
type LevelProgressDTO struct {
	CurrentLevel int     `json:"current_level"`
	NextLevel    int     `json:"next_level"`
	CurrentExp   int     `json:"current_exp"`
	NeededExp    int     `json:"needed_exp"`
	Percentage   float64 `json:"percentage"`
}

// RewardHistoryDTO - одна запись истории наград.
type RewardHistoryDTO struct {
	AchievementID string    `json:"achievement_id"`
	RewardType    string    `json:"reward_type"`
	RewardID      string    `json:"reward_id,omitempty"`
	RewardName    string    `json:"reward_name"`
	Value         int       `json:"value,omitempty"`
	GrantedAt     time.Time `json:"granted_at"`
}

// ProfileDTO - снимок профиля.
type ProfileDTO struct {
	UserID  int64 `json:"user_id"`
	GroupID int64 `json:"group_id"`

	TotalPoints      int `json:"total_points"`
	Level            int `json:"level"`
	ExperiencePoints int `json:"experience_points"`

	LevelProgress LevelProgressDTO `json:"level_progress"`

	Titles     []string `json:"titles"`
	Badges     []string `json:"badges"`
	Privileges []string `json:"privileges"`

	AchievementsCompleted int `json:"achievements_completed"`
	AchievementsClaimed   int `json:"achievements_claimed"`

	JoinedAt          time.Time  `json:"joined_at"`
	LastAchievementAt *time.Time `json:"last_achievement_at,omitempty"`

	RecentRewards []RewardHistoryDTO `json:"recent_rewards,omitempty"`
}

// GetProfileHandler обрабатывает запрос профиля.
type GetProfileHandler struct {
	profileRepo profile.Repository
	historyRepo profile.RewardHistoryRepository
}

// NewGetProfileHandler создаёт новый обработчик.
func NewGetProfileHandler(profileRepo profile.Repository, historyRepo profile.RewardHistoryRepository) *GetProfileHandler {
	return &GetProfileHandler{profileRepo: profileRepo, historyRepo: historyRepo}
}

// Handle выполняет запрос.
func (h *GetProfileHandler) Handle(ctx context.Context, query GetProfileQuery) (*ProfileDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	key := shared.ProgressKey{UserID: query.UserID, GroupID: query.GroupID}
	prof, err := h.profileRepo.Find(ctx, key)
	if err != nil {
		if shared.IsNotFound(err) {
			prof = profile.NewProfile(key)
		} else {
			return nil, shared.WrapError("query", "GetProfile", shared.ErrStorage, "failed to load profile", err)
		}
	}

	dto := toProfileDTO(prof)

	if query.HistoryLimit > 0 && h.historyRepo != nil {
		records, err := h.historyRepo.List(ctx, key, shared.NewPagination(1, query.HistoryLimit))
		if err == nil {
			dto.RecentRewards = toHistoryDTOs(records)
		}
	}

	return &dto, nil
}

func toProfileDTO(prof *profile.Profile) ProfileDTO {
	lp := prof.ProgressToNextLevel()

	titles := prof.TitleList()
	badges := prof.BadgeList()
	privileges := prof.PrivilegeList()
	sort.Strings(titles)
	sort.Strings(badges)
	sort.Strings(privileges)

	return ProfileDTO{
		UserID:           prof.Key.UserID.Int64(),
		GroupID:          prof.Key.GroupID.Int64(),
		TotalPoints:      prof.TotalPoints.Int(),
		Level:            prof.Level.Int(),
		ExperiencePoints: prof.ExperiencePoints,
		LevelProgress: LevelProgressDTO{
			CurrentLevel: lp.CurrentLevel.Int(),
			NextLevel:    lp.NextLevel.Int(),
			CurrentExp:   lp.CurrentExp,
			NeededExp:    lp.NeededExp,
			Percentage:   lp.Percentage,
		},
		Titles:                titles,
		Badges:                badges,
		Privileges:            privileges,
		AchievementsCompleted: prof.AchievementsCompleted,
		AchievementsClaimed:   prof.AchievementsClaimed,
		JoinedAt:              prof.JoinedAt,
		LastAchievementAt:     prof.LastAchievementAt,
	}
}

func toHistoryDTOs(records []profile.RewardRecord) []RewardHistoryDTO {
	result := make([]RewardHistoryDTO, 0, len(records))
	for _, r := range records {
		result = append(result, RewardHistoryDTO{
			AchievementID: r.AchievementID,
			RewardType:    r.RewardType,
			RewardID:      r.RewardID,
			RewardName:    r.RewardName,
			Value:         r.Value,
			GrantedAt:     r.GrantedAt,
		})
	}
	return result
}
