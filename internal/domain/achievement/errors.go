package achievement

import (
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// Ошибки валидации записей каталога.
var (
	ErrEmptyAchievementID   = shared.NewDomainError("achievement", "Validate", shared.ErrEmptyValue, "achievement ID cannot be empty")
	ErrEmptyAchievementName = shared.NewDomainError("achievement", "Validate", shared.ErrEmptyValue, "achievement name cannot be empty")
	ErrUnknownCategory      = shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "unknown achievement category")
	ErrUnknownDifficulty    = shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "unknown achievement difficulty")
	ErrNoRequirements       = shared.NewDomainError("achievement", "Validate", shared.ErrInvalidEntity, "achievement must have at least one requirement")
	ErrEmptyRequirementType = shared.NewDomainError("achievement", "Validate", shared.ErrEmptyValue, "requirement type cannot be empty")
	ErrUnknownComparison    = shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "unknown requirement comparison")
	ErrUnknownRewardType    = shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "unknown reward type")
	ErrEmptyRewardID        = shared.NewDomainError("achievement", "Validate", shared.ErrEmptyValue, "reward ID cannot be empty")
	ErrNonPositivePoints    = shared.NewDomainError("achievement", "Validate", shared.ErrValueOutOfRange, "points reward must be positive")
)

// Ошибки жизненного цикла прогресса.
var (
	ErrNotStarted        = shared.NewDomainError("achievement", "Complete", shared.ErrStateTransition, "progress has not been started")
	ErrRegressingStatus  = shared.NewDomainError("achievement", "Transition", shared.ErrStateTransition, "progress status cannot regress")
	ErrUnknownStatus     = shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "unknown progress status")
	ErrClaimNotCompleted = shared.ErrNotCompleted
	ErrClaimTwice        = shared.ErrAlreadyClaimed
)
