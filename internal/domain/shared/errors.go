// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Pipeline errors
	ErrQueueFull   = errors.New("event queue is full")
	ErrQueueClosed = errors.New("event queue is closed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrStorage            = errors.New("storage error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "achievement", "profile", "leaderboard"
	Op      string // Operation that failed, e.g., "Claim", "Evaluate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Achievement domain errors
var (
	ErrAchievementNotFound  = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrProgressNotFound     = NewDomainError("achievement", "FindProgress", ErrNotFound, "progress record not found")
	ErrNotCompleted         = NewDomainError("achievement", "Claim", ErrInvalidState, "achievement is not completed")
	ErrAlreadyClaimed       = NewDomainError("achievement", "Claim", ErrAlreadyProcessed, "achievement rewards already claimed")
	ErrAlreadyCompleted     = NewDomainError("achievement", "Complete", ErrAlreadyProcessed, "achievement already completed")
	ErrPrerequisiteCycle    = NewDomainError("achievement", "LoadCatalog", ErrInvalidEntity, "prerequisite graph contains a cycle")
	ErrUnknownPrerequisite  = NewDomainError("achievement", "LoadCatalog", ErrInvalidEntity, "prerequisite references unknown achievement")
	ErrDuplicateAchievement = NewDomainError("achievement", "LoadCatalog", ErrAlreadyExists, "duplicate achievement ID in catalog")
	ErrInvalidRequirement   = NewDomainError("achievement", "Validate", ErrInvalidEntity, "invalid achievement requirement")
)

// Profile domain errors
var (
	ErrProfileNotFound = NewDomainError("profile", "Find", ErrNotFound, "user profile not found")
	ErrInvalidReward   = NewDomainError("profile", "GrantReward", ErrInvalidInput, "invalid reward definition")
)

// Event pipeline errors
var (
	ErrInvalidUserID  = NewDomainError("event", "Validate", ErrInvalidID, "invalid user ID")
	ErrInvalidGroupID = NewDomainError("event", "Validate", ErrInvalidID, "invalid group ID")
	ErrInvalidEvent   = NewDomainError("event", "Validate", ErrInvalidInput, "malformed event payload")
	ErrUnknownEvent   = NewDomainError("event", "Dispatch", ErrInvalidInput, "unknown event type")
	ErrEventQueueFull = NewDomainError("event", "Enqueue", ErrQueueFull, "event queue is at capacity")
)

// Leaderboard domain errors
var (
	ErrInvalidMetric       = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "unknown leaderboard metric")
	ErrLeaderboardNotFound = NewDomainError("leaderboard", "Find", ErrNotFound, "leaderboard not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsStorage checks if the error comes from the storage layer.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
