// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"math"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique chat-platform user identifier.
type UserID int64

// IsValid checks if the user ID is valid (positive number).
func (u UserID) IsValid() bool {
	return u > 0
}

// Int64 returns the underlying int64 value.
func (u UserID) Int64() int64 {
	return int64(u)
}

// String returns the string representation.
func (u UserID) String() string {
	return fmt.Sprintf("%d", u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id int64) (UserID, error) {
	if id <= 0 {
		return 0, ErrInvalidUserID
	}
	return UserID(id), nil
}

// GroupID represents a chat/group identifier. Group chats on most platforms
// use negative identifiers, so only zero is rejected.
type GroupID int64

// IsValid checks if the group ID is valid.
func (g GroupID) IsValid() bool {
	return g != 0
}

// Int64 returns the underlying int64 value.
func (g GroupID) Int64() int64 {
	return int64(g)
}

// String returns the string representation.
func (g GroupID) String() string {
	return fmt.Sprintf("%d", g)
}

// NewGroupID creates a new GroupID with validation.
func NewGroupID(id int64) (GroupID, error) {
	if id == 0 {
		return 0, ErrInvalidGroupID
	}
	return GroupID(id), nil
}

// ProgressKey identifies a (user, group) pair — the unit of isolation for
// all progress and profile state.
type ProgressKey struct {
	UserID  UserID
	GroupID GroupID
}

// IsValid checks both components.
func (k ProgressKey) IsValid() bool {
	return k.UserID.IsValid() && k.GroupID.IsValid()
}

// String returns a stable "user:group" representation used for cache keys
// and event aggregate IDs.
func (k ProgressKey) String() string {
	return fmt.Sprintf("%d:%d", k.UserID, k.GroupID)
}

// NewProgressKey creates a validated ProgressKey.
func NewProgressKey(userID, groupID int64) (ProgressKey, error) {
	u, err := NewUserID(userID)
	if err != nil {
		return ProgressKey{}, err
	}
	g, err := NewGroupID(groupID)
	if err != nil {
		return ProgressKey{}, err
	}
	return ProgressKey{UserID: u, GroupID: g}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points represents achievement points earned by a user.
type Points int

const (
	// Points boundaries
	MinPoints Points = 0
	MaxPoints Points = 10000000 // 10 million points cap
)

// IsValid checks if the points value is within valid range.
func (p Points) IsValid() bool {
	return p >= MinPoints && p <= MaxPoints
}

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// Add adds points and returns the result, capped at MaxPoints.
func (p Points) Add(amount int) Points {
	result := Points(int(p) + amount)
	if result > MaxPoints {
		return MaxPoints
	}
	if result < MinPoints {
		return MinPoints
	}
	return result
}

// NewPoints creates a new Points value with validation.
func NewPoints(amount int) (Points, error) {
	if amount < int(MinPoints) {
		return 0, NewDomainError("shared", "NewPoints", ErrNegativeValue, "points cannot be negative")
	}
	if amount > int(MaxPoints) {
		return MaxPoints, nil // Cap at max
	}
	return Points(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level derived from experience points.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 200
)

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredExperience returns the total experience required to reach this level.
// The curve is 100 * level^1.5, truncated to an integer.
func (l Level) RequiredExperience() int {
	if l <= 1 {
		return 0
	}
	return int(100 * math.Pow(float64(l), 1.5))
}

// Next returns the next level, capped at MaxLevel.
func (l Level) Next() Level {
	if l >= MaxLevel {
		return MaxLevel
	}
	return l + 1
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a user's position in a leaderboard.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0 // Not yet ranked
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked checks if the user is not yet ranked.
func (r Rank) IsUnranked() bool {
	return r == Unranked
}

// IsTop returns true if the rank is in the top N.
func (r Rank) IsTop(n int) bool {
	return r.IsValid() && int(r) <= n
}

// Medal returns a medal emoji for top ranks.
func (r Rank) Medal() string {
	switch r {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return ""
	}
}

// NewRank creates a new Rank with validation.
func NewRank(position int) (Rank, error) {
	if position < 0 {
		return Unranked, NewDomainError("shared", "NewRank", ErrNegativeValue, "rank cannot be negative")
	}
	return Rank(position), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange is a half-open window [From, To). The scheduler jobs aggregate
// the event log over such windows: a calendar day for daily_activity, a
// Monday-to-Monday week for weekly_summary.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks that the window is non-empty.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && t.From.Before(t.To)
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination selects one page of a listing. Zero values mean the first page
// of the default size; the page size is capped.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for storage queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the page size within bounds.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a page clamped to the allowed bounds.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
