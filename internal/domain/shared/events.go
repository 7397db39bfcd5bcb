// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of a behavioral event flowing through the
// engine. The vocabulary is closed: producers may only send known types.
type EventType string

// Inbound event vocabulary. Each constant matches the wire name used by
// producers (chat handlers, binding/clan services, game-data sync).
const (
	EventMessageSent        EventType = "message_sent"
	EventPassportCreated    EventType = "passport_created"
	EventPassportUpdated    EventType = "passport_updated"
	EventPlayerBound        EventType = "player_bound"
	EventPlayerVerified     EventType = "player_verified"
	EventClanJoined         EventType = "clan_joined"
	EventClanLeft           EventType = "clan_left"
	EventClanWarStarted     EventType = "clan_war_started"
	EventClanWarEnded       EventType = "clan_war_ended"
	EventPlayerStatsUpdated EventType = "player_stats_updated"
	EventUserPromoted       EventType = "user_promoted"
	EventSpecialCommandUsed EventType = "special_command_used"
	EventDailyActivity      EventType = "daily_activity"
	EventWeeklySummary      EventType = "weekly_summary"

	// EventAchievementCompleted is synthetic: the engine re-injects it into
	// its own pipeline when an achievement completes, so prerequisite chains
	// and notifiers see it like any other event.
	EventAchievementCompleted EventType = "achievement_completed"
)

// Outbound domain event types. These are published on the event bus only and
// never enter the behavioral queue, so they stay out of the inbound
// vocabulary.
const (
	EventRewardsClaimed EventType = "rewards_claimed"
	EventLevelUp        EventType = "level_up"
)

var knownEventTypes = map[EventType]struct{}{
	EventMessageSent:          {},
	EventPassportCreated:      {},
	EventPassportUpdated:      {},
	EventPlayerBound:          {},
	EventPlayerVerified:       {},
	EventClanJoined:           {},
	EventClanLeft:             {},
	EventClanWarStarted:       {},
	EventClanWarEnded:         {},
	EventPlayerStatsUpdated:   {},
	EventUserPromoted:         {},
	EventSpecialCommandUsed:   {},
	EventDailyActivity:        {},
	EventWeeklySummary:        {},
	EventAchievementCompleted: {},
}

// IsKnown reports whether the event type belongs to the closed vocabulary.
func (t EventType) IsKnown() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// String returns the wire name.
func (t EventType) String() string {
	return string(t)
}

// KnownEventTypes returns all recognized event types.
func KnownEventTypes() []EventType {
	types := make([]EventType, 0, len(knownEventTypes))
	for t := range knownEventTypes {
		types = append(types, t)
	}
	return types
}

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (queue transport)
// ═══════════════════════════════════════════════════════════════════════════

// Envelope is the unit carried by the event queue: a raw behavioral event
// attributed to a (user, group) pair plus the payload producers supplied.
type Envelope struct {
	ID         string                 `json:"id"`
	UserID     UserID                 `json:"user_id"`
	GroupID    GroupID                `json:"group_id"`
	Type       EventType              `json:"type"`
	Data       map[string]interface{} `json:"data"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

// NewEnvelope builds an envelope with a fresh ID and enqueue timestamp.
func NewEnvelope(userID UserID, groupID GroupID, eventType EventType, data map[string]interface{}) Envelope {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Envelope{
		ID:         uuid.NewString(),
		UserID:     userID,
		GroupID:    groupID,
		Type:       eventType,
		Data:       data,
		EnqueuedAt: time.Now(),
	}
}

// Key returns the (user, group) pair the envelope belongs to.
func (e Envelope) Key() ProgressKey {
	return ProgressKey{UserID: e.UserID, GroupID: e.GroupID}
}

// Validate checks the envelope against the closed vocabulary and ID rules.
func (e Envelope) Validate() error {
	if !e.UserID.IsValid() {
		return ErrInvalidUserID
	}
	if !e.GroupID.IsValid() {
		return ErrInvalidGroupID
	}
	if !e.Type.IsKnown() {
		return ErrUnknownEvent
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Domain Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementCompletedEvent is emitted when a user's progress record reaches
// COMPLETED. It is both published to subscribers and re-injected into the
// event queue as a synthetic behavioral event.
type AchievementCompletedEvent struct {
	BaseEvent
	UserID          int64  `json:"user_id"`
	GroupID         int64  `json:"group_id"`
	AchievementID   string `json:"achievement_id"`
	AchievementName string `json:"achievement_name"`
}

// Payload implements Event interface.
func (e AchievementCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"group_id":         e.GroupID,
		"achievement_id":   e.AchievementID,
		"achievement_name": e.AchievementName,
	}
}

// NewAchievementCompletedEvent creates a new AchievementCompletedEvent.
func NewAchievementCompletedEvent(key ProgressKey, achievementID, achievementName string) AchievementCompletedEvent {
	return AchievementCompletedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementCompleted, key.String()),
		UserID:          key.UserID.Int64(),
		GroupID:         key.GroupID.Int64(),
		AchievementID:   achievementID,
		AchievementName: achievementName,
	}
}

// RewardsClaimedEvent is emitted after a successful claim.
type RewardsClaimedEvent struct {
	BaseEvent
	UserID        int64  `json:"user_id"`
	GroupID       int64  `json:"group_id"`
	AchievementID string `json:"achievement_id"`
	PointsGranted int    `json:"points_granted"`
	RewardCount   int    `json:"reward_count"`
}

// Payload implements Event interface.
func (e RewardsClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"group_id":       e.GroupID,
		"achievement_id": e.AchievementID,
		"points_granted": e.PointsGranted,
		"reward_count":   e.RewardCount,
	}
}

// NewRewardsClaimedEvent creates a new RewardsClaimedEvent.
func NewRewardsClaimedEvent(key ProgressKey, achievementID string, pointsGranted, rewardCount int) RewardsClaimedEvent {
	return RewardsClaimedEvent{
		BaseEvent:     NewBaseEvent(EventRewardsClaimed, key.String()),
		UserID:        key.UserID.Int64(),
		GroupID:       key.GroupID.Int64(),
		AchievementID: achievementID,
		PointsGranted: pointsGranted,
		RewardCount:   rewardCount,
	}
}

// LevelUpEvent is emitted when granted points push a profile past a level
// threshold.
type LevelUpEvent struct {
	BaseEvent
	UserID   int64 `json:"user_id"`
	GroupID  int64 `json:"group_id"`
	OldLevel int   `json:"old_level"`
	NewLevel int   `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"group_id":  e.GroupID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(key ProgressKey, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, key.String()),
		UserID:    key.UserID.Int64(),
		GroupID:   key.GroupID.Int64(),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Handling Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
