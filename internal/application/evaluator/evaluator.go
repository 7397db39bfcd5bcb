// Package evaluator contains the pure rule-evaluation logic of the engine:
// given a behavioral event and the current progress state, it decides how
// requirement values change and whether an achievement is now complete.
// The package has no I/O; all storage access happens in the dispatcher.
package evaluator

import (
	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INFLUENCE TABLE
// Static mapping from event type to the requirement-type names it can touch.
// An achievement is a candidate for evaluation only if at least one of its
// requirements appears in the event's influence set.
// ══════════════════════════════════════════════════════════════════════════════

var influence = map[shared.EventType][]string{
	shared.EventMessageSent:        {"messages_count"},
	shared.EventPassportCreated:    {"passport_created"},
	shared.EventPassportUpdated:    {"passport_updates"},
	shared.EventPlayerBound:        {"player_bound"},
	shared.EventPlayerVerified:     {"player_verified"},
	shared.EventClanJoined:         {"clan_membership"},
	shared.EventClanLeft:           {"clan_membership", "loyal_member"},
	shared.EventClanWarStarted:     {"clan_wars_participated"},
	shared.EventClanWarEnded:       {"clan_wars_won", "war_attacks_made", "war_stars_earned"},
	shared.EventPlayerStatsUpdated: {"trophies", "player_level"},
	shared.EventUserPromoted:       {"leadership_role"},
	shared.EventSpecialCommandUsed: {"commands_used", "help_seeker", "system_explorer"},
	shared.EventDailyActivity:      {"active_days", "activity_streak", "week_streak", "month_streak"},
	shared.EventWeeklySummary:      {"messages_this_week", "weekly_chatter", "weekly_super_active"},

	// The synthetic completion event carries no requirement fields; the
	// dispatcher re-checks dependent achievements through the catalog's
	// prerequisite graph instead.
	shared.EventAchievementCompleted: nil,
}

// InfluencedTypes returns the requirement types an event type can touch.
func InfluencedTypes(eventType shared.EventType) []string {
	return influence[eventType]
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator applies events to progress records against a fixed catalog.
type Evaluator struct {
	catalog *achievement.Catalog
}

// New creates an Evaluator over the given catalog.
func New(catalog *achievement.Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Catalog exposes the underlying catalog.
func (e *Evaluator) Catalog() *achievement.Catalog {
	return e.catalog
}

// Candidates returns the catalog achievements whose requirement-type set
// intersects the influence set of the event type.
func (e *Evaluator) Candidates(eventType shared.EventType) []achievement.Achievement {
	influenced := influence[eventType]
	if len(influenced) == 0 {
		return nil
	}

	var result []achievement.Achievement
	for _, a := range e.catalog.All() {
		types := a.RequirementTypes()
		for _, name := range influenced {
			if _, ok := types[name]; ok {
				result = append(result, a)
				break
			}
		}
	}
	return result
}

// Evaluate updates a progress record from one event. Counter requirements
// ("_count" suffix) increment by one per event; every other requirement is
// overwritten with the event-supplied snapshot value. Returns true if any
// value changed. Records that are already COMPLETED or CLAIMED are never
// touched.
func (e *Evaluator) Evaluate(progress *achievement.Progress, a achievement.Achievement, eventType shared.EventType, data map[string]interface{}) bool {
	if progress.Status.IsCompletedOrClaimed() {
		return false
	}

	influenced := make(map[string]struct{})
	for _, name := range influence[eventType] {
		influenced[name] = struct{}{}
	}

	updated := false
	for _, req := range a.Requirements {
		if _, ok := influenced[req.Type]; !ok {
			continue
		}
		raw, present := data[req.Type]
		if !present {
			continue
		}

		if req.IsCounter() {
			progress.Increment(req.Type)
		} else {
			value, ok := toFloat(raw)
			if !ok {
				continue
			}
			progress.SetValue(req.Type, value)
		}
		updated = true
	}

	if updated {
		progress.Start()
		progress.RecalculatePercentage(a)
	}
	return updated
}

// CheckCompletion reports whether the achievement is now complete: every
// prerequisite must be COMPLETED or CLAIMED and every requirement satisfied.
// Missing prerequisite records count as LOCKED.
func (e *Evaluator) CheckCompletion(progress *achievement.Progress, a achievement.Achievement, prereqStatus map[string]achievement.Status) bool {
	if progress.Status.IsCompletedOrClaimed() {
		return false
	}

	for _, prereq := range a.Prerequisites {
		if !prereqStatus[prereq].IsCompletedOrClaimed() {
			return false
		}
	}

	for _, req := range a.Requirements {
		if !req.Satisfied(progress.Value(req.Type)) {
			return false
		}
	}
	return true
}

// toFloat coerces the loosely-typed payload values producers send.
// Booleans map to 1/0 so eq-style flag requirements compare cleanly.
func toFloat(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case uint:
		return float64(value), true
	case bool:
		if value {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
