package messaging

import (
	"log/slog"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENRICHMENT
// Per-event-type hooks that normalize producer payloads into requirement
// fields before evaluation. Hooks only mutate envelope.Data; they never touch
// storage, so the rest of the pipeline can treat them as pure.
// ══════════════════════════════════════════════════════════════════════════════

// Payload fields set by enrichment hooks.
const (
	fieldBonusPoints = "bonus_points"
)

// Bonus points granted outside the claim flow.
const (
	verificationBonus  = 50
	moderatorRoleBonus = 50
	adminRoleBonus     = 100
)

// EnrichFunc mutates the payload of one envelope.
type EnrichFunc func(envelope *shared.Envelope) error

// Enricher holds the hook table. Event types without a hook pass through
// untouched.
type Enricher struct {
	hooks  map[shared.EventType]EnrichFunc
	logger *slog.Logger
}

// NewEnricher creates an Enricher with the default hook table.
func NewEnricher(logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Enricher{
		hooks:  make(map[shared.EventType]EnrichFunc),
		logger: logger,
	}
	e.registerDefaults()
	return e
}

// Register installs or replaces the hook for an event type.
func (e *Enricher) Register(eventType shared.EventType, fn EnrichFunc) {
	e.hooks[eventType] = fn
}

// Apply runs the hook for the envelope's event type, if any.
func (e *Enricher) Apply(envelope *shared.Envelope) error {
	hook, ok := e.hooks[envelope.Type]
	if !ok {
		return nil
	}
	if envelope.Data == nil {
		envelope.Data = map[string]interface{}{}
	}
	return hook(envelope)
}

func (e *Enricher) registerDefaults() {
	// Counter triggers: the field's presence is what makes the evaluator
	// increment; the value itself is ignored for "_count" requirements.
	e.Register(shared.EventMessageSent, setField("messages_count", 1))
	e.Register(shared.EventPassportUpdated, setField("passport_updates", 1))
	e.Register(shared.EventSpecialCommandUsed, setField("commands_used", 1))
	e.Register(shared.EventClanWarStarted, setField("clan_wars_participated", 1))
	e.Register(shared.EventDailyActivity, setField("active_days", 1))

	// Flag snapshots.
	e.Register(shared.EventPassportCreated, setField("passport_created", true))
	e.Register(shared.EventPlayerBound, setField("player_bound", true))
	e.Register(shared.EventClanJoined, setField("clan_membership", true))
	e.Register(shared.EventClanLeft, setField("clan_membership", false))

	// Verification carries an immediate bonus alongside the flag.
	e.Register(shared.EventPlayerVerified, func(envelope *shared.Envelope) error {
		envelope.Data["player_verified"] = true
		envelope.Data[fieldBonusPoints] = verificationBonus
		return nil
	})

	// Promotions set the role flag and grant a role-dependent bonus.
	e.Register(shared.EventUserPromoted, func(envelope *shared.Envelope) error {
		envelope.Data["leadership_role"] = true
		role, _ := envelope.Data["new_role"].(string)
		switch role {
		case "admin":
			envelope.Data[fieldBonusPoints] = adminRoleBonus
		case "moderator":
			envelope.Data[fieldBonusPoints] = moderatorRoleBonus
		}
		return nil
	})

	// War results: victory counts once, attack and star counters come from
	// the producer's tally under their requirement names.
	e.Register(shared.EventClanWarEnded, func(envelope *shared.Envelope) error {
		if victory, _ := envelope.Data["victory"].(bool); victory {
			envelope.Data["clan_wars_won"] = 1
		}
		copyField(envelope.Data, "attacks_made", "war_attacks_made")
		copyField(envelope.Data, "stars_earned", "war_stars_earned")
		return nil
	})

	// Game stats arrive under their requirement names already; nothing to
	// rename. player_stats_updated and weekly_summary pass through.
}

// setField returns a hook that writes one fixed payload field.
func setField(name string, value interface{}) EnrichFunc {
	return func(envelope *shared.Envelope) error {
		envelope.Data[name] = value
		return nil
	}
}

// copyField renames a producer field to a requirement field when present.
func copyField(data map[string]interface{}, from, to string) {
	if v, ok := data[from]; ok {
		data[to] = v
	}
}
