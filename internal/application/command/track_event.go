// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK EVENT COMMAND
// The single entry point for behavioral events. Producers (chat handlers,
// binding and clan services, game-data sync) call this; everything downstream
// happens asynchronously in the queue consumer.
// ══════════════════════════════════════════════════════════════════════════════

// EventSink accepts validated envelopes for asynchronous processing.
// Implemented by the messaging queue.
type EventSink interface {
	Enqueue(envelope shared.Envelope) error
}

// TrackEventCommand contains one behavioral event to ingest.
type TrackEventCommand struct {
	// UserID is the acting user.
	UserID shared.UserID

	// GroupID is the group the activity happened in.
	GroupID shared.GroupID

	// Type is the event's wire name. Must belong to the closed vocabulary.
	Type shared.EventType

	// Data is the producer-supplied payload.
	Data map[string]interface{}
}

// Validate validates the command.
func (c TrackEventCommand) Validate() error {
	if !c.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !c.GroupID.IsValid() {
		return shared.ErrInvalidGroupID
	}
	if !c.Type.IsKnown() {
		return shared.ErrUnknownEvent
	}
	return nil
}

// TrackEventResult reports whether the event entered the pipeline.
type TrackEventResult struct {
	// EventID is the envelope's assigned ID.
	EventID string

	// Accepted is true when the event was queued (or silently deduplicated).
	Accepted bool

	// AcceptedAt is when the command was processed.
	AcceptedAt time.Time
}

// TrackEventHandler handles the TrackEventCommand.
type TrackEventHandler struct {
	sink EventSink
}

// NewTrackEventHandler creates a new TrackEventHandler.
func NewTrackEventHandler(sink EventSink) *TrackEventHandler {
	return &TrackEventHandler{sink: sink}
}

// Handle validates the event and hands it to the queue. A full queue surfaces
// shared.ErrEventQueueFull to the caller; duplicates are absorbed silently and
// still count as accepted.
func (h *TrackEventHandler) Handle(_ context.Context, cmd TrackEventCommand) (*TrackEventResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("track_event: %w", err)
	}

	envelope := shared.NewEnvelope(cmd.UserID, cmd.GroupID, cmd.Type, cmd.Data)
	if err := h.sink.Enqueue(envelope); err != nil {
		return nil, fmt.Errorf("track_event: %w", err)
	}

	return &TrackEventResult{
		EventID:    envelope.ID,
		Accepted:   true,
		AcceptedAt: time.Now().UTC(),
	}, nil
}
