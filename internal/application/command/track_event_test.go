package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

type memSink struct {
	envelopes []shared.Envelope
	err       error
}

func (s *memSink) Enqueue(envelope shared.Envelope) error {
	if s.err != nil {
		return s.err
	}
	s.envelopes = append(s.envelopes, envelope)
	return nil
}

func TestTrackEventQueuesEnvelope(t *testing.T) {
	sink := &memSink{}
	h := NewTrackEventHandler(sink)

	result, err := h.Handle(context.Background(), TrackEventCommand{
		UserID:  42,
		GroupID: -100500,
		Type:    shared.EventMessageSent,
		Data:    map[string]interface{}{"message_id": 7},
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.NotEmpty(t, result.EventID)

	require.Len(t, sink.envelopes, 1)
	assert.Equal(t, shared.EventMessageSent, sink.envelopes[0].Type)
	assert.Equal(t, shared.UserID(42), sink.envelopes[0].UserID)
}

func TestTrackEventRejectsUnknownType(t *testing.T) {
	h := NewTrackEventHandler(&memSink{})

	_, err := h.Handle(context.Background(), TrackEventCommand{
		UserID:  42,
		GroupID: -1,
		Type:    shared.EventType("teleported"),
	})
	assert.ErrorIs(t, err, shared.ErrUnknownEvent)
}

func TestTrackEventRejectsInvalidIDs(t *testing.T) {
	h := NewTrackEventHandler(&memSink{})

	_, err := h.Handle(context.Background(), TrackEventCommand{
		UserID:  0,
		GroupID: -1,
		Type:    shared.EventMessageSent,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)

	_, err = h.Handle(context.Background(), TrackEventCommand{
		UserID:  42,
		GroupID: 0,
		Type:    shared.EventMessageSent,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidGroupID)
}

func TestTrackEventSurfacesQueueOverflow(t *testing.T) {
	h := NewTrackEventHandler(&memSink{err: shared.ErrEventQueueFull})

	_, err := h.Handle(context.Background(), TrackEventCommand{
		UserID:  42,
		GroupID: -1,
		Type:    shared.EventMessageSent,
	})
	assert.ErrorIs(t, err, shared.ErrQueueFull)
}

func TestSyncUserStatsInjectsSnapshotEvent(t *testing.T) {
	sink := &memSink{}
	h := NewSyncUserStatsHandler(sink)

	result, err := h.Handle(context.Background(), SyncUserStatsCommand{
		UserID:  42,
		GroupID: -1,
		Stats:   map[string]interface{}{"trophies": 3200, "player_level": 11},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.EventID)

	require.Len(t, sink.envelopes, 1)
	assert.Equal(t, shared.EventPlayerStatsUpdated, sink.envelopes[0].Type)
	assert.Equal(t, 3200, sink.envelopes[0].Data["trophies"])
}

func TestSyncUserStatsRejectsEmptySnapshot(t *testing.T) {
	h := NewSyncUserStatsHandler(&memSink{})

	_, err := h.Handle(context.Background(), SyncUserStatsCommand{UserID: 42, GroupID: -1})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
