package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

func testQueue(capacity int) *Queue {
	return NewQueue(QueueConfig{
		Capacity:    capacity,
		DedupWindow: time.Second,
		DedupTTL:    60 * time.Second,
	})
}

func messageEnvelope() shared.Envelope {
	return shared.NewEnvelope(42, -100500, shared.EventMessageSent, map[string]interface{}{
		"message_id": 777,
	})
}

func TestEnqueueRejectsMalformedEnvelopes(t *testing.T) {
	q := testQueue(8)

	err := q.Enqueue(shared.NewEnvelope(0, -1, shared.EventMessageSent, nil))
	assert.True(t, errors.Is(err, shared.ErrInvalidID))

	err = q.Enqueue(shared.NewEnvelope(42, -1, shared.EventType("mystery"), nil))
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	assert.Equal(t, 0, q.Len())
}

func TestEnqueueDropsDuplicateWithinWindow(t *testing.T) {
	q := testQueue(8)

	require.NoError(t, q.Enqueue(messageEnvelope()))
	require.NoError(t, q.Enqueue(messageEnvelope()))

	// Second envelope has identical content; only one event is queued.
	assert.Equal(t, 1, q.Len())
	dropped, rejected := q.Stats()
	assert.Equal(t, int64(1), dropped)
	assert.Equal(t, int64(0), rejected)
}

func TestEnqueueKeepsDistinctPayloads(t *testing.T) {
	q := testQueue(8)

	require.NoError(t, q.Enqueue(shared.NewEnvelope(42, -1, shared.EventMessageSent, map[string]interface{}{"message_id": 1})))
	require.NoError(t, q.Enqueue(shared.NewEnvelope(42, -1, shared.EventMessageSent, map[string]interface{}{"message_id": 2})))

	assert.Equal(t, 2, q.Len())
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	q := testQueue(2)

	require.NoError(t, q.Enqueue(shared.NewEnvelope(1, -1, shared.EventMessageSent, map[string]interface{}{"n": 1})))
	require.NoError(t, q.Enqueue(shared.NewEnvelope(2, -1, shared.EventMessageSent, map[string]interface{}{"n": 2})))

	err := q.Enqueue(shared.NewEnvelope(3, -1, shared.EventMessageSent, map[string]interface{}{"n": 3}))
	assert.True(t, errors.Is(err, shared.ErrEventQueueFull))

	_, rejected := q.Stats()
	assert.Equal(t, int64(1), rejected)
}

func TestEnqueueRejectionDoesNotPoisonDedup(t *testing.T) {
	q := testQueue(1)

	require.NoError(t, q.Enqueue(shared.NewEnvelope(1, -1, shared.EventMessageSent, map[string]interface{}{"n": 1})))

	victim := messageEnvelope()
	require.ErrorIs(t, q.Enqueue(victim), shared.ErrEventQueueFull)

	// The consumer drains and the producer retries inside the dedup window;
	// the rejected event must not have left a dedup entry behind.
	_, ok := q.Dequeue(make(chan struct{}), time.Second)
	require.True(t, ok)

	require.NoError(t, q.Enqueue(victim))
	assert.Equal(t, 1, q.Len())

	dropped, rejected := q.Stats()
	assert.Equal(t, int64(0), dropped)
	assert.Equal(t, int64(1), rejected)
}

func TestDequeueTimesOutWithoutEvents(t *testing.T) {
	q := testQueue(2)

	done := make(chan struct{})
	_, ok := q.Dequeue(done, 10*time.Millisecond)
	assert.False(t, ok)
}

func TestDequeueReturnsQueuedEvent(t *testing.T) {
	q := testQueue(2)
	env := messageEnvelope()
	require.NoError(t, q.Enqueue(env))

	got, ok := q.Dequeue(make(chan struct{}), time.Second)
	require.True(t, ok)
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, shared.EventMessageSent, got.Type)
}

func TestSweepDedupEvictsExpiredEntries(t *testing.T) {
	q := NewQueue(QueueConfig{
		Capacity:    8,
		DedupWindow: time.Millisecond,
		DedupTTL:    time.Millisecond,
	})

	require.NoError(t, q.Enqueue(messageEnvelope()))
	require.Equal(t, 1, q.DedupSize())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, q.SweepDedup())
	assert.Equal(t, 0, q.DedupSize())

	// After eviction the same content is accepted again.
	require.NoError(t, q.Enqueue(messageEnvelope()))
	assert.Equal(t, 2, q.Len())
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	q := testQueue(2)
	q.Close()

	err := q.Enqueue(messageEnvelope())
	assert.True(t, errors.Is(err, shared.ErrQueueClosed))
}
