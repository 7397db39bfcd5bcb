// Package messaging implements the event pipeline of the achievement engine:
// a bounded single-consumer queue with content-hash deduplication, an
// in-memory event bus for completion notifications, and the dispatcher that
// drains the queue and drives rule evaluation.
package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// Queue is the bounded ingestion buffer between producers and the single
// consumer. Enqueue never blocks: a full queue rejects the event with a typed
// error, and duplicates inside the dedup window are dropped silently.
type Queue struct {
	ch chan shared.Envelope

	mu     sync.Mutex
	recent map[string]time.Time
	closed bool

	dedupWindow time.Duration
	dedupTTL    time.Duration
	logger      *slog.Logger

	dropped  int64
	rejected int64
}

// QueueConfig contains configuration for the event queue.
type QueueConfig struct {
	// Capacity bounds the queue. Enqueue on a full queue fails fast.
	Capacity int

	// DedupWindow is how long an identical event is treated as a duplicate.
	DedupWindow time.Duration

	// DedupTTL is how long dedup entries live before the periodic sweep
	// removes them.
	DedupTTL time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultQueueConfig returns sensible defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Capacity:    1024,
		DedupWindow: time.Second,
		DedupTTL:    60 * time.Second,
	}
}

// NewQueue creates a new bounded event queue.
func NewQueue(config QueueConfig) *Queue {
	if config.Capacity <= 0 {
		config.Capacity = 1024
	}
	if config.DedupWindow <= 0 {
		config.DedupWindow = time.Second
	}
	if config.DedupTTL <= 0 {
		config.DedupTTL = 60 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Queue{
		ch:          make(chan shared.Envelope, config.Capacity),
		recent:      make(map[string]time.Time),
		dedupWindow: config.DedupWindow,
		dedupTTL:    config.DedupTTL,
		logger:      config.Logger,
	}
}

// Enqueue adds an event to the queue. Returns nil when the event was accepted
// or silently dropped as a duplicate; returns shared.ErrEventQueueFull when
// the queue is at capacity and shared.ErrQueueClosed after Close.
func (q *Queue) Enqueue(envelope shared.Envelope) error {
	if err := envelope.Validate(); err != nil {
		return err
	}

	key := dedupKey(envelope)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return shared.ErrQueueClosed
	}
	if seen, ok := q.recent[key]; ok && time.Since(seen) < q.dedupWindow {
		q.dropped++
		q.mu.Unlock()
		q.logger.Debug("duplicate event dropped",
			"event_type", envelope.Type,
			"user_id", envelope.UserID,
			"group_id", envelope.GroupID,
		)
		return nil
	}
	q.recent[key] = time.Now()
	q.mu.Unlock()

	select {
	case q.ch <- envelope:
		return nil
	default:
		q.mu.Lock()
		// The key was recorded before the send; drop it so the producer's
		// retry is not swallowed as a duplicate of the rejected event.
		delete(q.recent, key)
		q.rejected++
		q.mu.Unlock()
		q.logger.Warn("event queue full, rejecting event",
			"event_type", envelope.Type,
			"user_id", envelope.UserID,
		)
		return shared.ErrEventQueueFull
	}
}

// Dequeue blocks until an event is available, the wait times out, or the
// context is cancelled. The second return value is false when no event was
// received, so the consumer can observe its stop signal.
func (q *Queue) Dequeue(done <-chan struct{}, wait time.Duration) (shared.Envelope, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case envelope, ok := <-q.ch:
		return envelope, ok
	case <-timer.C:
		return shared.Envelope{}, false
	case <-done:
		return shared.Envelope{}, false
	}
}

// SweepDedup removes dedup entries older than the TTL and returns how many
// were evicted. Invoked by the periodic maintenance job.
func (q *Queue) SweepDedup() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := 0
	cutoff := time.Now().Add(-q.dedupTTL)
	for key, seen := range q.recent {
		if seen.Before(cutoff) {
			delete(q.recent, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// DedupSize returns the number of live dedup entries.
func (q *Queue) DedupSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.recent)
}

// Stats returns drop/reject counters.
func (q *Queue) Stats() (dropped, rejected int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped, q.rejected
}

// Close marks the queue closed and closes the underlying channel so the
// consumer drains remaining events and exits.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// dedupKey builds the content-hash identity of an event:
// (user, group, type, blake2b(payload)). Payload maps marshal with sorted
// keys, so the hash is stable for equal content.
func dedupKey(envelope shared.Envelope) string {
	data, err := json.Marshal(envelope.Data)
	if err != nil {
		// Unmarshalable payloads still dedup on their identity fields.
		data = nil
	}
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("%d:%d:%s:%x", envelope.UserID, envelope.GroupID, envelope.Type, sum[:8])
}
