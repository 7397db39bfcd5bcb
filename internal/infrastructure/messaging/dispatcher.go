package messaging

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/clanhub/achievement-engine/internal/application/evaluator"
	"github.com/clanhub/achievement-engine/internal/domain/achievement"
	"github.com/clanhub/achievement-engine/internal/domain/profile"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
	"github.com/clanhub/achievement-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// The single consumer of the event queue. For every event it:
//   1. runs the enrichment hook for the event type,
//   2. appends the event to the audit log (failures never stop processing),
//   3. evaluates candidate achievements and persists changed progress,
//   4. completes achievements whose requirements and prerequisites are met,
//   5. publishes completion events and re-injects them as synthetic events.
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher drains the queue and drives rule evaluation.
type Dispatcher struct {
	queue     *Queue
	evaluator *evaluator.Evaluator
	enricher  *Enricher
	bus       shared.EventPublisher

	progress achievement.ProgressRepository
	profiles profile.Repository
	eventLog achievement.EventLogRepository

	retrier     *retry.Retrier
	logger      *slog.Logger
	metrics     *DispatcherMetrics
	dequeueWait time.Duration

	wg sync.WaitGroup
}

// DispatcherConfig contains the dispatcher's collaborators.
type DispatcherConfig struct {
	Queue     *Queue
	Evaluator *evaluator.Evaluator
	Enricher  *Enricher
	Bus       shared.EventPublisher

	ProgressRepo achievement.ProgressRepository
	ProfileRepo  profile.Repository
	EventLog     achievement.EventLogRepository

	// DequeueWait bounds how long one Dequeue call blocks, so the loop
	// re-checks its context regularly.
	DequeueWait time.Duration

	Logger *slog.Logger
}

// NewDispatcher creates the queue consumer.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DequeueWait <= 0 {
		config.DequeueWait = time.Second
	}
	if config.Enricher == nil {
		config.Enricher = NewEnricher(config.Logger)
	}

	return &Dispatcher{
		queue:       config.Queue,
		evaluator:   config.Evaluator,
		enricher:    config.Enricher,
		bus:         config.Bus,
		progress:    config.ProgressRepo,
		profiles:    config.ProfileRepo,
		eventLog:    config.EventLog,
		retrier:     retry.DatabaseRetrier(),
		logger:      config.Logger,
		metrics:     NewDispatcherMetrics(),
		dequeueWait: config.DequeueWait,
	}
}

// Start launches the consumer loop in its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

// Wait blocks until the consumer loop has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Metrics returns dispatcher metrics.
func (d *Dispatcher) Metrics() *DispatcherMetrics {
	return d.metrics
}

func (d *Dispatcher) run(ctx context.Context) {
	d.logger.Info("dispatcher started")
	for {
		if ctx.Err() != nil {
			d.logger.Info("dispatcher stopped", "reason", ctx.Err())
			return
		}

		envelope, ok := d.queue.Dequeue(ctx.Done(), d.dequeueWait)
		if !ok {
			continue
		}
		d.process(ctx, envelope)
	}
}

// process handles exactly one event. A panic in any step is recovered so a
// single malformed event cannot take the consumer down.
func (d *Dispatcher) process(ctx context.Context, envelope shared.Envelope) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordFailure(envelope.Type)
			d.logger.Error("panic while processing event",
				"event_type", envelope.Type,
				"event_id", envelope.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	d.metrics.RecordDispatch(envelope.Type)

	if err := d.enricher.Apply(&envelope); err != nil {
		d.logger.Warn("enrichment failed, processing raw payload",
			"event_type", envelope.Type,
			"event_id", envelope.ID,
			"error", err,
		)
	}

	d.appendToLog(ctx, envelope)
	d.applyBonusPoints(ctx, envelope)

	if envelope.Type == shared.EventAchievementCompleted {
		d.cascade(ctx, envelope)
	} else {
		d.evaluate(ctx, envelope)
	}

	d.metrics.RecordExecution(envelope.Type, time.Since(start), true)
}

// appendToLog writes the event to the append-only audit log. The log is for
// debugging and replay, never for evaluation, so failures are logged and
// processing continues.
func (d *Dispatcher) appendToLog(ctx context.Context, envelope shared.Envelope) {
	err := d.retrier.Do(ctx, func(ctx context.Context) error {
		if err := d.eventLog.Append(ctx, envelope); err != nil {
			if shared.IsRetryable(err) {
				return retry.Retryable(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		d.logger.Warn("event log append failed",
			"event_type", envelope.Type,
			"event_id", envelope.ID,
			"error", err,
		)
	}
}

// applyBonusPoints grants enrichment-supplied bonus points directly to the
// profile, outside the claim flow.
func (d *Dispatcher) applyBonusPoints(ctx context.Context, envelope shared.Envelope) {
	raw, present := envelope.Data[fieldBonusPoints]
	if !present {
		return
	}
	bonus, ok := asInt(raw)
	if !ok || bonus <= 0 {
		return
	}

	key := envelope.Key()
	prof, err := d.profiles.FindOrCreate(ctx, key)
	if err != nil {
		d.logger.Error("bonus points: profile lookup failed", "key", key, "error", err)
		return
	}

	oldLevel, newLevel := prof.AddPoints(bonus)
	if err := d.profiles.Save(ctx, prof); err != nil {
		d.logger.Error("bonus points: profile save failed", "key", key, "error", err)
		return
	}
	if newLevel > oldLevel {
		d.publish(shared.NewLevelUpEvent(key, oldLevel.Int(), newLevel.Int()))
	}
}

// evaluate runs the regular evaluation path: every catalog achievement whose
// requirements the event can influence gets its progress updated and checked.
func (d *Dispatcher) evaluate(ctx context.Context, envelope shared.Envelope) {
	key := envelope.Key()
	for _, a := range d.evaluator.Candidates(envelope.Type) {
		p, err := d.progress.FindOrCreate(ctx, key, a.ID)
		if err != nil {
			d.logger.Error("progress lookup failed",
				"key", key, "achievement_id", a.ID, "error", err)
			continue
		}

		if !d.evaluator.Evaluate(p, a, envelope.Type, envelope.Data) {
			continue
		}
		if err := d.saveProgress(ctx, p); err != nil {
			d.logger.Error("progress save failed",
				"key", key, "achievement_id", a.ID, "error", err)
			continue
		}

		d.tryComplete(ctx, key, p, a)
	}
}

// cascade handles the synthetic completion event: achievements that list the
// completed one as a prerequisite are re-checked, because prerequisite state
// may have been the only thing blocking them. The catalog rejects prerequisite
// cycles at load, so cascades always terminate.
func (d *Dispatcher) cascade(ctx context.Context, envelope shared.Envelope) {
	completedID, _ := envelope.Data["achievement_id"].(string)
	if completedID == "" {
		d.logger.Warn("completion event without achievement_id", "event_id", envelope.ID)
		return
	}

	key := envelope.Key()
	for _, id := range d.evaluator.Catalog().Dependents(completedID) {
		a, ok := d.evaluator.Catalog().Get(id)
		if !ok {
			continue
		}
		p, err := d.progress.FindOrCreate(ctx, key, a.ID)
		if err != nil {
			d.logger.Error("progress lookup failed",
				"key", key, "achievement_id", a.ID, "error", err)
			continue
		}
		d.tryComplete(ctx, key, p, a)
	}
}

// tryComplete transitions a progress record to COMPLETED when all its
// requirements and prerequisites are satisfied, updates the profile, and
// fans the completion out to subscribers and back into the queue.
func (d *Dispatcher) tryComplete(ctx context.Context, key shared.ProgressKey, p *achievement.Progress, a achievement.Achievement) {
	prereqStatus := map[string]achievement.Status{}
	if a.HasPrerequisites() {
		var err error
		prereqStatus, err = d.progress.StatusOf(ctx, key, a.Prerequisites)
		if err != nil {
			d.logger.Error("prerequisite status lookup failed",
				"key", key, "achievement_id", a.ID, "error", err)
			return
		}
	}

	if !d.evaluator.CheckCompletion(p, a, prereqStatus) {
		return
	}
	if err := p.Complete(); err != nil {
		return
	}
	if err := d.saveProgress(ctx, p); err != nil {
		d.logger.Error("completion save failed",
			"key", key, "achievement_id", a.ID, "error", err)
		return
	}

	prof, err := d.profiles.FindOrCreate(ctx, key)
	if err != nil {
		d.logger.Error("completion: profile lookup failed", "key", key, "error", err)
	} else {
		prof.MarkCompleted()
		if err := d.profiles.Save(ctx, prof); err != nil {
			d.logger.Error("completion: profile save failed", "key", key, "error", err)
		}
	}

	d.metrics.RecordCompletion(a.ID)
	d.logger.Info("achievement completed",
		"user_id", key.UserID,
		"group_id", key.GroupID,
		"achievement_id", a.ID,
	)

	d.publish(shared.NewAchievementCompletedEvent(key, a.ID, a.Name))

	synthetic := shared.NewEnvelope(key.UserID, key.GroupID, shared.EventAchievementCompleted, map[string]interface{}{
		"achievement_id":   a.ID,
		"achievement_name": a.Name,
	})
	if err := d.queue.Enqueue(synthetic); err != nil {
		d.logger.Warn("completion re-injection failed",
			"achievement_id", a.ID, "error", err)
	}
}

func (d *Dispatcher) saveProgress(ctx context.Context, p *achievement.Progress) error {
	return d.retrier.Do(ctx, func(ctx context.Context) error {
		if err := d.progress.Save(ctx, p); err != nil {
			if shared.IsRetryable(err) {
				return retry.Retryable(err)
			}
			return err
		}
		return nil
	})
}

func (d *Dispatcher) publish(event shared.Event) {
	if d.bus == nil {
		return
	}
	if err := d.bus.Publish(event); err != nil {
		d.logger.Warn("event publish failed", "event_type", event.EventType(), "error", err)
	}
}

func asInt(v interface{}) (int, bool) {
	switch value := v.(type) {
	case int:
		return value, true
	case int32:
		return int(value), true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	case float32:
		return int(value), true
	default:
		return 0, false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER METRICS
// ══════════════════════════════════════════════════════════════════════════════

// DispatcherMetrics tracks dispatcher performance.
type DispatcherMetrics struct {
	mu sync.RWMutex

	DispatchedTotal map[shared.EventType]int64

	ExecutionsTotal int64
	SuccessTotal    int64
	FailuresTotal   int64

	CompletionsTotal map[string]int64

	TotalDuration    time.Duration
	DurationByType   map[shared.EventType]time.Duration
	ExecutionsByType map[shared.EventType]int64

	LastReset time.Time
}

// NewDispatcherMetrics creates new dispatcher metrics.
func NewDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{
		DispatchedTotal:  make(map[shared.EventType]int64),
		CompletionsTotal: make(map[string]int64),
		DurationByType:   make(map[shared.EventType]time.Duration),
		ExecutionsByType: make(map[shared.EventType]int64),
		LastReset:        time.Now(),
	}
}

// RecordDispatch records an event entering processing.
func (m *DispatcherMetrics) RecordDispatch(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DispatchedTotal[eventType]++
}

// RecordExecution records a finished processing pass.
func (m *DispatcherMetrics) RecordExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExecutionsTotal++
	m.TotalDuration += duration
	m.DurationByType[eventType] += duration
	m.ExecutionsByType[eventType]++

	if success {
		m.SuccessTotal++
	} else {
		m.FailuresTotal++
	}
}

// RecordCompletion records a completed achievement.
func (m *DispatcherMetrics) RecordCompletion(achievementID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompletionsTotal[achievementID]++
}

// RecordFailure records a processing failure.
func (m *DispatcherMetrics) RecordFailure(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FailuresTotal++
}

// Snapshot returns a point-in-time snapshot.
func (m *DispatcherMetrics) Snapshot() DispatcherMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avgDuration := time.Duration(0)
	if m.ExecutionsTotal > 0 {
		avgDuration = m.TotalDuration / time.Duration(m.ExecutionsTotal)
	}

	successRate := 1.0
	if m.ExecutionsTotal > 0 {
		successRate = float64(m.SuccessTotal) / float64(m.ExecutionsTotal)
	}

	var totalDispatched int64
	for _, v := range m.DispatchedTotal {
		totalDispatched += v
	}

	var totalCompletions int64
	for _, v := range m.CompletionsTotal {
		totalCompletions += v
	}

	return DispatcherMetricsSnapshot{
		TotalDispatched:  totalDispatched,
		TotalExecutions:  m.ExecutionsTotal,
		TotalFailures:    m.FailuresTotal,
		TotalCompletions: totalCompletions,
		SuccessRate:      successRate,
		AverageDuration:  avgDuration,
		LastReset:        m.LastReset,
	}
}

// DispatcherMetricsSnapshot is a point-in-time snapshot.
type DispatcherMetricsSnapshot struct {
	TotalDispatched  int64
	TotalExecutions  int64
	TotalFailures    int64
	TotalCompletions int64
	SuccessRate      float64
	AverageDuration  time.Duration
	LastReset        time.Time
}
