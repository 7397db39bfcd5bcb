package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clanhub/achievement-engine/internal/domain/shared"
	"github.com/clanhub/achievement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ACTIVITY JOB
// ══════════════════════════════════════════════════════════════════════════════

// ActivitySource lists the (user, group) pairs that produced real events
// inside a time window.
type ActivitySource interface {
	ActiveKeys(ctx context.Context, window shared.TimeRange) ([]shared.ProgressKey, error)
}

// EventSink accepts envelopes for asynchronous processing. Satisfied by the
// event queue.
type EventSink interface {
	Enqueue(envelope shared.Envelope) error
}

// DailyActivityJob injects one synthetic daily_activity event per user that
// was active during the previous day. Streak-style achievements feed on
// these events instead of each rule re-deriving "was active today" from raw
// history.
//
// Scheduled right after midnight ("0 0 * * *"): the window is the full
// calendar day that just ended.
type DailyActivityJob struct {
	source ActivitySource
	sink   EventSink
	logger *slog.Logger
	config DailyActivityConfig

	lastRunStats atomic.Value // *InjectionStats
}

// DailyActivityConfig contains configuration for the daily activity job.
type DailyActivityConfig struct {
	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultDailyActivityConfig returns sensible defaults.
func DefaultDailyActivityConfig() DailyActivityConfig {
	return DailyActivityConfig{
		Timeout: 5 * time.Minute,
	}
}

// InjectionStats contains statistics from a synthetic event injection run.
type InjectionStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	UsersFound     int
	EventsInjected int
	EventsDropped  int
}

// NewDailyActivityJob creates a new DailyActivityJob.
func NewDailyActivityJob(source ActivitySource, sink EventSink, logger *slog.Logger, config DailyActivityConfig) *DailyActivityJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &DailyActivityJob{
		source: source,
		sink:   sink,
		logger: logger,
		config: config,
	}
}

// Name returns the job name.
func (j *DailyActivityJob) Name() string {
	return "daily_activity"
}

// Description returns a human-readable description.
func (j *DailyActivityJob) Description() string {
	return "Injects synthetic daily_activity events for users active yesterday"
}

// Run executes one injection pass.
func (j *DailyActivityJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &InjectionStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	dayStart := timeutil.StartOfDay(startedAt.AddDate(0, 0, -1))
	window := shared.TimeRange{From: dayStart, To: dayStart.AddDate(0, 0, 1)}
	keys, err := j.source.ActiveKeys(ctx, window)
	if err != nil {
		return err
	}
	stats.UsersFound = len(keys)

	for _, key := range keys {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		envelope := shared.NewEnvelope(key.UserID, key.GroupID, shared.EventDailyActivity, map[string]interface{}{
			"date": dayStart.Format(timeutil.FormatDate),
		})
		if err := j.sink.Enqueue(envelope); err != nil {
			// Backpressure: a full queue drops synthetic events, the next
			// run covers the gap.
			stats.EventsDropped++
			continue
		}
		stats.EventsInjected++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("daily_activity job completed",
		"duration", stats.Duration.String(),
		"users", stats.UsersFound,
		"injected", stats.EventsInjected,
		"dropped", stats.EventsDropped,
	)

	return nil
}

// LastRunStats returns statistics from the last run.
func (j *DailyActivityJob) LastRunStats() *InjectionStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*InjectionStats)
}
