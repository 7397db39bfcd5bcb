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
// WEEKLY SUMMARY JOB
// ══════════════════════════════════════════════════════════════════════════════

// MessageCounter aggregates per-user message counts over a window.
type MessageCounter interface {
	CountMessages(ctx context.Context, window shared.TimeRange) (map[shared.ProgressKey]int, error)
}

// WeeklySummaryJob aggregates last week's message counts and injects one
// synthetic weekly_summary event per user who sent anything. Weekly-volume
// achievements consume the aggregate instead of counting raw messages.
//
// Scheduled right after the week boundary ("0 0 * * 1"): the window is the
// full Monday-to-Sunday week that just ended.
type WeeklySummaryJob struct {
	counter MessageCounter
	sink    EventSink
	logger  *slog.Logger
	config  WeeklySummaryConfig

	lastRunStats atomic.Value // *InjectionStats
}

// WeeklySummaryConfig contains configuration for the weekly summary job.
type WeeklySummaryConfig struct {
	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultWeeklySummaryConfig returns sensible defaults.
func DefaultWeeklySummaryConfig() WeeklySummaryConfig {
	return WeeklySummaryConfig{
		Timeout: 5 * time.Minute,
	}
}

// NewWeeklySummaryJob creates a new WeeklySummaryJob.
func NewWeeklySummaryJob(counter MessageCounter, sink EventSink, logger *slog.Logger, config WeeklySummaryConfig) *WeeklySummaryJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &WeeklySummaryJob{
		counter: counter,
		sink:    sink,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *WeeklySummaryJob) Name() string {
	return "weekly_summary"
}

// Description returns a human-readable description.
func (j *WeeklySummaryJob) Description() string {
	return "Aggregates last week's message counts into weekly_summary events"
}

// Run executes one aggregation pass.
func (j *WeeklySummaryJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &InjectionStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	// The week containing "one hour ago" is the week that just ended when
	// the job fires at Monday midnight.
	weekStart := timeutil.StartOfWeek(startedAt.Add(-time.Hour))
	window := shared.TimeRange{From: weekStart, To: weekStart.AddDate(0, 0, 7)}

	counts, err := j.counter.CountMessages(ctx, window)
	if err != nil {
		return err
	}
	stats.UsersFound = len(counts)

	for key, messages := range counts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		envelope := shared.NewEnvelope(key.UserID, key.GroupID, shared.EventWeeklySummary, map[string]interface{}{
			"messages":   messages,
			"week_start": weekStart.Format(timeutil.FormatDate),
		})
		if err := j.sink.Enqueue(envelope); err != nil {
			stats.EventsDropped++
			continue
		}
		stats.EventsInjected++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("weekly_summary job completed",
		"duration", stats.Duration.String(),
		"week_start", weekStart.Format(timeutil.FormatDate),
		"users", stats.UsersFound,
		"injected", stats.EventsInjected,
		"dropped", stats.EventsDropped,
	)

	return nil
}

// LastRunStats returns statistics from the last run.
func (j *WeeklySummaryJob) LastRunStats() *InjectionStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*InjectionStats)
}
