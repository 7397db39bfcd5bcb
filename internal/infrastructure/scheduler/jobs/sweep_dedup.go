// Package jobs contains implementations of the engine's scheduled jobs:
// dedup window maintenance, leaderboard cache rebuilds, and synthetic
// activity event injection.
package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP DEDUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// DedupSweeper is the slice of the event queue this job needs.
type DedupSweeper interface {
	// SweepDedup evicts expired dedup entries and returns how many.
	SweepDedup() int

	// DedupSize returns the number of dedup entries currently held.
	DedupSize() int
}

// SweepDedupJob periodically evicts expired entries from the queue's dedup
// window. The queue also sweeps opportunistically on enqueue, so this job
// only bounds memory during quiet periods when no events arrive.
type SweepDedupJob struct {
	queue  DedupSweeper
	logger *slog.Logger

	totalEvicted atomic.Int64
}

// NewSweepDedupJob creates a new SweepDedupJob.
func NewSweepDedupJob(queue DedupSweeper, logger *slog.Logger) *SweepDedupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepDedupJob{
		queue:  queue,
		logger: logger,
	}
}

// Name returns the job name.
func (j *SweepDedupJob) Name() string {
	return "sweep_dedup"
}

// Description returns a human-readable description.
func (j *SweepDedupJob) Description() string {
	return "Evicts expired entries from the event queue dedup window"
}

// Run executes one sweep.
func (j *SweepDedupJob) Run(ctx context.Context) error {
	evicted := j.queue.SweepDedup()
	j.totalEvicted.Add(int64(evicted))

	if evicted > 0 {
		j.logger.Debug("dedup window swept",
			"evicted", evicted,
			"remaining", j.queue.DedupSize(),
		)
	}

	return nil
}

// TotalEvicted returns how many entries all runs evicted so far.
func (j *SweepDedupJob) TotalEvicted() int64 {
	return j.totalEvicted.Load()
}
