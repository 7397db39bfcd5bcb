// Package scheduler implements background job scheduling for the achievement
// engine. Periodic maintenance runs through it: dedup window sweeping,
// leaderboard cache rebuilds and synthetic activity event injection.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler
	// stops.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule decides when a job fires.
type Schedule interface {
	// Next returns the first fire time strictly after t.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// JobStats accumulates per-job execution counters.
type JobStats struct {
	Runs         int64
	Failures     int64
	LastRun      time.Time
	LastDuration time.Duration
	LastError    string
}

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig contains configuration for the Scheduler.
type SchedulerConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Timezone for schedule calculations (default: UTC). Cron schedules for
	// daily/weekly synthetic events align to this zone's midnight.
	Timezone *time.Location

	// EnableMetrics enables per-job execution counters.
	EnableMetrics bool
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:        slog.Default(),
		Timezone:      time.UTC,
		EnableMetrics: true,
	}
}

// entry is one registered job with its timing state. Guarded by Scheduler.mu.
type entry struct {
	job      Job
	schedule Schedule
	nextRun  time.Time
	inFlight bool
	stats    JobStats
}

// Scheduler fires registered jobs according to their schedules. Instead of
// polling it sleeps until the earliest nextRun; Register wakes the loop so a
// job added at runtime is picked up immediately.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry

	logger  *slog.Logger
	tz      *time.Location
	metrics bool

	running   bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wake      chan struct{}
	wg        sync.WaitGroup
}

// NewScheduler creates a new Scheduler with the given configuration.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}

	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  config.Logger,
		tz:      config.Timezone,
		metrics: config.EnableMetrics,
		wake:    make(chan struct{}, 1),
	}
}

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	name := job.Name()

	s.mu.Lock()
	if _, exists := s.entries[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(time.Now().In(s.tz)),
	}
	s.entries[name] = e
	s.mu.Unlock()

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)

	s.poke()
	return nil
}

// Start begins the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	jobCount := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", jobCount)

	s.wg.Add(1)
	go s.loop()

	return nil
}

// Stop cancels the loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	startedAt := s.startedAt
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("scheduler stopped", "uptime", time.Since(startedAt).String())
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns a snapshot of per-job counters. Empty when metrics are
// disabled.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobStats, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.stats
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// LOOP
// ══════════════════════════════════════════════════════════════════════════════

// idleWait bounds the sleep so newly computed schedules are re-examined even
// without a wake signal.
const idleWait = time.Minute

func (s *Scheduler) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		wait := s.dispatchDue()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// dispatchDue fires every due job and returns how long to sleep until the
// next one.
func (s *Scheduler) dispatchDue() time.Duration {
	now := time.Now().In(s.tz)

	s.mu.Lock()
	var due []*entry
	wait := idleWait
	for _, e := range s.entries {
		if e.nextRun.IsZero() {
			continue
		}
		if !e.nextRun.After(now) {
			if !e.inFlight {
				e.inFlight = true
				// Advance before running so a slow job cannot overlap itself.
				e.nextRun = e.schedule.Next(now)
				due = append(due, e)
			}
			continue
		}
		if d := e.nextRun.Sub(now); d < wait {
			wait = d
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go s.run(e)
	}

	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

func (s *Scheduler) run(e *entry) {
	defer s.wg.Done()

	name := e.job.Name()
	start := time.Now()
	s.logger.Info("job started", "job", name)

	err := e.job.Run(s.ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	e.inFlight = false
	if s.metrics {
		e.stats.Runs++
		e.stats.LastRun = start
		e.stats.LastDuration = elapsed
		e.stats.LastError = ""
		if err != nil {
			e.stats.Failures++
			e.stats.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", elapsed.String(), "error", err)
		return
	}
	s.logger.Info("job completed", "job", name, "duration", elapsed.String())

	s.poke()
}

// poke wakes the loop without blocking.
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
