package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// Scheduler runs a Task in a background goroutine: once immediately on Start,
// then on every tick of its interval.  A failed or panicking run is logged
// and the loop carries on.
//
// An interval of 0 disables the scheduler entirely.
type Scheduler struct {
	name     string
	task     Task
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// ScheduleConfig holds the parameters for NewScheduler.
type ScheduleConfig struct {
	// Name identifies the task in logs.
	Name string

	// Interval is the time between runs.  0 disables the task.
	Interval time.Duration
}

// NewScheduler creates a scheduler but does not start it.
func NewScheduler(task Task, cfg ScheduleConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		name:     cfg.Name,
		task:     task,
		interval: cfg.Interval,
		logger:   logger.With("task", cfg.Name),
		done:     make(chan struct{}),
	}
}

// Start begins the background loop.  The loop exits when ctx is cancelled or
// Stop is called.  Calling Start more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	if s.interval <= 0 {
		s.logger.Info("scheduler disabled (interval=0)")
		close(s.done)
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)

	s.logger.Info("scheduler started", "interval", s.interval.String())
}

// Stop signals the loop to exit and waits for it.  Safe to call more than
// once, and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started, cancel := s.started, s.cancel
	s.mu.Unlock()

	if !started {
		return
	}
	if cancel != nil {
		cancel()
	}
	<-s.done
}

// RunNow executes the task once on the caller's goroutine.  The returned
// error wraps ErrSchedule.
func (s *Scheduler) RunNow(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrSchedule, s.name, r)
		}
		if err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}()

	if err := s.task(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSchedule, s.name, err)
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	// Run immediately on startup.
	_ = s.RunNow(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.RunNow(ctx)
		}
	}
}
