package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BrandonDHaskell/shiftledger/internal/ledger/service"
)

func TestScheduler_DisabledWhenIntervalZero(t *testing.T) {
	var runs atomic.Int32
	s := service.NewScheduler(func(context.Context) error {
		runs.Add(1)
		return nil
	}, service.ScheduleConfig{Name: "noop"}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	// Stop should return immediately without error.
	s.Stop()

	if runs.Load() != 0 {
		t.Errorf("expected no runs, got %d", runs.Load())
	}
}

func TestScheduler_RunsImmediatelyAndSurvivesFailures(t *testing.T) {
	var runs atomic.Int32
	s := service.NewScheduler(func(context.Context) error {
		n := runs.Add(1)
		switch n {
		case 1:
			return errors.New("first run fails")
		case 2:
			panic("second run panics")
		}
		return nil
	}, service.ScheduleConfig{Name: "flaky", Interval: 10 * time.Millisecond}, silentLogger())

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}
}

func TestScheduler_RunNowWrapsErrSchedule(t *testing.T) {
	boom := errors.New("boom")
	s := service.NewScheduler(func(context.Context) error { return boom },
		service.ScheduleConfig{Name: "boom", Interval: time.Hour}, silentLogger())

	err := s.RunNow(context.Background())
	if !errors.Is(err, service.ErrSchedule) {
		t.Errorf("expected ErrSchedule, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped task error, got %v", err)
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := service.NewScheduler(func(context.Context) error { return nil },
		service.ScheduleConfig{Name: "idle", Interval: time.Hour}, silentLogger())

	// Stop before Start must not block.
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	cancel()
	// Multiple stops should not panic.
	s.Stop()
	s.Stop()
}
