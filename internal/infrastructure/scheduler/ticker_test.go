package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	s := NewTickerScheduler(10*time.Millisecond, time.UTC)
	var runs atomic.Int32
	ticked := make(chan struct{}, 8)

	err := s.Start(context.Background(), func(at time.Time) {
		if at.Location() != time.UTC {
			t.Errorf("unexpected location %v", at.Location())
		}
		runs.Add(1)
		select {
		case ticked <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-ticked:
		case <-time.After(2 * time.Second):
			t.Fatalf("job did not run")
		}
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job ran after Stop")
	}
}

func TestTickerSchedulerStopWithoutStart(t *testing.T) {
	t.Parallel()

	if err := NewTickerScheduler(time.Hour, nil).Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
