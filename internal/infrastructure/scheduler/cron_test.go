package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCronSchedulerRejectsBadExpression(t *testing.T) {
	t.Parallel()

	if _, err := NewCronScheduler("every hour", time.UTC, nil); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewCronScheduler("0 * * * * *", time.UTC, nil); err == nil {
		t.Fatal("six-field expressions must be rejected")
	}
}

func TestCronSchedulerStartStop(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("*/5 * * * *", time.UTC, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatal("unstarted scheduler has no next run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx, func(time.Time) {}); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start = %v, want ErrAlreadyStarted", err)
	}

	next := s.Next()
	if next.IsZero() || next.Minute()%5 != 0 {
		t.Fatalf("unexpected next run %v", next)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestCronSchedulerNilJob(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("@hourly", nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatal("nil job must not start the loop")
	}
}
