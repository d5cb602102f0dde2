package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

// Scheduler wires the cron-like driver with the orchestrator. A tick runs the
// full pipeline once fetch_interval_hours have passed since the last run.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
	notifier     ports.Notifier
	logger       *slog.Logger

	mu      sync.Mutex
	lastRun time.Time
}

// NewScheduler returns a helper to start/stop recurring jobs. notifier may be nil.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator, notifier ports.Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, orchestrator: orchestrator, notifier: notifier, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.Tick(ctx, trigger)
	})
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

// Tick runs one scheduled full pipeline if it is due. It reports whether a run happened.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) bool {
	settings, err := s.orchestrator.ResolveSettings(ctx, domain.RunOptions{})
	if err != nil {
		s.logger.Error("scheduled run skipped", "error", err)
		return false
	}

	s.mu.Lock()
	interval := time.Duration(settings.FetchIntervalHours) * time.Hour
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < interval {
		s.mu.Unlock()
		s.logger.Debug("scheduled run not due", "last_run", s.lastRun, "interval", interval)
		return false
	}
	s.lastRun = now
	s.mu.Unlock()

	report, err := s.orchestrator.Run(ctx, domain.StepFull, domain.RunOptions{Trigger: "scheduler"})
	if err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
	if report.RunID == "" || s.notifier == nil {
		return true
	}

	stats, err := s.orchestrator.Stats(ctx)
	if err != nil {
		s.logger.Warn("digest stats unavailable", "error", err)
	}
	if err := s.notifier.PublishDigest(ctx, buildDigestMessage(report, stats)); err != nil {
		s.logger.Warn("digest delivery failed", "error", err)
	}
	return true
}

// buildDigestMessage renders a plain-text summary of a run for curators.
func buildDigestMessage(report domain.RunReport, stats domain.Stats) string {
	var b strings.Builder
	status := "ok"
	switch {
	case report.Cancelled:
		status = "cancelled"
	case !report.Success:
		status = "failed"
	}
	fmt.Fprintf(&b, "News run %s (%s) %s\n", report.RunID, report.Step, status)

	if c := report.Collect; c != nil {
		fmt.Fprintf(&b, "Collected: %d new, %d skipped, %d invalid from %d sources\n",
			c.Inserted, c.Skipped, c.Invalid, len(c.Sources))
		for _, src := range c.Sources {
			if src.Error != "" {
				fmt.Fprintf(&b, "- %s: %s\n", src.SourceID, src.Error)
			}
		}
	}
	if c := report.Classify; c != nil {
		fmt.Fprintf(&b, "Classified: %d (auto-approved %d, for review %d, failed %d)\n",
			c.Processed, c.AutoApproved, c.QueuedForReview, c.Failed)
	}
	fmt.Fprintf(&b, "Waiting for review: %d\n", stats.PendingCuration)
	return b.String()
}
