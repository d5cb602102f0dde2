package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
)

const (
	defaultBackfillLimit = 100
	maxBackfillLimit     = 1000
	maxBackfillDays      = 366
)

func validateBackfill(req domain.BackfillRequest) error {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.StartDate, validation.Required),
		validation.Field(&req.EndDate, validation.Required, validation.By(func(any) error {
			if req.StartDate.IsZero() || req.EndDate.IsZero() {
				return nil
			}
			if req.EndDate.Before(req.StartDate) {
				return errors.New("must not be before start_date")
			}
			if days := int(req.EndDate.Sub(req.StartDate)/(24*time.Hour)) + 1; days > maxBackfillDays {
				return fmt.Errorf("range spans %d days, at most %d allowed", days, maxBackfillDays)
			}
			return nil
		})),
		validation.Field(&req.SourceIDs, validation.Required, validation.Each(validation.Required)),
		validation.Field(&req.LimitPerSource, validation.Min(1), validation.Max(maxBackfillLimit)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// Backfill collects items published between StartDate and EndDate, inclusive,
// from the listed sources. Sources are scanned even if inactive.
func (o *Orchestrator) Backfill(ctx context.Context, req domain.BackfillRequest) (domain.BackfillReport, error) {
	if req.LimitPerSource == 0 {
		req.LimitPerSource = defaultBackfillLimit
	}
	if err := validateBackfill(req); err != nil {
		return domain.BackfillReport{}, err
	}
	start := dayStart(req.StartDate)
	end := dayStart(req.EndDate).Add(24*time.Hour - time.Nanosecond)

	runCtx, runID, release, err := o.runs.Begin(ctx, req.RunID, domain.StepBackfill)
	if err != nil {
		return domain.BackfillReport{}, err
	}
	defer release()

	started := o.now()
	report := domain.BackfillReport{RunID: runID, Results: []domain.BackfillOutcome{}}
	log := o.logger.With("run_id", runID, "step", domain.StepBackfill)

	sources, err := o.sources.ListByIDs(runCtx, dedupe(req.SourceIDs))
	if err != nil {
		metrics.ObserveRun(domain.StepBackfill, false, o.now().Sub(started))
		return report, fmt.Errorf("list sources: %w", err)
	}
	known := make(map[string]bool, len(sources))
	for _, src := range sources {
		known[src.ID] = true
	}

	outcomes := make([]domain.BackfillOutcome, len(sources))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, src := range sources {
		outcomes[i] = domain.BackfillOutcome{SourceID: src.ID}
		g.Go(func() error {
			outcome := &outcomes[i]
			if err := runCtx.Err(); err != nil {
				outcome.Error = "not started: " + err.Error()
				return nil
			}

			result, err := o.collector.CollectByPeriod(runCtx, src, start, end, req.LimitPerSource)
			outcome.Checked = len(result.Items)
			if err != nil {
				outcome.Error = err.Error()
				log.Warn("backfill scan failed", "source", src.ID, "error", err)
			} else if result.Partial && result.LastError != nil {
				outcome.Error = "partial: " + result.LastError.Error()
			}

			ingested, err := o.ingestor.Ingest(context.WithoutCancel(runCtx), src.ID, result.Items)
			outcome.Inserted = ingested.Inserted
			outcome.Skipped = ingested.Skipped + ingested.Invalid
			if err != nil {
				outcome.Error = err.Error()
				return err
			}
			return nil
		})
	}
	waitErr := g.Wait()

	report.Results = append(report.Results, outcomes...)
	for _, id := range dedupe(req.SourceIDs) {
		if !known[id] {
			report.Results = append(report.Results, domain.BackfillOutcome{SourceID: id, Error: domain.ErrNotFound.Error()})
		}
	}

	metrics.ObserveRun(domain.StepBackfill, waitErr == nil, o.now().Sub(started))
	log.Info("backfill finished", "sources", len(sources), "from", start.Format(time.DateOnly), "to", end.Format(time.DateOnly))
	return report, waitErr
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
