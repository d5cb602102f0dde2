package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
	"NewsCurator/internal/ports"
)

const (
	defaultWorkers      = 4
	defaultMaxBatchSize = 500
	maxLimitPerSource   = 1000
)

// OrchestratorDeps wires all driven adapters into the orchestration pipeline.
type OrchestratorDeps struct {
	Sources    ports.SourceRepository
	Collector  ports.CandidateSource
	Ingestor   *Ingestor
	Classifier *Classifier
	News       ports.NewsRepository
	Curation   ports.CurationRepository
	Settings   ports.SettingsRepository
	Runs       *RunRegistry
	// Defaults apply to settings missing from the settings store.
	Defaults domain.RunSettings
	// MaxBatchSize caps the batch_size override of a single run.
	MaxBatchSize int
	Workers      int
	Logger       *slog.Logger
}

// Orchestrator runs collect, classify and full pipelines.
// It keeps no state between runs apart from the run registry.
type Orchestrator struct {
	sources    ports.SourceRepository
	collector  ports.CandidateSource
	ingestor   *Ingestor
	classifier *Classifier
	news       ports.NewsRepository
	curation   ports.CurationRepository
	settings   ports.SettingsRepository
	runs       *RunRegistry
	defaults   domain.RunSettings
	maxBatch   int
	workers    int
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runs := deps.Runs
	if runs == nil {
		runs = NewRunRegistry()
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	maxBatch := deps.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	return &Orchestrator{
		sources:    deps.Sources,
		collector:  deps.Collector,
		ingestor:   deps.Ingestor,
		classifier: deps.Classifier,
		news:       deps.News,
		curation:   deps.Curation,
		settings:   deps.Settings,
		runs:       runs,
		defaults:   deps.Defaults,
		maxBatch:   maxBatch,
		workers:    workers,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ActiveRuns lists the runs currently in flight.
func (o *Orchestrator) ActiveRuns() []domain.RunInfo {
	return o.runs.List()
}

// CancelRun stops an in-flight run; false when it is not running.
func (o *Orchestrator) CancelRun(runID string) bool {
	return o.runs.Cancel(runID)
}

// validateRunOptions checks per-run overrides. Zero values mean "use the stored setting".
func validateRunOptions(opts domain.RunOptions, maxBatch int) error {
	err := validation.ValidateStruct(&opts,
		validation.Field(&opts.AutoApproveThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&opts.BatchSize, validation.Min(1), validation.Max(maxBatch)),
		validation.Field(&opts.LimitPerSource, validation.Min(1), validation.Max(maxLimitPerSource)),
		validation.Field(&opts.SourceIDs, validation.Each(validation.Required)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// ResolveSettings reads the settings store and overlays per-run overrides.
func (o *Orchestrator) ResolveSettings(ctx context.Context, opts domain.RunOptions) (domain.RunSettings, error) {
	settings := o.defaults
	if o.settings != nil {
		stored, err := o.settings.Load(ctx)
		if err != nil {
			return settings, fmt.Errorf("load settings: %w", err)
		}
		settings = settings.Merge(stored)
	}
	return settings.Apply(opts), nil
}

// Run executes one pipeline step. Per-source and per-item failures are
// reported in the RunReport; only persistence failures are returned.
func (o *Orchestrator) Run(ctx context.Context, step string, opts domain.RunOptions) (report domain.RunReport, err error) {
	switch step {
	case domain.StepCollect, domain.StepClassify, domain.StepFull:
	default:
		return domain.RunReport{}, fmt.Errorf("%w: %q", domain.ErrUnknownStep, step)
	}
	if err := validateRunOptions(opts, o.maxBatch); err != nil {
		return domain.RunReport{}, err
	}

	runCtx, runID, release, err := o.runs.Begin(ctx, opts.RunID, step)
	if err != nil {
		return domain.RunReport{}, err
	}
	defer release()

	report = domain.RunReport{RunID: runID, Step: step, StartedAt: o.now()}
	defer func() {
		report.FinishedAt = o.now()
		metrics.ObserveRun(step, report.Success, report.FinishedAt.Sub(report.StartedAt))
	}()

	settings, err := o.ResolveSettings(runCtx, opts)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, err
	}
	report.Settings = settings

	log := o.logger.With("run_id", runID, "step", step)
	if opts.Trigger != "" {
		log = log.With("trigger", opts.Trigger)
	}
	log.Info("pipeline run started")

	switch step {
	case domain.StepCollect:
		collect, err := o.collect(runCtx, settings, opts.SourceIDs)
		report.Collect = collect
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			return report, err
		}
		report.Success = true

	case domain.StepClassify:
		classify, err := o.classifier.Classify(runCtx, settings)
		report.Classify = &classify
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			return report, err
		}
		report.Success = true

	case domain.StepFull:
		// collect returns only after every ingestion committed.
		collect, collectErr := o.collect(runCtx, settings, opts.SourceIDs)
		report.Collect = collect
		if collectErr != nil {
			report.Errors = append(report.Errors, "collect: "+collectErr.Error())
		}

		if runCtx.Err() != nil {
			report.Cancelled = true
			report.Success = collectErr == nil
			log.Warn("run cancelled before classification")
			return report, collectErr
		}

		classify, classifyErr := o.classifier.Classify(runCtx, settings)
		report.Classify = &classify
		if classifyErr != nil {
			report.Errors = append(report.Errors, "classify: "+classifyErr.Error())
			log.Warn("classification step failed", "error", classifyErr)
		}
		report.Success = collectErr == nil
		if collectErr != nil {
			return report, collectErr
		}
	}

	report.Cancelled = runCtx.Err() != nil
	log.Info("pipeline run finished", "success", report.Success, "cancelled", report.Cancelled)
	return report, nil
}

// collect scans the selected active sources on a bounded pool and ingests each result.
func (o *Orchestrator) collect(ctx context.Context, settings domain.RunSettings, sourceIDs []string) (*domain.CollectReport, error) {
	report := &domain.CollectReport{Sources: []domain.SourceOutcome{}}

	sources, err := o.activeSources(ctx, sourceIDs)
	if err != nil {
		return report, err
	}

	outcomes := make([]domain.SourceOutcome, len(sources))
	var g errgroup.Group
	g.SetLimit(o.workers)

	for i, src := range sources {
		outcomes[i] = domain.SourceOutcome{SourceID: src.ID, Name: src.Name}
		g.Go(func() error {
			outcome := &outcomes[i]
			if err := ctx.Err(); err != nil {
				outcome.Error = "not started: " + err.Error()
				return nil
			}

			result, err := o.collector.CollectLatest(ctx, src, settings.MaxArticlesPerFetch)
			outcome.PagesFetched = result.PagesFetched
			outcome.PagesFailed = result.PagesFailed
			outcome.Partial = result.Partial
			outcome.Checked = len(result.Items)
			if err != nil {
				outcome.Error = err.Error()
				o.logger.Warn("source scan failed", "source", src.ID, "error", err)
			} else if result.Partial && result.LastError != nil {
				outcome.Error = "partial: " + result.LastError.Error()
			}

			// Items from a fetch that finished after cancellation are still committed.
			ingested, err := o.ingestor.Ingest(context.WithoutCancel(ctx), src.ID, result.Items)
			outcome.Inserted = ingested.Inserted
			outcome.Skipped = ingested.Skipped
			outcome.Invalid = ingested.Invalid
			if err != nil {
				outcome.Error = err.Error()
				return err
			}
			return nil
		})
	}

	waitErr := g.Wait()

	report.Sources = outcomes
	for _, outcome := range outcomes {
		report.Checked += outcome.Checked
		report.Inserted += outcome.Inserted
		report.Skipped += outcome.Skipped
		report.Invalid += outcome.Invalid
		// A partial scan that fetched nothing counts as a failed source.
		if outcome.Error != "" && (!outcome.Partial || outcome.PagesFetched == 0) {
			report.Failed++
		}
	}
	return report, waitErr
}

func (o *Orchestrator) activeSources(ctx context.Context, ids []string) ([]domain.Source, error) {
	if len(ids) == 0 {
		sources, err := o.sources.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active sources: %w", err)
		}
		return sources, nil
	}

	selected, err := o.sources.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	active := selected[:0]
	for _, src := range selected {
		if src.Active {
			active = append(active, src)
		}
	}
	return active, nil
}

// Stats summarizes the queue for dashboards.
func (o *Orchestrator) Stats(ctx context.Context) (domain.Stats, error) {
	sources, err := o.sources.ListActive(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	counts, err := o.curation.CountByStatus(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	recent, err := o.news.CountSince(ctx, o.now().Add(-24*time.Hour))
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}

	byStatus := make(map[domain.CurationStatus]int, len(counts))
	for _, status := range []domain.CurationStatus{
		domain.StatusPending, domain.StatusEditing, domain.StatusApproved, domain.StatusRejected, domain.StatusPublished,
	} {
		byStatus[status] = counts[status]
	}

	return domain.Stats{
		ActiveSources:    len(sources),
		PendingCuration:  counts[domain.StatusPending],
		IngestedLast24h:  recent,
		CurationByStatus: byStatus,
	}, nil
}
