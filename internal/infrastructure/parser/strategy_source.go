package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
	"NewsCurator/internal/ports"
	"NewsCurator/internal/scanner"
)

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// CollectLatest scans the source's current listing.
func (s *StrategySource) CollectLatest(ctx context.Context, source domain.Source, limit int) (domain.ScanResult, error) {
	return s.scan(ctx, scanner.Request{Source: source, Mode: scanner.ModeLatest, Limit: limit})
}

// CollectByPeriod scans for items published within [start, end of end's day].
func (s *StrategySource) CollectByPeriod(ctx context.Context, source domain.Source, start, end time.Time, limit int) (domain.ScanResult, error) {
	if end.Before(start) {
		return domain.ScanResult{}, fmt.Errorf("source %s: period end %s before start %s", source.ID, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return s.scan(ctx, scanner.Request{Source: source, Mode: scanner.ModePeriod, Start: start, End: end, Limit: limit})
}

func (s *StrategySource) scan(ctx context.Context, req scanner.Request) (domain.ScanResult, error) {
	if s.registry == nil {
		return domain.ScanResult{}, fmt.Errorf("scanner registry is not configured")
	}

	name := req.Source.StrategyName()
	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("source %s: %w", req.Source.ID, err)
	}
	if strategy.Name() != name {
		s.debug("unknown strategy, using fallback", "source", req.Source.ID, "strategy", name, "fallback", strategy.Name())
	}

	s.debug("scan source", "source", req.Source.ID, "strategy", strategy.Name(), "mode", req.Mode, "limit", req.Limit)
	started := time.Now()
	result, err := strategy.Scan(ctx, req)
	metrics.ScanDuration.WithLabelValues(strategy.Name()).Observe(time.Since(started).Seconds())
	if err != nil {
		return result, err
	}

	for i := range result.Items {
		if result.Items[i].SourceID == "" {
			result.Items[i].SourceID = req.Source.ID
		}
	}
	s.debug("source produced items", "source", req.Source.ID, "count", len(result.Items),
		"pages_fetched", result.PagesFetched, "pages_failed", result.PagesFailed, "partial", result.Partial)
	return result, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
