package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
	"NewsCurator/internal/ports"
	"NewsCurator/internal/urlnorm"
)

// Ingestor turns candidate items into deduplicated ScrapedNews rows.
type Ingestor struct {
	news   ports.NewsRepository
	seen   ports.SeenCache
	logger *slog.Logger
	now    func() time.Time
}

// NewIngestor builds an ingestor. seen may be nil.
func NewIngestor(news ports.NewsRepository, seen ports.SeenCache, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{
		news:   news,
		seen:   seen,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type normalizedItem struct {
	item       domain.CandidateItem
	normalized string
}

// Ingest stores the candidates that are not known yet for the source.
// Only a persistence failure is returned as an error.
func (i *Ingestor) Ingest(ctx context.Context, sourceID string, candidates []domain.CandidateItem) (domain.IngestResult, error) {
	var result domain.IngestResult
	if len(candidates) == 0 {
		return result, nil
	}

	fresh := make([]normalizedItem, 0, len(candidates))
	inBatch := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		normalized, err := urlnorm.Normalize(c.URL)
		if err != nil || strings.TrimSpace(c.Title) == "" {
			result.Invalid++
			continue
		}
		if inBatch[normalized] {
			result.Skipped++
			continue
		}
		inBatch[normalized] = true
		fresh = append(fresh, normalizedItem{item: c, normalized: normalized})
	}

	fresh, skipped := i.dropSeen(ctx, sourceID, fresh)
	result.Skipped += skipped
	if len(fresh) == 0 {
		metrics.ObserveIngest(sourceID, result.Inserted, result.Skipped, result.Invalid)
		return result, nil
	}

	urls := make([]string, len(fresh))
	for idx, it := range fresh {
		urls[idx] = it.normalized
	}
	existing, err := i.news.ExistingURLs(ctx, sourceID, urls)
	if err != nil {
		return result, fmt.Errorf("ingest %s: %w", sourceID, err)
	}

	known := make([]string, 0, len(fresh))
	for _, it := range fresh {
		if existing[it.normalized] {
			result.Skipped++
			known = append(known, it.normalized)
			continue
		}

		inserted, err := i.news.InsertIfAbsent(ctx, i.toNews(sourceID, it))
		if err != nil {
			return result, fmt.Errorf("ingest %s: %w", sourceID, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
		known = append(known, it.normalized)
	}

	i.markSeen(ctx, sourceID, known)
	metrics.ObserveIngest(sourceID, result.Inserted, result.Skipped, result.Invalid)

	i.logger.Debug("ingested candidates",
		"source", sourceID,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"invalid", result.Invalid,
	)
	return result, nil
}

func (i *Ingestor) toNews(sourceID string, it normalizedItem) domain.ScrapedNews {
	var published *time.Time
	if it.item.PublishedAt != nil {
		t := it.item.PublishedAt.UTC()
		published = &t
	}
	return domain.ScrapedNews{
		ID:            uuid.NewString(),
		SourceID:      sourceID,
		Title:         strings.TrimSpace(it.item.Title),
		Summary:       strings.TrimSpace(it.item.Summary),
		OriginalURL:   it.item.URL,
		NormalizedURL: it.normalized,
		ImageURL:      it.item.ImageURL,
		PublishedAt:   published,
		IngestedAt:    i.now(),
	}
}

// dropSeen removes cache hits. Cache errors are logged and ignored.
func (i *Ingestor) dropSeen(ctx context.Context, sourceID string, items []normalizedItem) ([]normalizedItem, int) {
	if i.seen == nil || len(items) == 0 {
		return items, 0
	}
	urls := make([]string, len(items))
	for idx, it := range items {
		urls[idx] = it.normalized
	}
	hits, err := i.seen.Seen(ctx, sourceID, urls)
	if err != nil {
		i.logger.Warn("seen cache lookup failed", "source", sourceID, "error", err)
		return items, 0
	}

	kept := items[:0]
	skipped := 0
	for _, it := range items {
		if hits[it.normalized] {
			skipped++
			continue
		}
		kept = append(kept, it)
	}
	return kept, skipped
}

func (i *Ingestor) markSeen(ctx context.Context, sourceID string, urls []string) {
	if i.seen == nil || len(urls) == 0 {
		return
	}
	if err := i.seen.Mark(ctx, sourceID, urls); err != nil {
		i.logger.Warn("seen cache update failed", "source", sourceID, "error", err)
	}
}
