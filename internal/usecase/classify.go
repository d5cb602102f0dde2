package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
	"NewsCurator/internal/ports"
)

const defaultMaxAttempts = 3

// ClassifierConfig bounds the load put on the classification capability.
type ClassifierConfig struct {
	Concurrency    int
	RatePerSecond  float64
	Burst          int
	Timeout        time.Duration
	Retries        uint64
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// MaxAttempts is how many runs may fail on one item before it is queued
	// for manual review without a suggestion.
	MaxAttempts int
}

func (c ClassifierConfig) withDefaults() ClassifierConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

// Classifier suggests categories for unclassified news and files curation items.
type Classifier struct {
	news       ports.NewsRepository
	curation   ports.CurationRepository
	categories ports.CategoryRepository
	capability ports.ClassificationCapability
	cfg        ClassifierConfig
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// NewClassifier wires the classifier. capability may be nil when AI is never enabled.
func NewClassifier(
	news ports.NewsRepository,
	curation ports.CurationRepository,
	categories ports.CategoryRepository,
	capability ports.ClassificationCapability,
	cfg ClassifierConfig,
	logger *slog.Logger,
) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Classifier{
		news:       news,
		curation:   curation,
		categories: categories,
		capability: capability,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Classify processes one batch. Item failures are collected in the result;
// only persistence failures are returned.
func (c *Classifier) Classify(ctx context.Context, settings domain.RunSettings) (domain.ClassifyResult, error) {
	result := domain.ClassifyResult{Errors: []domain.ItemError{}}

	items, err := c.news.ListUnclassified(ctx, settings.BatchSize)
	if err != nil {
		return result, fmt.Errorf("select unclassified: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}

	useAI := settings.AIEnabled && c.capability != nil
	var catalog categoryIndex
	var categories []domain.Category
	if useAI {
		categories, err = c.categories.List(ctx)
		if err != nil {
			return result, fmt.Errorf("load categories: %w", err)
		}
		catalog = newCategoryIndex(categories)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for _, news := range items {
		g.Go(func() error {
			item := domain.CurationItem{
				ID:            uuid.NewString(),
				ScrapedNewsID: news.ID,
				Status:        domain.StatusPending,
			}

			if useAI {
				suggestion, err := c.suggest(gctx, news, categories, settings.Model)
				if err != nil {
					attempts, rerr := c.news.RecordClassifyFailure(gctx, news.ID, c.now())
					if rerr != nil {
						return fmt.Errorf("record classify failure for %s: %w", news.ID, rerr)
					}
					mu.Lock()
					result.Failed++
					result.Errors = append(result.Errors, domain.ItemError{ID: news.ID, Error: err.Error()})
					mu.Unlock()
					if attempts < c.cfg.MaxAttempts {
						c.logger.Warn("classification failed", "news_id", news.ID, "attempts", attempts, "error", err)
						return nil
					}
					c.logger.Warn("classification given up, queued for manual review", "news_id", news.ID, "attempts", attempts, "error", err)
					item.AIReasoning = fmt.Sprintf("classification failed after %d attempts: %v", attempts, err)
					item.AIModel = c.modelName(settings)
				} else {
					decide(&item, suggestion, catalog, settings, c.modelName(settings))
				}
			}

			inserted, err := c.curation.InsertIfAbsent(gctx, item)
			if err != nil {
				return fmt.Errorf("create curation item for %s: %w", news.ID, err)
			}
			if !inserted {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if item.Status == domain.StatusApproved {
				result.AutoApproved++
			} else {
				result.QueuedForReview++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	c.logger.Info("classification batch finished",
		"processed", result.Processed,
		"auto_approved", result.AutoApproved,
		"queued", result.QueuedForReview,
		"failed", result.Failed,
		"ai", useAI,
	)
	return result, nil
}

// decide applies the auto-approval rule to item.
func decide(item *domain.CurationItem, s domain.Suggestion, catalog categoryIndex, settings domain.RunSettings, model string) {
	item.AIConfidence = s.Confidence
	item.AIReasoning = s.Reasoning
	item.AIModel = model

	categoryID, known := catalog.match(s.Category)
	if !known {
		return
	}
	item.AICategoryID = &categoryID
	if settings.AIEnabled && s.Confidence >= settings.AutoApproveThreshold {
		item.Status = domain.StatusApproved
		manual := categoryID
		item.ManualCategoryID = &manual
	}
}

func (c *Classifier) modelName(settings domain.RunSettings) string {
	if settings.Model != "" {
		return settings.Model
	}
	return c.capability.Name()
}

func (c *Classifier) suggest(ctx context.Context, news domain.ScrapedNews, categories []domain.Category, model string) (domain.Suggestion, error) {
	provider := c.capability.Name()
	req := domain.ClassificationRequest{
		Title:      news.Title,
		Summary:    news.Summary,
		URL:        news.OriginalURL,
		Categories: categories,
		Model:      model,
	}

	var suggestion domain.Suggestion
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		started := time.Now()
		s, err := c.capability.Classify(callCtx, req)
		metrics.ClassificationDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
		if err != nil {
			if errors.Is(err, domain.ErrMalformedClassification) || errors.Is(err, domain.ErrClassifierRejected) {
				return backoff.Permanent(err)
			}
			return err
		}
		suggestion = s
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.BackoffInitial
	exp.MaxInterval = c.cfg.BackoffMax
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.cfg.Retries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		outcome := "failed"
		if errors.Is(err, domain.ErrMalformedClassification) {
			outcome = "malformed"
		}
		metrics.ClassificationsTotal.WithLabelValues(provider, outcome).Inc()
		return domain.Suggestion{}, err
	}
	metrics.ClassificationsTotal.WithLabelValues(provider, "ok").Inc()
	return suggestion, nil
}

// categoryIndex resolves a suggested category by id, slug or name.
type categoryIndex map[string]string

func newCategoryIndex(categories []domain.Category) categoryIndex {
	idx := make(categoryIndex, len(categories)*3)
	for _, cat := range categories {
		for _, key := range []string{cat.Name, cat.Slug, cat.ID} {
			if key = strings.ToLower(strings.TrimSpace(key)); key != "" {
				idx[key] = cat.ID
			}
		}
	}
	return idx
}

func (idx categoryIndex) match(suggested string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(suggested))
	if key == "" {
		return "", false
	}
	id, ok := idx[key]
	return id, ok
}
