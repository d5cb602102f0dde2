package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
	"NewsCurator/internal/ports"
)

// maxTransitionAttempts bounds retries when a concurrent writer moved the item
// to another status from which the action is still allowed.
const maxTransitionAttempts = 3

// CurationService drives curation items through the review state machine.
type CurationService struct {
	curation   ports.CurationRepository
	news       ports.NewsRepository
	categories ports.CategoryRepository
	seen       ports.SeenCache
	logger     *slog.Logger
	now        func() time.Time
}

// NewCurationService wires the service. seen may be nil.
func NewCurationService(
	curation ports.CurationRepository,
	news ports.NewsRepository,
	categories ports.CategoryRepository,
	seen ports.SeenCache,
	logger *slog.Logger,
) *CurationService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CurationService{
		curation:   curation,
		news:       news,
		categories: categories,
		seen:       seen,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Get returns one curation item.
func (s *CurationService) Get(ctx context.Context, id string) (domain.CurationItem, error) {
	return s.curation.Get(ctx, id)
}

// List returns a filtered page of the queue.
func (s *CurationService) List(ctx context.Context, filter domain.CurationFilter) (domain.CurationPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.CurationPage{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, filter.Status)
	}
	return s.curation.List(ctx, filter.Normalize())
}

// Approve moves a pending or editing item to approved. The category is the
// argument, else the manual category, else the AI suggestion.
func (s *CurationService) Approve(ctx context.Context, id, categoryID, curator string) (domain.CurationItem, error) {
	item, err := s.apply(ctx, id, domain.ActionApprove, func(current domain.CurationItem) (domain.CurationUpdate, error) {
		category := strings.TrimSpace(categoryID)
		if category == "" {
			category = current.ResolvedCategory()
		}
		if category == "" {
			return domain.CurationUpdate{}, domain.ErrCategoryRequired
		}
		if _, err := s.categories.Get(ctx, category); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.CurationUpdate{}, fmt.Errorf("%w: %s", domain.ErrUnknownCategory, category)
			}
			return domain.CurationUpdate{}, err
		}
		return domain.CurationUpdate{
			ManualCategoryID: &category,
			AssignedCurator:  optional(curator),
		}, nil
	})
	return item, err
}

// Reject moves a pending, editing or approved item to rejected.
func (s *CurationService) Reject(ctx context.Context, id, notes string) (domain.CurationItem, error) {
	return s.apply(ctx, id, domain.ActionReject, notesUpdate(notes, ""))
}

// Edit takes a pending or approved item into editing.
func (s *CurationService) Edit(ctx context.Context, id, notes, curator string) (domain.CurationItem, error) {
	return s.apply(ctx, id, domain.ActionEdit, notesUpdate(notes, curator))
}

// Requeue returns an editing item to pending.
func (s *CurationService) Requeue(ctx context.Context, id, notes string) (domain.CurationItem, error) {
	return s.apply(ctx, id, domain.ActionRequeue, notesUpdate(notes, ""))
}

// Reopen puts a rejected item back to pending.
func (s *CurationService) Reopen(ctx context.Context, id, notes string) (domain.CurationItem, error) {
	return s.apply(ctx, id, domain.ActionReopen, notesUpdate(notes, ""))
}

// Publish creates the article for an approved item and marks it published.
// The status is re-checked inside the publishing transaction.
func (s *CurationService) Publish(ctx context.Context, id string) (domain.CurationItem, error) {
	item, err := s.publish(ctx, id)
	metrics.ObserveTransition(string(domain.ActionPublish), err)
	if err == nil {
		s.logger.Info("curation item published", "id", id, "article_id", deref(item.ArticleID))
	}
	return item, err
}

func (s *CurationService) publish(ctx context.Context, id string) (domain.CurationItem, error) {
	current, err := s.curation.Get(ctx, id)
	if err != nil {
		return domain.CurationItem{}, err
	}
	if _, err := domain.Transition(current.Status, domain.ActionPublish); err != nil {
		return current, err
	}

	category := current.ResolvedCategory()
	if category == "" {
		return current, domain.ErrCategoryRequired
	}
	news, err := s.news.Get(ctx, current.ScrapedNewsID)
	if err != nil {
		return current, fmt.Errorf("load news for %s: %w", id, err)
	}

	articleID := uuid.NewString()
	article := domain.Article{
		ID:                articleID,
		Title:             news.Title,
		Slug:              articleSlug(news.Title, articleID),
		Summary:           news.Summary,
		ImageURL:          news.ImageURL,
		SourceURL:         news.OriginalURL,
		CategoryID:        category,
		Status:            domain.ArticleStatusPublished,
		PublishedAt:       s.now(),
		SourcePublishedAt: news.PublishedAt,
	}

	item, err := s.curation.Publish(ctx, id, article)
	if errors.Is(err, domain.ErrStatusChanged) {
		return item, &domain.TransitionError{Action: domain.ActionPublish, From: item.Status, To: domain.StatusPublished}
	}
	return item, err
}

type updateFunc func(current domain.CurationItem) (domain.CurationUpdate, error)

func notesUpdate(notes, curator string) updateFunc {
	return func(domain.CurationItem) (domain.CurationUpdate, error) {
		return domain.CurationUpdate{CuratorNotes: optional(notes), AssignedCurator: optional(curator)}, nil
	}
}

// apply validates action against the stored status and performs a guarded update.
func (s *CurationService) apply(ctx context.Context, id string, action domain.CurationAction, build updateFunc) (domain.CurationItem, error) {
	item, err := s.applyOnce(ctx, id, action, build)
	metrics.ObserveTransition(string(action), err)
	if err == nil {
		s.logger.Info("curation transition", "id", id, "action", action, "status", item.Status)
	}
	return item, err
}

func (s *CurationService) applyOnce(ctx context.Context, id string, action domain.CurationAction, build updateFunc) (domain.CurationItem, error) {
	current, err := s.curation.Get(ctx, id)
	if err != nil {
		return domain.CurationItem{}, err
	}

	for attempt := 0; ; attempt++ {
		next, err := domain.Transition(current.Status, action)
		if err != nil {
			return current, err
		}
		update, err := build(current)
		if err != nil {
			return current, err
		}
		update.Status = next

		updated, err := s.curation.Transition(ctx, id, current.Status, update)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrStatusChanged) {
			return current, err
		}
		if attempt+1 >= maxTransitionAttempts {
			return updated, &domain.TransitionError{Action: action, From: updated.Status, To: next}
		}
		current = updated
	}
}

// DeleteMany removes news items and their curation items. Published items are refused.
func (s *CurationService) DeleteMany(ctx context.Context, newsIDs []string) domain.BulkResult {
	return s.bulk(newsIDs, func(id string) (bool, error) {
		news, err := s.news.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if err := s.news.Delete(ctx, id); err != nil {
			return false, err
		}
		if s.seen != nil {
			if err := s.seen.Forget(ctx, news.SourceID, []string{news.NormalizedURL}); err != nil {
				s.logger.Warn("seen cache forget failed", "news_id", id, "error", err)
			}
		}
		return true, nil
	})
}

// SendToCuration queues news items as pending without classification.
func (s *CurationService) SendToCuration(ctx context.Context, newsIDs []string) domain.BulkResult {
	return s.bulk(newsIDs, func(id string) (bool, error) {
		if _, err := s.news.Get(ctx, id); err != nil {
			return false, err
		}
		return s.curation.InsertIfAbsent(ctx, domain.CurationItem{
			ID:            uuid.NewString(),
			ScrapedNewsID: id,
			Status:        domain.StatusPending,
		})
	})
}

// bulk runs op per distinct id; op reports false for a no-op.
func (s *CurationService) bulk(ids []string, op func(id string) (bool, error)) domain.BulkResult {
	result := domain.BulkResult{Requested: len(ids), Errors: []domain.ItemError{}}
	done := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			result.Failed++
			result.Errors = append(result.Errors, domain.ItemError{ID: id, Error: "empty id"})
			continue
		}
		if done[id] {
			result.Skipped++
			continue
		}
		done[id] = true

		changed, err := op(id)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, domain.ItemError{ID: id, Error: err.Error()})
		case changed:
			result.Succeeded++
		default:
			result.Skipped++
		}
	}
	return result
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
