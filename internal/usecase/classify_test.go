package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/testhelpers"
	"NewsCurator/internal/usecase"
)

var fastRetries = usecase.ClassifierConfig{
	Concurrency:    4,
	Timeout:        time.Second,
	Retries:        2,
	BackoffInitial: time.Millisecond,
	BackoffMax:     5 * time.Millisecond,
}

func seedNews(store *testhelpers.Store, titles ...string) []domain.ScrapedNews {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	out := make([]domain.ScrapedNews, 0, len(titles))
	for i, title := range titles {
		n := domain.ScrapedNews{
			ID:            fmt.Sprintf("news-%d", i+1),
			SourceID:      "src",
			Title:         title,
			Summary:       title + " summary",
			OriginalURL:   fmt.Sprintf("https://example.com/%d", i+1),
			NormalizedURL: fmt.Sprintf("https://example.com/%d", i+1),
			IngestedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		store.AddNews(n)
		out = append(out, n)
	}
	return out
}

func aiSettings(threshold float64) domain.RunSettings {
	return domain.RunSettings{AIEnabled: true, AutoApproveThreshold: threshold, BatchSize: 20, Model: "test-model"}
}

func newTestClassifier(store *testhelpers.Store, capability *testhelpers.Capability) *usecase.Classifier {
	store.AddCategory(domain.Category{ID: "tech", Name: "Technology", Slug: "technology"})
	store.AddCategory(domain.Category{ID: "sport", Name: "Sport", Slug: "sport"})
	return usecase.NewClassifier(store.News(), store.Curation(), store.Categories(), capability, fastRetries, nil)
}

func TestClassifyAutoApprovesAboveThreshold(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewStore()
	news := seedNews(store, "Chip launch", "Local match")
	capability := &testhelpers.Capability{Fn: testhelpers.ByTitle(map[string]domain.Suggestion{
		"Chip launch": {Category: "Technology", Confidence: 0.9, Reasoning: "hardware"},
		"Local match": {Category: "sport", Confidence: 0.6, Reasoning: "football"},
	})}
	classifier := newTestClassifier(store, capability)

	result, err := classifier.Classify(context.Background(), aiSettings(0.85))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.AutoApproved)
	assert.Equal(t, 1, result.QueuedForReview)
	assert.Zero(t, result.Failed)

	approved, ok := store.CurationFor(news[0].ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ManualCategoryID)
	assert.Equal(t, "tech", *approved.ManualCategoryID)
	assert.Equal(t, "tech", *approved.AICategoryID)
	assert.Equal(t, "test-model", approved.AIModel)

	pending, ok := store.CurationFor(news[1].ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, pending.Status)
	assert.Nil(t, pending.ManualCategoryID)
	require.NotNil(t, pending.AICategoryID)
	assert.Equal(t, "sport", *pending.AICategoryID)
	assert.InDelta(t, 0.6, pending.AIConfidence, 1e-9)

	for _, call := range capability.Calls() {
		assert.Len(t, call.Categories, 2)
		assert.Equal(t, "test-model", call.Model)
	}
}

func TestClassifyThresholdLaw(t *testing.T) {
	t.Parallel()

	cases := []struct {
		confidence float64
		threshold  float64
		want       domain.CurationStatus
	}{
		{confidence: 0.85, threshold: 0.85, want: domain.StatusApproved},
		{confidence: 0.8499, threshold: 0.85, want: domain.StatusPending},
		{confidence: 0, threshold: 0, want: domain.StatusApproved},
		{confidence: 1, threshold: 1, want: domain.StatusApproved},
		{confidence: 0.99, threshold: 1, want: domain.StatusPending},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v>=%v", tc.confidence, tc.threshold), func(t *testing.T) {
			t.Parallel()

			store := testhelpers.NewStore()
			news := seedNews(store, "Story")
			capability := &testhelpers.Capability{Fn: func(domain.ClassificationRequest) (domain.Suggestion, error) {
				return domain.Suggestion{Category: "tech", Confidence: tc.confidence}, nil
			}}

			_, err := newTestClassifier(store, capability).Classify(context.Background(), aiSettings(tc.threshold))
			require.NoError(t, err)
			item, ok := store.CurationFor(news[0].ID)
			require.True(t, ok)
			assert.Equal(t, tc.want, item.Status)
		})
	}
}

func TestClassifyUnknownCategoryNeverAutoApproves(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewStore()
	news := seedNews(store, "Story")
	capability := &testhelpers.Capability{Fn: func(domain.ClassificationRequest) (domain.Suggestion, error) {
		return domain.Suggestion{Category: "astrology", Confidence: 0.99, Reasoning: "stars"}, nil
	}}

	result, err := newTestClassifier(store, capability).Classify(context.Background(), aiSettings(0.5))
	require.NoError(t, err)
	assert.Equal(t, 1, result.QueuedForReview)

	item, _ := store.CurationFor(news[0].ID)
	assert.Equal(t, domain.StatusPending, item.Status)
	assert.Nil(t, item.AICategoryID)
	assert.Equal(t, "stars", item.AIReasoning)
}

func TestClassifyDisabledQueuesEverythingWithoutCalls(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewStore()
	seedNews(store, "A", "B", "C")
	capability := &testhelpers.Capability{Fn: func(domain.ClassificationRequest) (domain.Suggestion, error) {
		t.Error("capability must not be called")
		return domain.Suggestion{}, nil
	}}

	settings := aiSettings(0)
	settings.AIEnabled = false
	result, err := newTestClassifier(store, capability).Classify(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.QueuedForReview)
	for _, item := range store.AllCuration() {
		assert.Equal(t, domain.StatusPending, item.Status)
	}
}

func TestClassifyFailuresSkipItemAndContinue(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewStore()
	news := seedNews(store, "Good", "NaN", "Broken")
	capability := &testhelpers.Capability{Fn: func(req domain.ClassificationRequest) (domain.Suggestion, error) {
		switch req.Title {
		case "NaN":
			s := domain.Suggestion{Category: "tech", Confidence: math.NaN()}
			return s, s.Validate()
		case "Broken":
			return domain.Suggestion{}, domain.ErrClassifierRejected
		}
		return domain.Suggestion{Category: "tech", Confidence: 0.95}, nil
	}}
	classifier := newTestClassifier(store, capability)

	result, err := classifier.Classify(context.Background(), aiSettings(0.85))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors, 2)

	_, ok := store.CurationFor(news[1].ID)
	assert.False(t, ok, "failed items stay unclassified for the next run")

	// Permanent failures are not retried.
	assert.Len(t, capability.Calls(), 3)

	// The failed items are picked up again by the next run.
	capability.Fn = func(domain.ClassificationRequest) (domain.Suggestion, error) {
		return domain.Suggestion{Category: "sport", Confidence: 0.1}, nil
	}
	again, err := classifier.Classify(context.Background(), aiSettings(0.85))
	require.NoError(t, err)
	assert.Equal(t, 2, again.Processed)
}

func TestClassifyRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewStore()
	news := seedNews(store, "Story")
	var attempts atomic.Int32
	capability := &testhelpers.Capability{Fn: func(domain.ClassificationRequest) (domain.Suggestion, error) {
		if attempts.Add(1) < 3 {
			return domain.Suggestion{}, errors.New("503 service unavailable")
		}
		return domain.Suggestion{Category: "tech", Confidence: 0.9}, nil
	}}

	result, err := newTestClassifier(store, capability).Classify(context.Background(), aiSettings(0.85))
	require.NoError(t, err)
	assert.Equal(t, 1, result.AutoApproved)
	assert.EqualValues(t, 3, attempts.Load())

	item, _ := store.CurationFor(news[0].ID)
	assert.Equal(t, domain.StatusApproved, item.Status)
}

func TestClassifyRespectsBatchSizeOldestFirst(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewStore()
	news := seedNews(store, "First", "Second", "Third")
	capability := &testhelpers.Capability{Fn: func(domain.ClassificationRequest) (domain.Suggestion, error) {
		return domain.Suggestion{Category: "tech", Confidence: 0.1}, nil
	}}

	settings := aiSettings(0.85)
	settings.BatchSize = 2
	result, err := newTestClassifier(store, capability).Classify(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)

	_, ok := store.CurationFor(news[2].ID)
	assert.False(t, ok, "the newest item waits for the next batch")
}

func TestClassifyRepeatedFailuresDoNotStarveNewerItems(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewStore()
	news := seedNews(store, "bad one", "bad two", "good")
	capability := &testhelpers.Capability{Fn: func(req domain.ClassificationRequest) (domain.Suggestion, error) {
		if req.Title == "good" {
			return domain.Suggestion{Category: "tech", Confidence: 0.95}, nil
		}
		return domain.Suggestion{}, domain.ErrMalformedClassification
	}}
	classifier := newTestClassifier(store, capability)

	settings := aiSettings(0.85)
	settings.BatchSize = 2

	goodAfter := 0
	var last domain.ClassifyResult
	for run := 1; run <= 4; run++ {
		result, err := classifier.Classify(context.Background(), settings)
		require.NoError(t, err)
		last = result
		if _, ok := store.CurationFor(news[2].ID); ok && goodAfter == 0 {
			goodAfter = run
		}
	}
	require.NotZero(t, goodAfter, "the good item must be classified despite older failing items")
	assert.LessOrEqual(t, goodAfter, 2)

	good, _ := store.CurationFor(news[2].ID)
	assert.Equal(t, domain.StatusApproved, good.Status)

	// After three failed runs the failing items go to a curator without a suggestion.
	for _, n := range news[:2] {
		item, ok := store.CurationFor(n.ID)
		require.True(t, ok, "%s should be queued for manual review", n.Title)
		assert.Equal(t, domain.StatusPending, item.Status)
		assert.Nil(t, item.AICategoryID)
		assert.Nil(t, item.ManualCategoryID)
		assert.Contains(t, item.AIReasoning, "classification failed after 3 attempts")
	}
	assert.Equal(t, 1, last.Failed)
	assert.Equal(t, 1, last.QueuedForReview)

	for _, n := range store.AllNews()[:2] {
		assert.Equal(t, 3, n.ClassifyAttempts)
		assert.NotNil(t, n.LastClassifyErrorAt)
	}
}

func TestClassifyMaxAttemptsIsConfigurable(t *testing.T) {
	t.Parallel()

	store := testhelpers.NewStore()
	news := seedNews(store, "Broken")
	store.AddCategory(domain.Category{ID: "tech", Name: "Technology", Slug: "technology"})
	capability := &testhelpers.Capability{Fn: func(domain.ClassificationRequest) (domain.Suggestion, error) {
		return domain.Suggestion{}, domain.ErrClassifierRejected
	}}
	cfg := fastRetries
	cfg.MaxAttempts = 1
	classifier := usecase.NewClassifier(store.News(), store.Curation(), store.Categories(), capability, cfg, nil)

	result, err := classifier.Classify(context.Background(), aiSettings(0.85))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.QueuedForReview)

	item, ok := store.CurationFor(news[0].ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, item.Status)
	assert.Equal(t, "test-model", item.AIModel)
	assert.Contains(t, item.AIReasoning, domain.ErrClassifierRejected.Error())
}
