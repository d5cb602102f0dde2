package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/testhelpers"
	"NewsCurator/internal/usecase"
)

func ptr(s string) *string { return &s }

type curationFixture struct {
	store   *testhelpers.Store
	seen    *testhelpers.SeenCache
	service *usecase.CurationService
}

func newCurationFixture(t *testing.T) curationFixture {
	t.Helper()
	store := testhelpers.NewStore()
	store.AddSource(domain.Source{ID: "src", Name: "Example", BaseURL: "https://example.com", Active: true})
	store.AddCategory(domain.Category{ID: "tech", Name: "Technology", Slug: "technology"})
	seedNews(store, "Ünïcode Títle: launches today", "Second story", "Third story")
	seen := testhelpers.NewSeenCache()
	return curationFixture{
		store:   store,
		seen:    seen,
		service: usecase.NewCurationService(store.Curation(), store.News(), store.Categories(), seen, nil),
	}
}

func (f curationFixture) add(id, newsID string, status domain.CurationStatus, aiCategory *string) {
	f.store.AddCuration(domain.CurationItem{ID: id, ScrapedNewsID: newsID, Status: status, AICategoryID: aiCategory})
}

func TestCurationStateMachine(t *testing.T) {
	t.Parallel()

	type step struct {
		name string
		do   func(s *usecase.CurationService, ctx context.Context) (domain.CurationItem, error)
	}
	approve := step{"approve", func(s *usecase.CurationService, ctx context.Context) (domain.CurationItem, error) {
		return s.Approve(ctx, "c1", "tech", "alice")
	}}
	reject := step{"reject", func(s *usecase.CurationService, ctx context.Context) (domain.CurationItem, error) {
		return s.Reject(ctx, "c1", "off topic")
	}}
	edit := step{"edit", func(s *usecase.CurationService, ctx context.Context) (domain.CurationItem, error) {
		return s.Edit(ctx, "c1", "needs a better headline", "bob")
	}}
	requeue := step{"requeue", func(s *usecase.CurationService, ctx context.Context) (domain.CurationItem, error) {
		return s.Requeue(ctx, "c1", "")
	}}
	reopen := step{"reopen", func(s *usecase.CurationService, ctx context.Context) (domain.CurationItem, error) {
		return s.Reopen(ctx, "c1", "")
	}}
	publish := step{"publish", func(s *usecase.CurationService, ctx context.Context) (domain.CurationItem, error) {
		return s.Publish(ctx, "c1")
	}}

	allowed := map[domain.CurationStatus]map[string]domain.CurationStatus{
		domain.StatusPending:   {"approve": domain.StatusApproved, "reject": domain.StatusRejected, "edit": domain.StatusEditing},
		domain.StatusEditing:   {"approve": domain.StatusApproved, "reject": domain.StatusRejected, "requeue": domain.StatusPending},
		domain.StatusApproved:  {"publish": domain.StatusPublished, "edit": domain.StatusEditing, "reject": domain.StatusRejected},
		domain.StatusRejected:  {"reopen": domain.StatusPending},
		domain.StatusPublished: {},
	}

	for from, targets := range allowed {
		for _, st := range []step{approve, reject, edit, requeue, reopen, publish} {
			t.Run(string(from)+"/"+st.name, func(t *testing.T) {
				t.Parallel()

				f := newCurationFixture(t)
				f.store.AddCuration(domain.CurationItem{
					ID: "c1", ScrapedNewsID: "news-1", Status: from, ManualCategoryID: ptr("tech"),
				})

				item, err := st.do(f.service, context.Background())
				want, ok := targets[st.name]
				if !ok {
					var terr *domain.TransitionError
					require.ErrorAs(t, err, &terr)
					assert.ErrorIs(t, err, domain.ErrInvalidTransition)
					assert.Equal(t, from, terr.From)
					stored, _ := f.service.Get(context.Background(), "c1")
					assert.Equal(t, from, stored.Status, "an invalid transition leaves the row unchanged")
					return
				}
				require.NoError(t, err)
				assert.Equal(t, want, item.Status)
			})
		}
	}
}

func TestApproveCategoryPrecedence(t *testing.T) {
	t.Parallel()

	f := newCurationFixture(t)
	f.store.AddCategory(domain.Category{ID: "sport", Name: "Sport", Slug: "sport"})
	f.add("with-ai", "news-1", domain.StatusPending, ptr("sport"))
	f.add("bare", "news-2", domain.StatusPending, nil)
	f.add("bogus", "news-3", domain.StatusPending, nil)
	ctx := context.Background()

	item, err := f.service.Approve(ctx, "with-ai", "", "")
	require.NoError(t, err)
	assert.Equal(t, "sport", *item.ManualCategoryID, "falls back to the AI suggestion")

	_, err = f.service.Approve(ctx, "bare", "", "")
	assert.ErrorIs(t, err, domain.ErrCategoryRequired)

	_, err = f.service.Approve(ctx, "bogus", "politics", "")
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)

	item, err = f.service.Approve(ctx, "bare", "tech", "carol")
	require.NoError(t, err)
	assert.Equal(t, "tech", *item.ManualCategoryID)
	assert.Equal(t, "carol", *item.AssignedCurator)
}

func TestPublishCreatesArticle(t *testing.T) {
	t.Parallel()

	f := newCurationFixture(t)
	f.store.AddCuration(domain.CurationItem{ID: "c1", ScrapedNewsID: "news-1", Status: domain.StatusApproved, ManualCategoryID: ptr("tech")})

	item, err := f.service.Publish(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, item.Status)
	require.NotNil(t, item.ArticleID)

	articles := f.store.Articles()
	require.Len(t, articles, 1)
	article := articles[0]
	assert.Equal(t, *item.ArticleID, article.ID)
	assert.Equal(t, "tech", article.CategoryID)
	assert.Equal(t, domain.ArticleStatusPublished, article.Status)
	assert.Equal(t, "https://example.com/1", article.SourceURL)
	assert.True(t, strings.HasPrefix(article.Slug, "unicode-title-launches-today-"), article.Slug)

	_, err = f.service.Publish(context.Background(), "c1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "published is terminal")
}

func TestPublishLosesRaceToConcurrentEdit(t *testing.T) {
	t.Parallel()

	f := newCurationFixture(t)
	f.store.AddCuration(domain.CurationItem{ID: "c1", ScrapedNewsID: "news-1", Status: domain.StatusApproved, ManualCategoryID: ptr("tech")})
	var once sync.Once
	f.store.BeforeCurationWrite = func(id string) {
		once.Do(func() { f.store.SetStatus(id, domain.StatusEditing) })
	}

	_, err := f.service.Publish(context.Background(), "c1")
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusEditing, terr.From)
	assert.Empty(t, f.store.Articles(), "no article is created when the guard fails")
}

func TestTransitionRetriesFromConcurrentStatus(t *testing.T) {
	t.Parallel()

	f := newCurationFixture(t)
	f.add("c1", "news-1", domain.StatusPending, nil)
	var once sync.Once
	f.store.BeforeCurationWrite = func(id string) {
		once.Do(func() { f.store.SetStatus(id, domain.StatusEditing) })
	}

	// Reject is allowed from editing too, so the second attempt wins.
	item, err := f.service.Reject(context.Background(), "c1", "duplicate")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, item.Status)
	assert.Equal(t, "duplicate", *item.CuratorNotes)
}

func TestTransitionUnknownItem(t *testing.T) {
	t.Parallel()

	f := newCurationFixture(t)
	_, err := f.service.Reject(context.Background(), "missing", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteMany(t *testing.T) {
	t.Parallel()

	f := newCurationFixture(t)
	ctx := context.Background()
	f.add("c1", "news-1", domain.StatusPending, nil)
	f.add("c2", "news-2", domain.StatusPublished, nil)
	require.NoError(t, f.seen.Mark(ctx, "src", []string{"https://example.com/1"}))

	result := f.service.DeleteMany(ctx, []string{"news-1", "news-2", "news-1", "missing", ""})
	assert.Equal(t, 5, result.Requested)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.Failed)

	_, ok := f.store.CurationFor("news-1")
	assert.False(t, ok, "curation item is removed with its news")
	assert.False(t, f.seen.Has("src", "https://example.com/1"), "deleted items may be ingested again")

	var messages []string
	for _, e := range result.Errors {
		messages = append(messages, e.Error)
	}
	assert.Contains(t, strings.Join(messages, "\n"), domain.ErrPublishedImmutable.Error())
}

func TestSendToCuration(t *testing.T) {
	t.Parallel()

	f := newCurationFixture(t)
	f.add("c1", "news-1", domain.StatusApproved, nil)

	result := f.service.SendToCuration(context.Background(), []string{"news-1", "news-2", "nope"})
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "nope", result.Errors[0].ID)

	item, ok := f.store.CurationFor("news-2")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, item.Status)

	existing, _ := f.store.CurationFor("news-1")
	assert.Equal(t, domain.StatusApproved, existing.Status, "already queued items are untouched")
}

func TestCurationList(t *testing.T) {
	t.Parallel()

	f := newCurationFixture(t)
	f.add("c1", "news-1", domain.StatusPending, nil)
	f.add("c2", "news-2", domain.StatusPending, nil)
	f.add("c3", "news-3", domain.StatusRejected, nil)

	page, err := f.service.List(context.Background(), domain.CurationFilter{Status: domain.StatusPending, Query: "second"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c2", page.Items[0].ID)
	assert.Equal(t, "Example", page.Items[0].SourceName)
	assert.Equal(t, 20, page.PerPage)

	_, err = f.service.List(context.Background(), domain.CurationFilter{Status: "lost"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
