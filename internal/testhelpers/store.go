// Package testhelpers holds in-memory implementations of the ports used by
// use case and HTTP tests.
package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

// Store is an in-memory stand-in for the Postgres schema. The repositories
// returned by its accessors share one lock, so uniqueness holds under
// concurrent use the way the database constraints do.
type Store struct {
	mu         sync.Mutex
	sources    map[string]domain.Source
	news       map[string]domain.ScrapedNews
	newsKeys   map[string]string // source_id + normalized_url -> news id
	curation   map[string]domain.CurationItem
	byNews     map[string]string // news id -> curation id
	categories map[string]domain.Category
	articles   map[string]domain.Article
	settings   map[string]string

	// FailNews makes every news write and read fail when set.
	FailNews error
	// BeforeCurationWrite runs before a guarded curation update takes the lock.
	BeforeCurationWrite func(id string)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		sources:    make(map[string]domain.Source),
		news:       make(map[string]domain.ScrapedNews),
		newsKeys:   make(map[string]string),
		curation:   make(map[string]domain.CurationItem),
		byNews:     make(map[string]string),
		categories: make(map[string]domain.Category),
		articles:   make(map[string]domain.Article),
		settings:   make(map[string]string),
	}
}

func newsKey(sourceID, normalized string) string { return sourceID + "\x00" + normalized }

// AddCategory seeds a category.
func (s *Store) AddCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

// AddSource seeds a source.
func (s *Store) AddSource(src domain.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID] = src
}

// SetSetting seeds a settings row.
func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

// AddNews seeds a news row, bypassing ingestion.
func (s *Store) AddNews(n domain.ScrapedNews) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.news[n.ID] = n
	s.newsKeys[newsKey(n.SourceID, n.NormalizedURL)] = n.ID
}

// AddCuration seeds a curation row.
func (s *Store) AddCuration(item domain.CurationItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curation[item.ID] = item
	s.byNews[item.ScrapedNewsID] = item.ID
}

// SetStatus overwrites an item's status, simulating a concurrent curator.
func (s *Store) SetStatus(id string, status domain.CurationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.curation[id]
	item.Status = status
	s.curation[id] = item
}

// AllNews returns every news row ordered by ingestion time.
func (s *Store) AllNews() []domain.ScrapedNews {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScrapedNews, 0, len(s.news))
	for _, n := range s.news {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].IngestedAt.Before(out[j].IngestedAt)
	})
	return out
}

// AllCuration returns every curation row.
func (s *Store) AllCuration() []domain.CurationItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CurationItem, 0, len(s.curation))
	for _, c := range s.curation {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CurationFor returns the curation row of a news item.
func (s *Store) CurationFor(newsID string) (domain.CurationItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byNews[newsID]
	if !ok {
		return domain.CurationItem{}, false
	}
	return s.curation[id], true
}

// Articles returns the published articles.
func (s *Store) Articles() []domain.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, a)
	}
	return out
}

func (s *Store) Sources() *SourceRepo { return &SourceRepo{s} }
func (s *Store) News() *NewsRepo { return &NewsRepo{s} }
func (s *Store) Curation() *CurationRepo { return &CurationRepo{s} }
func (s *Store) Categories() *CategoryRepo { return &CategoryRepo{s} }
func (s *Store) Settings() *SettingsRepo { return &SettingsRepo{s} }

var (
	_ ports.SourceRepository   = (*SourceRepo)(nil)
	_ ports.NewsRepository     = (*NewsRepo)(nil)
	_ ports.CurationRepository = (*CurationRepo)(nil)
	_ ports.CategoryRepository = (*CategoryRepo)(nil)
	_ ports.SettingsRepository = (*SettingsRepo)(nil)
)

// SourceRepo is the in-memory source registry.
type SourceRepo struct{ s *Store }

func (r *SourceRepo) ListActive(context.Context) ([]domain.Source, error) {
	all, _ := r.List(context.Background())
	out := all[:0]
	for _, src := range all {
		if src.Active {
			out = append(out, src)
		}
	}
	return out, nil
}

func (r *SourceRepo) ListByIDs(_ context.Context, ids []string) ([]domain.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Source{}
	for _, id := range ids {
		if src, ok := r.s.sources[id]; ok {
			out = append(out, src)
		}
	}
	return out, nil
}

func (r *SourceRepo) List(context.Context) ([]domain.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Source, 0, len(r.s.sources))
	for _, src := range r.s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SourceRepo) Get(_ context.Context, id string) (domain.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	src, ok := r.s.sources[id]
	if !ok {
		return domain.Source{}, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	return src, nil
}

func (r *SourceRepo) Upsert(_ context.Context, src domain.Source) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.sources[src.ID]; ok {
		src.Active = existing.Active
	}
	r.s.sources[src.ID] = src
	return nil
}

func (r *SourceRepo) SetActive(_ context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	src, ok := r.s.sources[id]
	if !ok {
		return fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	src.Active = active
	r.s.sources[id] = src
	return nil
}

// NewsRepo is the in-memory scraped_news table.
type NewsRepo struct{ s *Store }

func (r *NewsRepo) ExistingURLs(_ context.Context, sourceID string, normalized []string) (map[string]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailNews != nil {
		return nil, r.s.FailNews
	}
	out := make(map[string]bool)
	for _, u := range normalized {
		if _, ok := r.s.newsKeys[newsKey(sourceID, u)]; ok {
			out[u] = true
		}
	}
	return out, nil
}

func (r *NewsRepo) InsertIfAbsent(_ context.Context, n domain.ScrapedNews) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailNews != nil {
		return false, r.s.FailNews
	}
	key := newsKey(n.SourceID, n.NormalizedURL)
	if _, ok := r.s.newsKeys[key]; ok {
		return false, nil
	}
	r.s.news[n.ID] = n
	r.s.newsKeys[key] = n.ID
	return true, nil
}

func (r *NewsRepo) ListUnclassified(_ context.Context, limit int) ([]domain.ScrapedNews, error) {
	all := r.s.AllNews()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailNews != nil {
		return nil, r.s.FailNews
	}
	out := []domain.ScrapedNews{}
	for _, n := range all {
		if _, ok := r.s.byNews[n.ID]; ok {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClassifyAttempts < out[j].ClassifyAttempts })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NewsRepo) RecordClassifyFailure(_ context.Context, id string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailNews != nil {
		return 0, r.s.FailNews
	}
	n, ok := r.s.news[id]
	if !ok {
		return 0, fmt.Errorf("news %s: %w", id, domain.ErrNotFound)
	}
	n.ClassifyAttempts++
	n.LastClassifyErrorAt = &at
	r.s.news[id] = n
	return n.ClassifyAttempts, nil
}

func (r *NewsRepo) Get(_ context.Context, id string) (domain.ScrapedNews, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.news[id]
	if !ok {
		return domain.ScrapedNews{}, fmt.Errorf("news %s: %w", id, domain.ErrNotFound)
	}
	return n, nil
}

func (r *NewsRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.news[id]
	if !ok {
		return fmt.Errorf("news %s: %w", id, domain.ErrNotFound)
	}
	if cid, ok := r.s.byNews[id]; ok {
		if r.s.curation[cid].Status == domain.StatusPublished {
			return fmt.Errorf("news %s: %w", id, domain.ErrPublishedImmutable)
		}
		delete(r.s.curation, cid)
		delete(r.s.byNews, id)
	}
	delete(r.s.news, id)
	delete(r.s.newsKeys, newsKey(n.SourceID, n.NormalizedURL))
	return nil
}

func (r *NewsRepo) CountSince(_ context.Context, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.news {
		if !n.IngestedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// CurationRepo is the in-memory curation_items table.
type CurationRepo struct{ s *Store }

func (r *CurationRepo) InsertIfAbsent(_ context.Context, item domain.CurationItem) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.news[item.ScrapedNewsID]; !ok {
		return false, fmt.Errorf("news %s: %w", item.ScrapedNewsID, domain.ErrNotFound)
	}
	if _, ok := r.s.byNews[item.ScrapedNewsID]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	r.s.curation[item.ID] = item
	r.s.byNews[item.ScrapedNewsID] = item.ID
	return true, nil
}

func (r *CurationRepo) Get(_ context.Context, id string) (domain.CurationItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.curation[id]
	if !ok {
		return domain.CurationItem{}, fmt.Errorf("curation item %s: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

func (r *CurationRepo) GetByNewsID(ctx context.Context, newsID string) (domain.CurationItem, error) {
	r.s.mu.Lock()
	id, ok := r.s.byNews[newsID]
	r.s.mu.Unlock()
	if !ok {
		return domain.CurationItem{}, fmt.Errorf("curation for news %s: %w", newsID, domain.ErrNotFound)
	}
	return r.Get(ctx, id)
}

func (r *CurationRepo) Transition(_ context.Context, id string, from domain.CurationStatus, u domain.CurationUpdate) (domain.CurationItem, error) {
	if hook := r.s.BeforeCurationWrite; hook != nil {
		hook(id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.curation[id]
	if !ok {
		return domain.CurationItem{}, fmt.Errorf("curation item %s: %w", id, domain.ErrNotFound)
	}
	if item.Status != from {
		return item, domain.ErrStatusChanged
	}
	item.Status = u.Status
	if u.CuratorNotes != nil {
		item.CuratorNotes = u.CuratorNotes
	}
	if u.ManualCategoryID != nil {
		item.ManualCategoryID = u.ManualCategoryID
	}
	if u.AssignedCurator != nil {
		item.AssignedCurator = u.AssignedCurator
	}
	item.UpdatedAt = time.Now().UTC()
	r.s.curation[id] = item
	return item, nil
}

func (r *CurationRepo) Publish(_ context.Context, id string, article domain.Article) (domain.CurationItem, error) {
	if hook := r.s.BeforeCurationWrite; hook != nil {
		hook(id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.curation[id]
	if !ok {
		return domain.CurationItem{}, fmt.Errorf("curation item %s: %w", id, domain.ErrNotFound)
	}
	if item.Status != domain.StatusApproved {
		return item, domain.ErrStatusChanged
	}
	for _, a := range r.s.articles {
		if a.Slug == article.Slug {
			return item, fmt.Errorf("article slug %q already exists", article.Slug)
		}
	}
	r.s.articles[article.ID] = article
	articleID := article.ID
	item.Status = domain.StatusPublished
	item.ArticleID = &articleID
	item.UpdatedAt = time.Now().UTC()
	r.s.curation[id] = item
	return item, nil
}

func (r *CurationRepo) List(_ context.Context, f domain.CurationFilter) (domain.CurationPage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f = f.Normalize()
	q := strings.ToLower(f.Query)

	var entries []domain.CurationEntry
	for _, item := range r.s.curation {
		n := r.s.news[item.ScrapedNewsID]
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if f.SourceID != "" && n.SourceID != f.SourceID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(n.Title), q) && !strings.Contains(strings.ToLower(n.Summary), q) {
			continue
		}
		entries = append(entries, domain.CurationEntry{CurationItem: item, News: n, SourceName: r.s.sources[n.SourceID].Name})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	page := domain.CurationPage{Items: []domain.CurationEntry{}, Total: len(entries), Page: f.Page, PerPage: f.PerPage}
	if off := f.Offset(); off < len(entries) {
		end := min(off+f.PerPage, len(entries))
		page.Items = entries[off:end]
	}
	return page, nil
}

func (r *CurationRepo) CountByStatus(context.Context) (map[domain.CurationStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[domain.CurationStatus]int)
	for _, item := range r.s.curation {
		out[item.Status]++
	}
	return out, nil
}

// CategoryRepo is the in-memory categories table.
type CategoryRepo struct{ s *Store }

func (r *CategoryRepo) List(context.Context) ([]domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CategoryRepo) Get(_ context.Context, id string) (domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return domain.Category{}, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// SettingsRepo is the in-memory settings table.
type SettingsRepo struct{ s *Store }

func (r *SettingsRepo) Load(context.Context) (map[string]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]string, len(r.s.settings))
	for k, v := range r.s.settings {
		out[k] = v
	}
	return out, nil
}
