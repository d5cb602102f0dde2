package ports

import (
	"context"
	"time"

	"NewsCurator/internal/domain"
)

// CandidateSource pulls candidate news items from one configured source.
type CandidateSource interface {
	CollectLatest(ctx context.Context, source domain.Source, limit int) (domain.ScanResult, error)
	CollectByPeriod(ctx context.Context, source domain.Source, start, end time.Time, limit int) (domain.ScanResult, error)
}

// SourceRepository reads and maintains the source registry.
type SourceRepository interface {
	ListActive(ctx context.Context) ([]domain.Source, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Source, error)
	List(ctx context.Context) ([]domain.Source, error)
	Get(ctx context.Context, id string) (domain.Source, error)
	Upsert(ctx context.Context, source domain.Source) error
	SetActive(ctx context.Context, id string, active bool) error
}

// NewsRepository persists deduplicated scraped news.
type NewsRepository interface {
	// ExistingURLs reports which normalized URLs are already stored for a source.
	ExistingURLs(ctx context.Context, sourceID string, normalized []string) (map[string]bool, error)
	// InsertIfAbsent returns false when the (source, normalized url) key already exists.
	InsertIfAbsent(ctx context.Context, news domain.ScrapedNews) (bool, error)
	// ListUnclassified returns news without a curation item, fewest failed
	// attempts first, then oldest first.
	ListUnclassified(ctx context.Context, limit int) ([]domain.ScrapedNews, error)
	// RecordClassifyFailure bumps the failed-attempt counter and returns its new value.
	RecordClassifyFailure(ctx context.Context, id string, at time.Time) (int, error)
	Get(ctx context.Context, id string) (domain.ScrapedNews, error)
	Delete(ctx context.Context, id string) error
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// CurationRepository stores curation items and their transitions.
type CurationRepository interface {
	// InsertIfAbsent returns false when the news item already has a curation item.
	InsertIfAbsent(ctx context.Context, item domain.CurationItem) (bool, error)
	Get(ctx context.Context, id string) (domain.CurationItem, error)
	GetByNewsID(ctx context.Context, newsID string) (domain.CurationItem, error)
	// Transition applies update only if the row still has status from.
	Transition(ctx context.Context, id string, from domain.CurationStatus, update domain.CurationUpdate) (domain.CurationItem, error)
	// Publish moves an approved item to published and creates the article in one unit.
	Publish(ctx context.Context, id string, article domain.Article) (domain.CurationItem, error)
	List(ctx context.Context, filter domain.CurationFilter) (domain.CurationPage, error)
	CountByStatus(ctx context.Context) (map[domain.CurationStatus]int, error)
}

// CategoryRepository reads the externally owned category list.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	Get(ctx context.Context, id string) (domain.Category, error)
}

// SettingsRepository reads run-time settings as raw key/value pairs.
type SettingsRepository interface {
	Load(ctx context.Context) (map[string]string, error)
}

// ClassificationCapability suggests a category for one item.
type ClassificationCapability interface {
	Name() string
	Classify(ctx context.Context, req domain.ClassificationRequest) (domain.Suggestion, error)
}

// SeenCache is a fast, non-authoritative "already ingested" filter.
type SeenCache interface {
	Seen(ctx context.Context, sourceID string, normalized []string) (map[string]bool, error)
	Mark(ctx context.Context, sourceID string, normalized []string) error
	Forget(ctx context.Context, sourceID string, normalized []string) error
}

// Notifier streams digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
