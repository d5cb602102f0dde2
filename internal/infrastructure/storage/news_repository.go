package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

const newsColumns = `id, source_id, title, summary, original_url, normalized_url, image_url, published_at, ingested_at, classify_attempts, last_classify_error_at`

// NewsRepository persists scraped news keyed by (source, normalized url).
type NewsRepository struct {
	db *sqlx.DB
}

var _ ports.NewsRepository = (*NewsRepository)(nil)

// NewNewsRepository wires a sqlx handle.
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// ExistingURLs reports which of the normalized URLs are stored for the source.
func (r *NewsRepository) ExistingURLs(ctx context.Context, sourceID string, normalized []string) (map[string]bool, error) {
	found := make(map[string]bool, len(normalized))
	if len(normalized) == 0 {
		return found, nil
	}

	var urls []string
	query := `SELECT normalized_url FROM scraped_news WHERE source_id = $1 AND normalized_url = ANY($2)`
	if err := r.db.SelectContext(ctx, &urls, query, sourceID, pq.StringArray(normalized)); err != nil {
		return nil, fmt.Errorf("lookup existing urls for %s: %w", sourceID, err)
	}
	for _, u := range urls {
		found[u] = true
	}
	return found, nil
}

// InsertIfAbsent stores news unless its key already exists.
func (r *NewsRepository) InsertIfAbsent(ctx context.Context, news domain.ScrapedNews) (bool, error) {
	query := `INSERT INTO scraped_news (id, source_id, title, summary, original_url, normalized_url, image_url, published_at, ingested_at)
              VALUES (:id, :source_id, :title, :summary, :original_url, :normalized_url, :image_url, :published_at, :ingested_at)
              ON CONFLICT (source_id, normalized_url) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, news)
	if err != nil {
		return false, fmt.Errorf("insert news %s: %w", news.NormalizedURL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert news %s: %w", news.NormalizedURL, err)
	}
	return n == 1, nil
}

// ListUnclassified returns news that has no curation item yet. Items with
// fewer failed attempts come first so repeated failures cannot fill every batch.
func (r *NewsRepository) ListUnclassified(ctx context.Context, limit int) ([]domain.ScrapedNews, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT n.id, n.source_id, n.title, n.summary, n.original_url, n.normalized_url, n.image_url,
                     n.published_at, n.ingested_at, n.classify_attempts, n.last_classify_error_at
              FROM scraped_news n
              LEFT JOIN curation_items c ON c.scraped_news_id = n.id
              WHERE c.id IS NULL
              ORDER BY n.classify_attempts, n.ingested_at, n.id
              LIMIT $1`

	var out []domain.ScrapedNews
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("list unclassified news: %w", err)
	}
	return out, nil
}

// RecordClassifyFailure bumps the failed-attempt counter of one news item.
func (r *NewsRepository) RecordClassifyFailure(ctx context.Context, id string, at time.Time) (int, error) {
	query := `UPDATE scraped_news
              SET classify_attempts = classify_attempts + 1, last_classify_error_at = $2
              WHERE id = $1
              RETURNING classify_attempts`

	var attempts int
	err := r.db.GetContext(ctx, &attempts, query, id, at)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("news %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("record classify failure %s: %w", id, err)
	}
	return attempts, nil
}

// Get returns one news item.
func (r *NewsRepository) Get(ctx context.Context, id string) (domain.ScrapedNews, error) {
	var news domain.ScrapedNews
	err := r.db.GetContext(ctx, &news, `SELECT `+newsColumns+` FROM scraped_news WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScrapedNews{}, fmt.Errorf("news %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ScrapedNews{}, fmt.Errorf("get news %s: %w", id, err)
	}
	return news, nil
}

// Delete removes a news item and its curation item. Published items are kept.
func (r *NewsRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM scraped_news n
              WHERE n.id = $1
                AND NOT EXISTS (
                    SELECT 1 FROM curation_items c
                    WHERE c.scraped_news_id = n.id AND c.status = 'published'
                )`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete news %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete news %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM scraped_news WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("delete news %s: %w", id, err)
	}
	if exists {
		return fmt.Errorf("news %s: %w", id, domain.ErrPublishedImmutable)
	}
	return fmt.Errorf("news %s: %w", id, domain.ErrNotFound)
}

// CountSince counts news ingested at or after since.
func (r *NewsRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM scraped_news WHERE ingested_at >= $1`, since); err != nil {
		return 0, fmt.Errorf("count news since %s: %w", since.Format(time.RFC3339), err)
	}
	return n, nil
}
