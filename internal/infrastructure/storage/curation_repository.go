package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

const curationColumns = `id, scraped_news_id, status, ai_category_id, ai_confidence, ai_reasoning, ai_model,
        curator_notes, manual_category_id, assigned_curator, article_id, created_at, updated_at`

// CurationRepository stores curation items. Status changes are guarded by the
// status the caller last saw.
type CurationRepository struct {
	db *sqlx.DB
}

var _ ports.CurationRepository = (*CurationRepository)(nil)

// NewCurationRepository wires a sqlx handle.
func NewCurationRepository(db *sqlx.DB) *CurationRepository {
	return &CurationRepository{db: db}
}

// InsertIfAbsent creates the curation item unless the news item already has one.
func (r *CurationRepository) InsertIfAbsent(ctx context.Context, item domain.CurationItem) (bool, error) {
	query := `INSERT INTO curation_items (id, scraped_news_id, status, ai_category_id, ai_confidence, ai_reasoning, ai_model, manual_category_id)
              VALUES (:id, :scraped_news_id, :status, :ai_category_id, :ai_confidence, :ai_reasoning, :ai_model, :manual_category_id)
              ON CONFLICT (scraped_news_id) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return false, fmt.Errorf("insert curation item for %s: %w", item.ScrapedNewsID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert curation item for %s: %w", item.ScrapedNewsID, err)
	}
	return n == 1, nil
}

// Get returns one curation item.
func (r *CurationRepository) Get(ctx context.Context, id string) (domain.CurationItem, error) {
	return r.getBy(ctx, "id", id)
}

// GetByNewsID returns the curation item of a news item.
func (r *CurationRepository) GetByNewsID(ctx context.Context, newsID string) (domain.CurationItem, error) {
	return r.getBy(ctx, "scraped_news_id", newsID)
}

func (r *CurationRepository) getBy(ctx context.Context, column, value string) (domain.CurationItem, error) {
	var item domain.CurationItem
	query := `SELECT ` + curationColumns + ` FROM curation_items WHERE ` + column + ` = $1`
	err := r.db.GetContext(ctx, &item, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CurationItem{}, fmt.Errorf("curation item %s: %w", value, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CurationItem{}, fmt.Errorf("get curation item %s: %w", value, err)
	}
	return item, nil
}

// Transition moves the item to update.Status if it is still in from.
// When another writer got there first, the current row is returned with
// domain.ErrStatusChanged.
func (r *CurationRepository) Transition(ctx context.Context, id string, from domain.CurationStatus, update domain.CurationUpdate) (domain.CurationItem, error) {
	query := `UPDATE curation_items
              SET status = $3,
                  curator_notes = COALESCE($4, curator_notes),
                  manual_category_id = COALESCE($5, manual_category_id),
                  assigned_curator = COALESCE($6, assigned_curator),
                  updated_at = NOW()
              WHERE id = $1 AND status = $2
              RETURNING ` + curationColumns

	var item domain.CurationItem
	err := r.db.GetContext(ctx, &item, query, id, from, update.Status,
		update.CuratorNotes, update.ManualCategoryID, update.AssignedCurator)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.CurationItem{}, fmt.Errorf("transition curation item %s: %w", id, err)
	}
	return r.lostRace(ctx, id)
}

// Publish creates the article and marks the item published in one transaction.
func (r *CurationRepository) Publish(ctx context.Context, id string, article domain.Article) (domain.CurationItem, error) {
	if article.PublishedAt.IsZero() {
		article.PublishedAt = time.Now().UTC()
	}

	var item domain.CurationItem
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		insert := `INSERT INTO articles (id, title, slug, summary, image_url, source_url, category_id, status, published_at, source_published_at)
                   VALUES (:id, :title, :slug, :summary, :image_url, :source_url, :category_id, :status, :published_at, :source_published_at)`
		if _, err := tx.NamedExecContext(ctx, insert, article); err != nil {
			return fmt.Errorf("insert article %s: %w", article.Slug, err)
		}

		update := `UPDATE curation_items
                   SET status = $3, article_id = $4, updated_at = NOW()
                   WHERE id = $1 AND status = $2
                   RETURNING ` + curationColumns
		err := tx.GetContext(ctx, &item, update, id, domain.StatusApproved, domain.StatusPublished, article.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrStatusChanged
		}
		if err != nil {
			return fmt.Errorf("mark curation item %s published: %w", id, err)
		}
		return nil
	})

	if errors.Is(err, domain.ErrStatusChanged) {
		return r.lostRace(ctx, id)
	}
	if err != nil {
		return domain.CurationItem{}, err
	}
	return item, nil
}

func (r *CurationRepository) lostRace(ctx context.Context, id string) (domain.CurationItem, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return domain.CurationItem{}, err
	}
	return current, domain.ErrStatusChanged
}

// curationListRow flattens the joined news and source columns.
type curationListRow struct {
	domain.CurationItem
	NewsSourceID      string     `db:"news_source_id"`
	NewsTitle         string     `db:"news_title"`
	NewsSummary       string     `db:"news_summary"`
	NewsOriginalURL   string     `db:"news_original_url"`
	NewsNormalizedURL string     `db:"news_normalized_url"`
	NewsImageURL      string     `db:"news_image_url"`
	NewsPublishedAt   *time.Time `db:"news_published_at"`
	NewsIngestedAt    time.Time  `db:"news_ingested_at"`
	SourceName        string     `db:"source_name"`
}

func (r curationListRow) toEntry() domain.CurationEntry {
	return domain.CurationEntry{
		CurationItem: r.CurationItem,
		News: domain.ScrapedNews{
			ID:            r.ScrapedNewsID,
			SourceID:      r.NewsSourceID,
			Title:         r.NewsTitle,
			Summary:       r.NewsSummary,
			OriginalURL:   r.NewsOriginalURL,
			NormalizedURL: r.NewsNormalizedURL,
			ImageURL:      r.NewsImageURL,
			PublishedAt:   r.NewsPublishedAt,
			IngestedAt:    r.NewsIngestedAt,
		},
		SourceName: r.SourceName,
	}
}

func curationConditions(filter domain.CurationFilter) sq.And {
	conds := sq.And{}
	if filter.Status != "" {
		conds = append(conds, sq.Eq{"c.status": filter.Status})
	}
	if filter.SourceID != "" {
		conds = append(conds, sq.Eq{"n.source_id": filter.SourceID})
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		conds = append(conds, sq.Or{
			sq.ILike{"n.title": pattern},
			sq.ILike{"n.summary": pattern},
		})
	}
	return conds
}

// List returns one page of curation items with their news and source name.
func (r *CurationRepository) List(ctx context.Context, filter domain.CurationFilter) (domain.CurationPage, error) {
	filter = filter.Normalize()
	conds := curationConditions(filter)

	countQuery, countArgs, err := psql.Select("COUNT(*)").
		From("curation_items c").
		Join("scraped_news n ON n.id = c.scraped_news_id").
		Where(conds).
		ToSql()
	if err != nil {
		return domain.CurationPage{}, fmt.Errorf("build curation count: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return domain.CurationPage{}, fmt.Errorf("count curation items: %w", err)
	}

	page := domain.CurationPage{Items: []domain.CurationEntry{}, Total: total, Page: filter.Page, PerPage: filter.PerPage}
	if total == 0 {
		return page, nil
	}

	listQuery, listArgs, err := psql.Select(
		"c.id", "c.scraped_news_id", "c.status", "c.ai_category_id", "c.ai_confidence",
		"c.ai_reasoning", "c.ai_model", "c.curator_notes", "c.manual_category_id",
		"c.assigned_curator", "c.article_id", "c.created_at", "c.updated_at",
		"n.source_id AS news_source_id", "n.title AS news_title", "n.summary AS news_summary",
		"n.original_url AS news_original_url", "n.normalized_url AS news_normalized_url",
		"n.image_url AS news_image_url", "n.published_at AS news_published_at",
		"n.ingested_at AS news_ingested_at", "s.name AS source_name",
	).
		From("curation_items c").
		Join("scraped_news n ON n.id = c.scraped_news_id").
		Join("sources s ON s.id = n.source_id").
		Where(conds).
		OrderBy("c.created_at DESC", "c.id").
		Limit(uint64(filter.PerPage)).
		Offset(uint64(filter.Offset())).
		ToSql()
	if err != nil {
		return domain.CurationPage{}, fmt.Errorf("build curation list: %w", err)
	}

	var rows []curationListRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, listArgs...); err != nil {
		return domain.CurationPage{}, fmt.Errorf("list curation items: %w", err)
	}
	for _, row := range rows {
		page.Items = append(page.Items, row.toEntry())
	}
	return page, nil
}

// CountByStatus returns the number of items per status.
func (r *CurationRepository) CountByStatus(ctx context.Context) (map[domain.CurationStatus]int, error) {
	var rows []struct {
		Status domain.CurationStatus `db:"status"`
		Count  int                   `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM curation_items GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count curation items by status: %w", err)
	}
	out := make(map[domain.CurationStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
