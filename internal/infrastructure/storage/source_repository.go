package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

const sourceColumns = `id, name, base_url, active, scrape_config, created_at, updated_at`

// SourceRepository stores the source registry.
type SourceRepository struct {
	db *sqlx.DB
}

var _ ports.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository wires a sqlx handle.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

type sourceRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	BaseURL      string    `db:"base_url"`
	Active       bool      `db:"active"`
	ScrapeConfig []byte    `db:"scrape_config"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r sourceRow) toDomain() (domain.Source, error) {
	src := domain.Source{
		ID:        r.ID,
		Name:      r.Name,
		BaseURL:   r.BaseURL,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.ScrapeConfig) > 0 && string(r.ScrapeConfig) != "null" {
		var cfg domain.ScrapeConfig
		if err := json.Unmarshal(r.ScrapeConfig, &cfg); err != nil {
			return domain.Source{}, fmt.Errorf("decode scrape_config of %s: %w", r.ID, err)
		}
		src.Scrape = &cfg
	}
	return src, nil
}

func toSources(rows []sourceRow) ([]domain.Source, error) {
	out := make([]domain.Source, 0, len(rows))
	for _, row := range rows {
		src, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// ListActive returns sources that should be scraped.
func (r *SourceRepository) ListActive(ctx context.Context) ([]domain.Source, error) {
	var rows []sourceRow
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE active ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	return toSources(rows)
}

// ListByIDs returns the requested sources regardless of their active flag.
func (r *SourceRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Source, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []sourceRow
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = ANY($1) ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("list sources by id: %w", err)
	}
	return toSources(rows)
}

// List returns every source.
func (r *SourceRepository) List(ctx context.Context) ([]domain.Source, error) {
	var rows []sourceRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+sourceColumns+` FROM sources ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return toSources(rows)
}

// Get returns one source.
func (r *SourceRepository) Get(ctx context.Context, id string) (domain.Source, error) {
	var row sourceRow
	err := r.db.GetContext(ctx, &row, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("get source %s: %w", id, err)
	}
	return row.toDomain()
}

// Upsert creates a source or updates its name, URL and scrape config.
// The active flag is only set on insert so operator toggles survive a sync.
func (r *SourceRepository) Upsert(ctx context.Context, source domain.Source) error {
	// jsonb goes over the wire as text; nil stores SQL NULL.
	var cfg any
	if source.Scrape != nil {
		raw, err := json.Marshal(source.Scrape)
		if err != nil {
			return fmt.Errorf("encode scrape_config of %s: %w", source.ID, err)
		}
		cfg = string(raw)
	}

	query := `INSERT INTO sources (id, name, base_url, active, scrape_config)
              VALUES ($1, $2, $3, $4, $5)
              ON CONFLICT (id) DO UPDATE
              SET name = EXCLUDED.name,
                  base_url = EXCLUDED.base_url,
                  scrape_config = EXCLUDED.scrape_config,
                  updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, source.ID, source.Name, source.BaseURL, source.Active, cfg); err != nil {
		return fmt.Errorf("upsert source %s: %w", source.ID, err)
	}
	return nil
}

// SetActive toggles scraping for a source.
func (r *SourceRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sources SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set source %s active: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set source %s active: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
