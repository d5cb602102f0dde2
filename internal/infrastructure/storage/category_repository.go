package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

// CategoryRepository reads the CMS category list.
type CategoryRepository struct {
	db *sqlx.DB
}

var _ ports.CategoryRepository = (*CategoryRepository)(nil)

func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := r.db.SelectContext(ctx, &out, `SELECT id, name, slug FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *CategoryRepository) Get(ctx context.Context, id string) (domain.Category, error) {
	var c domain.Category
	err := r.db.GetContext(ctx, &c, `SELECT id, name, slug FROM categories WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}
