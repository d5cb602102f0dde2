package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"NewsCurator/internal/ports"
)

// SettingsRepository reads the key/value settings table.
type SettingsRepository struct {
	db *sqlx.DB
}

var _ ports.SettingsRepository = (*SettingsRepository)(nil)

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Load returns every stored setting. Parsing is left to the caller.
func (r *SettingsRepository) Load(ctx context.Context) (map[string]string, error) {
	var rows []settingRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings`); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Set stores one setting.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO settings (key, value) VALUES ($1, $2)
              ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
