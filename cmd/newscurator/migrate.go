package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"NewsCurator/internal/infrastructure/storage"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(cmd.Context(), func(db *sqlx.DB, log *slog.Logger) error {
				return storage.Migrate(db.DB, log)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(cmd.Context(), func(db *sqlx.DB, log *slog.Logger) error {
				return storage.MigrateDown(db.DB, steps, log)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE:  cmd.RunE,
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withDB(cmd.Context(), func(db *sqlx.DB, _ *slog.Logger) error {
					version, dirty, err := storage.MigrationVersion(db.DB)
					if err != nil {
						return err
					}
					return opts.renderer(cmd).migrationVersion(version, dirty)
				})
			},
		},
	)
	return cmd
}

// withDB opens only Postgres; schema commands must work before Redis or
// providers are reachable.
func (o *rootOptions) withDB(ctx context.Context, fn func(db *sqlx.DB, log *slog.Logger) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	db, err := storage.Open(ctx, cfg.Database.DSN, storage.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()
	return fn(db, logger.With("component", "migrate"))
}
