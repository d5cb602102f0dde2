package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"NewsCurator/internal/app"
	"NewsCurator/internal/config"
	"NewsCurator/internal/logging"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	jsonOutput bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "newscurator",
		Short:         "Collect, classify and curate news from configured sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML config (default $NEWS_CURATOR_CONFIG)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print reports as JSON")

	cmd.AddCommand(
		newServeCommand(opts),
		newRunCommand(opts),
		newBackfillCommand(opts),
		newStatsCommand(opts),
		newMigrateCommand(opts),
		newSourcesCommand(opts),
		newSettingsCommand(opts),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format), nil
}

// withApp builds the application, runs fn and closes it.
func (o *rootOptions) withApp(ctx context.Context, fn func(a *app.Application) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()
	return fn(application)
}

func (o *rootOptions) renderer(cmd *cobra.Command) renderer {
	return renderer{out: cmd.OutOrStdout(), json: o.jsonOutput}
}
