package main

import (
	"github.com/spf13/cobra"

	"NewsCurator/internal/app"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		migrate     bool
		syncSources bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				if migrate {
					if err := a.Migrate(); err != nil {
						return err
					}
				}
				if syncSources {
					if _, err := a.SyncSources(cmd.Context()); err != nil {
						return err
					}
				}
				return a.Serve(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&syncSources, "sync-sources", true, "upsert sources from the config file before serving")
	return cmd
}
