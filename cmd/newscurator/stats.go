package main

import (
	"github.com/spf13/cobra"

	"NewsCurator/internal/app"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show source and curation queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				stats, err := a.Orchestrator().Stats(cmd.Context())
				if err != nil {
					return err
				}
				return opts.renderer(cmd).stats(stats)
			})
		},
	}
}
