package main

import (
	"github.com/spf13/cobra"

	"NewsCurator/internal/app"
)

func newSourcesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage news sources",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				sources, err := a.ListSources(cmd.Context())
				if err != nil {
					return err
				}
				return opts.renderer(cmd).sources(sources)
			})
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Upsert the sources listed in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				n, err := a.SyncSources(cmd.Context())
				if err != nil {
					return err
				}
				return opts.renderer(cmd).message("synced %d sources", n)
			})
		},
	}

	cmd.AddCommand(list, sync, toggleCommand(opts, "enable", true), toggleCommand(opts, "disable", false))
	return cmd
}

func toggleCommand(opts *rootOptions, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SOURCE_ID...",
		Short: "Mark sources as active or inactive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				for _, id := range args {
					if err := a.SetSourceActive(cmd.Context(), id, active); err != nil {
						return err
					}
				}
				return opts.renderer(cmd).message("%sd %d sources", use, len(args))
			})
		},
	}
}
