package main

import (
	"github.com/spf13/cobra"

	"NewsCurator/internal/app"
)

func newSettingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change run-time settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				settings, err := a.Settings(cmd.Context())
				if err != nil {
					return err
				}
				return opts.renderer(cmd).settings(settings)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store one setting; it applies from the next run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				if err := a.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				return opts.renderer(cmd).message("%s = %s", args[0], args[1])
			})
		},
	})
	return cmd
}
