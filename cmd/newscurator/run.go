package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"NewsCurator/internal/app"
	"NewsCurator/internal/domain"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		run       domain.RunOptions
		threshold float64
		ai        bool
	)
	cmd := &cobra.Command{
		Use:       "run collect|classify|full",
		Short:     "Run one pipeline step now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{domain.StepCollect, domain.StepClassify, domain.StepFull},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("threshold") {
				run.AutoApproveThreshold = &threshold
			}
			if cmd.Flags().Changed("ai") {
				run.AIEnabled = &ai
			}
			run.Trigger = "cli"

			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				report, err := a.Orchestrator().Run(cmd.Context(), args[0], run)
				if err != nil {
					return err
				}
				if err := opts.renderer(cmd).runReport(report); err != nil {
					return err
				}
				if !report.Success {
					return fmt.Errorf("run %s did not succeed", report.RunID)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&run.RunID, "run-id", "", "run id (generated when empty)")
	f.StringSliceVar(&run.SourceIDs, "sources", nil, "restrict collection to these source ids")
	f.IntVar(&run.LimitPerSource, "limit", 0, "max articles per source")
	f.IntVar(&run.BatchSize, "batch-size", 0, "classification batch size")
	f.Float64Var(&threshold, "threshold", 0, "auto-approve threshold override")
	f.BoolVar(&ai, "ai", true, "enable or disable AI classification for this run")
	f.StringVar(&run.Model, "model", "", "classification model override")
	return cmd
}
