package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"NewsCurator/internal/app"
	"NewsCurator/internal/domain"
)

func newBackfillCommand(opts *rootOptions) *cobra.Command {
	var (
		req        domain.BackfillRequest
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Collect items published within a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.StartDate, err = time.Parse(time.DateOnly, start); err != nil {
				return fmt.Errorf("--start: want YYYY-MM-DD: %w", err)
			}
			if req.EndDate, err = time.Parse(time.DateOnly, end); err != nil {
				return fmt.Errorf("--end: want YYYY-MM-DD: %w", err)
			}

			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				report, err := a.Orchestrator().Backfill(cmd.Context(), req)
				if err != nil {
					return err
				}
				return opts.renderer(cmd).backfillReport(report)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	f.StringVar(&end, "end", "", "last day, YYYY-MM-DD (inclusive)")
	f.StringSliceVar(&req.SourceIDs, "sources", nil, "source ids to backfill")
	f.IntVar(&req.LimitPerSource, "limit", 0, "max items per source (default 100)")
	f.StringVar(&req.RunID, "run-id", "", "run id (generated when empty)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("sources")
	return cmd
}
