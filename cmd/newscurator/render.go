package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"NewsCurator/internal/domain"
)

// renderer prints reports as go-pretty tables, or JSON when requested.
type renderer struct {
	out  io.Writer
	json bool
}

func (r renderer) encode(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r renderer) table(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func (r renderer) message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if r.json {
		return r.encode(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(r.out, msg)
	return err
}

func (r renderer) runReport(report domain.RunReport) error {
	if r.json {
		return r.encode(report)
	}

	status := "ok"
	switch {
	case report.Cancelled:
		status = "cancelled"
	case !report.Success:
		status = "failed"
	}
	t := r.table(fmt.Sprintf("Run %s (%s) %s in %s", report.RunID, report.Step, status,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))

	if c := report.Collect; c != nil {
		t.AppendHeader(table.Row{"Source", "Checked", "Inserted", "Skipped", "Invalid", "Pages ok/failed", "Error"})
		for _, src := range c.Sources {
			pages := fmt.Sprintf("%d/%d", src.PagesFetched, src.PagesFailed)
			if src.Partial {
				pages += " partial"
			}
			t.AppendRow(table.Row{src.SourceID, src.Checked, src.Inserted, src.Skipped, src.Invalid, pages, src.Error})
		}
		t.AppendFooter(table.Row{"Total", c.Checked, c.Inserted, c.Skipped, c.Invalid, "", fmt.Sprintf("%d failed", c.Failed)})
		t.Render()
	}

	if c := report.Classify; c != nil {
		ct := r.table("Classification")
		ct.AppendHeader(table.Row{"Processed", "Auto-approved", "For review", "Failed"})
		ct.AppendRow(table.Row{c.Processed, c.AutoApproved, c.QueuedForReview, c.Failed})
		ct.Render()
		for _, e := range c.Errors {
			if _, err := fmt.Fprintf(r.out, "- %s: %s\n", e.ID, e.Error); err != nil {
				return err
			}
		}
	}

	for _, e := range report.Errors {
		if _, err := fmt.Fprintln(r.out, "error:", e); err != nil {
			return err
		}
	}
	return nil
}

func (r renderer) backfillReport(report domain.BackfillReport) error {
	if r.json {
		return r.encode(report)
	}
	t := r.table("Backfill " + report.RunID)
	t.AppendHeader(table.Row{"Source", "Checked", "Inserted", "Skipped", "Error"})
	for _, res := range report.Results {
		t.AppendRow(table.Row{res.SourceID, res.Checked, res.Inserted, res.Skipped, res.Error})
	}
	t.Render()
	return nil
}

func (r renderer) stats(stats domain.Stats) error {
	if r.json {
		return r.encode(stats)
	}
	t := r.table("Pipeline")
	t.AppendRows([]table.Row{
		{"Active sources", stats.ActiveSources},
		{"Ingested (24h)", stats.IngestedLast24h},
		{"Pending curation", stats.PendingCuration},
	})
	statuses := make([]string, 0, len(stats.CurationByStatus))
	for status := range stats.CurationByStatus {
		statuses = append(statuses, string(status))
	}
	slices.Sort(statuses)
	if len(statuses) > 0 {
		t.AppendSeparator()
	}
	for _, status := range statuses {
		t.AppendRow(table.Row{"Curation: " + status, stats.CurationByStatus[domain.CurationStatus(status)]})
	}
	t.Render()
	return nil
}

func (r renderer) sources(sources []domain.Source) error {
	if r.json {
		return r.encode(sources)
	}
	if len(sources) == 0 {
		return r.message("no sources registered")
	}
	t := r.table("")
	t.AppendHeader(table.Row{"ID", "Name", "URL", "Strategy", "Active"})
	for _, src := range sources {
		t.AppendRow(table.Row{src.ID, src.Name, src.BaseURL, src.StrategyName(), src.Active})
	}
	t.Render()
	return nil
}

func (r renderer) settings(s domain.RunSettings) error {
	if r.json {
		return r.encode(s)
	}
	t := r.table("Settings")
	t.AppendHeader(table.Row{"Key", "Value"})
	t.AppendRows([]table.Row{
		{domain.SettingAIEnabled, s.AIEnabled},
		{domain.SettingAutoApproveThreshold, s.AutoApproveThreshold},
		{domain.SettingFetchIntervalHours, s.FetchIntervalHours},
		{domain.SettingMaxArticlesPerFetch, s.MaxArticlesPerFetch},
		{domain.SettingClassificationModel, s.Model},
		{domain.SettingClassificationBatch, s.BatchSize},
	})
	t.Render()
	return nil
}

func (r renderer) migrationVersion(version uint, dirty bool) error {
	if r.json {
		return r.encode(map[string]any{"version": version, "dirty": dirty})
	}
	state := []string{fmt.Sprintf("schema version %d", version)}
	if dirty {
		state = append(state, "dirty")
	}
	return r.message("%s", strings.Join(state, ", "))
}
