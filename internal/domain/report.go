package domain

import "time"

// Pipeline steps.
const (
	StepCollect  = "collect"
	StepClassify = "classify"
	StepFull     = "full"
	StepBackfill = "backfill"
)

// SourceOutcome is the per-source part of a collect report.
type SourceOutcome struct {
	SourceID     string `json:"source_id"`
	Name         string `json:"name"`
	Checked      int    `json:"checked"`
	Inserted     int    `json:"inserted"`
	Skipped      int    `json:"skipped"`
	Invalid      int    `json:"invalid"`
	PagesFetched int    `json:"pages_fetched"`
	PagesFailed  int    `json:"pages_failed"`
	Partial      bool   `json:"partial"`
	Error        string `json:"error,omitempty"`
}

// CollectReport aggregates one collect step.
type CollectReport struct {
	Sources  []SourceOutcome `json:"sources"`
	Checked  int             `json:"checked"`
	Inserted int             `json:"inserted"`
	Skipped  int             `json:"skipped"`
	Invalid  int             `json:"invalid"`
	Failed   int             `json:"failed_sources"`
}

// ClassifyResult aggregates one classifier invocation.
type ClassifyResult struct {
	Processed       int         `json:"processed"`
	AutoApproved    int         `json:"auto_approved"`
	QueuedForReview int         `json:"queued_for_review"`
	Failed          int         `json:"failed"`
	Errors          []ItemError `json:"errors,omitempty"`
}

// RunReport is returned by every orchestrator run.
type RunReport struct {
	RunID      string          `json:"run_id"`
	Step       string          `json:"step"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Success    bool            `json:"success"`
	Cancelled  bool            `json:"cancelled,omitempty"`
	Settings   RunSettings     `json:"settings"`
	Collect    *CollectReport  `json:"collect,omitempty"`
	Classify   *ClassifyResult `json:"classify,omitempty"`
	Errors     []string        `json:"errors,omitempty"`
}

// Stats is the orchestrator dashboard summary.
type Stats struct {
	ActiveSources    int                    `json:"active_sources"`
	PendingCuration  int                    `json:"pending_curation"`
	IngestedLast24h  int                    `json:"ingested_last_24h"`
	CurationByStatus map[CurationStatus]int `json:"curation_by_status"`
}

// BackfillRequest asks for items published within a date range.
type BackfillRequest struct {
	RunID          string    `json:"run_id,omitempty"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	SourceIDs      []string  `json:"source_ids"`
	LimitPerSource int       `json:"limit_per_source"`
}

// BackfillOutcome is one source's backfill result.
type BackfillOutcome struct {
	SourceID string `json:"source_id"`
	Inserted int    `json:"inserted"`
	Checked  int    `json:"checked"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// BackfillReport is returned by a backfill run.
type BackfillReport struct {
	RunID   string            `json:"run_id"`
	Results []BackfillOutcome `json:"results"`
}

// RunInfo describes an in-flight run.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Step      string    `json:"step"`
	StartedAt time.Time `json:"started_at"`
}
