package domain

import (
	"strconv"
	"strings"
)

// Settings keys stored in the settings table.
const (
	SettingAIEnabled            = "ai_classification_enabled"
	SettingAutoApproveThreshold = "auto_approve_threshold"
	SettingFetchIntervalHours   = "fetch_interval_hours"
	SettingMaxArticlesPerFetch  = "max_articles_per_fetch"
	SettingClassificationModel  = "classification_model"
	SettingClassificationBatch  = "classification_batch_size"
)

// RunSettings is the value passed to one pipeline invocation.
type RunSettings struct {
	AIEnabled            bool    `json:"ai_classification_enabled"`
	AutoApproveThreshold float64 `json:"auto_approve_threshold"`
	FetchIntervalHours   int     `json:"fetch_interval_hours"`
	MaxArticlesPerFetch  int     `json:"max_articles_per_fetch"`
	Model                string  `json:"classification_model"`
	BatchSize            int     `json:"classification_batch_size"`
}

// Merge overlays stored key/value pairs onto s. Unparseable values are ignored.
func (s RunSettings) Merge(stored map[string]string) RunSettings {
	for key, raw := range stored {
		raw = strings.TrimSpace(raw)
		switch key {
		case SettingAIEnabled:
			if v, err := strconv.ParseBool(raw); err == nil {
				s.AIEnabled = v
			}
		case SettingAutoApproveThreshold:
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
				s.AutoApproveThreshold = v
			}
		case SettingFetchIntervalHours:
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				s.FetchIntervalHours = v
			}
		case SettingMaxArticlesPerFetch:
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				s.MaxArticlesPerFetch = v
			}
		case SettingClassificationModel:
			if raw != "" {
				s.Model = raw
			}
		case SettingClassificationBatch:
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				s.BatchSize = v
			}
		}
	}
	return s
}

// Apply overlays per-run overrides onto s.
func (s RunSettings) Apply(o RunOptions) RunSettings {
	if o.AIEnabled != nil {
		s.AIEnabled = *o.AIEnabled
	}
	if o.AutoApproveThreshold != nil {
		s.AutoApproveThreshold = *o.AutoApproveThreshold
	}
	if o.Model != "" {
		s.Model = o.Model
	}
	if o.BatchSize > 0 {
		s.BatchSize = o.BatchSize
	}
	if o.LimitPerSource > 0 {
		s.MaxArticlesPerFetch = o.LimitPerSource
	}
	return s
}

// RunOptions are caller-supplied overrides for a single run.
type RunOptions struct {
	RunID                string   `json:"run_id,omitempty"`
	SourceIDs            []string `json:"source_ids,omitempty"`
	BatchSize            int      `json:"batch_size,omitempty"`
	LimitPerSource       int      `json:"limit_per_source,omitempty"`
	AutoApproveThreshold *float64 `json:"auto_approve_threshold,omitempty"`
	AIEnabled            *bool    `json:"ai_classification_enabled,omitempty"`
	Model                string   `json:"model,omitempty"`
	Trigger              string   `json:"-"`
}

// SettingKeys lists every key the settings table may hold.
var SettingKeys = []string{
	SettingAIEnabled,
	SettingAutoApproveThreshold,
	SettingFetchIntervalHours,
	SettingMaxArticlesPerFetch,
	SettingClassificationModel,
	SettingClassificationBatch,
}
