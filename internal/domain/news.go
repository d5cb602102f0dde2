package domain

import "time"

// CandidateItem is a scraped item that has not been persisted yet.
type CandidateItem struct {
	Title       string
	Summary     string
	URL         string
	ImageURL    string
	PublishedAt *time.Time
	SourceID    string
}

// ScanResult is what one scan of one source produced.
type ScanResult struct {
	Items        []CandidateItem
	PagesFetched int
	PagesFailed  int
	Partial      bool
	LastError    error
}

// ScrapedNews is the persisted, deduplicated candidate. ClassifyAttempts
// counts failed classification attempts.
type ScrapedNews struct {
	ID                  string     `json:"id" db:"id"`
	SourceID            string     `json:"source_id" db:"source_id"`
	Title               string     `json:"title" db:"title"`
	Summary             string     `json:"summary" db:"summary"`
	OriginalURL         string     `json:"original_url" db:"original_url"`
	NormalizedURL       string     `json:"normalized_url" db:"normalized_url"`
	ImageURL            string     `json:"image_url" db:"image_url"`
	PublishedAt         *time.Time `json:"published_at,omitempty" db:"published_at"`
	IngestedAt          time.Time  `json:"ingested_at" db:"ingested_at"`
	ClassifyAttempts    int        `json:"classify_attempts" db:"classify_attempts"`
	LastClassifyErrorAt *time.Time `json:"last_classify_error_at,omitempty" db:"last_classify_error_at"`
}

// IngestResult aggregates one ingestion call.
type IngestResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// Add folds another result into r.
func (r *IngestResult) Add(other IngestResult) {
	r.Inserted += other.Inserted
	r.Skipped += other.Skipped
	r.Invalid += other.Invalid
}
