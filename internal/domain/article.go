package domain

import (
	"fmt"
	"math"
	"time"
)

// Category is owned by the CMS; the pipeline only reads it.
type Category struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// ArticleStatusPublished is the status articles are created with on publish.
const ArticleStatusPublished = "published"

// Article is the publishable artifact created when a curation item is published.
type Article struct {
	ID                string     `json:"id" db:"id"`
	Title             string     `json:"title" db:"title"`
	Slug              string     `json:"slug" db:"slug"`
	Summary           string     `json:"summary" db:"summary"`
	ImageURL          string     `json:"image_url" db:"image_url"`
	SourceURL         string     `json:"source_url" db:"source_url"`
	CategoryID        string     `json:"category_id" db:"category_id"`
	Status            string     `json:"status" db:"status"`
	PublishedAt       time.Time  `json:"published_at" db:"published_at"`
	SourcePublishedAt *time.Time `json:"source_published_at,omitempty" db:"source_published_at"`
}

// Suggestion is what the classification capability answers for one item.
type Suggestion struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Validate rejects confidences outside [0,1].
func (s Suggestion) Validate() error {
	if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrMalformedClassification, s.Confidence)
	}
	return nil
}

// ClassificationRequest is one item sent to the classification capability.
type ClassificationRequest struct {
	Title      string
	Summary    string
	URL        string
	Categories []Category
	Model      string
}
