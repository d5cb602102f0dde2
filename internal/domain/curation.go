package domain

import "time"

// CurationStatus is the review state of a CurationItem.
type CurationStatus string

const (
	StatusPending   CurationStatus = "pending"
	StatusApproved  CurationStatus = "approved"
	StatusRejected  CurationStatus = "rejected"
	StatusPublished CurationStatus = "published"
	StatusEditing   CurationStatus = "editing"
)

// Valid reports whether s is one of the known statuses.
func (s CurationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPublished, StatusEditing:
		return true
	}
	return false
}

// CurationAction is a curator (or automation) operation on an item.
type CurationAction string

const (
	ActionApprove CurationAction = "approve"
	ActionReject  CurationAction = "reject"
	ActionEdit    CurationAction = "edit"
	ActionRequeue CurationAction = "requeue"
	ActionReopen  CurationAction = "reopen"
	ActionPublish CurationAction = "publish"
)

type transitionRule struct {
	from []CurationStatus
	to   CurationStatus
}

var transitions = map[CurationAction]transitionRule{
	ActionApprove: {from: []CurationStatus{StatusPending, StatusEditing}, to: StatusApproved},
	ActionReject:  {from: []CurationStatus{StatusPending, StatusEditing, StatusApproved}, to: StatusRejected},
	ActionEdit:    {from: []CurationStatus{StatusPending, StatusApproved}, to: StatusEditing},
	ActionRequeue: {from: []CurationStatus{StatusEditing}, to: StatusPending},
	ActionReopen:  {from: []CurationStatus{StatusRejected}, to: StatusPending},
	ActionPublish: {from: []CurationStatus{StatusApproved}, to: StatusPublished},
}

// Target returns the status an action leads to.
func (a CurationAction) Target() (CurationStatus, bool) {
	rule, ok := transitions[a]
	return rule.to, ok
}

// Transition validates action against the current status and returns the next status.
func Transition(current CurationStatus, action CurationAction) (CurationStatus, error) {
	rule, ok := transitions[action]
	if !ok {
		return current, &TransitionError{Action: action, From: current}
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, nil
		}
	}
	return current, &TransitionError{Action: action, From: current, To: rule.to}
}

// CurationItem is the review record wrapping exactly one ScrapedNews row.
type CurationItem struct {
	ID               string         `json:"id" db:"id"`
	ScrapedNewsID    string         `json:"scraped_news_id" db:"scraped_news_id"`
	Status           CurationStatus `json:"status" db:"status"`
	AICategoryID     *string        `json:"ai_category_id,omitempty" db:"ai_category_id"`
	AIConfidence     float64        `json:"ai_confidence" db:"ai_confidence"`
	AIReasoning      string         `json:"ai_reasoning" db:"ai_reasoning"`
	AIModel          string         `json:"ai_model,omitempty" db:"ai_model"`
	CuratorNotes     *string        `json:"curator_notes,omitempty" db:"curator_notes"`
	ManualCategoryID *string        `json:"manual_category_id,omitempty" db:"manual_category_id"`
	AssignedCurator  *string        `json:"assigned_curator,omitempty" db:"assigned_curator"`
	ArticleID        *string        `json:"article_id,omitempty" db:"article_id"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// ResolvedCategory returns the manual category, falling back to the AI suggestion.
func (c CurationItem) ResolvedCategory() string {
	if c.ManualCategoryID != nil && *c.ManualCategoryID != "" {
		return *c.ManualCategoryID
	}
	if c.AICategoryID != nil {
		return *c.AICategoryID
	}
	return ""
}

// CurationUpdate carries the fields a transition may change alongside the status.
type CurationUpdate struct {
	Status           CurationStatus
	CuratorNotes     *string
	ManualCategoryID *string
	AssignedCurator  *string
}

// CurationEntry is a curation item joined with its news and source, as curators see it.
type CurationEntry struct {
	CurationItem
	News       ScrapedNews `json:"news"`
	SourceName string      `json:"source_name"`
}

// CurationFilter narrows the curation list.
type CurationFilter struct {
	Status   CurationStatus
	SourceID string
	Query    string
	Page     int
	PerPage  int
}

// Normalize clamps paging values.
func (f CurationFilter) Normalize() CurationFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
	return f
}

// Offset is the row offset of the requested page.
func (f CurationFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// CurationPage is one page of the curation list.
type CurationPage struct {
	Items   []CurationEntry `json:"items"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// ItemError names a failed id in a bulk operation.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult aggregates a per-id bulk operation.
type BulkResult struct {
	Requested int         `json:"requested"`
	Succeeded int         `json:"succeeded"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}
