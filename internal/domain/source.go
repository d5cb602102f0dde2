package domain

import "time"

// Scraping strategy names understood by the scanner registry.
const (
	StrategySelectors = "selectors"
	StrategyFeed      = "feed"
	StrategyGeneric   = "generic"
)

// Pagination rule names.
const (
	PaginationPageParam = "page_param"
	PaginationNextLink  = "next_link"
	PaginationNone      = "none"
)

// Source is an external site configured by an operator.
type Source struct {
	ID        string        `json:"id" db:"id" yaml:"id"`
	Name      string        `json:"name" db:"name" yaml:"name"`
	BaseURL   string        `json:"base_url" db:"base_url" yaml:"baseUrl"`
	Active    bool          `json:"active" db:"active" yaml:"active"`
	Scrape    *ScrapeConfig `json:"scrape_config,omitempty" db:"scrape_config" yaml:"scrape"`
	CreatedAt time.Time     `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at" yaml:"-"`
}

// ScrapeConfig is the declarative per-site scraping rule set.
type ScrapeConfig struct {
	Strategy          string            `json:"strategy,omitempty" yaml:"strategy"`
	ListURL           string            `json:"list_url,omitempty" yaml:"listUrl"`
	ArchiveURL        string            `json:"archive_url,omitempty" yaml:"archiveUrl"`
	ArchiveDateFormat string            `json:"archive_date_format,omitempty" yaml:"archiveDateFormat"`
	FeedURL           string            `json:"feed_url,omitempty" yaml:"feedUrl"`
	Pagination        Pagination        `json:"pagination" yaml:"pagination"`
	List              ItemSelectors     `json:"list" yaml:"list"`
	Detail            *ItemSelectors    `json:"detail,omitempty" yaml:"detail"`
	FetchDetail       bool              `json:"fetch_detail,omitempty" yaml:"fetchDetail"`
	DateFormat        string            `json:"date_format,omitempty" yaml:"dateFormat"`
	Headers           map[string]string `json:"headers,omitempty" yaml:"headers"`
}

// Pagination describes how listing pages follow each other.
type Pagination struct {
	Type         string `json:"type,omitempty" yaml:"type"`
	Start        int    `json:"start,omitempty" yaml:"start"`
	NextSelector string `json:"next_selector,omitempty" yaml:"nextSelector"`
	MaxPages     int    `json:"max_pages,omitempty" yaml:"maxPages"`
}

// ItemSelectors are CSS selectors used on list and detail pages.
type ItemSelectors struct {
	Item     string `json:"item,omitempty" yaml:"item"`
	Title    string `json:"title,omitempty" yaml:"title"`
	Link     string `json:"link,omitempty" yaml:"link"`
	Summary  string `json:"summary,omitempty" yaml:"summary"`
	Image    string `json:"image,omitempty" yaml:"image"`
	Date     string `json:"date,omitempty" yaml:"date"`
	DateAttr string `json:"date_attr,omitempty" yaml:"dateAttr"`
}

// StrategyName resolves the scanner strategy a source should use.
func (s Source) StrategyName() string {
	if s.Scrape == nil {
		return StrategyGeneric
	}
	if s.Scrape.Strategy != "" {
		return s.Scrape.Strategy
	}
	if s.Scrape.FeedURL != "" {
		return StrategyFeed
	}
	if s.Scrape.List.Item != "" {
		return StrategySelectors
	}
	return StrategyGeneric
}
