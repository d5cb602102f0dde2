package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
	"NewsCurator/internal/scanner"
	"NewsCurator/internal/urlnorm"
)

const (
	defaultMaxPages               = 10
	defaultMaxConsecutiveFailures = 3
	defaultArchiveDateFormat      = "2006-01-02"
	maxArchiveDays                = 366
)

// WalkConfig bounds a listing walk.
type WalkConfig struct {
	MaxConsecutiveFailures int
	PageDelay              time.Duration
}

// pager yields page URLs in order. next receives the document of the page just
// processed (nil when it failed) and reports whether another page follows.
type pager interface {
	first() string
	next(doc *goquery.Document, current string) (string, bool)
	// bounded pagers walk a fixed range and ignore the older-than-start cut-off.
	bounded() bool
}

type extractFunc func(ctx context.Context, doc *goquery.Document, pageURL string) []domain.CandidateItem

type walker struct {
	strategy string
	fetcher  *Fetcher
	cfg      WalkConfig
	logger   *slog.Logger
}

func newWalker(strategy string, fetcher *Fetcher, cfg WalkConfig, logger *slog.Logger) walker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if fetcher == nil {
		fetcher = NewFetcher(nil, FetchConfig{}, logger)
	}
	return walker{strategy: strategy, fetcher: fetcher, cfg: cfg, logger: logger}
}

func (w *walker) walk(ctx context.Context, req scanner.Request, p pager, extract extractFunc) domain.ScanResult {
	var (
		result      domain.ScanResult
		consecutive int
		seen        = map[string]struct{}{}
		headers     map[string]string
	)
	if req.Source.Scrape != nil {
		headers = req.Source.Scrape.Headers
	}
	maxFailures := w.cfg.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxConsecutiveFailures
	}

	pageURL := p.first()
	for pageURL != "" {
		if ctx.Err() != nil {
			break
		}

		doc, err := w.fetcher.FetchDocument(ctx, pageURL, headers)
		if err != nil {
			result.PagesFailed++
			result.LastError = err
			consecutive++
			metrics.ObservePage(w.strategy, false)
			w.logger.Warn("page failed", "source", req.Source.ID, "url", pageURL, "error", err)
			if consecutive >= maxFailures {
				result.Partial = true
				break
			}
			nextURL, ok := p.next(nil, pageURL)
			if !ok {
				// next_link pagination cannot continue past a lost page
				result.Partial = true
				break
			}
			pageURL = nextURL
			w.pause(ctx)
			continue
		}
		consecutive = 0
		result.PagesFetched++
		metrics.ObservePage(w.strategy, true)

		items := extract(ctx, doc, pageURL)
		dated, older := 0, 0
		for _, item := range items {
			if item.PublishedAt != nil {
				dated++
				if req.Mode == scanner.ModePeriod && item.PublishedAt.Before(req.Start) {
					older++
				}
			}
			if !req.InPeriod(item.PublishedAt) {
				continue
			}
			if _, dup := seen[item.URL]; dup {
				continue
			}
			seen[item.URL] = struct{}{}
			item.SourceID = req.Source.ID
			result.Items = append(result.Items, item)
			if req.Limit > 0 && len(result.Items) >= req.Limit {
				return result
			}
		}

		if len(items) == 0 && !p.bounded() {
			break
		}
		if req.Mode == scanner.ModePeriod && !p.bounded() && dated > 0 && older == dated {
			break
		}

		nextURL, ok := p.next(doc, pageURL)
		if !ok {
			break
		}
		pageURL = nextURL
		w.pause(ctx)
	}

	if ctx.Err() != nil && result.LastError == nil {
		result.LastError = ctx.Err()
	}
	return result
}

func (w *walker) pause(ctx context.Context) {
	if w.cfg.PageDelay <= 0 {
		return
	}
	timer := time.NewTimer(w.cfg.PageDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type singlePager struct{ url string }

func (p singlePager) first() string { return p.url }

func (singlePager) next(*goquery.Document, string) (string, bool) { return "", false }

func (singlePager) bounded() bool { return false }

type pageParamPager struct {
	template string
	page     int
	last     int
}

func (p *pageParamPager) first() string {
	return strings.ReplaceAll(p.template, "{page}", strconv.Itoa(p.page))
}

func (p *pageParamPager) next(*goquery.Document, string) (string, bool) {
	if p.page >= p.last {
		return "", false
	}
	p.page++
	return strings.ReplaceAll(p.template, "{page}", strconv.Itoa(p.page)), true
}

func (*pageParamPager) bounded() bool { return false }

type nextLinkPager struct {
	start     string
	selector  string
	remaining int
}

func (p *nextLinkPager) first() string { return p.start }

func (p *nextLinkPager) next(doc *goquery.Document, current string) (string, bool) {
	p.remaining--
	if doc == nil || p.remaining <= 0 {
		return "", false
	}
	href, ok := doc.Find(p.selector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	next := urlnorm.Absolute(current, href)
	if next == current {
		return "", false
	}
	return next, true
}

func (*nextLinkPager) bounded() bool { return false }

// archivePager visits one archive page per day, newest first.
type archivePager struct {
	template string
	layout   string
	day      time.Time
	start    time.Time
}

func (p *archivePager) first() string { return p.format(p.day) }

func (p *archivePager) next(*goquery.Document, string) (string, bool) {
	p.day = p.day.AddDate(0, 0, -1)
	if p.day.Before(p.start) {
		return "", false
	}
	return p.format(p.day), true
}

func (*archivePager) bounded() bool { return true }

func (p *archivePager) format(day time.Time) string {
	return strings.ReplaceAll(p.template, "{date}", day.Format(p.layout))
}

// buildPager picks the page sequence for a request from the scrape config.
func buildPager(req scanner.Request, fallbackURL string) (pager, error) {
	cfg := req.Source.Scrape
	if cfg == nil {
		cfg = &domain.ScrapeConfig{}
	}

	if req.Mode == scanner.ModePeriod && cfg.ArchiveURL != "" {
		if !strings.Contains(cfg.ArchiveURL, "{date}") {
			return nil, fmt.Errorf("archive_url %q has no {date} placeholder", cfg.ArchiveURL)
		}
		if err := checkAbsolute(strings.ReplaceAll(cfg.ArchiveURL, "{date}", "2006-01-02")); err != nil {
			return nil, err
		}
		layout := cfg.ArchiveDateFormat
		if layout == "" {
			layout = defaultArchiveDateFormat
		}
		start := truncateDay(req.Start)
		end := truncateDay(req.End)
		if end.Sub(start) > maxArchiveDays*24*time.Hour {
			return nil, fmt.Errorf("archive walk longer than %d days", maxArchiveDays)
		}
		return &archivePager{template: cfg.ArchiveURL, layout: layout, day: end, start: start}, nil
	}

	listURL := cfg.ListURL
	if listURL == "" {
		listURL = fallbackURL
	}
	if listURL == "" {
		return nil, fmt.Errorf("source %s has neither list_url nor base_url", req.Source.ID)
	}

	maxPages := cfg.Pagination.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	kind := cfg.Pagination.Type
	if kind == "" {
		kind = domain.PaginationNone
		if strings.Contains(listURL, "{page}") {
			kind = domain.PaginationPageParam
		}
	}

	switch kind {
	case domain.PaginationNone:
		listURL = strings.ReplaceAll(listURL, "{page}", "1")
		if err := checkAbsolute(listURL); err != nil {
			return nil, err
		}
		return singlePager{url: listURL}, nil
	case domain.PaginationPageParam:
		if !strings.Contains(listURL, "{page}") {
			return nil, fmt.Errorf("list_url %q has no {page} placeholder", listURL)
		}
		if err := checkAbsolute(strings.ReplaceAll(listURL, "{page}", "1")); err != nil {
			return nil, err
		}
		start := cfg.Pagination.Start
		if start <= 0 {
			start = 1
		}
		return &pageParamPager{template: listURL, page: start, last: start + maxPages - 1}, nil
	case domain.PaginationNextLink:
		if cfg.Pagination.NextSelector == "" {
			return nil, fmt.Errorf("next_link pagination needs next_selector")
		}
		if err := checkAbsolute(listURL); err != nil {
			return nil, err
		}
		return &nextLinkPager{start: listURL, selector: cfg.Pagination.NextSelector, remaining: maxPages}, nil
	default:
		return nil, fmt.Errorf("unknown pagination type %q", cfg.Pagination.Type)
	}
}

func checkAbsolute(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q: must be absolute http(s)", raw)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
