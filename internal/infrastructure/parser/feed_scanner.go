package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
	"NewsCurator/internal/scanner"
	"NewsCurator/internal/urlnorm"
)

const maxFeedSummary = 1000

// FeedScanner reads RSS, Atom and JSON feeds.
type FeedScanner struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewFeedScanner wires the shared fetcher.
func NewFeedScanner(fetcher *Fetcher, logger *slog.Logger) *FeedScanner {
	w := newWalker(domain.StrategyFeed, fetcher, WalkConfig{}, logger)
	return &FeedScanner{fetcher: w.fetcher, logger: w.logger}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return domain.StrategyFeed
}

// Scan fetches one feed document. Feeds are not paginated, so period mode only filters.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) (domain.ScanResult, error) {
	var feedURL string
	var headers map[string]string
	if cfg := req.Source.Scrape; cfg != nil {
		feedURL = firstNonEmpty(cfg.FeedURL, cfg.ListURL)
		headers = cfg.Headers
	}
	if feedURL == "" {
		return domain.ScanResult{}, fmt.Errorf("source %s: feed strategy needs feed_url", req.Source.ID)
	}
	if err := checkAbsolute(feedURL); err != nil {
		return domain.ScanResult{}, fmt.Errorf("source %s: %w", req.Source.ID, err)
	}

	var result domain.ScanResult
	body, err := f.fetcher.Fetch(ctx, feedURL, headers)
	if err != nil {
		metrics.ObservePage(domain.StrategyFeed, false)
		f.logger.Warn("feed failed", "source", req.Source.ID, "url", feedURL, "error", err)
		result.PagesFailed = 1
		result.Partial = true
		result.LastError = err
		return result, nil
	}
	result.PagesFetched = 1
	metrics.ObservePage(domain.StrategyFeed, true)

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("source %s: parse feed: %w", req.Source.ID, err)
	}

	seen := map[string]struct{}{}
	for _, entry := range parsed.Items {
		link := feedLink(entry)
		if link == "" {
			continue
		}
		link = urlnorm.Absolute(feedURL, link)
		if _, dup := seen[link]; dup {
			continue
		}

		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}
		if published != nil {
			t := published.UTC()
			published = &t
		}
		if !req.InPeriod(published) {
			continue
		}
		seen[link] = struct{}{}

		result.Items = append(result.Items, domain.CandidateItem{
			Title:       collapse(entry.Title),
			Summary:     feedSummary(entry),
			URL:         link,
			ImageURL:    feedImage(entry),
			PublishedAt: published,
			SourceID:    req.Source.ID,
		})
		if req.Limit > 0 && len(result.Items) >= req.Limit {
			break
		}
	}
	return result, nil
}

func feedLink(entry *gofeed.Item) string {
	if entry.Link != "" {
		return strings.TrimSpace(entry.Link)
	}
	if strings.HasPrefix(entry.GUID, "http") {
		return strings.TrimSpace(entry.GUID)
	}
	return ""
}

func feedImage(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// feedSummary strips markup from the description.
func feedSummary(entry *gofeed.Item) string {
	raw := firstNonEmpty(entry.Description, entry.Content)
	if raw == "" {
		return ""
	}
	text := raw
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
		text = doc.Text()
	}
	text = collapse(text)
	if r := []rune(text); len(r) > maxFeedSummary {
		text = string(r[:maxFeedSummary])
	}
	return text
}
