package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/scanner"
	"NewsCurator/internal/urlnorm"
)

// SelectorScanner walks listing pages and extracts items with per-source CSS selectors.
type SelectorScanner struct {
	walker
}

// NewSelectorScanner wires the shared fetcher.
func NewSelectorScanner(fetcher *Fetcher, cfg WalkConfig, logger *slog.Logger) *SelectorScanner {
	return &SelectorScanner{walker: newWalker(domain.StrategySelectors, fetcher, cfg, logger)}
}

// Name identifies the strategy inside the registry.
func (s *SelectorScanner) Name() string {
	return domain.StrategySelectors
}

// Scan walks the listing (or archive days in period mode) and returns items in listing order.
func (s *SelectorScanner) Scan(ctx context.Context, req scanner.Request) (domain.ScanResult, error) {
	cfg := req.Source.Scrape
	if cfg == nil || cfg.List.Item == "" {
		return domain.ScanResult{}, fmt.Errorf("source %s: selectors strategy needs list.item", req.Source.ID)
	}
	if cfg.List.Link == "" && cfg.List.Title == "" {
		return domain.ScanResult{}, fmt.Errorf("source %s: selectors strategy needs list.link or list.title", req.Source.ID)
	}

	p, err := buildPager(req, req.Source.BaseURL)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("source %s: %w", req.Source.ID, err)
	}

	extract := func(ctx context.Context, doc *goquery.Document, pageURL string) []domain.CandidateItem {
		items := extractItems(doc, pageURL, cfg.List, cfg.DateFormat)
		if cfg.FetchDetail {
			for i := range items {
				s.enrich(ctx, req, &items[i])
			}
		}
		return items
	}

	return s.walk(ctx, req, p, extract), nil
}

// enrich fills fields from the article page. Failures keep the listing data.
func (s *SelectorScanner) enrich(ctx context.Context, req scanner.Request, item *domain.CandidateItem) {
	if ctx.Err() != nil {
		return
	}
	doc, err := s.fetcher.FetchDocument(ctx, item.URL, req.Source.Scrape.Headers)
	if err != nil {
		s.logger.Debug("detail page failed", "source", req.Source.ID, "url", item.URL, "error", err)
		return
	}
	sel := req.Source.Scrape.Detail
	if sel == nil {
		sel = &domain.ItemSelectors{}
	}
	root := doc.Selection
	if item.Title == "" {
		item.Title = firstNonEmpty(selectText(root, sel.Title), metaContent(doc, "og:title"))
	}
	if item.Summary == "" {
		item.Summary = firstNonEmpty(selectText(root, sel.Summary), metaContent(doc, "og:description"), metaContent(doc, "description"))
	}
	if item.ImageURL == "" {
		img := firstNonEmpty(selectImage(root, sel.Image), metaContent(doc, "og:image"))
		if img != "" {
			item.ImageURL = urlnorm.Absolute(item.URL, img)
		}
	}
	if item.PublishedAt == nil {
		raw := selectDate(root, sel.Date, sel.DateAttr)
		if raw == "" {
			raw = firstNonEmpty(metaContent(doc, "article:published_time"), timeAttr(root))
		}
		item.PublishedAt = parseDate(raw, req.Source.Scrape.DateFormat)
	}
}

func extractItems(doc *goquery.Document, pageURL string, sel domain.ItemSelectors, dateFormat string) []domain.CandidateItem {
	var items []domain.CandidateItem
	doc.Find(sel.Item).Each(func(_ int, node *goquery.Selection) {
		href := selectAttr(node, sel.Link, "href")
		if href == "" && sel.Link == "" {
			href = selectAttr(node, "a[href]", "href")
		}
		if href == "" {
			return
		}
		link := urlnorm.Absolute(pageURL, href)

		title := selectText(node, sel.Title)
		if title == "" {
			title = collapse(node.Find(firstNonEmpty(sel.Link, "a")).First().Text())
		}

		var image string
		if raw := selectImage(node, sel.Image); raw != "" {
			image = urlnorm.Absolute(pageURL, raw)
		}

		items = append(items, domain.CandidateItem{
			Title:       title,
			Summary:     selectText(node, sel.Summary),
			URL:         link,
			ImageURL:    image,
			PublishedAt: parseDate(selectDate(node, sel.Date, sel.DateAttr), dateFormat),
		})
	})
	return items
}

func selectText(node *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapse(node.Find(selector).First().Text())
}

func selectAttr(node *goquery.Selection, selector, attr string) string {
	target := node
	if selector != "" {
		target = node.Find(selector).First()
	}
	value, _ := target.Attr(attr)
	return strings.TrimSpace(value)
}

func selectImage(node *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	target := node.Find(selector).First()
	if !target.Is("img") {
		if inner := target.Find("img").First(); inner.Length() > 0 {
			target = inner
		}
	}
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "content"} {
		if v, ok := target.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func selectDate(node *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	target := node.Find(selector).First()
	if attr != "" {
		v, _ := target.Attr(attr)
		return strings.TrimSpace(v)
	}
	if v, ok := target.Attr("datetime"); ok && v != "" {
		return strings.TrimSpace(v)
	}
	return collapse(target.Text())
}

func metaContent(doc *goquery.Document, name string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)
	v, _ := doc.Find(sel).First().Attr("content")
	return strings.TrimSpace(v)
}

func timeAttr(node *goquery.Selection) string {
	v, _ := node.Find("time[datetime]").First().Attr("datetime")
	return strings.TrimSpace(v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
