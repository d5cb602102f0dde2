package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/scanner"
	"NewsCurator/internal/urlnorm"
)

// GenericScanner extracts items from pages nobody wrote selectors for.
// It looks for article elements first and falls back to linked headings.
type GenericScanner struct {
	walker
}

// NewGenericScanner wires the shared fetcher.
func NewGenericScanner(fetcher *Fetcher, cfg WalkConfig, logger *slog.Logger) *GenericScanner {
	return &GenericScanner{walker: newWalker(domain.StrategyGeneric, fetcher, cfg, logger)}
}

// Name identifies the strategy inside the registry.
func (g *GenericScanner) Name() string {
	return domain.StrategyGeneric
}

// Scan reads the base (or list) URL and applies the heuristics.
func (g *GenericScanner) Scan(ctx context.Context, req scanner.Request) (domain.ScanResult, error) {
	p, err := buildPager(req, req.Source.BaseURL)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("source %s: %w", req.Source.ID, err)
	}

	fetchDetail := req.Source.Scrape != nil && req.Source.Scrape.FetchDetail
	extract := func(ctx context.Context, doc *goquery.Document, pageURL string) []domain.CandidateItem {
		items := extractGeneric(doc, pageURL)
		if fetchDetail {
			for i := range items {
				g.enrich(ctx, req, &items[i])
			}
		}
		return items
	}
	return g.walk(ctx, req, p, extract), nil
}

func (g *GenericScanner) enrich(ctx context.Context, req scanner.Request, item *domain.CandidateItem) {
	if ctx.Err() != nil {
		return
	}
	doc, err := g.fetcher.FetchDocument(ctx, item.URL, req.Source.Scrape.Headers)
	if err != nil {
		g.logger.Debug("detail page failed", "source", req.Source.ID, "url", item.URL, "error", err)
		return
	}
	if item.Summary == "" {
		item.Summary = firstNonEmpty(metaContent(doc, "og:description"), metaContent(doc, "description"))
	}
	if item.ImageURL == "" {
		if img := metaContent(doc, "og:image"); img != "" {
			item.ImageURL = urlnorm.Absolute(item.URL, img)
		}
	}
	if item.PublishedAt == nil {
		item.PublishedAt = parseDate(firstNonEmpty(metaContent(doc, "article:published_time"), timeAttr(doc.Selection)), "")
	}
}

func extractGeneric(doc *goquery.Document, pageURL string) []domain.CandidateItem {
	var items []domain.CandidateItem

	doc.Find("article").Each(func(_ int, node *goquery.Selection) {
		anchor := node.Find("h1 a[href], h2 a[href], h3 a[href], h4 a[href]").First()
		if anchor.Length() == 0 {
			anchor = node.Find("a[href]").First()
		}
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		title := collapse(node.Find("h1, h2, h3, h4").First().Text())
		if title == "" {
			title = collapse(anchor.Text())
		}
		var image string
		if raw := selectImage(node, "img"); raw != "" {
			image = urlnorm.Absolute(pageURL, raw)
		}
		items = append(items, domain.CandidateItem{
			Title:       title,
			Summary:     collapse(node.Find("p").First().Text()),
			URL:         urlnorm.Absolute(pageURL, href),
			ImageURL:    image,
			PublishedAt: parseDate(timeAttr(node), ""),
		})
	})
	if len(items) > 0 {
		return items
	}

	doc.Find("h2 a[href], h3 a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		title := collapse(anchor.Text())
		if title == "" || href == "" || href[0] == '#' {
			return
		}
		items = append(items, domain.CandidateItem{
			Title: title,
			URL:   urlnorm.Absolute(pageURL, href),
		})
	})
	return items
}
