package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/scanner"
)

func testFetcher(client *http.Client) *Fetcher {
	return NewFetcher(client, FetchConfig{
		Timeout:        2 * time.Second,
		Retries:        0,
		BackoffInitial: time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
	}, nil)
}

type listItem struct {
	href  string
	title string
	date  string
}

func listingPage(items ...listItem) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="news">`)
	for _, it := range items {
		fmt.Fprintf(&b, `<li class="card"><a class="card__link" href="%s"><span class="card__title">%s</span></a>`+
			`<p class="card__lead">Lead of %s</p><img class="card__img" src="/img/%s.jpg">`+
			`<time class="card__date" datetime="%s">ignored</time></li>`, it.href, it.title, it.title, it.title, it.date)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func selectorSource(baseURL string) domain.Source {
	return domain.Source{
		ID:      "daily",
		Name:    "Daily",
		BaseURL: baseURL,
		Active:  true,
		Scrape: &domain.ScrapeConfig{
			Strategy:   domain.StrategySelectors,
			ListURL:    baseURL + "/news?page={page}",
			Pagination: domain.Pagination{Type: domain.PaginationPageParam, Start: 1, MaxPages: 5},
			List: domain.ItemSelectors{
				Item:    "li.card",
				Title:   ".card__title",
				Link:    "a.card__link",
				Summary: ".card__lead",
				Image:   ".card__img",
				Date:    ".card__date",
			},
		},
	}
}

func TestSelectorScannerWalksPagesInOrder(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(listingPage(
				listItem{"/a/1", "One", "2024-05-03T10:00:00Z"},
				listItem{"/a/2", "Two", "2024-05-03T09:00:00Z"},
			)))
		case "2":
			_, _ = w.Write([]byte(listingPage(
				listItem{"/a/3", "Three", "2024-05-02T10:00:00Z"},
				listItem{"/a/2", "Two", "2024-05-03T09:00:00Z"},
			)))
		default:
			_, _ = w.Write([]byte(listingPage()))
		}
	}))
	defer server.Close()

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{}, nil)
	res, err := sc.Scan(context.Background(), scanner.Request{Source: selectorSource(server.URL), Limit: 50})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(res.Items) != 3 {
		t.Fatalf("expected 3 unique items, got %d", len(res.Items))
	}
	wantTitles := []string{"One", "Two", "Three"}
	for i, want := range wantTitles {
		if res.Items[i].Title != want {
			t.Fatalf("item %d: expected %s, got %s", i, want, res.Items[i].Title)
		}
	}
	first := res.Items[0]
	if first.URL != server.URL+"/a/1" {
		t.Fatalf("unexpected url: %s", first.URL)
	}
	if first.Summary != "Lead of One" {
		t.Fatalf("unexpected summary: %s", first.Summary)
	}
	if first.ImageURL != server.URL+"/img/One.jpg" {
		t.Fatalf("unexpected image: %s", first.ImageURL)
	}
	if first.PublishedAt == nil || !first.PublishedAt.Equal(time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", first.PublishedAt)
	}
	if first.SourceID != "daily" {
		t.Fatalf("unexpected source id: %s", first.SourceID)
	}
	if res.PagesFetched != 3 || res.PagesFailed != 0 || res.Partial {
		t.Fatalf("unexpected page stats: %+v", res)
	}
	if requests.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", requests.Load())
	}
}

func TestSelectorScannerRespectsLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		_, _ = w.Write([]byte(listingPage(
			listItem{"/p" + page + "/1", "A" + page, "2024-05-03"},
			listItem{"/p" + page + "/2", "B" + page, "2024-05-03"},
		)))
	}))
	defer server.Close()

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{}, nil)
	res, err := sc.Scan(context.Background(), scanner.Request{Source: selectorSource(server.URL), Limit: 3})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(res.Items) != 3 {
		t.Fatalf("expected limit of 3 items, got %d", len(res.Items))
	}
	if res.PagesFetched != 2 {
		t.Fatalf("expected to stop after 2 pages, got %d", res.PagesFetched)
	}
}

func TestSelectorScannerPeriodStopsAtOlderPage(t *testing.T) {
	t.Parallel()

	var pastCutoff atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(listingPage(
				listItem{"/n/new", "Too new", "2024-05-10T08:00:00Z"},
				listItem{"/n/in1", "In range late", "2024-05-05T23:30:00Z"},
				listItem{"/n/undated", "Undated", ""},
			)))
		case "2":
			_, _ = w.Write([]byte(listingPage(
				listItem{"/n/in2", "In range early", "2024-05-04T00:00:00Z"},
				listItem{"/n/old1", "Old", "2024-05-03T12:00:00Z"},
			)))
		case "3":
			_, _ = w.Write([]byte(listingPage(
				listItem{"/n/old2", "Older", "2024-05-02T12:00:00Z"},
			)))
		default:
			pastCutoff.Store(true)
			_, _ = w.Write([]byte(listingPage(listItem{"/n/old3", "Oldest", "2024-05-01T12:00:00Z"})))
		}
	}))
	defer server.Close()

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{}, nil)
	start := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	res, err := sc.Scan(context.Background(), scanner.Request{
		Source: selectorSource(server.URL),
		Mode:   scanner.ModePeriod,
		Start:  start,
		End:    end,
		Limit:  100,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(res.Items) != 2 {
		t.Fatalf("expected 2 in-range items, got %d: %+v", len(res.Items), res.Items)
	}
	for _, it := range res.Items {
		if it.PublishedAt == nil || it.PublishedAt.Before(start) || it.PublishedAt.After(scanner.EndOfDay(end)) {
			t.Fatalf("item outside period: %+v", it)
		}
	}
	if res.PagesFetched != 3 {
		t.Fatalf("expected walk to stop after the first fully older page, fetched %d", res.PagesFetched)
	}
	if pastCutoff.Load() {
		t.Fatalf("walk continued past a page older than start")
	}
}

func TestSelectorScannerArchiveWalksDaysBackwards(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		day := strings.TrimPrefix(r.URL.Path, "/archive/")
		mu.Lock()
		seen = append(seen, day)
		mu.Unlock()
		_, _ = w.Write([]byte(listingPage(listItem{"/d/" + day, "Story " + day, day + "T12:00:00Z"})))
	}))
	defer server.Close()

	src := selectorSource(server.URL)
	src.Scrape.ArchiveURL = server.URL + "/archive/{date}"

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{}, nil)
	res, err := sc.Scan(context.Background(), scanner.Request{
		Source: src,
		Mode:   scanner.ModePeriod,
		Start:  time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	wantDays := []string{"2024-02-01", "2024-01-31", "2024-01-30"}
	if len(seen) != len(wantDays) {
		t.Fatalf("expected %d archive requests, got %v", len(wantDays), seen)
	}
	for i, day := range wantDays {
		if seen[i] != day {
			t.Fatalf("request %d: expected %s, got %s", i, day, seen[i])
		}
		if res.Items[i].Title != "Story "+day {
			t.Fatalf("item %d: expected story of %s, got %s", i, day, res.Items[i].Title)
		}
	}
}

func TestSelectorScannerPartialAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(listingPage(listItem{"/ok", "Survivor", "2024-05-03"})))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{MaxConsecutiveFailures: 3}, nil)
	res, err := sc.Scan(context.Background(), scanner.Request{Source: selectorSource(server.URL), Limit: 50})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if !res.Partial {
		t.Fatalf("expected partial result")
	}
	if res.PagesFetched != 1 || res.PagesFailed != 3 {
		t.Fatalf("unexpected page stats: fetched=%d failed=%d", res.PagesFetched, res.PagesFailed)
	}
	if len(res.Items) != 1 || res.Items[0].Title != "Survivor" {
		t.Fatalf("expected recovered item, got %+v", res.Items)
	}
	if res.LastError == nil {
		t.Fatalf("expected last error to be recorded")
	}
}

func TestSelectorScannerSkipsSingleFailedPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(listingPage(listItem{"/1", "First", "2024-05-03"})))
		case "2":
			w.WriteHeader(http.StatusInternalServerError)
		case "3":
			_, _ = w.Write([]byte(listingPage(listItem{"/3", "Third", "2024-05-02"})))
		default:
			_, _ = w.Write([]byte(listingPage()))
		}
	}))
	defer server.Close()

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{}, nil)
	res, err := sc.Scan(context.Background(), scanner.Request{Source: selectorSource(server.URL), Limit: 50})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if res.Partial {
		t.Fatalf("a single failed page must not make the result partial")
	}
	if len(res.Items) != 2 || res.PagesFailed != 1 {
		t.Fatalf("expected 2 items and 1 failed page, got %d items, %d failed", len(res.Items), res.PagesFailed)
	}
}

func TestSelectorScannerFinishesInFlightPageOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		cancel()
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(listingPage(listItem{"/inflight", "In flight", "2024-05-03"})))
	}))
	defer server.Close()

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{}, nil)
	res, err := sc.Scan(ctx, scanner.Request{Source: selectorSource(server.URL), Limit: 50})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Title != "In flight" {
		t.Fatalf("expected in-flight page items, got %+v", res.Items)
	}
	if requests.Load() != 1 {
		t.Fatalf("expected no page after cancellation, got %d requests", requests.Load())
	}
}

func TestSelectorScannerDetailEnrichment(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/list", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<div class="row"><a href="/story">Headline only</a></div>`))
	})
	mux.HandleFunc("/story", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
			<meta property="og:description" content="Full lead">
			<meta property="og:image" content="/media/cover.png">
			<meta property="article:published_time" content="2024-05-03T07:00:00+03:00">
		</head><body></body></html>`))
	})

	src := domain.Source{
		ID:      "detail",
		BaseURL: server.URL,
		Scrape: &domain.ScrapeConfig{
			ListURL:     server.URL + "/list",
			List:        domain.ItemSelectors{Item: "div.row", Link: "a"},
			FetchDetail: true,
		},
	}

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{}, nil)
	res, err := sc.Scan(context.Background(), scanner.Request{Source: src, Limit: 5})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(res.Items))
	}
	it := res.Items[0]
	if it.Title != "Headline only" || it.Summary != "Full lead" {
		t.Fatalf("unexpected title/summary: %q %q", it.Title, it.Summary)
	}
	if it.ImageURL != server.URL+"/media/cover.png" {
		t.Fatalf("unexpected image: %s", it.ImageURL)
	}
	if it.PublishedAt == nil || !it.PublishedAt.Equal(time.Date(2024, 5, 3, 4, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", it.PublishedAt)
	}
}

func TestSelectorScannerConfigErrors(t *testing.T) {
	t.Parallel()

	sc := NewSelectorScanner(testFetcher(nil), WalkConfig{}, nil)
	cases := map[string]*domain.ScrapeConfig{
		"missing item selector": {ListURL: "https://example.com/news"},
		"page param without placeholder": {
			ListURL:    "https://example.com/news",
			Pagination: domain.Pagination{Type: domain.PaginationPageParam},
			List:       domain.ItemSelectors{Item: "li", Link: "a"},
		},
		"unknown pagination": {
			ListURL:    "https://example.com/news",
			Pagination: domain.Pagination{Type: "infinite_scroll"},
			List:       domain.ItemSelectors{Item: "li", Link: "a"},
		},
		"relative list url": {
			ListURL: "/news",
			List:    domain.ItemSelectors{Item: "li", Link: "a"},
		},
		"next link without selector": {
			ListURL:    "https://example.com/news",
			Pagination: domain.Pagination{Type: domain.PaginationNextLink},
			List:       domain.ItemSelectors{Item: "li", Link: "a"},
		},
	}
	for name, cfg := range cases {
		_, err := sc.Scan(context.Background(), scanner.Request{Source: domain.Source{ID: "bad", Scrape: cfg}})
		if err == nil {
			t.Fatalf("%s: expected configuration error", name)
		}
	}
}

func TestSelectorScannerNextLinkPagination(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/feed", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingPage(listItem{"/x/1", "First", "2024-05-03"}) + `<a rel="next" href="/feed/older">Older</a>`))
	})
	mux.HandleFunc("/feed/older", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingPage(listItem{"/x/2", "Second", "2024-05-02"})))
	})

	src := selectorSource(server.URL)
	src.Scrape.ListURL = server.URL + "/feed"
	src.Scrape.Pagination = domain.Pagination{Type: domain.PaginationNextLink, NextSelector: `a[rel="next"]`, MaxPages: 5}

	sc := NewSelectorScanner(testFetcher(server.Client()), WalkConfig{}, nil)
	res, err := sc.Scan(context.Background(), scanner.Request{Source: src, Limit: 10})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(res.Items) != 2 || res.Items[1].Title != "Second" {
		t.Fatalf("expected two pages of items, got %+v", res.Items)
	}
	if res.PagesFetched != 2 {
		t.Fatalf("expected 2 pages, got %d", res.PagesFetched)
	}
}
