package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultUserAgent    = "NewsCurator/1.0 (+https://github.com/newscurator)"
	defaultFetchTimeout = 20 * time.Second
	defaultMaxBodyBytes = 8 << 20
)

// ErrBodyTooLarge is returned when a response exceeds FetchConfig.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// FetchConfig tunes page retrieval.
type FetchConfig struct {
	Timeout        time.Duration
	Retries        int
	UserAgent      string
	MaxBodyBytes   int64
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return false
	}
	return true
}

// Fetcher downloads pages with a per-attempt timeout and exponential backoff.
type Fetcher struct {
	client *http.Client
	cfg    FetchConfig
	logger *slog.Logger
}

// NewFetcher wires an HTTP client; nil uses a client without global timeout
// since every attempt carries its own deadline.
func NewFetcher(client *http.Client, cfg FetchConfig, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{client: client, cfg: cfg, logger: logger}
}

// Fetch returns the body of pageURL. The caller's context is checked before the
// first attempt and between retries; an attempt already in flight is not cut
// short by cancellation and ends only at its own timeout.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, headers map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.Timeout)
		defer cancel()

		payload, err := f.get(attemptCtx, pageURL, headers)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Retryable() {
				return backoff.Permanent(err)
			}
			f.logger.Debug("fetch attempt failed", "url", pageURL, "attempt", attempt, "error", err)
			return err
		}
		body = payload
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(f.policy(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// FetchDocument fetches and parses an HTML page.
func (f *Fetcher) FetchDocument(ctx context.Context, pageURL string, headers map[string]string) (*goquery.Document, error) {
	body, err := f.Fetch(ctx, pageURL, headers)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", pageURL, err)
	}
	return doc, nil
}

func (f *Fetcher) policy() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.cfg.BackoffInitial
	exp.MaxInterval = f.cfg.BackoffMax
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, uint64(f.cfg.Retries))
}

func (f *Fetcher) get(ctx context.Context, pageURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", pageURL, err)
	}
	if int64(len(payload)) > f.cfg.MaxBodyBytes {
		return nil, backoff.Permanent(fmt.Errorf("GET %s: %w (limit %d bytes)", pageURL, ErrBodyTooLarge, f.cfg.MaxBodyBytes))
	}
	return payload, nil
}
