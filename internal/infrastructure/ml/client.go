package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"NewsCurator/internal/config"
	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

// Client talks to an external ML classification service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.ClassificationCapability = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.MLConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "ml" }

type classifyPayload struct {
	Title      string            `json:"title"`
	Summary    string            `json:"summary"`
	URL        string            `json:"url"`
	Model      string            `json:"model,omitempty"`
	Categories []domain.Category `json:"categories"`
}

// Classify sends the item to POST /classify.
func (c *Client) Classify(ctx context.Context, req domain.ClassificationRequest) (domain.Suggestion, error) {
	if c.endpoint == "" {
		return domain.Suggestion{}, fmt.Errorf("ml endpoint not configured: %w", domain.ErrClassifierRejected)
	}

	payload := classifyPayload{
		Title:      req.Title,
		Summary:    req.Summary,
		URL:        req.URL,
		Model:      req.Model,
		Categories: req.Categories,
	}

	var s domain.Suggestion
	if err := c.post(ctx, "/classify", payload, &s); err != nil {
		return domain.Suggestion{}, err
	}
	if err := s.Validate(); err != nil {
		return domain.Suggestion{}, err
	}
	return s, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: unexpected status %s", domain.ErrClassifierRejected, resp.Status)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrMalformedClassification, err)
	}
	return nil
}
