package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsCurator/internal/config"
	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

// ChatGPTClient classifies news through an OpenAI-compatible chat completions API.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.ClassificationCapability = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *ChatGPTClient) Name() string { return "chatgpt" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify asks the model for a category, confidence and short reasoning.
func (c *ChatGPTClient) Classify(ctx context.Context, req domain.ClassificationRequest) (domain.Suggestion, error) {
	if c == nil {
		return domain.Suggestion{}, fmt.Errorf("chatgpt client is nil")
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	if c.apiKey == "" || c.endpoint == "" || model == "" {
		return domain.Suggestion{}, fmt.Errorf("chatgpt client misconfigured: %w", domain.ErrClassifierRejected)
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: userPrompt(req)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("classify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if rejected(resp.StatusCode) {
			return domain.Suggestion{}, fmt.Errorf("%w: %w", domain.ErrClassifierRejected, err)
		}
		return domain.Suggestion{}, err
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Suggestion{}, fmt.Errorf("%w: decode response: %v", domain.ErrMalformedClassification, err)
	}
	if len(decoded.Choices) == 0 {
		return domain.Suggestion{}, fmt.Errorf("%w: no choices", domain.ErrMalformedClassification)
	}
	return ParseSuggestion(decoded.Choices[0].Message.Content)
}

// ParseSuggestion decodes the model's JSON answer, tolerating markdown code fences.
func ParseSuggestion(content string) (domain.Suggestion, error) {
	content = stripFences(content)
	if content == "" {
		return domain.Suggestion{}, fmt.Errorf("%w: empty reply", domain.ErrMalformedClassification)
	}

	var s domain.Suggestion
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return domain.Suggestion{}, fmt.Errorf("%w: %v", domain.ErrMalformedClassification, err)
	}
	s.Category = strings.TrimSpace(s.Category)
	s.Reasoning = strings.TrimSpace(s.Reasoning)
	if err := s.Validate(); err != nil {
		return domain.Suggestion{}, err
	}
	return s, nil
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		// drop the language tag line
		content = content[nl+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func userPrompt(req domain.ClassificationRequest) string {
	var b strings.Builder
	b.WriteString("Classify the news item into exactly one of the categories below.\n")
	b.WriteString("Answer with a JSON object: {\"category\": <category id>, \"confidence\": <0..1>, \"reasoning\": <one sentence>}.\n")
	b.WriteString("If none fits, use an empty category and a low confidence.\n\nCategories:\n")
	for _, cat := range req.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", cat.ID, cat.Name)
	}
	fmt.Fprintf(&b, "\nTitle: %s\n", req.Title)
	if req.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", req.Summary)
	}
	fmt.Fprintf(&b, "URL: %s\n", req.URL)
	return b.String()
}

func rejected(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a news editor who sorts incoming stories into site categories."
	}
	return prompt
}
