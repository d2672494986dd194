package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// Client talks to the JSON inference service that hosts the summarization
// and sentiment models.
type Client struct {
	endpoint string
	apiKey   string
	minInput int
	http     *http.Client
}

var _ ports.Summarizer = (*Client)(nil)
var _ ports.Classifier = (*Client)(nil)

// NewClient creates a reusable HTTP client. Texts shorter than minInput runes
// are rejected locally with domain.ErrInputTooShort.
func NewClient(cfg config.MLConfig, minInput int) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.InferenceURL, "/"),
		apiKey:   cfg.APIKey,
		minInput: minInput,
		http:     &http.Client{Timeout: timeout},
	}
}

type summarizeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length,omitempty"`
	MinLength int    `json:"min_length,omitempty"`
}

// Summarize requests an abstractive summary bounded by maxLen/minLen tokens.
func (c *Client) Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < c.minInput {
		return "", domain.ErrInputTooShort
	}

	var resp struct {
		Summary string `json:"summary"`
	}
	if err := c.post(ctx, "/summarize", summarizeRequest{Text: text, MaxLength: maxLen, MinLength: minLen}, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

type classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify labels one text.
func (c *Client) Classify(ctx context.Context, text string) (domain.Classification, error) {
	out, err := c.ClassifyBatch(ctx, []string{text})
	if err != nil {
		return domain.Classification{}, err
	}
	if len(out) != 1 {
		return domain.Classification{}, fmt.Errorf("classify: expected 1 result, got %d", len(out))
	}
	return out[0], nil
}

// ClassifyBatch labels texts in one call; results keep the input order.
func (c *Client) ClassifyBatch(ctx context.Context, texts []string) ([]domain.Classification, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp struct {
		Results []classification `json:"results"`
	}
	if err := c.post(ctx, "/classify", map[string]any{"texts": texts}, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Classification, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, domain.NewClassification(r.Label, r.Score))
	}
	return out, nil
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

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity && path == "/summarize":
		return domain.ErrInputTooShort
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
