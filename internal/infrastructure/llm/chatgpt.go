package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

const (
	summarizePrompt = "You summarize Arabic and English social media content. " +
		"Answer with the summary only, in the language of the input."
	classifyPrompt = "You label the sentiment of social media texts as positive, neutral or negative. " +
		`Answer with JSON: {"results":[{"label":"positive|neutral|negative","score":0.0-1.0}]}, ` +
		"one entry per numbered input, in input order."
)

// ChatGPTClient implements the summarizer and classifier ports on top of
// OpenAI-compatible chat completions.
type ChatGPTClient struct {
	client   *openai.Client
	model    string
	minInput int
}

var _ ports.Summarizer = (*ChatGPTClient)(nil)
var _ ports.Classifier = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.OpenAIConfig, minInput int) *ChatGPTClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return &ChatGPTClient{client: openai.NewClientWithConfig(oc), model: cfg.Model, minInput: minInput}
}

// Summarize asks the model for a summary of roughly maxLen tokens.
func (c *ChatGPTClient) Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < c.minInput {
		return "", domain.ErrInputTooShort
	}

	prompt := fmt.Sprintf("Summarize the following in %d to %d words:\n\n%s", minLen, maxLen, text)
	out, err := c.complete(ctx, summarizePrompt, prompt, false)
	if err != nil {
		return "", fmt.Errorf("chatgpt summarize: %w", err)
	}
	return out, nil
}

// Classify labels one text.
func (c *ChatGPTClient) Classify(ctx context.Context, text string) (domain.Classification, error) {
	out, err := c.ClassifyBatch(ctx, []string{text})
	if err != nil {
		return domain.Classification{}, err
	}
	if len(out) != 1 {
		return domain.Classification{}, fmt.Errorf("chatgpt classify: expected 1 result, got %d", len(out))
	}
	return out[0], nil
}

// ClassifyBatch labels texts in one completion. The caller checks that the
// result count matches.
func (c *ChatGPTClient) ClassifyBatch(ctx context.Context, texts []string) ([]domain.Classification, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(t, "\n", " "))
	}
	raw, err := c.complete(ctx, classifyPrompt, b.String(), true)
	if err != nil {
		return nil, fmt.Errorf("chatgpt classify: %w", err)
	}

	var parsed struct {
		Results []struct {
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("chatgpt classify: decode answer: %w", err)
	}

	out := make([]domain.Classification, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, domain.NewClassification(r.Label, r.Score))
	}
	return out, nil
}

func (c *ChatGPTClient) complete(ctx context.Context, system, user string, jsonAnswer bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0,
	}
	if jsonAnswer {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("api error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
