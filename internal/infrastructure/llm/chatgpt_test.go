package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, answer string, check func(chatRequest)) *ChatGPTClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing api key")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if check != nil {
			check(req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []any{map[string]any{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": answer}}},
		})
	}))
	t.Cleanup(srv.Close)
	return NewChatGPTClient(config.OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "gpt-test", APIKey: "sk-test"}, 10)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	c := completionServer(t, "  a short summary \n", func(req chatRequest) {
		if req.Model != "gpt-test" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request: %+v", req)
		}
		if !strings.Contains(req.Messages[1].Content, "20 to 50 words") {
			t.Errorf("length bounds missing from prompt: %q", req.Messages[1].Content)
		}
	})

	got, err := c.Summarize(context.Background(), "some long enough text to summarize", 50, 20)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "a short summary" {
		t.Fatalf("unexpected summary %q", got)
	}

	if _, err := c.Summarize(context.Background(), "short", 50, 20); !errors.Is(err, domain.ErrInputTooShort) {
		t.Fatalf("expected ErrInputTooShort, got %v", err)
	}
}

func TestClassifyBatch(t *testing.T) {
	t.Parallel()

	c := completionServer(t, `{"results":[{"label":"positive","score":0.95},{"label":"Negative","score":0.6}]}`, func(req chatRequest) {
		if !strings.Contains(req.Messages[1].Content, "2. second line") {
			t.Errorf("inputs not numbered on one line: %q", req.Messages[1].Content)
		}
	})

	got, err := c.ClassifyBatch(context.Background(), []string{"first", "second\nline"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(got) != 2 || got[0].Label != domain.Positive || got[1].Label != domain.Negative || got[1].Score != 0.6 {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestClassifyRejectsMalformedAnswer(t *testing.T) {
	t.Parallel()

	c := completionServer(t, "not json", nil)
	if _, err := c.Classify(context.Background(), "text"); err == nil {
		t.Fatalf("expected decode error")
	}
}
