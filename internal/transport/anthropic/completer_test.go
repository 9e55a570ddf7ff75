package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterCompletionMetrics()
	os.Exit(m.Run())
}

func TestCompleter_Complete(t *testing.T) {
	var gotReq struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("unexpected api key header: %q", r.Header.Get("X-Api-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": "<h2>Cats</h2>"},
				{"type": "text", "text": "<p>Purr.</p>"},
			},
			"usage": map[string]any{"input_tokens": 5, "output_tokens": 7},
		})
	}))
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "test-key", BaseURL: server.URL, MaxTokens: 1000, Logger: zap.NewNop()})
	res, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model: "claude-test", Temperature: 0.7, Prompt: "write",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Text != "<h2>Cats</h2><p>Purr.</p>" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.PromptTokens != 5 || res.CompletionTokens != 7 {
		t.Errorf("usage = %d/%d", res.PromptTokens, res.CompletionTokens)
	}
	if gotReq.Model != "claude-test" || gotReq.MaxTokens != 1000 {
		t.Errorf("unexpected request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestCompleter_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := c.Complete(context.Background(), domain.CompletionRequest{Model: "claude-test", Prompt: "x"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCompleter_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m","type":"message","role":"assistant","content":[],"usage":{}}`))
	}))
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := c.Complete(context.Background(), domain.CompletionRequest{Model: "claude-test", Prompt: "x"})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
}

func TestCompleter_SkipsNonTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"thinking","thinking":"hmm","signature":"s"},{"type":"text","text":"<p>Only this.</p>"}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "test-key", BaseURL: server.URL})
	res, err := c.Complete(context.Background(), domain.CompletionRequest{Model: "claude-test", Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Text != "<p>Only this.</p>" {
		t.Errorf("Text = %q", res.Text)
	}
}
