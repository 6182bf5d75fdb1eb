package translation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"captioner/internal/config"
	"captioner/internal/services"
)

func completionBody(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func newTestEngine(t *testing.T, handler http.HandlerFunc, opts ...OpenAIOption) *OpenAI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]OpenAIOption{WithSleeper(func(time.Duration) {})}, opts...)
	return NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-test"}, opts...)
}

func TestOpenAITranslate(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("  hola  "))
	})

	got, err := engine.Translate(context.Background(), "hello", "spanish")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "hola" {
		t.Fatalf("unexpected translation %q", got)
	}
	if captured.Model != "gpt-test" {
		t.Fatalf("unexpected model %q", captured.Model)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(captured.Messages))
	}
	if !strings.Contains(captured.Messages[0].Content, "Spanish (es)") {
		t.Fatalf("system prompt missing target language: %q", captured.Messages[0].Content)
	}
	if captured.Messages[1].Content != "hello" {
		t.Fatalf("unexpected user content %q", captured.Messages[1].Content)
	}
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	var calls int32
	var delays []time.Duration
	engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "2")
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("bonjour"))
	}, WithSleeper(func(d time.Duration) { delays = append(delays, d) }))

	got, err := engine.Translate(context.Background(), "hello", "fr")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "bonjour" {
		t.Fatalf("unexpected translation %q", got)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(delays) != 2 || delays[0] != 2*time.Second {
		t.Fatalf("expected Retry-After delays, got %v", delays)
	}
}

func TestOpenAIDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	})

	if _, err := engine.Translate(context.Background(), "hello", "fr"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestOpenAIEmptyContentExhaustsRetries(t *testing.T) {
	var calls int32
	engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(""))
	}, WithRetryMaxAttempts(2))

	_, err := engine.Translate(context.Background(), "hello", "fr")
	var empty *emptyContentError
	if !errors.As(err, &empty) {
		t.Fatalf("expected empty content error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestOpenAIRejectsUnknownLanguage(t *testing.T) {
	engine := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	if _, err := engine.Translate(context.Background(), "hello", "not a language"); err == nil {
		t.Fatal("expected error for invalid language")
	}
}

func TestBackoffDelay(t *testing.T) {
	engine := NewOpenAI(OpenAIConfig{APIKey: "k"}, WithRetryBackoff(time.Second, 5*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if got := engine.backoffDelay(i + 1); got != expected {
			t.Fatalf("attempt %d: got %s want %s", i+1, got, expected)
		}
	}
}

func TestNewEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Translation.Provider = "none"
	engine, err := NewEngine(&cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	if _, ok := engine.(Identity); !ok {
		t.Fatalf("expected identity engine, got %T", engine)
	}

	cfg.Translation.Provider = "openai"
	cfg.Translation.APIKey = ""
	if _, err := NewEngine(&cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	cfg.Translation.APIKey = "sk-test"
	engine, err = NewEngine(&cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	if _, ok := engine.(*OpenAI); !ok {
		t.Fatalf("expected OpenAI engine, got %T", engine)
	}
}
