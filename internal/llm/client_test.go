package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/novatra/novabot/internal/testutil"
)

const completionBody = `{
	"id": "gen-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "openai/gpt-4o-mini",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "{\"tasks\":[]}"}
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
}`

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil)
	if c.Enabled() {
		t.Error("client without key should be disabled")
	}
	if c.Model() != DefaultModel {
		t.Errorf("Model() = %s, want %s", c.Model(), DefaultModel)
	}

	c = NewClient(&Config{APIKey: testutil.FakeOpenRouterKey, Model: "anthropic/claude-3-haiku"})
	if !c.Enabled() || c.Model() != "anthropic/claude-3-haiku" {
		t.Errorf("unexpected client: enabled=%v model=%s", c.Enabled(), c.Model())
	}
}

func TestCompleteDisabled(t *testing.T) {
	c := NewClient(&Config{})
	_, err := c.Complete(context.Background(), "sys", "user")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	var gotPath, gotAuth, gotReferer, gotTitle string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	c := NewClient(&Config{
		APIKey:      testutil.FakeOpenRouterKey,
		BaseURL:     server.URL + "/api/v1",
		Model:       "openai/gpt-4o-mini",
		HTTPReferer: "https://novatra.dev",
		AppTitle:    "novabot",
	})

	out, err := c.Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != `{"tasks":[]}` {
		t.Errorf("Complete() = %q", out)
	}

	if gotPath != "/api/v1/chat/completions" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer "+testutil.FakeOpenRouterKey {
		t.Errorf("Authorization = %s", gotAuth)
	}
	if gotReferer != "https://novatra.dev" || gotTitle != "novabot" {
		t.Errorf("headers = %q, %q", gotReferer, gotTitle)
	}
	if gotBody["model"] != "openai/gpt-4o-mini" {
		t.Errorf("model = %v", gotBody["model"])
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first role = %v, want system", first["role"])
	}
	format, _ := gotBody["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", gotBody["response_format"])
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{"error":{"message":"upstream"}}`},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`},
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(&Config{APIKey: testutil.FakeOpenRouterKey, BaseURL: server.URL})
			out, err := c.Complete(context.Background(), "s", "u")
			if err == nil {
				t.Fatalf("expected error, got %q", out)
			}
			if calls != 1 {
				t.Errorf("expected a single attempt, got %d", calls)
			}
			if tt.status == http.StatusOK && !strings.Contains(err.Error(), "empty") {
				t.Errorf("expected empty response error, got %v", err)
			}
		})
	}
}
