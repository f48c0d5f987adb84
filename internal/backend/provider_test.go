package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicComplete(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		io.WriteString(w, `{"content":[{"type":"text","text":"Hello "},{"type":"thinking","text":"ignored"},{"type":"text","text":"there."}]}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("sk-test", srv.URL, "test-model")
	resp, err := p.Complete(context.Background(), Request{
		System:  "be brief",
		History: []Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hey"}},
		Message: "how are you",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Hello there." {
		t.Errorf("text = %q", resp.Text)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "sk-test" || gotVersion != "2023-06-01" {
		t.Errorf("headers: key=%q version=%q", gotKey, gotVersion)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if gotBody["system"] != "be brief" {
		t.Errorf("system = %v", gotBody["system"])
	}
	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 3 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
	last := msgs[2].(map[string]any)
	if last["role"] != "user" || last["content"] != "how are you" {
		t.Errorf("final message = %v", last)
	}
}

func TestAnthropicAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("sk-test", srv.URL, "")
	_, err := p.Complete(context.Background(), Request{Message: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate_limit_error") {
		t.Errorf("error = %v", err)
	}
}

func TestOpenAIComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		io.WriteString(w, `{"choices":[{"message":{"content":"All good."}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "test-model")
	resp, err := p.Complete(context.Background(), Request{System: "be brief", Message: "status?"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "All good." {
		t.Errorf("text = %q", resp.Text)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first role = %v", first["role"])
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "")
	_, err := p.Complete(context.Background(), Request{Message: "hi"})
	if err == nil || !strings.Contains(err.Error(), "empty completion") {
		t.Errorf("error = %v", err)
	}
}

func TestDefaultModelFallbacks(t *testing.T) {
	a := NewAnthropicProvider("k", "", "")
	if a.DefaultModel() == "" {
		t.Error("anthropic default model empty")
	}
	o := NewOpenAIProvider("k", "", "")
	if o.DefaultModel() == "" {
		t.Error("openai default model empty")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate(strings.Repeat("x", 20), 5); got != "xxxxx..." {
		t.Errorf("truncate long = %q", got)
	}
}
