package openaiprovider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/generation"
	"github.com/sipeed/picocast/pkg/security"
)

func TestProvider_Complete_BasicContent(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("Authorization = %q, want Bearer test-key", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-123",
			"object":"chat.completion",
			"created":1,
			"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  hello  "}}]
		}`))
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL)
	got, err := p.Complete(t.Context(), generation.Completion{
		Model:       "gpt-4o-mini",
		System:      "sys prompt",
		Prompt:      "user prompt",
		MaxTokens:   321,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "  hello  " {
		t.Fatalf("content = %q, want %q", got, "  hello  ")
	}

	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want gpt-4o-mini", body["model"])
	}
	if body["max_completion_tokens"] != float64(321) {
		t.Errorf("max_completion_tokens = %v, want 321", body["max_completion_tokens"])
	}
	if body["temperature"] != 0.5 {
		t.Errorf("temperature = %v, want 0.5", body["temperature"])
	}
	msgs, ok := body["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %#v, want 2 entries", body["messages"])
	}
	first := msgs[0].(map[string]any)
	second := msgs[1].(map[string]any)
	if first["role"] != "system" || first["content"] != "sys prompt" {
		t.Errorf("messages[0] = %#v", first)
	}
	if second["role"] != "user" || second["content"] != "user prompt" {
		t.Errorf("messages[1] = %#v", second)
	}
}

func TestProvider_Complete_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL)
	if _, err := p.Complete(t.Context(), generation.Completion{Model: "gpt-4o", Prompt: "p", MaxTokens: 1}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if v, ok := body["temperature"]; !ok || v != float64(0) {
		t.Fatalf("temperature = %v (present=%v), want 0", v, ok)
	}
}

func TestProvider_Complete_HTTPError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL)
	_, err := p.Complete(t.Context(), generation.Completion{Model: "gpt-4o", Prompt: "p", MaxTokens: 10})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status=429") {
		t.Errorf("error = %v, want status=429", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (retries disabled)", calls)
	}
}

func TestProvider_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o","choices":[]}`))
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL)
	_, err := p.Complete(t.Context(), generation.Completion{Model: "gpt-4o", Prompt: "p", MaxTokens: 10})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("error = %v, want no choices", err)
	}
}

func TestProvider_Name(t *testing.T) {
	if got := NewProvider("k", "").Name(); got != "OpenAI" {
		t.Fatalf("Name() = %q", got)
	}
}

func TestClient_ClampsBeforeCallingOpenAI(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Generated reply."}}]}`))
	}))
	defer server.Close()

	cfg, err := config.FromMap(map[string]string{
		"OPENAI_API_KEY":      "sk-test-0123456789",
		"AZURE_SPEECH_KEY":    "0123456789abcdef0123456789abcdef",
		"AZURE_SPEECH_REGION": "westeurope-test",
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	prompt, err := security.Validate("Hello world. This is a test.", 1000)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	client := generation.NewClient(cfg, NewProvider(cfg.LLMAPIKey(), server.URL))
	got, err := client.Generate(t.Context(), prompt, generation.Params{
		Model:       "not-a-real-model",
		MaxTokens:   1000,
		Temperature: 5.0,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.String() != "Generated reply." {
		t.Fatalf("reply = %q", got.String())
	}
	if body["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want gpt-4o-mini", body["model"])
	}
	if body["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", body["temperature"])
	}
}
