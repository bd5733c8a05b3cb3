package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/azomlabs/supportd/config"
	"github.com/azomlabs/supportd/internal/mode"
)

func chatCompletionHandler(t *testing.T, content string, capture *chatRequest) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestOpenWebUIChat(t *testing.T) {
	var gotAuth string
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		chatCompletionHandler(t, "  Hej! Hur kan jag hjälpa dig?  ", &got)(w, r)
	}))
	defer srv.Close()

	client := NewOpenWebUIClient(config.LLMConfig{OpenWebUIURL: srv.URL, TargetModel: "azom-se-general"})
	out, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hej"}}, ChatOptions{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "Hej! Hur kan jag hjälpa dig?" {
		t.Fatalf("unexpected content %q", out)
	}
	if gotAuth != "" {
		t.Fatalf("expected no auth header without token, got %q", gotAuth)
	}
	if got.Model != "azom-se-general" {
		t.Fatalf("model = %q, want azom-se-general", got.Model)
	}
}

func TestOpenWebUIBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		chatCompletionHandler(t, "ok", nil)(w, r)
	}))
	defer srv.Close()

	client := NewOpenWebUIClient(config.LLMConfig{OpenWebUIURL: srv.URL, OpenWebUIAPIToken: "tok-123"})
	if _, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hej"}}, ChatOptions{}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestGroqRequiresAPIKey(t *testing.T) {
	_, err := NewGroqClient(config.LLMConfig{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Backend != BackendGroq {
		t.Fatalf("backend = %q", cfgErr.Backend)
	}
}

func TestGroqDefaults(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(chatCompletionHandler(t, "svar", &got))
	defer srv.Close()

	client, err := NewGroqClient(config.LLMConfig{GroqAPIKey: "gsk_test", GroqAPIURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGroqClient: %v", err)
	}
	if _, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hej"}}, ChatOptions{}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got.Model != "llama3-70b-8192" {
		t.Fatalf("model = %q, want llama3-70b-8192", got.Model)
	}
	if got.Temperature != 0.3 {
		t.Fatalf("temperature = %v, want 0.3", got.Temperature)
	}
	if got.MaxTokens != 1024 {
		t.Fatalf("max_tokens = %d, want 1024", got.MaxTokens)
	}
}

func TestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenWebUIClient(config.LLMConfig{OpenWebUIURL: srv.URL})
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hej"}}, ChatOptions{})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", upErr.StatusCode)
	}
}

func TestChatDeadlineYieldsTimeoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		chatCompletionHandler(t, "för sent", nil)(w, r)
	}))
	defer srv.Close()

	client := NewOpenWebUIClient(config.LLMConfig{OpenWebUIURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Chat(ctx, []Message{{Role: "user", Content: "hej"}}, ChatOptions{})
	var toErr *TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestOpenAIEmbedPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Return data out of order to exercise index-based placement.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 1}},
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(config.LLMConfig{OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	vecs, err := client.Embed(context.Background(), []string{"första", "andra"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("vectors not in input order: %v", vecs)
	}
}

func TestFactoryCachesClients(t *testing.T) {
	f := NewFactory(config.LLMConfig{Backend: BackendOpenWebUI})
	defer f.Close()

	a, err := f.Client(mode.Full)
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	b, err := f.Client(mode.Full)
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if a != b {
		t.Fatal("expected the same cached client instance")
	}
}

func TestFactoryLightModeForcesLocalBackend(t *testing.T) {
	f := NewFactory(config.LLMConfig{Backend: BackendGroq, GroqAPIKey: "gsk_test"})
	defer f.Close()

	c, err := f.Client(mode.Light)
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if _, ok := c.(*OpenWebUIClient); !ok {
		t.Fatalf("light mode returned %T, want *OpenWebUIClient", c)
	}

	full, err := f.Client(mode.Full)
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if _, ok := full.(*GroqClient); !ok {
		t.Fatalf("full mode returned %T, want *GroqClient", full)
	}
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	f := NewFactory(config.LLMConfig{Backend: "anthropic"})
	defer f.Close()

	_, err := f.Client(mode.Full)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
