// Package llm provides chat-capable clients for the configured language-model
// backends. Every adapter speaks the OpenAI-compatible chat-completion
// contract; the factory caches one client per backend and enforces the
// restricted backend in light mode.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// Backend identifiers accepted in configuration.
const (
	BackendOpenWebUI = "openwebui"
	BackendGroq      = "groq"
	BackendOpenAI    = "openai"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tune a single chat call. Zero values defer to the adapter's
// defaults.
type ChatOptions struct {
	Model       string
	Stream      bool
	Temperature float64
	MaxTokens   int
}

// ChatClient is the capability every backend adapter exposes. Chat honors the
// deadline on ctx; the per-mode timeout is applied by the caller, not baked
// into the client.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
	Close() error
}

// chatRequest is the OpenAI-compatible request body shared by all adapters.
type chatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// postChatCompletion sends an OpenAI-style chat-completion request and
// extracts the trimmed assistant message. Non-2xx statuses surface as
// *UpstreamError, exceeded deadlines as *TimeoutError.
func postChatCompletion(ctx context.Context, hc *http.Client, backend, url, bearer string, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return "", classifyTransportError(backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{Backend: backend, StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", &UpstreamError{Backend: backend, StatusCode: resp.StatusCode, Body: "no choices in response"}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func classifyTransportError(backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Backend: backend, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Backend: backend, Err: err}
	}
	return fmt.Errorf("%s request failed: %w", backend, err)
}
