package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/azomlabs/supportd/config"
)

const (
	defaultOpenAIBaseURL  = "https://api.openai.com/v1"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// OpenAIClient talks to the OpenAI API (or any compatible endpoint via
// base-URL override). It serves both chat and embeddings.
type OpenAIClient struct {
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	httpClient     *http.Client
	logger         *log.Logger
}

func NewOpenAIClient(cfg config.LLMConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, &ConfigError{Backend: BackendOpenAI, Reason: "api key is required"}
	}
	base := strings.TrimRight(cfg.OpenAIBaseURL, "/")
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	model := cfg.TargetModel
	if model == "" {
		model = defaultOpenAIModel
	}
	embModel := cfg.EmbeddingModel
	if embModel == "" {
		embModel = defaultEmbeddingModel
	}
	return &OpenAIClient{
		baseURL:        base,
		apiKey:         cfg.OpenAIAPIKey,
		model:          model,
		embeddingModel: embModel,
		httpClient:     &http.Client{},
		logger:         log.New(log.Writer(), "[OPENAI] ", log.LstdFlags),
	}, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      opts.Stream,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	return postChatCompletion(ctx, c.httpClient, BackendOpenAI, c.baseURL+"/chat/completions", c.apiKey, body)
}

// Embed returns one embedding vector per input text, in input order.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": c.embeddingModel,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(BackendOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Backend: BackendOpenAI, StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(out.Data), len(texts))
	}
	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
