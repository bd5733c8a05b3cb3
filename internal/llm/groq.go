package llm

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/azomlabs/supportd/config"
)

const (
	defaultGroqURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultGroqModel = "llama3-70b-8192"

	groqDefaultTemperature = 0.3
	groqDefaultMaxTokens   = 1024
)

// GroqClient talks to the Groq cloud API. An API key is mandatory.
type GroqClient struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

func NewGroqClient(cfg config.LLMConfig) (*GroqClient, error) {
	if strings.TrimSpace(cfg.GroqAPIKey) == "" {
		return nil, &ConfigError{Backend: BackendGroq, Reason: "api key is required"}
	}
	url := cfg.GroqAPIURL
	if url == "" {
		url = defaultGroqURL
	}
	model := cfg.TargetModel
	if model == "" {
		model = defaultGroqModel
	}
	return &GroqClient{
		url:        url,
		apiKey:     cfg.GroqAPIKey,
		model:      model,
		httpClient: &http.Client{},
		logger:     log.New(log.Writer(), "[GROQ] ", log.LstdFlags),
	}, nil
}

func (c *GroqClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = groqDefaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = groqDefaultMaxTokens
	}
	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      opts.Stream,
		Temperature: temp,
		MaxTokens:   maxTokens,
	}
	return postChatCompletion(ctx, c.httpClient, BackendGroq, c.url, c.apiKey, body)
}

func (c *GroqClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
