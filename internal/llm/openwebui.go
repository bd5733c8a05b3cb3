package llm

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/azomlabs/supportd/config"
)

const defaultOpenWebUIURL = "http://localhost:3000/api"

// OpenWebUIClient talks to a local Open WebUI instance. The API token is
// optional; without it requests go out unauthenticated.
type OpenWebUIClient struct {
	baseURL    string
	apiToken   string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

func NewOpenWebUIClient(cfg config.LLMConfig) *OpenWebUIClient {
	base := strings.TrimRight(cfg.OpenWebUIURL, "/")
	if base == "" {
		base = defaultOpenWebUIURL
	}
	return &OpenWebUIClient{
		baseURL:  base,
		apiToken: cfg.OpenWebUIAPIToken,
		model:    cfg.TargetModel,
		// No client-level timeout: the per-call deadline comes from ctx.
		httpClient: &http.Client{},
		logger:     log.New(log.Writer(), "[OPENWEBUI] ", log.LstdFlags),
	}
}

func (c *OpenWebUIClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
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
	return postChatCompletion(ctx, c.httpClient, BackendOpenWebUI, c.baseURL+"/chat/completions", c.apiToken, body)
}

func (c *OpenWebUIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
