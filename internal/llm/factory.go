package llm

import (
	"log"
	"strings"
	"sync"

	"github.com/azomlabs/supportd/config"
	"github.com/azomlabs/supportd/internal/mode"
)

// Factory builds and caches one chat client per backend. In light mode only
// the local Open WebUI backend is served regardless of the configured one.
type Factory struct {
	cfg    config.LLMConfig
	mu     sync.Mutex
	cache  map[string]ChatClient
	logger *log.Logger
}

func NewFactory(cfg config.LLMConfig) *Factory {
	return &Factory{
		cfg:    cfg,
		cache:  make(map[string]ChatClient),
		logger: log.New(log.Writer(), "[LLM] ", log.LstdFlags),
	}
}

// Client returns the chat client to use for the given mode. Repeated calls
// for the same backend return the same instance.
func (f *Factory) Client(m mode.Mode) (ChatClient, error) {
	backend := strings.ToLower(strings.TrimSpace(f.cfg.Backend))
	if backend == "" {
		backend = BackendOpenWebUI
	}
	if !mode.LimitsFor(m).ExternalBackends {
		backend = BackendOpenWebUI
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cache[backend]; ok {
		return c, nil
	}

	var (
		client ChatClient
		err    error
	)
	switch backend {
	case BackendOpenWebUI:
		client = NewOpenWebUIClient(f.cfg)
	case BackendGroq:
		client, err = NewGroqClient(f.cfg)
	case BackendOpenAI:
		client, err = NewOpenAIClient(f.cfg)
	default:
		return nil, &ConfigError{Backend: backend, Reason: "unsupported backend"}
	}
	if err != nil {
		return nil, err
	}
	f.logger.Printf("initialized %s client", backend)
	f.cache[backend] = client
	return client, nil
}

// Embedder returns an embedding-capable client when an OpenAI key is
// configured, or nil when embeddings are unavailable.
func (f *Factory) Embedder() *OpenAIClient {
	if strings.TrimSpace(f.cfg.OpenAIAPIKey) == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cache[BackendOpenAI]; ok {
		if oc, ok := c.(*OpenAIClient); ok {
			return oc
		}
	}
	oc, err := NewOpenAIClient(f.cfg)
	if err != nil {
		return nil
	}
	f.cache[BackendOpenAI] = oc
	return oc
}

// Close shuts down every cached client.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, c := range f.cache {
		if err := c.Close(); err != nil {
			f.logger.Printf("closing %s client: %v", name, err)
		}
	}
	f.cache = make(map[string]ChatClient)
	return nil
}
