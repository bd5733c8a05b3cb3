// Package orchestrator runs the chat pipeline: payload and safety screening,
// context retrieval, prompt composition, the upstream LLM call and output
// sanitization, with conversation history threaded through.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/azomlabs/supportd/internal/llm"
	"github.com/azomlabs/supportd/internal/memory"
	"github.com/azomlabs/supportd/internal/mode"
	"github.com/azomlabs/supportd/internal/retrieval"
	"github.com/azomlabs/supportd/internal/safety"
	"github.com/azomlabs/supportd/internal/telemetry"
)

// ChatRequest is one user turn entering the pipeline.
type ChatRequest struct {
	Message        string
	CarModel       string
	ConversationID string
}

// ChatResponse is the assistant's reply plus the context that informed it.
type ChatResponse struct {
	Assistant      string
	ContextUsed    []retrieval.Document
	ConversationID string
	Mode           mode.Mode
}

// Engine is the retrieval surface the orchestrator needs.
type Engine interface {
	Search(ctx context.Context, query string, topK int, useVectors bool) ([]retrieval.Document, error)
	VectorReady() bool
}

// ClientFactory yields the chat client for a mode.
type ClientFactory interface {
	Client(m mode.Mode) (llm.ChatClient, error)
}

// Options tune the pipeline.
type Options struct {
	TopK          int
	VectorEnabled bool
}

// Orchestrator wires the pipeline stages together. All dependencies are
// injected; nil memory disables history, nil metrics disables recording.
type Orchestrator struct {
	engine    Engine
	validator *safety.Validator
	factory   ClientFactory
	store     memory.Store
	metrics   *telemetry.Metrics
	opts      Options
	logger    *log.Logger
	now       func() time.Time
}

func New(engine Engine, validator *safety.Validator, factory ClientFactory, store memory.Store, metrics *telemetry.Metrics, opts Options) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	return &Orchestrator{
		engine:    engine,
		validator: validator,
		factory:   factory,
		store:     store,
		metrics:   metrics,
		opts:      opts,
		logger:    log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		now:       time.Now,
	}
}

// Chat runs one request through the full pipeline under the limits of m.
func (o *Orchestrator) Chat(ctx context.Context, m mode.Mode, req ChatRequest) (*ChatResponse, error) {
	limits := mode.LimitsFor(m)

	if size := len(req.Message); size > limits.PayloadCapBytes {
		return nil, &PayloadTooLargeError{Size: size, Limit: limits.PayloadCapBytes}
	}

	if ok, violations := o.validator.ValidateInput(ctx, req.Message); !ok {
		return nil, &ValidationError{Violations: violations}
	}

	var docs []retrieval.Document
	if limits.RAGEnabled && o.engine != nil {
		useVectors := o.opts.VectorEnabled
		found, err := o.engine.Search(ctx, req.Message, o.opts.TopK, useVectors)
		if err != nil {
			// Retrieval is best effort: answer without context.
			o.logger.Printf("retrieval failed, continuing without context: %v", err)
		} else {
			docs = found
		}
		if o.metrics != nil {
			path := "keyword"
			if useVectors && o.engine.VectorReady() {
				path = "vector"
			}
			o.metrics.RetrievalSearches.WithLabelValues(path).Inc()
		}
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	messages := []llm.Message{{Role: "system", Content: buildSystemPrompt(o.now(), req.CarModel, docs)}}
	if o.store != nil && req.ConversationID != "" {
		history, err := o.store.History(ctx, conversationID)
		if err != nil {
			o.logger.Printf("history load failed, continuing without it: %v", err)
		}
		for _, turn := range history {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	client, err := o.factory.Client(m)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, limits.LLMTimeout)
	defer cancel()
	start := o.now()
	answer, err := client.Chat(callCtx, messages, llm.ChatOptions{})
	if o.metrics != nil {
		o.metrics.ObserveLLMRequest(backendName(client), time.Since(start))
	}
	if err != nil {
		var toErr *llm.TimeoutError
		if errors.As(err, &toErr) && toErr.Timeout == 0 {
			return nil, &llm.TimeoutError{Backend: toErr.Backend, Timeout: limits.LLMTimeout, Err: err}
		}
		return nil, err
	}

	if ok, violations := o.validator.ValidateOutput(answer); !ok {
		o.logger.Printf("output sanitized: %v", violations)
		answer = o.validator.Sanitize(answer)
	}

	if o.store != nil {
		ts := o.now()
		if err := o.store.Append(ctx, conversationID, memory.Turn{Role: "user", Content: req.Message, CarModel: req.CarModel, Timestamp: ts}); err != nil {
			o.logger.Printf("saving user turn failed: %v", err)
		}
		if err := o.store.Append(ctx, conversationID, memory.Turn{Role: "assistant", Content: answer, Timestamp: ts}); err != nil {
			o.logger.Printf("saving assistant turn failed: %v", err)
		}
	}

	return &ChatResponse{
		Assistant:      answer,
		ContextUsed:    docs,
		ConversationID: conversationID,
		Mode:           m,
	}, nil
}

func backendName(c llm.ChatClient) string {
	switch c.(type) {
	case *llm.GroqClient:
		return llm.BackendGroq
	case *llm.OpenAIClient:
		return llm.BackendOpenAI
	case *llm.OpenWebUIClient:
		return llm.BackendOpenWebUI
	default:
		return "unknown"
	}
}
