package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/azomlabs/supportd/internal/llm"
	"github.com/azomlabs/supportd/internal/memory"
	"github.com/azomlabs/supportd/internal/mode"
	"github.com/azomlabs/supportd/internal/retrieval"
	"github.com/azomlabs/supportd/internal/safety"
)

type stubEngine struct {
	docs    []retrieval.Document
	err     error
	queries []string
}

func (s *stubEngine) Search(_ context.Context, query string, _ int, _ bool) ([]retrieval.Document, error) {
	s.queries = append(s.queries, query)
	return s.docs, s.err
}

func (s *stubEngine) VectorReady() bool { return false }

type stubClient struct {
	reply    string
	err      error
	messages []llm.Message
}

func (s *stubClient) Chat(_ context.Context, messages []llm.Message, _ llm.ChatOptions) (string, error) {
	s.messages = messages
	return s.reply, s.err
}

func (s *stubClient) Close() error { return nil }

type stubFactory struct {
	client llm.ChatClient
	err    error
}

func (s *stubFactory) Client(mode.Mode) (llm.ChatClient, error) { return s.client, s.err }

func newTestOrchestrator(t *testing.T, engine Engine, client llm.ChatClient, store memory.Store) *Orchestrator {
	t.Helper()
	validator, err := safety.NewValidator(safety.Config{}, nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return New(engine, validator, &stubFactory{client: client}, store, nil, Options{TopK: 3})
}

func TestChatHappyPath(t *testing.T) {
	engine := &stubEngine{docs: []retrieval.Document{
		{Title: "Installationsguide för AZOM DLR", Content: "Anslut adaptern till USB-porten."},
	}}
	client := &stubClient{reply: "Anslut adaptern och starta om bilen."}
	o := newTestOrchestrator(t, engine, client, nil)

	resp, err := o.Chat(context.Background(), mode.Full, ChatRequest{Message: "Hur installerar jag AZOM DLR?", CarModel: "Volvo XC60"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Assistant != "Anslut adaptern och starta om bilen." {
		t.Fatalf("assistant = %q", resp.Assistant)
	}
	if len(resp.ContextUsed) != 1 {
		t.Fatalf("context used = %+v", resp.ContextUsed)
	}
	if resp.ConversationID == "" {
		t.Fatal("no conversation ID assigned")
	}
	if resp.Mode != mode.Full {
		t.Fatalf("mode = %q", resp.Mode)
	}

	if len(client.messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(client.messages))
	}
	system := client.messages[0]
	if system.Role != "system" {
		t.Fatalf("first message role = %q", system.Role)
	}
	if !strings.Contains(system.Content, "Installationsguide för AZOM DLR") {
		t.Fatal("retrieved context missing from system prompt")
	}
	if !strings.Contains(system.Content, "Volvo XC60") {
		t.Fatal("car model missing from system prompt")
	}
	if client.messages[1].Content != "Hur installerar jag AZOM DLR?" {
		t.Fatalf("user message = %q", client.messages[1].Content)
	}
}

func TestChatPayloadCapPerMode(t *testing.T) {
	client := &stubClient{reply: "ok"}
	o := newTestOrchestrator(t, &stubEngine{}, client, nil)

	// The payload cap runs before any other screening, so size alone decides.
	big := strings.Repeat("å", 5000) // 10000 bytes

	_, err := o.Chat(context.Background(), mode.Light, ChatRequest{Message: big})
	var tooLarge *PayloadTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected PayloadTooLargeError, got %v", err)
	}
	if tooLarge.Limit != 8000 {
		t.Fatalf("limit = %d, want 8000", tooLarge.Limit)
	}
}

func TestChatRejectsInvalidInput(t *testing.T) {
	client := &stubClient{reply: "ok"}
	o := newTestOrchestrator(t, &stubEngine{}, client, nil)

	_, err := o.Chat(context.Background(), mode.Full, ChatRequest{Message: "password: hunter2"})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(valErr.Violations) == 0 {
		t.Fatal("no violations reported")
	}
	if client.messages != nil {
		t.Fatal("rejected input still reached the backend")
	}
}

func TestLightModeSkipsRetrieval(t *testing.T) {
	engine := &stubEngine{docs: []retrieval.Document{{Title: "x", Content: "y"}}}
	client := &stubClient{reply: "svar"}
	o := newTestOrchestrator(t, engine, client, nil)

	resp, err := o.Chat(context.Background(), mode.Light, ChatRequest{Message: "Hur installerar jag?"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(engine.queries) != 0 {
		t.Fatalf("retrieval ran %d times in light mode", len(engine.queries))
	}
	if len(resp.ContextUsed) != 0 {
		t.Fatalf("context used = %+v", resp.ContextUsed)
	}
}

func TestRetrievalFailureIsBestEffort(t *testing.T) {
	engine := &stubEngine{err: errors.New("index corrupt")}
	client := &stubClient{reply: "svar utan kontext"}
	o := newTestOrchestrator(t, engine, client, nil)

	resp, err := o.Chat(context.Background(), mode.Full, ChatRequest{Message: "Hur installerar jag?"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Assistant != "svar utan kontext" {
		t.Fatalf("assistant = %q", resp.Assistant)
	}
}

func TestOutputIsSanitized(t *testing.T) {
	client := &stubClient{reply: "Ditt personnummer 19900101-1234 är registrerat."}
	o := newTestOrchestrator(t, &stubEngine{}, client, nil)

	resp, err := o.Chat(context.Background(), mode.Full, ChatRequest{Message: "Är jag registrerad?"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if strings.Contains(resp.Assistant, "19900101-1234") {
		t.Fatalf("identifier leaked: %q", resp.Assistant)
	}
	if !strings.Contains(resp.Assistant, "[PERSONNUMMER]") {
		t.Fatalf("no redaction marker: %q", resp.Assistant)
	}
}

func TestHistoryThreadedIntoPrompt(t *testing.T) {
	store := memory.NewInMemoryStore(time.Minute, 20)
	ctx := context.Background()
	convID := "conv-1"
	_ = store.Append(ctx, convID, memory.Turn{Role: "user", Content: "Vad kostar AZOM DLR?"})
	_ = store.Append(ctx, convID, memory.Turn{Role: "assistant", Content: "Den kostar 1495 kr."})

	client := &stubClient{reply: "Ja, den fungerar med din bil."}
	o := newTestOrchestrator(t, &stubEngine{}, client, store)

	resp, err := o.Chat(ctx, mode.Full, ChatRequest{Message: "Passar den min bil?", ConversationID: convID})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.ConversationID != convID {
		t.Fatalf("conversation ID = %q", resp.ConversationID)
	}
	if len(client.messages) != 4 {
		t.Fatalf("got %d messages, want system + 2 history + user", len(client.messages))
	}
	if client.messages[1].Content != "Vad kostar AZOM DLR?" || client.messages[2].Content != "Den kostar 1495 kr." {
		t.Fatalf("history out of order: %+v", client.messages)
	}

	// Both new turns are persisted for the next request.
	turns, _ := store.History(ctx, convID)
	if len(turns) != 4 {
		t.Fatalf("stored %d turns, want 4", len(turns))
	}
}

func TestTimeoutErrorCarriesModeBudget(t *testing.T) {
	original := &llm.TimeoutError{Backend: llm.BackendOpenWebUI}
	client := &stubClient{err: original}
	o := newTestOrchestrator(t, &stubEngine{}, client, nil)

	_, err := o.Chat(context.Background(), mode.Light, ChatRequest{Message: "Hur installerar jag?"})
	var toErr *llm.TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if toErr.Timeout != 10*time.Second {
		t.Fatalf("timeout = %s, want 10s", toErr.Timeout)
	}
	// The client's error value is not written through.
	if original.Timeout != 0 {
		t.Fatalf("client error mutated: %s", original.Timeout)
	}
	if !errors.Is(err, original) {
		t.Fatal("enriched error does not wrap the original")
	}
}

func TestFactoryErrorsPropagate(t *testing.T) {
	validator, err := safety.NewValidator(safety.Config{}, nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	o := New(&stubEngine{}, validator, &stubFactory{err: &llm.ConfigError{Backend: "groq", Reason: "api key is required"}}, nil, nil, Options{})

	_, err = o.Chat(context.Background(), mode.Full, ChatRequest{Message: "Hur installerar jag?"})
	var cfgErr *llm.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestInjectVars(t *testing.T) {
	out := injectVars("Idag är det {{CURRENT_DATE}} och bilen är {{CAR_MODEL}}. {{UNKNOWN}} lämnas.", map[string]string{
		"CURRENT_DATE": "2026-08-30",
		"CAR_MODEL":    "Volvo XC60",
	})
	want := "Idag är det 2026-08-30 och bilen är Volvo XC60. {{UNKNOWN}} lämnas."
	if out != want {
		t.Fatalf("injectVars = %q", out)
	}
}

func TestBuildSystemPromptWithoutContext(t *testing.T) {
	now := time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)
	prompt := buildSystemPrompt(now, "", nil)
	if !strings.Contains(prompt, "2026-08-30") || !strings.Contains(prompt, "14:30") {
		t.Fatalf("timestamp missing: %q", prompt)
	}
	if !strings.Contains(prompt, "okänd") {
		t.Fatal("empty car model not defaulted")
	}
	if strings.Contains(prompt, contextHeader) {
		t.Fatal("context header present without documents")
	}
}
