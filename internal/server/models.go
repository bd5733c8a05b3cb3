package server

import "github.com/azomlabs/supportd/internal/retrieval"

// ChatRequestBody is the POST /api/v1/chat payload.
type ChatRequestBody struct {
	Message        string `json:"message"`
	CarModel       string `json:"car_model,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponseBody mirrors the orchestrator's reply on the wire.
type ChatResponseBody struct {
	Assistant      string               `json:"assistant"`
	ContextUsed    []retrieval.Document `json:"context_used"`
	ConversationID string               `json:"conversation_id"`
	Mode           string               `json:"mode"`
}

// FAQBody is the admin FAQ create/update payload.
type FAQBody struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
