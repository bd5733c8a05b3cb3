package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/azomlabs/supportd/internal/orchestrator"
	"github.com/azomlabs/supportd/internal/retrieval"
)

func (s *Server) handleChat(c echo.Context) error {
	var body ChatRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "ogiltig request body")
	}
	if strings.TrimSpace(body.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message krävs")
	}

	m := requestMode(c)
	resp, err := s.orch.Chat(c.Request().Context(), m, orchestrator.ChatRequest{
		Message:        body.Message,
		CarModel:       body.CarModel,
		ConversationID: body.ConversationID,
	})
	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.ChatRequests.WithLabelValues(string(m), outcome).Inc()
	}
	if err != nil {
		return err
	}

	contextUsed := resp.ContextUsed
	if contextUsed == nil {
		contextUsed = []retrieval.Document{}
	}
	return c.JSON(http.StatusOK, ChatResponseBody{
		Assistant:      resp.Assistant,
		ContextUsed:    contextUsed,
		ConversationID: resp.ConversationID,
		Mode:           strings.ToUpper(string(resp.Mode)),
	})
}
