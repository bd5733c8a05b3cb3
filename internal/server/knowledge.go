package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/azomlabs/supportd/internal/knowledge"
)

func (s *Server) handleKnowledgeSearch(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q krävs")
	}
	k, _ := strconv.Atoi(c.QueryParam("k"))
	hits, err := s.knowledge.Search(c.Request().Context(), q, k)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits})
}

func (s *Server) handleKnowledgeReload(c echo.Context) error {
	if err := s.knowledge.Reload(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) handleListFAQs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"faqs": s.knowledge.ListFAQs()})
}

func (s *Server) handleAddFAQ(c echo.Context) error {
	var body FAQBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "ogiltig request body")
	}
	faq, err := s.knowledge.AddFAQ(body.Question, body.Answer)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, faq)
}

func (s *Server) handleUpdateFAQ(c echo.Context) error {
	var body FAQBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "ogiltig request body")
	}
	faq, err := s.knowledge.UpdateFAQ(c.Param("id"), body.Question, body.Answer)
	if errors.Is(err, knowledge.ErrNotFound) {
		return err
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, faq)
}

func (s *Server) handleDeleteFAQ(c echo.Context) error {
	if err := s.knowledge.DeleteFAQ(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
