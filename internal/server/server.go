// Package server exposes the chat pipeline and the knowledge-base admin API
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/azomlabs/supportd/config"
	"github.com/azomlabs/supportd/internal/knowledge"
	"github.com/azomlabs/supportd/internal/llm"
	"github.com/azomlabs/supportd/internal/orchestrator"
	"github.com/azomlabs/supportd/internal/ratelimit"
	"github.com/azomlabs/supportd/internal/telemetry"
)

// shutdownTimeout bounds graceful shutdown; in-flight requests past it are
// dropped.
const shutdownTimeout = 15 * time.Second

// Server wires the HTTP surface. All dependencies are injected.
type Server struct {
	cfg       *config.Config
	orch      *orchestrator.Orchestrator
	knowledge *knowledge.Service
	limiter   *ratelimit.Limiter
	metrics   *telemetry.Metrics
	logger    *log.Logger
}

func New(cfg *config.Config, orch *orchestrator.Orchestrator, kn *knowledge.Service, limiter *ratelimit.Limiter, metrics *telemetry.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		orch:      orch,
		knowledge: kn,
		limiter:   limiter,
		metrics:   metrics,
		logger:    log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
}

// Echo builds the configured router.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Azom-Mode"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.metrics != nil && s.cfg.Telemetry.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	api := e.Group("/api/v1")
	api.Use(resolveMode)
	if s.limiter != nil {
		api.Use(rateLimit(s.limiter, s.metrics))
	}
	api.POST("/chat", s.handleChat)

	admin := api.Group("/knowledge")
	admin.GET("/search", s.handleKnowledgeSearch)
	admin.POST("/reload", s.handleKnowledgeReload)
	admin.GET("/faqs", s.handleListFAQs)
	admin.POST("/faqs", s.handleAddFAQ)
	admin.PUT("/faqs/:id", s.handleUpdateFAQ)
	admin.DELETE("/faqs/:id", s.handleDeleteFAQ)

	return e
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	e := s.Echo()
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(s.cfg.Server.Address)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

// errorHandler maps pipeline errors onto HTTP statuses and a uniform JSON
// error body.
func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var details []string

	var (
		httpErr  *echo.HTTPError
		valErr   *orchestrator.ValidationError
		sizeErr  *orchestrator.PayloadTooLargeError
		cfgErr   *llm.ConfigError
		upErr    *llm.UpstreamError
		toErr    *llm.TimeoutError
		notFound = errors.Is(err, knowledge.ErrNotFound)
	)
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if httpErr.Message != nil {
			msg = fmt.Sprint(httpErr.Message)
		}
	case errors.As(err, &valErr):
		code = http.StatusBadRequest
		msg = "Input underkändes av säkerhetskontrollen"
		details = valErr.Violations
	case errors.As(err, &sizeErr):
		code = http.StatusRequestEntityTooLarge
		msg = fmt.Sprintf("Meddelandet är för stort (max %d byte i detta läge)", sizeErr.Limit)
	case errors.As(err, &cfgErr):
		code = http.StatusServiceUnavailable
		msg = "LLM-tjänsten är inte korrekt konfigurerad"
	case errors.As(err, &toErr):
		code = http.StatusGatewayTimeout
		msg = "LLM-tjänsten svarade inte i tid"
	case errors.As(err, &upErr):
		code = http.StatusBadGateway
		msg = "LLM-tjänsten returnerade ett fel"
	case notFound:
		code = http.StatusNotFound
		msg = "FAQ-posten finns inte"
	}

	req := c.Request()
	s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	if !c.Response().Committed {
		body := map[string]interface{}{"error": msg}
		if len(details) > 0 {
			body["details"] = details
		}
		_ = c.JSON(code, body)
	}
}
