package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/azomlabs/supportd/internal/mode"
	"github.com/azomlabs/supportd/internal/ratelimit"
	"github.com/azomlabs/supportd/internal/telemetry"
)

const modeContextKey = "supportd.mode"

// resolveMode picks the response mode from the X-Azom-Mode header, falling
// back to the ?mode query parameter, stores it on the request context and
// echoes it back uppercased in the response header.
func resolveMode(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		signal := c.Request().Header.Get(mode.Header)
		if signal == "" {
			signal = c.QueryParam(mode.QueryParam)
		}
		m := mode.Resolve(signal)
		c.Set(modeContextKey, m)
		c.Response().Header().Set(mode.Header, strings.ToUpper(string(m)))
		return next(c)
	}
}

// requestMode returns the mode stored by resolveMode, defaulting to full.
func requestMode(c echo.Context) mode.Mode {
	if m, ok := c.Get(modeContextKey).(mode.Mode); ok {
		return m
	}
	return mode.Full
}

// clientIdentity keys the rate limiter: the first address in X-Forwarded-For
// when present, otherwise the peer address without its port.
func clientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit rejects over-quota clients with 429 and always reports the
// window state in X-RateLimit-* headers.
func rateLimit(limiter *ratelimit.Limiter, metrics *telemetry.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, remaining, resetIn := limiter.Allow(clientIdentity(c.Request()))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", fmt.Sprint(limiter.Limit()))
			h.Set("X-RateLimit-Remaining", fmt.Sprint(remaining))
			h.Set("X-RateLimit-Reset", fmt.Sprintf("%.0f", resetIn.Seconds()))
			if !allowed {
				if metrics != nil {
					metrics.RateLimitRejected.Inc()
				}
				h.Set("Retry-After", fmt.Sprintf("%.0f", resetIn.Seconds()))
				return echo.NewHTTPError(http.StatusTooManyRequests, "För många förfrågningar, försök igen senare")
			}
			return next(c)
		}
	}
}
