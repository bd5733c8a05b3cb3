package mode

import (
	"strings"
	"time"
)

// Mode is the per-request runtime mode. It is resolved once at the transport
// boundary and threaded through the pipeline; downstream code never re-derives
// it from the request.
type Mode string

const (
	// Light runs with a simplified feature set and tighter limits.
	Light Mode = "light"
	// Full is the default, full-featured experience.
	Full Mode = "full"
)

// Header carries the mode signal on requests and echoes the resolved mode
// (uppercase) on responses.
const Header = "X-Azom-Mode"

// QueryParam is the fallback mode signal for clients that cannot set headers.
const QueryParam = "mode"

// Resolve maps a raw signal (header value or query parameter) to a Mode.
// "light" and "l" select Light, case-insensitively; any other value,
// including the empty string, selects Full. Total function, no error path.
func Resolve(signal string) Mode {
	switch strings.ToLower(strings.TrimSpace(signal)) {
	case string(Light), "l":
		return Light
	default:
		return Full
	}
}

// Limits are the feature gates and caps derived from a Mode. They are a pure
// function of the mode, recomputed per request and never persisted.
type Limits struct {
	LLMTimeout       time.Duration
	PayloadCapBytes  int
	RAGEnabled       bool
	ExternalBackends bool
}

// LimitsFor returns the feature limits for m. Unknown values behave as Full.
func LimitsFor(m Mode) Limits {
	if m == Light {
		return Limits{
			LLMTimeout:       10 * time.Second,
			PayloadCapBytes:  8000,
			RAGEnabled:       false,
			ExternalBackends: false,
		}
	}
	return Limits{
		LLMTimeout:       30 * time.Second,
		PayloadCapBytes:  32000,
		RAGEnabled:       true,
		ExternalBackends: true,
	}
}
