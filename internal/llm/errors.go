package llm

import (
	"fmt"
	"time"
)

// ConfigError reports a backend that cannot be constructed from the current
// configuration.
type ConfigError struct {
	Backend string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm backend %s: %s", e.Backend, e.Reason)
}

// UpstreamError reports a non-success HTTP response from a backend. Body holds
// a truncated copy of the response for diagnostics.
type UpstreamError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm backend %s: upstream status %d: %s", e.Backend, e.StatusCode, e.Body)
}

// TimeoutError reports a chat call that exceeded its deadline. Timeout is the
// budget that was in effect when known.
type TimeoutError struct {
	Backend string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("llm backend %s: timed out after %s", e.Backend, e.Timeout)
	}
	return fmt.Sprintf("llm backend %s: timed out", e.Backend)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
