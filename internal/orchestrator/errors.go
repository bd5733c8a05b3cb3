package orchestrator

import (
	"fmt"
	"strings"
)

// ValidationError reports input rejected by the safety screen. Violations
// hold the user-facing reasons.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "ogiltig input: " + strings.Join(e.Violations, "; ")
}

// PayloadTooLargeError reports a message body over the mode's cap.
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload %d bytes exceeds limit %d", e.Size, e.Limit)
}
