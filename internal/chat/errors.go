package chat

import (
	"errors"
	"fmt"
)

// ErrDocumentUnavailable means the course document never loaded or its text
// is empty; no model call is attempted in that state.
var ErrDocumentUnavailable = errors.New("course document unavailable")

// ErrEmptyQuestion means the inbound question was empty or whitespace-only.
var ErrEmptyQuestion = errors.New("empty question")

// ErrorCategory classifies a model provider failure.
type ErrorCategory string

const (
	CategoryNetwork   ErrorCategory = "network"
	CategoryAuth      ErrorCategory = "auth"
	CategoryRateLimit ErrorCategory = "rate_limit"
	CategoryMalformed ErrorCategory = "malformed"
)

// ProviderError is a categorized model provider failure. The dispatcher is
// the only layer that turns it into user-facing text; the underlying cause
// is kept for operator logs.
type ProviderError struct {
	Category ErrorCategory
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("model provider error (%s): %v", e.Category, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
