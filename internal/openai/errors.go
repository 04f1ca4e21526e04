package openai

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for upstream provider failures. Handlers branch on these
// with errors.Is to pick the response code; none of them are retried here.
var (
	// ErrAuth means the API key is missing or the provider rejected it.
	ErrAuth = errors.New("openai: missing or invalid API key")
	// ErrInvalidRequest means the provider itself rejected the request
	// parameters. Surfaced to callers as a validation-class failure.
	ErrInvalidRequest = errors.New("openai: provider rejected request")
	// ErrUnavailable covers network failures, timeouts and provider 5xx.
	ErrUnavailable = errors.New("openai: service unavailable")
)

// RateLimitError is returned when the provider responds 429. RetryAfter is
// zero when the provider supplied no hint.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("openai: rate limit exceeded (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("openai: rate limit exceeded: %s", e.Message)
}
