package upstream

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sourcing-hub/marketplace/internal/platform/httpx"
)

var (
	// ErrUnavailable covers network failures and 5xx responses.
	ErrUnavailable = fmt.Errorf("upstream: %w", httpx.ErrUpstream)
	// ErrMalformed is returned when a response body cannot be interpreted.
	ErrMalformed = fmt.Errorf("upstream: malformed response: %w", httpx.ErrUpstream)
	// ErrUnauthorized is returned on 401 for routes without auth bypass.
	ErrUnauthorized = fmt.Errorf("upstream: %w", httpx.ErrUnauthorized)
	// ErrNotFound is returned on 404.
	ErrNotFound = fmt.Errorf("upstream: %w", httpx.ErrNotFound)
)

// APIError is a rejected request carrying the upstream message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream: request rejected (%d)", e.Status)
	}
	return fmt.Sprintf("upstream: %s", e.Message)
}

// Unwrap classifies the rejection for HTTP mapping.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusConflict:
		return httpx.ErrConflict
	case e.Status == http.StatusForbidden:
		return httpx.ErrForbidden
	case e.Status >= 400 && e.Status < 500:
		return httpx.ErrValidation
	default:
		return httpx.ErrUpstream
	}
}

// IsRetryable reports whether err is a transient fetch failure the user may
// retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return errors.Is(err, httpx.ErrUpstream)
}

// PublicMessage is the upstream message safe to show to the user.
func (e *APIError) PublicMessage() string {
	return e.Message
}
