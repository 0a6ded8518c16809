package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/chrislearn/mofa-studio/internal/model"
)

// Re-exported so callers compare against a single symbol.
var (
	ErrNotFound    = model.ErrNotFound
	ErrValidation  = model.ErrValidation
	ErrConflict    = model.ErrConflict
	ErrUnavailable = model.ErrStoreUnavailable
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Op         string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: HTTP %d (%s): %s", e.Op, e.StatusCode, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap maps the status onto the service's error kinds.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	return nil
}

// Recoverable reports whether a retry may succeed.
func (e *APIError) Recoverable() bool {
	return e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether the service rejected the input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
