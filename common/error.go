package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is the error shape returned by the admin HTTP API.
type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}

// ToAPIError maps queue-level errors onto HTTP statuses. Unknown errors become
// a 500 carrying fallback as the message so internals are not leaked.
func ToAPIError(err error, fallback string) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var argErr *InvalidArgumentError
	var cfgErr *ConfigurationError

	switch {
	case errors.As(err, &argErr):
		return NewAPIError(http.StatusBadRequest, argErr.Error(), map[string]any{"argument": argErr.Arg})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Errf(http.StatusRequestTimeout, "request timed out")
	case errors.As(err, &cfgErr):
		return Errf(http.StatusServiceUnavailable, "queue backend unavailable")
	default:
		return Errf(http.StatusInternalServerError, "%s", fallback)
	}
}
