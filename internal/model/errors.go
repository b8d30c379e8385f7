package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUpstreamError  = errors.New("upstream error")
	ErrRateLimited    = errors.New("rate limited")
	ErrNotConfigured  = errors.New("provider not configured")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for auth failures.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// NewConfigError creates a 503 error for missing or disabled provider credentials.
// Not retried: the operation cannot succeed until configuration changes.
func NewConfigError(reason string) *APIError {
	return &APIError{
		Code:       "CONFIG_ERROR",
		Message:    reason,
		StatusCode: 503,
		Err:        ErrNotConfigured,
	}
}

// UpstreamKind classifies a provider failure for retry decisions.
type UpstreamKind string

const (
	KindRateLimit UpstreamKind = "rate_limit"
	KindAuth      UpstreamKind = "auth"
	KindUpstream  UpstreamKind = "upstream"
)

// UpstreamError carries provider diagnostics for a failed call.
// HTTPStatus is 0 when the request never produced a response (timeout, DNS, TLS).
// Code is the provider's business code from the response envelope, when present.
type UpstreamError struct {
	Kind       UpstreamKind
	Endpoint   string
	HTTPStatus int
	Code       int
	Message    string
	RequestID  string
	Err        error // transport or decode cause, if any
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("provider %s %s: status %d code %d: %s", e.Kind, e.Endpoint, e.HTTPStatus, e.Code, e.Message)
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the class sentinel so callers can use errors.Is(err, ErrRateLimited)
// without depending on this type, plus the underlying cause.
func (e *UpstreamError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case KindRateLimit:
		sentinel = ErrRateLimited
	case KindAuth:
		sentinel = ErrUnauthorized
	default:
		sentinel = ErrUpstreamError
	}
	if e.Err != nil {
		return []error{sentinel, e.Err}
	}
	return []error{sentinel}
}

// IsRateLimited reports whether err is (or wraps) a provider rate-limit failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// AsAPIError converts an error chain into the APIError shape served to clients.
// Returns nil when err carries neither an APIError nor an UpstreamError.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		return nil
	}

	msg := upErr.Message
	if msg == "" {
		msg = "provider request failed"
	}
	if upErr.RequestID != "" {
		msg = fmt.Sprintf("%s (provider request %s)", msg, upErr.RequestID)
	}

	switch upErr.Kind {
	case KindRateLimit:
		return &APIError{Code: "RATE_LIMITED", Message: msg, StatusCode: http.StatusTooManyRequests, Err: err}
	case KindAuth:
		return &APIError{Code: "PROVIDER_AUTH_FAILED", Message: msg, StatusCode: http.StatusBadGateway, Err: err}
	default:
		return &APIError{Code: "UPSTREAM_ERROR", Message: msg, StatusCode: http.StatusBadGateway, Err: err}
	}
}
