package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
			},
			want: "TEST_ERROR: something went wrong",
		},
		{
			name: "with wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
				Err:     errors.New("underlying cause"),
			},
			want: "TEST_ERROR: something went wrong (underlying cause)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &APIError{
		Code:    "TEST",
		Message: "test",
		Err:     underlying,
	}

	if err.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlying)
	}

	errNoWrap := &APIError{Code: "TEST", Message: "test"}
	if errNoWrap.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no wrapped error")
	}
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("provider credentials missing")

	if err.Code != "CONFIG_ERROR" {
		t.Errorf("Code = %q, want %q", err.Code, "CONFIG_ERROR")
	}
	if err.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 503)
	}
	if !errors.Is(err, ErrNotConfigured) {
		t.Error("error should wrap ErrNotConfigured sentinel")
	}
}

// TestErrorsIs verifies that errors.Is() works correctly with all sentinel errors.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"NotFound", NewNotFoundError("x"), ErrNotFound},
		{"Validation", NewValidationError("x", "y"), ErrInvalidRequest},
		{"Unauthorized", NewUnauthorizedError("x"), ErrUnauthorized},
		{"Config", NewConfigError("x"), ErrNotConfigured},
		{"UpstreamRateLimit", &UpstreamError{Kind: KindRateLimit}, ErrRateLimited},
		{"UpstreamAuth", &UpstreamError{Kind: KindAuth}, ErrUnauthorized},
		{"UpstreamOther", &UpstreamError{Kind: KindUpstream}, ErrUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%T, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

func TestUpstreamError_Error(t *testing.T) {
	err := &UpstreamError{
		Kind:       KindUpstream,
		Endpoint:   "/product/query",
		HTTPStatus: 500,
		Code:       1600500,
		Message:    "server busy",
		RequestID:  "req-42",
	}

	got := err.Error()
	for _, part := range []string{"/product/query", "status 500", "code 1600500", "server busy", "request req-42"} {
		if !strings.Contains(got, part) {
			t.Errorf("Error() = %q, missing %q", got, part)
		}
	}
}

func TestUpstreamError_UnwrapCause(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := fmt.Errorf("fetching: %w", &UpstreamError{Kind: KindUpstream, Err: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the transport cause")
	}
	if IsRateLimited(err) {
		t.Error("IsRateLimited() = true for a plain upstream failure")
	}
}

func TestIsRateLimited(t *testing.T) {
	wrapped := fmt.Errorf("checking shipping: %w", &UpstreamError{Kind: KindRateLimit, Code: 1600200})
	if !IsRateLimited(wrapped) {
		t.Error("IsRateLimited() = false, want true")
	}
}

func TestAsAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantNil    bool
		wantCode   string
		wantStatus int
	}{
		{"plain error", errors.New("boom"), true, "", 0},
		{"api error passthrough", NewNotFoundError("product"), false, "NOT_FOUND", 404},
		{"rate limit", &UpstreamError{Kind: KindRateLimit}, false, "RATE_LIMITED", http.StatusTooManyRequests},
		{"auth", &UpstreamError{Kind: KindAuth}, false, "PROVIDER_AUTH_FAILED", http.StatusBadGateway},
		{"upstream wrapped", fmt.Errorf("x: %w", &UpstreamError{Kind: KindUpstream, Message: "bad"}), false, "UPSTREAM_ERROR", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AsAPIError(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("AsAPIError() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("AsAPIError() = nil")
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestAsAPIError_PreservesRequestID(t *testing.T) {
	got := AsAPIError(&UpstreamError{Kind: KindUpstream, Message: "product removed", RequestID: "abc-1"})
	if !strings.Contains(got.Message, "abc-1") {
		t.Errorf("Message = %q, want provider request id", got.Message)
	}
}
