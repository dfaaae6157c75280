package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "transport error with provider",
			err: &Error{
				Kind:     KindTransport,
				Type:     ErrorTypeProvider,
				Message:  "upstream error",
				Provider: "inference",
			},
			expected: "[inference] provider_error: upstream error",
		},
		{
			name:     "configuration error",
			err:      NewConfigurationError("endpoint", "Missing configuration: set X"),
			expected: "configuration_error: Missing configuration: set X",
		},
		{
			name:     "missing credential",
			err:      NewMissingCredentialError("Missing API key."),
			expected: "missing_credential: Missing API key.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Name(t *testing.T) {
	if got := NewRateLimitError("inference", "slow down").Name(); got != "rate_limit_error" {
		t.Errorf("Name() = %q, want rate_limit_error", got)
	}
	if got := NewConfigurationError("model", "m").Name(); got != "configuration_error" {
		t.Errorf("Name() = %q, want configuration_error", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	err := NewTransportError("keyvault", "wrapped error", originalErr)

	if !errors.Is(err, originalErr) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestError_AsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("building chat client: %w", NewConfigurationError("endpoint", "missing"))

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find *Error through fmt wrapping")
	}
	if target.Kind != KindConfiguration {
		t.Errorf("Kind = %v, want %v", target.Kind, KindConfiguration)
	}
	if target.Missing != "endpoint" {
		t.Errorf("Missing = %q, want endpoint", target.Missing)
	}
}

func TestParseProviderError(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		body           []byte
		expectedType   ErrorType
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "401 unauthorized",
			statusCode:     http.StatusUnauthorized,
			body:           []byte(`{"error": {"code": "401", "message": "Access denied due to invalid subscription key"}}`),
			expectedType:   ErrorTypeAuthentication,
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "Access denied due to invalid subscription key",
		},
		{
			name:           "403 forbidden",
			statusCode:     http.StatusForbidden,
			body:           []byte(`{"error": {"message": "Forbidden"}}`),
			expectedType:   ErrorTypeAuthentication,
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "Forbidden",
		},
		{
			name:           "429 rate limit",
			statusCode:     http.StatusTooManyRequests,
			body:           []byte(`{"error": {"message": "Rate limit exceeded"}}`),
			expectedType:   ErrorTypeRateLimit,
			expectedStatus: http.StatusTooManyRequests,
			expectedMsg:    "Rate limit exceeded",
		},
		{
			name:           "404 deployment not found",
			statusCode:     http.StatusNotFound,
			body:           []byte(`{"error": {"code": "DeploymentNotFound", "message": "The API deployment for this resource does not exist."}}`),
			expectedType:   ErrorTypeNotFound,
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "The API deployment for this resource does not exist.",
		},
		{
			name:           "422 preserved",
			statusCode:     http.StatusUnprocessableEntity,
			body:           []byte(`{"error": {"message": "bad max_tokens"}}`),
			expectedType:   ErrorTypeInvalidRequest,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    "bad max_tokens",
		},
		{
			name:           "plain text server error",
			statusCode:     http.StatusInternalServerError,
			body:           []byte("Internal Server Error"),
			expectedType:   ErrorTypeProvider,
			expectedStatus: http.StatusBadGateway,
			expectedMsg:    "Internal Server Error",
		},
		{
			name:           "empty body falls back to status text",
			statusCode:     http.StatusServiceUnavailable,
			body:           nil,
			expectedType:   ErrorTypeProvider,
			expectedStatus: http.StatusBadGateway,
			expectedMsg:    "Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseProviderError("inference", tt.statusCode, tt.body, nil)

			if err.Kind != KindTransport {
				t.Errorf("Kind = %v, want %v", err.Kind, KindTransport)
			}
			if err.Type != tt.expectedType {
				t.Errorf("Type = %v, want %v", err.Type, tt.expectedType)
			}
			if err.StatusCode != tt.expectedStatus {
				t.Errorf("StatusCode = %v, want %v", err.StatusCode, tt.expectedStatus)
			}
			if err.Provider != "inference" {
				t.Errorf("Provider = %v, want inference", err.Provider)
			}
			if err.Message != tt.expectedMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.expectedMsg)
			}
		})
	}
}
