// Package core provides core types and interfaces for the chat form application.
package core

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind is the top-level class of a failure. The HTTP boundary
// renders every kind the same way; the kind exists for logs and tests.
type ErrorKind string

const (
	// KindConfiguration indicates a required configuration value is absent
	KindConfiguration ErrorKind = "configuration_error"
	// KindMissingCredential indicates neither a direct key nor a vault is configured
	KindMissingCredential ErrorKind = "missing_credential"
	// KindTransport indicates a failure talking to the chat API or the vault
	KindTransport ErrorKind = "transport_error"
)

// ErrorType refines transport failures by upstream status.
type ErrorType string

const (
	// ErrorTypeProvider indicates an upstream provider error (5xx)
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeRateLimit indicates a rate limit error (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401/403)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
)

// Error is the single error type returned up through every layer.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Type    ErrorType `json:"type,omitempty"`
	Message string    `json:"message"`
	// Missing names the absent configuration value (configuration errors only)
	Missing    string `json:"missing,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Provider   string `json:"provider,omitempty"`
	// Original error for debugging (not exposed to users)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	label := string(e.Kind)
	if e.Type != "" {
		label = string(e.Type)
	}
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, label, e.Message)
	}
	return fmt.Sprintf("%s: %s", label, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// Name is the short type label used in logs.
func (e *Error) Name() string {
	if e.Type != "" {
		return string(e.Type)
	}
	return string(e.Kind)
}

// NewConfigurationError creates an error for a missing configuration value.
func NewConfigurationError(missing, message string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: message,
		Missing: missing,
	}
}

// NewMissingCredentialError creates an error for an unresolvable API key.
func NewMissingCredentialError(message string) *Error {
	return &Error{
		Kind:    KindMissingCredential,
		Message: message,
	}
}

// NewTransportError wraps a failure of an outbound call that has no HTTP status.
func NewTransportError(provider, message string, err error) *Error {
	return &Error{
		Kind:     KindTransport,
		Type:     ErrorTypeProvider,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}

// NewProviderError creates a new provider error (upstream 5xx)
func NewProviderError(provider string, statusCode int, message string, err error) *Error {
	return &Error{
		Kind:       KindTransport,
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider string, message string) *Error {
	return &Error{
		Kind:       KindTransport,
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *Error {
	return &Error{
		Kind:       KindTransport,
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(provider string, message string) *Error {
	return &Error{
		Kind:       KindTransport,
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Provider:   provider,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(provider string, message string) *Error {
	return &Error{
		Kind:       KindTransport,
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Provider:   provider,
	}
}

// ParseProviderError parses an error response from a provider and returns an appropriate Error
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *Error {
	// Azure returns {"error": {"code": "...", "message": "..."}} for both services
	var errorResponse struct {
		Error struct {
			Message string          `json:"message"`
			Type    string          `json:"type"`
			Code    json.RawMessage `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		message = errorResponse.Error.Message
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewAuthenticationError(provider, message)
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider, message)
	case statusCode == http.StatusNotFound:
		return NewNotFoundError(provider, message)
	case statusCode >= 400 && statusCode < 500:
		err := NewInvalidRequestError(message, originalErr)
		err.StatusCode = statusCode
		err.Provider = provider
		return err
	default:
		return NewProviderError(provider, http.StatusBadGateway, message, originalErr)
	}
}
