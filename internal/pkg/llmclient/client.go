// Package llmclient provides the JSON-over-HTTP client used by the REST
// chat backends:
// - Request marshaling and raw response capture
// - Bounded retries with exponential backoff on 429 and gateway errors
// - Upstream error parsing into core.Error
// - Per-attempt hooks for metrics
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"azchat/internal/core"
)

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the backend in errors and metrics
	ProviderName string

	// BaseURL is the API base URL; request endpoints are appended to it
	BaseURL string

	MaxRetries     int           // Maximum number of retry attempts (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 800ms)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 60s)
	BackoffFactor  float64       // Backoff multiplier (default: 2.0)

	Hooks Hooks
}

// DefaultConfig returns default client configuration. The retry policy
// mirrors the Azure SDK pipeline defaults.
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName:   providerName,
		BaseURL:        baseURL,
		MaxRetries:     3,
		InitialBackoff: 800 * time.Millisecond,
		MaxBackoff:     60 * time.Second,
		BackoffFactor:  2.0,
	}
}

// RequestInfo describes an attempt about to be sent.
type RequestInfo struct {
	Provider string
	Model    string
	Endpoint string
	Method   string
	Attempt  int
}

// ResponseInfo describes a finished attempt. StatusCode is 0 when the
// request failed before a response arrived.
type ResponseInfo struct {
	Provider   string
	Model      string
	Endpoint   string
	StatusCode int
	Duration   time.Duration
	Attempt    int
	Error      error
}

// Hooks observe every attempt, retries included. Both are optional.
type Hooks struct {
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd   func(ctx context.Context, info ResponseInfo)
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for chat backends
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// NewWithHTTPClient creates a new LLM client with a custom HTTP client.
// A nil httpClient uses http.DefaultClient.
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     any // JSON marshaled if not nil
	Headers  map[string]string
	// Model is reported to hooks only
	Model string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// DoRaw executes a request with retries, returning the raw 200 response
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	maxAttempts := c.config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		// a request that cannot be built will not build on retry either
		httpReq, err := c.buildRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := c.doAttempt(httpReq, req, attempt)
		if err != nil {
			// network errors are retried unless the caller gave up
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		if isRetryable(resp.StatusCode) {
			lastErr = core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
		}

		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "request failed after retries", nil)
}

// doAttempt sends one built request and reports it to the hooks
func (c *Client) doAttempt(httpReq *http.Request, req Request, attempt int) (*Response, error) {
	ctx := httpReq.Context()
	if c.config.Hooks.OnRequestStart != nil {
		ctx = c.config.Hooks.OnRequestStart(ctx, RequestInfo{
			Provider: c.config.ProviderName,
			Model:    req.Model,
			Endpoint: req.Endpoint,
			Method:   req.Method,
			Attempt:  attempt,
		})
		httpReq = httpReq.WithContext(ctx)
	}

	start := time.Now()
	resp, err := c.send(httpReq)

	if c.config.Hooks.OnRequestEnd != nil {
		info := ResponseInfo{
			Provider: c.config.ProviderName,
			Model:    req.Model,
			Endpoint: req.Endpoint,
			Duration: time.Since(start),
			Attempt:  attempt,
			Error:    err,
		}
		if resp != nil {
			info.StatusCode = resp.StatusCode
		}
		c.config.Hooks.OnRequestEnd(ctx, info)
	}

	return resp, err
}

// send executes a single HTTP request without retries
func (c *Client) send(httpReq *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.config.BaseURL + req.Endpoint
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request: "+err.Error(), err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// calculateBackoff calculates the backoff duration for a given attempt
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffFactor, float64(attempt-1))
	if backoff > float64(c.config.MaxBackoff) {
		backoff = float64(c.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// isRetryable returns true if the status code indicates a retryable error
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}
