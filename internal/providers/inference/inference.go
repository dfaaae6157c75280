// Package inference provides the Azure AI Inference (Foundry models) chat backend.
package inference

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"azchat/internal/core"
	"azchat/internal/pkg/llmclient"
	"azchat/internal/providers"
	"azchat/internal/settings"
)

// Registration provides factory registration for the inference backend.
var Registration = providers.Registration{
	Type: "inference",
	New:  New,
}

const providerName = "inference"

// Provider sends chat completions to an Azure AI Inference endpoint
type Provider struct {
	client     *llmclient.Client
	apiKey     string
	model      string
	apiVersion string
}

// chatRequest is the JSON body sent to /chat/completions
type chatRequest struct {
	Model     string         `json:"model,omitempty"`
	Messages  []core.Message `json:"messages"`
	MaxTokens int            `json:"max_tokens,omitempty"`
}

// New creates a new inference backend.
func New(s *settings.Settings, apiKey string, opts providers.ProviderOptions) core.ChatBackend {
	p := &Provider{
		apiKey:     apiKey,
		model:      s.Model,
		apiVersion: s.APIVersion,
	}
	cfg := llmclient.DefaultConfig(providerName, NormalizeEndpoint(s.Endpoint))
	cfg.MaxRetries = opts.MaxRetries
	cfg.Hooks = opts.Hooks
	p.client = llmclient.NewWithHTTPClient(opts.HTTPClient, cfg, p.setHeaders)
	return p
}

// setHeaders sets the key header and forwards the request ID
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("api-key", p.apiKey)

	if requestID := core.GetRequestID(req.Context()); requestID != "" && isASCII(requestID) {
		req.Header.Set("x-ms-client-request-id", requestID)
	}
}

// isASCII reports whether id is safe to forward as a header value.
func isASCII(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// NormalizeEndpoint trims trailing slashes and appends /models to a bare
// *.services.ai.azure.com resource endpoint. Anything else is left alone.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	if strings.HasSuffix(strings.ToLower(u.Hostname()), ".services.ai.azure.com") && u.Path == "" {
		return endpoint + "/models"
	}
	return endpoint
}

// Complete sends one chat completion and returns the first choice's text
func (p *Provider) Complete(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	query := url.Values{}
	if p.apiVersion != "" {
		query.Set("api-version", p.apiVersion)
	}

	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Query:    query,
		Model:    p.model,
		Body: chatRequest{
			Model:     p.model,
			Messages:  req.Messages(),
			MaxTokens: req.MaxTokens,
		},
	})
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, core.NewProviderError(providerName, http.StatusBadGateway, "invalid JSON in chat completion response", nil)
	}
	choice := gjson.GetBytes(resp.Body, "choices.0")
	if !choice.Exists() {
		return nil, core.NewProviderError(providerName, http.StatusBadGateway, "chat completion response contained no choices", nil)
	}

	// null content yields ""
	return &core.ChatResponse{Text: choice.Get("message.content").String()}, nil
}
