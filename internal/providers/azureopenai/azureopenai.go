// Package azureopenai provides the Azure OpenAI chat backend.
package azureopenai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"azchat/internal/core"
	"azchat/internal/pkg/llmclient"
	"azchat/internal/providers"
	"azchat/internal/settings"
)

// Registration provides factory registration for the Azure OpenAI backend.
var Registration = providers.Registration{
	Type: "azureopenai",
	New:  New,
}

const providerName = "azureopenai"

// Provider sends chat completions to an Azure OpenAI deployment
type Provider struct {
	client     *openai.Client
	deployment string
	hooks      llmclient.Hooks
}

// New creates a new Azure OpenAI backend. The model setting is the deployment name.
func New(s *settings.Settings, apiKey string, opts providers.ProviderOptions) core.ChatBackend {
	deployment := s.Model

	cfg := openai.DefaultAzureConfig(apiKey, strings.TrimRight(s.Endpoint, "/"))
	cfg.APIVersion = s.APIVersion
	cfg.AzureModelMapperFunc = func(string) string {
		return deployment
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	return &Provider{
		client:     openai.NewClientWithConfig(cfg),
		deployment: deployment,
		hooks:      opts.Hooks,
	}
}

// Complete sends one chat completion and returns the first choice's text
func (p *Provider) Complete(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	msgs := req.Messages()
	body := openai.ChatCompletionRequest{
		Model:               p.deployment,
		Messages:            make([]openai.ChatCompletionMessage, len(msgs)),
		MaxCompletionTokens: req.MaxTokens,
	}
	for i, m := range msgs {
		body.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	if p.hooks.OnRequestStart != nil {
		ctx = p.hooks.OnRequestStart(ctx, llmclient.RequestInfo{
			Provider: providerName,
			Model:    p.deployment,
			Endpoint: "/chat/completions",
			Method:   http.MethodPost,
		})
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, body)
	status := statusOf(err)
	err = convertError(err)

	if p.hooks.OnRequestEnd != nil {
		p.hooks.OnRequestEnd(ctx, llmclient.ResponseInfo{
			Provider:   providerName,
			Model:      p.deployment,
			Endpoint:   "/chat/completions",
			StatusCode: status,
			Duration:   time.Since(start),
			Error:      err,
		})
	}

	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewProviderError(providerName, http.StatusBadGateway, "chat completion response contained no choices", nil)
	}
	return &core.ChatResponse{Text: resp.Choices[0].Message.Content}, nil
}

// statusOf returns the upstream HTTP status of a call, 0 when none was received.
func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// convertError maps go-openai errors onto *core.Error.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return core.ParseProviderError(providerName, apiErr.HTTPStatusCode, []byte(apiErr.Message), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return core.ParseProviderError(providerName, reqErr.HTTPStatusCode, []byte(msg), err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return core.NewProviderError(providerName, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
}
