// Package chat provides the chat client facade used by the form handler.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"azchat/config"
	"azchat/internal/core"
	"azchat/internal/providers"
	"azchat/internal/settings"
)

// backendBuildTimeout bounds credential resolution while s.mu is held.
const backendBuildTimeout = 30 * time.Second

// SettingsSource yields validated connection settings.
type SettingsSource interface {
	Resolve() (*settings.Settings, error)
}

// CredentialSource yields the API key and where it came from.
type CredentialSource interface {
	Resolve(ctx context.Context) (key string, source string, err error)
}

// BackendFactory builds a chat backend by name.
type BackendFactory interface {
	Create(backendType string, s *settings.Settings, apiKey string, opts providers.ProviderOptions) (core.ChatBackend, error)
}

// Options configures a Service.
type Options struct {
	// Backend names the registered backend to build
	Backend      string
	SystemPrompt string
	MaxTokens    int
	Provider     providers.ProviderOptions
}

// Service sends prompts to a lazily constructed backend.
// The backend is built once per process; a failed build is retried on the next call.
type Service struct {
	settings    SettingsSource
	credentials CredentialSource
	factory     BackendFactory
	opts        Options

	mu      sync.Mutex
	backend core.ChatBackend
}

// New creates a Service. Nothing is resolved until the first Send.
func New(settings SettingsSource, credentials CredentialSource, factory BackendFactory, opts Options) *Service {
	if opts.Backend == "" {
		opts.Backend = config.DefaultBackend
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = config.DefaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = config.DefaultMaxTokens
	}
	return &Service{
		settings:    settings,
		credentials: credentials,
		factory:     factory,
		opts:        opts,
	}
}

// Option overrides a per-call default.
type Option func(*core.ChatRequest)

// WithSystemPrompt replaces the system prompt for one call.
func WithSystemPrompt(prompt string) Option {
	return func(r *core.ChatRequest) {
		r.SystemPrompt = prompt
	}
}

// WithMaxTokens replaces the token cap for one call.
func WithMaxTokens(n int) Option {
	return func(r *core.ChatRequest) {
		if n > 0 {
			r.MaxTokens = n
		}
	}
}

// Send forwards prompt as the user message and returns the reply text.
// Errors from settings, credentials and the backend are returned unmodified.
func (s *Service) Send(ctx context.Context, prompt string, opts ...Option) (string, error) {
	log := core.Logger(ctx)
	log.Info("sending chat request", "prompt_length", len(prompt))

	backend, err := s.Backend(ctx)
	if err != nil {
		logFailure(ctx, err)
		return "", err
	}

	req := &core.ChatRequest{
		SystemPrompt: s.opts.SystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    s.opts.MaxTokens,
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := backend.Complete(ctx, req)
	if err != nil {
		logFailure(ctx, err)
		return "", err
	}

	log.Info("chat response received", "response_length", len(resp.Text))
	return resp.Text, nil
}

// Backend returns the shared backend, building it on first use.
func (s *Service) Backend(ctx context.Context) (core.ChatBackend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		return s.backend, nil
	}

	st, err := s.settings.Resolve()
	if err != nil {
		return nil, err
	}

	// Callers queue on s.mu, so the vault lookup must not end with the
	// request that happened to take the lock first.
	buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backendBuildTimeout)
	defer cancel()
	key, source, err := s.credentials.Resolve(buildCtx)
	if err != nil {
		return nil, err
	}

	backend, err := s.factory.Create(s.opts.Backend, st, key, s.opts.Provider)
	if err != nil {
		return nil, err
	}

	core.Logger(ctx).Info("chat backend initialized",
		"backend", s.opts.Backend,
		"endpoint", st.Endpoint,
		"model", st.Model,
		"api_version", st.APIVersion,
		"credential_source", source,
	)
	s.backend = backend
	return backend, nil
}

func logFailure(ctx context.Context, err error) {
	errType := fmt.Sprintf("%T", err)
	var cerr *core.Error
	if errors.As(err, &cerr) {
		errType = cerr.Name()
	}
	core.Logger(ctx).Error("chat request failed", "error_type", errType, "error_message", err.Error())
}
