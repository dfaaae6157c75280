// Package providers provides a factory for creating chat backend instances.
package providers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"azchat/config"
	"azchat/internal/core"
	"azchat/internal/pkg/llmclient"
	"azchat/internal/settings"
)

// ProviderOptions carries the shared transport wiring into every backend.
type ProviderOptions struct {
	// HTTPClient is used for all outbound calls; nil means http.DefaultClient
	HTTPClient *http.Client
	// MaxRetries bounds retries of transient upstream failures
	MaxRetries int
	Hooks      llmclient.Hooks
}

// Registration ties a backend name to its constructor.
type Registration struct {
	Type string
	New  func(s *settings.Settings, apiKey string, opts ProviderOptions) core.ChatBackend
}

// ProviderFactory manages backend registration and creation.
type ProviderFactory struct {
	mu            sync.RWMutex
	registrations map[string]Registration
	hooks         llmclient.Hooks
}

// NewProviderFactory creates a new provider factory instance.
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{
		registrations: make(map[string]Registration),
	}
}

// Add registers a backend with the factory.
func (f *ProviderFactory) Add(reg Registration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations[strings.ToLower(reg.Type)] = reg
}

// SetHooks configures observability hooks passed to every backend built afterwards.
func (f *ProviderFactory) SetHooks(hooks llmclient.Hooks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = hooks
}

// GetHooks returns the currently configured hooks.
func (f *ProviderFactory) GetHooks() llmclient.Hooks {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.hooks
}

// Create builds the backend named by backendType. Hooks set on the factory
// override any in opts.
func (f *ProviderFactory) Create(backendType string, s *settings.Settings, apiKey string, opts ProviderOptions) (core.ChatBackend, error) {
	f.mu.RLock()
	reg, ok := f.registrations[strings.ToLower(backendType)]
	hooks := f.hooks
	f.mu.RUnlock()

	if !ok {
		return nil, core.NewConfigurationError("backend", fmt.Sprintf(
			"Unsupported backend %q: set %s to one of %s.",
			backendType, config.EnvBackend, strings.Join(f.ListRegistered(), ", ")))
	}
	if hooks.OnRequestStart != nil || hooks.OnRequestEnd != nil {
		opts.Hooks = hooks
	}
	return reg.New(s, apiKey, opts), nil
}

// ListRegistered returns the registered backend names in sorted order.
func (f *ProviderFactory) ListRegistered() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.registrations))
	for name := range f.registrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
