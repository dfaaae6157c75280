// Package settings turns the raw Azure configuration into validated,
// immutable connection settings.
package settings

import (
	"sync"

	"azchat/config"
	"azchat/internal/core"
)

// DefaultAPIVersion is used when neither API version variable is set.
const DefaultAPIVersion = "2024-12-01-preview"

// Messages shown to users when a required value is absent.
const (
	missingEndpointMessage = "Missing configuration: set " + config.EnvEndpoint +
		" (recommended) or " + config.EnvEndpointAlt + "."
	missingModelMessage = "Missing configuration: set " + config.EnvModel +
		" (recommended) or " + config.EnvModelAlt + "."
)

// Settings identifies the remote chat deployment.
// Endpoint and Model are always non-empty.
type Settings struct {
	Endpoint   string
	Model      string
	APIVersion string
}

// Resolve validates cfg. The endpoint is checked before the model so the
// error for an empty configuration is always the endpoint one.
func Resolve(cfg config.AzureConfig) (*Settings, error) {
	if cfg.Endpoint == "" {
		return nil, core.NewConfigurationError("endpoint", missingEndpointMessage)
	}
	if cfg.Model == "" {
		return nil, core.NewConfigurationError("model", missingModelMessage)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	return &Settings{
		Endpoint:   cfg.Endpoint,
		Model:      cfg.Model,
		APIVersion: apiVersion,
	}, nil
}

// Resolver caches the first successful Resolve for the life of the process.
// Failures are not cached.
type Resolver struct {
	cfg config.AzureConfig

	mu       sync.Mutex
	settings *Settings
}

// NewResolver creates a resolver over cfg.
func NewResolver(cfg config.AzureConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the cached settings, resolving them on first use.
func (r *Resolver) Resolve() (*Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings != nil {
		return r.settings, nil
	}

	s, err := Resolve(r.cfg)
	if err != nil {
		return nil, err
	}
	r.settings = s
	return s, nil
}
