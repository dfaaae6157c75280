// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the chat form server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"azchat/config"
	"azchat/internal/chat"
	"azchat/internal/credential"
	"azchat/internal/flash"
	"azchat/internal/httpclient"
	"azchat/internal/observability"
	"azchat/internal/providers"
	"azchat/internal/server"
	"azchat/internal/settings"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config *config.Config
	flash  flash.Store
	chat   *chat.Service
	server *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the configuration produced by config.Load.
	AppConfig *config.Config

	// Factory provides the ProviderFactory used to construct the chat backend.
	Factory *providers.ProviderFactory

	// VaultFactory overrides how Key Vault clients are built. Nil uses the Azure SDK.
	VaultFactory credential.VaultFactory
}

// New creates a new App with all dependencies initialized.
// Azure settings are not checked here; a missing value surfaces on the first submit.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("factory is required")
	}

	appCfg := cfg.AppConfig
	app := &App{config: appCfg}

	store, err := newFlashStore(ctx, appCfg.Flash)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize flash store: %w", err)
	}
	app.flash = store

	if appCfg.Metrics.Enabled {
		cfg.Factory.SetHooks(observability.NewPrometheusHooks())
	}

	httpCfg := httpclient.FromConfig(appCfg.HTTP)
	app.chat = chat.New(
		settings.NewResolver(appCfg.Azure),
		credential.New(appCfg.Azure, cfg.VaultFactory),
		cfg.Factory,
		chat.Options{
			Backend:      appCfg.Azure.Backend,
			SystemPrompt: appCfg.Chat.SystemPrompt,
			MaxTokens:    appCfg.Chat.MaxTokens,
			Provider: providers.ProviderOptions{
				HTTPClient: httpclient.NewHTTPClient(&httpCfg),
				MaxRetries: appCfg.HTTP.MaxRetries,
			},
		},
	)

	app.logStartupInfo()

	app.server = server.New(server.NewHandler(app.chat, app.flash), &server.Config{
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
	})

	return app, nil
}

// newFlashStore builds the configured previous-result store.
func newFlashStore(ctx context.Context, cfg config.FlashConfig) (flash.Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "local":
		return flash.NewLocalStore(cfg.TTL), nil
	case "redis":
		return flash.NewRedisStore(ctx, flash.RedisConfig{URL: cfg.RedisURL, TTL: cfg.TTL})
	default:
		return nil, fmt.Errorf("unknown flash store: %s", cfg.Store)
	}
}

// Handler returns the HTTP handler serving the form.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server, then closes the flash store.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every close step and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.flash != nil {
		if err := a.flash.Close(); err != nil {
			slog.Error("flash store close error", "error", err)
			errs = append(errs, fmt.Errorf("flash close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup. Secrets are never logged.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("chat backend configured",
		"backend", cfg.Azure.Backend,
		"endpoint_set", cfg.Azure.Endpoint != "",
		"model", cfg.Azure.Model,
		"max_tokens", cfg.Chat.MaxTokens,
	)

	switch {
	case cfg.Azure.APIKey != "":
		slog.Info("api key source", "source", credential.SourceEnv)
	case cfg.Azure.KeyVaultURL != "":
		slog.Info("api key source", "source", credential.SourceKeyVault, "vault_url", cfg.Azure.KeyVaultURL)
	default:
		slog.Warn("no api key or key vault configured; submissions will fail until one is set")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("flash store configured", "type", cfg.Flash.Store, "ttl", cfg.Flash.TTL)
}
