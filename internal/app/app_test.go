package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azchat/config"
	"azchat/internal/core"
	"azchat/internal/providers"
	"azchat/internal/providers/inference"
)

type staticVault struct{ value string }

func (v staticVault) GetSecret(context.Context, string) (string, error) { return v.value, nil }

func newFactory() *providers.ProviderFactory {
	f := providers.NewProviderFactory()
	f.Add(inference.Registration)
	return f
}

func submit(t *testing.T, h http.Handler, message string) string {
	t.Helper()
	form := url.Values{"name": {"Ada"}, "message": {message}}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNew_RequiresConfigAndFactory(t *testing.T) {
	_, err := New(context.Background(), Config{Factory: newFactory()})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{AppConfig: config.Default()})
	assert.Error(t, err)
}

func TestNew_StartsWithoutAzureSettings(t *testing.T) {
	a, err := New(context.Background(), Config{AppConfig: config.Default(), Factory: newFactory()})
	require.NoError(t, err)
	defer func() { _ = a.Shutdown(context.Background()) }()

	body := submit(t, a.Handler(), "Hello")
	assert.Contains(t, body, `id="error-panel"`)
	assert.Contains(t, body, "Missing configuration")
}

func TestNew_KeyVaultCredential(t *testing.T) {
	var gotKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hi there!"}}]}`))
	}))
	defer upstream.Close()

	cfg := config.Default()
	cfg.Azure.Endpoint = upstream.URL
	cfg.Azure.Model = "gpt-4o-mini"
	cfg.Azure.KeyVaultURL = "https://vault.example"

	a, err := New(context.Background(), Config{
		AppConfig: cfg,
		Factory:   newFactory(),
		VaultFactory: func(string) (core.SecretFetcher, error) {
			return staticVault{value: "vault-key"}, nil
		},
	})
	require.NoError(t, err)
	defer func() { _ = a.Shutdown(context.Background()) }()

	body := submit(t, a.Handler(), "Hello")
	assert.Contains(t, body, "Hi there!")
	assert.NotContains(t, body, `id="error-panel"`)
	assert.Equal(t, "vault-key", gotKey)
}

func TestNew_UnknownFlashStore(t *testing.T) {
	cfg := config.Default()
	cfg.Flash.Store = "memcached"

	_, err := New(context.Background(), Config{AppConfig: cfg, Factory: newFactory()})
	assert.Error(t, err)
}

func TestNew_RedisFlashStoreUsesContext(t *testing.T) {
	cfg := config.Default()
	cfg.Flash.Store = "redis"
	cfg.Flash.RedisURL = "redis://10.255.255.1:6379/0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := New(ctx, Config{AppConfig: cfg, Factory: newFactory()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize flash store")
	assert.Less(t, time.Since(start), time.Second)
}

func TestShutdown_Idempotent(t *testing.T) {
	a, err := New(context.Background(), Config{AppConfig: config.Default(), Factory: newFactory()})
	require.NoError(t, err)

	assert.NoError(t, a.Shutdown(context.Background()))
	assert.NoError(t, a.Shutdown(context.Background()))
}
