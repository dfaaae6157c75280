package settings

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azchat/config"
	"azchat/internal/core"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.AzureConfig
		wantMissing string
		want        *Settings
	}{
		{
			name:        "everything absent reports endpoint first",
			cfg:         config.AzureConfig{},
			wantMissing: "endpoint",
		},
		{
			name:        "model absent",
			cfg:         config.AzureConfig{Endpoint: "https://demo.services.ai.azure.com/models"},
			wantMissing: "model",
		},
		{
			name: "api version defaulted",
			cfg: config.AzureConfig{
				Endpoint: "https://demo.services.ai.azure.com/models",
				Model:    "gpt-4o-mini",
			},
			want: &Settings{
				Endpoint:   "https://demo.services.ai.azure.com/models",
				Model:      "gpt-4o-mini",
				APIVersion: DefaultAPIVersion,
			},
		},
		{
			name: "explicit api version kept",
			cfg: config.AzureConfig{
				Endpoint:   "https://demo.openai.azure.com/",
				Model:      "chat",
				APIVersion: "2024-10-21",
			},
			want: &Settings{
				Endpoint:   "https://demo.openai.azure.com/",
				Model:      "chat",
				APIVersion: "2024-10-21",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.cfg)
			if tt.wantMissing != "" {
				require.Error(t, err)
				assert.Nil(t, got)

				var cerr *core.Error
				require.True(t, errors.As(err, &cerr))
				assert.Equal(t, core.KindConfiguration, cerr.Kind)
				assert.Equal(t, tt.wantMissing, cerr.Missing)
				assert.True(t, strings.HasPrefix(cerr.Message, "Missing configuration"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_EndpointMessageNamesBothVariables(t *testing.T) {
	_, err := Resolve(config.AzureConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvEndpoint)
	assert.Contains(t, err.Error(), config.EnvEndpointAlt)
	assert.NotContains(t, err.Error(), config.EnvModel)
}

func TestResolver_CachesSuccess(t *testing.T) {
	r := NewResolver(config.AzureConfig{Endpoint: "https://e", Model: "m"})

	first, err := r.Resolve()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Resolve()
			assert.NoError(t, err)
			assert.Same(t, first, s)
		}()
	}
	wg.Wait()
}

func TestResolver_DoesNotCacheFailure(t *testing.T) {
	r := NewResolver(config.AzureConfig{})

	_, err := r.Resolve()
	require.Error(t, err)
	assert.Nil(t, r.settings)

	_, err = r.Resolve()
	require.Error(t, err)
}
