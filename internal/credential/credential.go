// Package credential resolves the chat API key, either directly from
// configuration or from an Azure Key Vault secret.
package credential

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"azchat/config"
	"azchat/internal/core"
	"azchat/internal/observability"
)

// DefaultSecretName is the Key Vault secret read when none is configured.
const DefaultSecretName = "api-key-ai"

// Source values reported alongside a resolved key.
const (
	SourceEnv      = "env"
	SourceKeyVault = "keyvault"
)

var missingCredentialMessage = "Missing API key. Set " + config.EnvAPIKey +
	" (recommended) or configure Key Vault by setting " + config.EnvKeyVaultURL +
	" (and optionally " + config.EnvKeyVaultSecretName + ", default '" + DefaultSecretName + "')."

// VaultFactory builds a secret fetcher for a vault URL. It is only called
// when no direct key is configured.
type VaultFactory func(vaultURL string) (core.SecretFetcher, error)

// Provider resolves the API key.
type Provider struct {
	apiKey     string
	vaultURL   string
	secretName string
	newVault   VaultFactory
}

// New creates a provider over cfg. A nil factory uses NewKeyVault.
func New(cfg config.AzureConfig, newVault VaultFactory) *Provider {
	if newVault == nil {
		newVault = NewKeyVault
	}
	secretName := cfg.KeyVaultSecretName
	if secretName == "" {
		secretName = DefaultSecretName
	}
	return &Provider{
		apiKey:     cfg.APIKey,
		vaultURL:   cfg.KeyVaultURL,
		secretName: secretName,
		newVault:   newVault,
	}
}

// Resolve returns the API key and where it came from. A direct key never
// touches the network; otherwise one vault lookup is made, without retry.
func (p *Provider) Resolve(ctx context.Context) (key string, source string, err error) {
	if p.apiKey != "" {
		return p.apiKey, SourceEnv, nil
	}

	if p.vaultURL == "" {
		return "", "", core.NewMissingCredentialError(missingCredentialMessage)
	}

	log := core.Logger(ctx).With("vault_url", p.vaultURL, "secret_name", p.secretName)
	log.Info("fetching api key from key vault")

	vault, err := p.newVault(p.vaultURL)
	if err != nil {
		observability.RecordVaultLookup(observability.OutcomeError)
		log.Error("key vault client setup failed", "error", err)
		return "", "", core.NewTransportError(SourceKeyVault,
			fmt.Sprintf("failed to create key vault client for %s: %v", p.vaultURL, err), err)
	}

	value, err := vault.GetSecret(ctx, p.secretName)
	if err != nil {
		observability.RecordVaultLookup(observability.OutcomeError)
		log.Error("key vault lookup failed", "error_type", fmt.Sprintf("%T", err), "error", err)
		return "", "", core.NewTransportError(SourceKeyVault,
			fmt.Sprintf("failed to read secret %q from %s: %v", p.secretName, p.vaultURL, err), err)
	}
	if value == "" {
		observability.RecordVaultLookup(observability.OutcomeError)
		return "", "", core.NewMissingCredentialError(
			fmt.Sprintf("Key Vault secret %q in %s has no value.", p.secretName, p.vaultURL))
	}

	observability.RecordVaultLookup(observability.OutcomeSuccess)
	log.Info("api key fetched from key vault", "key_fingerprint", Fingerprint(value))
	return value, SourceKeyVault, nil
}

// Fingerprint returns a short non-reversible tag for a secret, safe to log.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(secret))[:8]
}
