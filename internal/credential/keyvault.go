package credential

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"azchat/internal/core"
)

// KeyVault reads secrets with the ambient Azure identity
// (environment, workload identity, managed identity, Azure CLI).
type KeyVault struct {
	client *azsecrets.Client
}

// NewKeyVault creates a Key Vault secret fetcher for vaultURL.
func NewKeyVault(vaultURL string) (core.SecretFetcher, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain azure identity: %w", err)
	}

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets client: %w", err)
	}

	return &KeyVault{client: client}, nil
}

// GetSecret returns the latest version of the named secret.
func (k *KeyVault) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := k.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", err
	}
	if resp.Value == nil {
		return "", nil
	}
	return *resp.Value, nil
}
