package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const keyVaultAPIVersion = "7.4"

// AzureKeyVault retrieves provider credentials from an Azure Key Vault,
// authenticating with azidentity.DefaultAzureCredential (environment,
// managed identity, or az-cli login, in that order) and issuing a plain
// REST GET against the vault's secrets endpoint rather than depending on a
// dedicated secrets SDK package.
type AzureKeyVault struct {
	vaultURL string
	cred     *azidentity.DefaultAzureCredential
	client   *http.Client

	mu    sync.RWMutex
	cache map[string]Credential
}

// NewAzureKeyVault builds an AzureKeyVault store for the given vault URL
// (e.g. "https://xrail-vault.vault.azure.net/").
func NewAzureKeyVault(vaultURL string) (*AzureKeyVault, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return &AzureKeyVault{
		vaultURL: strings.TrimRight(vaultURL, "/"),
		cred:     cred,
		client:   &http.Client{},
		cache:    make(map[string]Credential),
	}, nil
}

type keyVaultSecretResponse struct {
	Value string `json:"value"`
}

// Get fetches the provider's API key and (optional) secret as two secrets,
// named by providerSecretName with "-key" and "-secret" suffixes,
// memoizing the result since credentials are read-only after process init.
func (a *AzureKeyVault) Get(ctx context.Context, providerID string) (Credential, error) {
	a.mu.RLock()
	if cred, ok := a.cache[providerID]; ok {
		a.mu.RUnlock()
		return cred, nil
	}
	a.mu.RUnlock()

	base := providerSecretName(providerID)
	key, err := a.fetchSecret(ctx, base+"-key")
	if err != nil {
		return Credential{}, &ErrMissing{ProviderID: providerID}
	}
	secret, _ := a.fetchSecret(ctx, base+"-secret")

	cred := Credential{APIKey: key, APISecret: secret}
	a.mu.Lock()
	a.cache[providerID] = cred
	a.mu.Unlock()
	return cred, nil
}

func (a *AzureKeyVault) fetchSecret(ctx context.Context, name string) (string, error) {
	url := fmt.Sprintf("%s/secrets/%s?api-version=%s", a.vaultURL, name, keyVaultAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	token, err := a.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{"https://vault.azure.net/.default"},
	})
	if err != nil {
		return "", fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("key vault returned status %d for secret %q", resp.StatusCode, name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed keyVaultSecretResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	return parsed.Value, nil
}
