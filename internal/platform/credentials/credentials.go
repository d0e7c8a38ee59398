// Package credentials implements the Credentials collaborator (§6):
// get(provider_id) -> credentials | missing. Missing credentials disable
// the provider on ingest and surface NotConfigured on execute.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Credential is the opaque secret material a provider adapter needs: an API
// key, and optionally a secondary secret (HMAC signing key, client secret).
type Credential struct {
	APIKey    string
	APISecret string
}

// ErrMissing is returned by Get when no credential is configured for a
// provider.
type ErrMissing struct{ ProviderID string }

func (e *ErrMissing) Error() string { return "missing credentials for provider " + e.ProviderID }

// Store is the credentials collaborator contract.
type Store interface {
	Get(ctx context.Context, providerID string) (Credential, error)
}

// Env reads PROVIDER_<NAME>_API_KEY / _API_SECRET environment variables,
// suitable for local runs and CI.
type Env struct {
	mu    sync.RWMutex
	cache map[string]Credential
}

// NewEnv builds an Env credential store.
func NewEnv() *Env {
	return &Env{cache: make(map[string]Credential)}
}

// Get reads credentials from the environment, memoizing the result since
// credentials are read-only after process init (§5).
func (e *Env) Get(_ context.Context, providerID string) (Credential, error) {
	e.mu.RLock()
	if cred, ok := e.cache[providerID]; ok {
		e.mu.RUnlock()
		return cred, nil
	}
	e.mu.RUnlock()

	prefix := "PROVIDER_" + strings.ToUpper(providerID) + "_"
	key := strings.TrimSpace(os.Getenv(prefix + "API_KEY"))
	if key == "" {
		return Credential{}, &ErrMissing{ProviderID: providerID}
	}
	cred := Credential{
		APIKey:    key,
		APISecret: os.Getenv(prefix + "API_SECRET"),
	}

	e.mu.Lock()
	e.cache[providerID] = cred
	e.mu.Unlock()
	return cred, nil
}

// Fake is an in-memory Store for tests.
type Fake struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewFake builds an empty Fake store.
func NewFake() *Fake {
	return &Fake{creds: make(map[string]Credential)}
}

// Put installs a credential for a provider.
func (f *Fake) Put(providerID string, cred Credential) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[providerID] = cred
}

// Get implements Store.
func (f *Fake) Get(_ context.Context, providerID string) (Credential, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cred, ok := f.creds[providerID]
	if !ok {
		return Credential{}, &ErrMissing{ProviderID: providerID}
	}
	return cred, nil
}

// providerSecretName maps a provider_id to the Key Vault secret name
// convention used by NewAzureKeyVault.
func providerSecretName(providerID string) string {
	return fmt.Sprintf("xrail-provider-%s", strings.ToLower(providerID))
}
