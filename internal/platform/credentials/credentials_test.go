package credentials

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvGetReadsPrefixedVariables(t *testing.T) {
	t.Setenv("PROVIDER_KRAKEN_API_KEY", "key123")
	t.Setenv("PROVIDER_KRAKEN_API_SECRET", "secret456")

	e := NewEnv()
	cred, err := e.Get(context.Background(), "kraken")
	require.NoError(t, err)
	assert.Equal(t, "key123", cred.APIKey)
	assert.Equal(t, "secret456", cred.APISecret)
}

func TestEnvGetMissingKeyReturnsErrMissing(t *testing.T) {
	os.Unsetenv("PROVIDER_NOBODY_API_KEY")
	e := NewEnv()
	_, err := e.Get(context.Background(), "nobody")
	require.Error(t, err)
	var missing *ErrMissing
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nobody", missing.ProviderID)
}

func TestEnvGetMemoizesAfterFirstLookup(t *testing.T) {
	t.Setenv("PROVIDER_WISE_API_KEY", "first")
	e := NewEnv()
	first, err := e.Get(context.Background(), "wise")
	require.NoError(t, err)
	assert.Equal(t, "first", first.APIKey)

	os.Setenv("PROVIDER_WISE_API_KEY", "second")
	again, err := e.Get(context.Background(), "wise")
	require.NoError(t, err)
	assert.Equal(t, "first", again.APIKey, "credentials are memoized after the first read")
}

func TestFakeGetUnconfiguredProviderReturnsErrMissing(t *testing.T) {
	f := NewFake()
	_, err := f.Get(context.Background(), "kraken")
	require.Error(t, err)
	assert.IsType(t, &ErrMissing{}, err)
}

func TestFakePutThenGetRoundTrips(t *testing.T) {
	f := NewFake()
	f.Put("kraken", Credential{APIKey: "k", APISecret: "s"})
	cred, err := f.Get(context.Background(), "kraken")
	require.NoError(t, err)
	assert.Equal(t, Credential{APIKey: "k", APISecret: "s"}, cred)
}
