package ingest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/xrail/internal/platform/clock"
	"github.com/r3e-network/xrail/internal/platform/credentials"
	"github.com/r3e-network/xrail/internal/platform/transport"
)

func testDeps(tr transport.Transport, creds credentials.Store) Deps {
	return Deps{Transport: tr, Credentials: creds, Clock: clock.NewMock()}
}

func TestQuoteAdapterFetchNormalizesNetRate(t *testing.T) {
	fake := transport.NewFake()
	fake.QueueResponse(transport.Response{StatusCode: http.StatusOK, Body: []byte(`{"rate": 0.85, "fee_percent": 0.1}`)})
	creds := credentials.NewFake()
	creds.Put("frankfurter", credentials.Credential{APIKey: "key"})

	a := NewFrankfurterAdapter([]Target{{FromAsset: "USD", ToAsset: "EUR"}})
	result := a.Fetch(context.Background(), testDeps(fake, creds))

	require.NoError(t, result.Err)
	require.Len(t, result.Edges, 1)
	e := result.Edges[0]
	assert.Equal(t, 0.85, e.Cost.EffectiveRate)
	assert.Equal(t, 0.1, e.Cost.FeePercent)
	assert.Equal(t, "frankfurter", e.Provider)
	assert.Equal(t, 0.95, e.Reliability, "fx default reliability applies when the provider supplies none")
}

func TestQuoteAdapterFetchAppliesGrossRateBreakout(t *testing.T) {
	fake := transport.NewFake()
	fake.QueueResponse(transport.Response{StatusCode: http.StatusOK, Body: []byte(`{"gross_rate": 1.0, "fee_percent": 0.2}`)})
	creds := credentials.NewFake()
	creds.Put("openexchangerates", credentials.Credential{APIKey: "key"})

	a := NewOpenExchangeRatesAdapter([]Target{{FromAsset: "USD", ToAsset: "EUR"}})
	result := a.Fetch(context.Background(), testDeps(fake, creds))

	require.NoError(t, result.Err)
	require.Len(t, result.Edges, 1)
	assert.InDelta(t, 0.998, result.Edges[0].Cost.EffectiveRate, 1e-9)
}

func TestQuoteAdapterFetchClassifiesRateLimitAndContinues(t *testing.T) {
	fake := transport.NewFake()
	fake.QueueResponse(transport.Response{StatusCode: http.StatusTooManyRequests})
	fake.QueueResponse(transport.Response{StatusCode: http.StatusOK, Body: []byte(`{"rate": 0.9}`)})
	creds := credentials.NewFake()
	creds.Put("frankfurter", credentials.Credential{APIKey: "key"})

	a := NewFrankfurterAdapter([]Target{
		{FromAsset: "USD", ToAsset: "GBP"},
		{FromAsset: "USD", ToAsset: "INR"},
	})
	result := a.Fetch(context.Background(), testDeps(fake, creds))

	// One target failed (rate limited), one succeeded; the tick never raises.
	require.Error(t, result.Err)
	var adapterErr *AdapterError
	require.ErrorAs(t, result.Err, &adapterErr)
	assert.Equal(t, FailureRateLimited, adapterErr.Kind)
	require.Len(t, result.Edges, 1)
}

func TestQuoteAdapterFetchMissingCredentialsNeverPanics(t *testing.T) {
	fake := transport.NewFake()
	creds := credentials.NewFake() // no credential installed

	a := NewFrankfurterAdapter([]Target{{FromAsset: "USD", ToAsset: "EUR"}})
	result := a.Fetch(context.Background(), testDeps(fake, creds))

	require.Error(t, result.Err)
	assert.Empty(t, result.Edges)
}

func TestQuoteAdapterFetchMissingRateFieldIsParseFailure(t *testing.T) {
	fake := transport.NewFake()
	fake.QueueResponse(transport.Response{StatusCode: http.StatusOK, Body: []byte(`{"nonsense": true}`)})
	creds := credentials.NewFake()
	creds.Put("frankfurter", credentials.Credential{APIKey: "key"})

	a := NewFrankfurterAdapter([]Target{{FromAsset: "USD", ToAsset: "EUR"}})
	result := a.Fetch(context.Background(), testDeps(fake, creds))

	require.Error(t, result.Err)
	var adapterErr *AdapterError
	require.ErrorAs(t, result.Err, &adapterErr)
	assert.Equal(t, FailureParse, adapterErr.Kind)
	assert.Empty(t, result.Edges)
}
