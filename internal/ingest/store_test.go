package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/xrail/internal/domain/edge"
)

func seg(provider string, observedAt time.Time, rate float64) edge.RouteSegment {
	return edge.RouteSegment{
		SegmentClass: edge.ClassFX,
		FromAsset:    "USD",
		ToAsset:      "EUR",
		Provider:     provider,
		Cost:         edge.Cost{EffectiveRate: rate},
		Latency:      edge.Latency{MinMinutes: 5, MaxMinutes: 10},
		Reliability:  0.9,
		ObservedAt:   observedAt,
	}
}

// TestEdgeStoreUpsertRejectsStaleObservation exercises §8 invariant 2: an
// edge observed out of wall-clock order must never overwrite a newer one.
func TestEdgeStoreUpsertRejectsStaleObservation(t *testing.T) {
	store := NewEdgeStore()
	now := time.Now()

	newer := seg("frankfurter", now, 0.85)
	older := seg("frankfurter", now.Add(-time.Minute), 0.80)

	require.True(t, store.Upsert(newer))
	require.False(t, store.Upsert(older), "a strictly older observation must not win")

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 0.85, snap[0].Cost.EffectiveRate)
}

func TestEdgeStoreUpsertAcceptsStrictlyNewer(t *testing.T) {
	store := NewEdgeStore()
	now := time.Now()

	require.True(t, store.Upsert(seg("frankfurter", now, 0.85)))
	require.True(t, store.Upsert(seg("frankfurter", now.Add(time.Minute), 0.86)))

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 0.86, snap[0].Cost.EffectiveRate)
}

func TestEdgeStoreDistinctProvidersKeepSeparateEdges(t *testing.T) {
	store := NewEdgeStore()
	now := time.Now()
	store.Upsert(seg("frankfurter", now, 0.85))
	store.Upsert(seg("openexchangerates", now, 0.84))

	snap := store.Snapshot()
	assert.Len(t, snap, 2)
}

func TestEdgeStoreGetEdgesFiltersByProviderAndAsset(t *testing.T) {
	store := NewEdgeStore()
	now := time.Now()
	store.Upsert(seg("frankfurter", now, 0.85))
	store.Upsert(seg("openexchangerates", now, 0.84))

	byProvider := store.GetEdges(Filter{Provider: "frankfurter"})
	require.Len(t, byProvider, 1)
	assert.Equal(t, "frankfurter", byProvider[0].Provider)

	byAsset := store.GetEdges(Filter{FromAsset: "USD", ToAsset: "EUR"})
	assert.Len(t, byAsset, 2)

	none := store.GetEdges(Filter{Provider: "kraken"})
	assert.Empty(t, none)
}
