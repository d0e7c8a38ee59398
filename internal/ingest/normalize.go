package ingest

import (
	"strings"

	"github.com/r3e-network/xrail/internal/domain/edge"
)

// assetAliases collapses provider-specific asset spellings to the canonical
// symbol before an edge is emitted (§4.1: "a curated map collapses
// provider-specific aliases (e.g., XBT->BTC) before emission").
var assetAliases = map[string]string{
	"XBT":  "BTC",
	"XETH": "ETH",
	"USDT": "USDT",
	"UST":  "USDC",
}

// NormalizeAsset uppercases and alias-collapses a raw provider asset symbol.
func NormalizeAsset(raw string) edge.Asset {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if alias, ok := assetAliases[upper]; ok {
		return edge.Asset(alias)
	}
	return edge.Asset(upper)
}

// NormalizeNetwork lowercases a raw provider network qualifier.
func NormalizeNetwork(raw string) edge.Network {
	return edge.Network(raw).Normalize()
}

// Normalize is applied to every edge an adapter builds before emission. It
// is the single point where alias collapse and the §8 idempotence law
// ("feeding an already-normalized edge through normalization yields the same
// edge") are enforced: running Normalize twice on its own output is a no-op
// because Asset/Network normalization and the reliability default lookup
// are themselves idempotent.
func Normalize(e edge.RouteSegment) edge.RouteSegment {
	e.FromAsset = NormalizeAsset(string(e.FromAsset))
	e.ToAsset = NormalizeAsset(string(e.ToAsset))
	e.FromNetwork = NormalizeNetwork(string(e.FromNetwork))
	e.ToNetwork = NormalizeNetwork(string(e.ToNetwork))
	if e.Reliability <= 0 {
		e.Reliability = e.SegmentClass.DefaultReliability()
	}
	return e
}
