package routing

import (
	"testing"

	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/regulatory"
)

func node(asset string) edge.Node { return edge.NewNode(edge.Asset(asset), "") }

func TestEnumeratePathsRespectsMaxHops(t *testing.T) {
	edges := []edge.RouteSegment{
		{FromAsset: "USD", ToAsset: "USDC", Provider: "kraken", SegmentClass: edge.ClassCrypto},
		{FromAsset: "USDC", ToAsset: "EUR", Provider: "wormhole", SegmentClass: edge.ClassBridge},
	}
	g := Build(edges)

	if paths := EnumeratePaths(g, node("USD"), node("EUR"), 1, Constraints{}); len(paths) != 0 {
		t.Fatalf("expected no path within 1 hop, got %d", len(paths))
	}
	if paths := EnumeratePaths(g, node("USD"), node("EUR"), 2, Constraints{}); len(paths) != 1 {
		t.Fatalf("expected exactly one 2-hop path, got %d", len(paths))
	}
}

func TestEnumeratePathsZeroMaxHopsYieldsNothing(t *testing.T) {
	g := Build([]edge.RouteSegment{{FromAsset: "USD", ToAsset: "EUR", Provider: "frankfurter"}})
	if paths := EnumeratePaths(g, node("USD"), node("EUR"), 0, Constraints{}); paths != nil {
		t.Fatalf("expected nil paths for max_hops=0, got %v", paths)
	}
}

func TestEnumeratePathsAppliesRegulatoryFilter(t *testing.T) {
	allowed := edge.RouteSegment{
		FromAsset: "USD", ToAsset: "EUR", Provider: "frankfurter",
		Constraints: edge.Constraints{
			edge.ConstraintFromJurisdiction: "us",
			edge.ConstraintToJurisdiction:   "eu",
		},
	}
	blocked := edge.RouteSegment{
		FromAsset: "USD", ToAsset: "EUR", Provider: "sanctioned-rail",
		Constraints: edge.Constraints{
			edge.ConstraintFromJurisdiction: "us",
			edge.ConstraintToJurisdiction:   "kp",
		},
	}
	g := Build([]edge.RouteSegment{allowed, blocked})
	reg := regulatory.NewTable(regulatory.Document{
		Prohibited: []regulatory.Rule{{FromJurisdiction: "us", ToJurisdiction: "kp"}},
	})

	paths := EnumeratePaths(g, node("USD"), node("EUR"), 1, Constraints{Regulatory: reg})
	if len(paths) != 1 {
		t.Fatalf("expected exactly 1 admissible path, got %d", len(paths))
	}
	if paths[0][0].Provider != "frankfurter" {
		t.Fatalf("expected the unblocked provider to survive, got %q", paths[0][0].Provider)
	}
}

func TestEnumeratePathsAppliesSegmentClassCap(t *testing.T) {
	bridgeOne := edge.RouteSegment{FromAsset: "USD", ToAsset: "USDC", Provider: "wormhole-1", SegmentClass: edge.ClassBridge}
	bridgeTwo := edge.RouteSegment{FromAsset: "USDC", ToAsset: "EUR", Provider: "wormhole-2", SegmentClass: edge.ClassBridge}
	g := Build([]edge.RouteSegment{bridgeOne, bridgeTwo})

	paths := EnumeratePaths(g, node("USD"), node("EUR"), 2, Constraints{
		MaxPerClass: map[edge.SegmentClass]int{edge.ClassBridge: 1},
	})
	if len(paths) != 0 {
		t.Fatalf("expected the two-bridge path to be capped out, got %d", len(paths))
	}
}

func TestFilterByReliabilityExcludesBelowFloor(t *testing.T) {
	edges := []edge.RouteSegment{
		{Provider: "low", Reliability: 0.1},
		{Provider: "high", Reliability: 0.9},
	}
	filtered := FilterByReliability(edges, 0.5)
	if len(filtered) != 1 || filtered[0].Provider != "high" {
		t.Fatalf("expected only the high-reliability edge to survive, got %#v", filtered)
	}
}
