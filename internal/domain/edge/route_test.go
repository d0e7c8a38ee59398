package edge

import (
	"math"
	"testing"
)

func fxSegment(feePercent, fixedFee, rate, reliability float64) RouteSegment {
	return RouteSegment{
		SegmentClass: ClassFX,
		FromAsset:    "USD",
		ToAsset:      "EUR",
		Provider:     "frankfurter",
		Cost:         Cost{FeePercent: feePercent, FixedFee: fixedFee, EffectiveRate: rate},
		Latency:      Latency{MinMinutes: 1, MaxMinutes: 3},
		Reliability:  reliability,
	}
}

func TestComputeMetricsSingleHop(t *testing.T) {
	seg := fxSegment(0, 0, 0.85, 0.95)
	route := Route{Segments: []RouteSegment{seg}}

	metrics, err := ComputeMetrics(route, 1000)
	if err != nil {
		t.Fatalf("compute metrics: %v", err)
	}
	if got, want := metrics.FinalAmount(), 850.00; math.Abs(got-want) > 1e-9 {
		t.Fatalf("final amount = %v, want %v", got, want)
	}
	if got, want := metrics.Reliability, 0.95; math.Abs(got-want) > 1e-9 {
		t.Fatalf("reliability = %v, want %v", got, want)
	}
	if got, want := metrics.ETAHours, 2.0/60; math.Abs(got-want) > 1e-9 {
		t.Fatalf("eta hours = %v, want %v", got, want)
	}
}

func TestComputeMetricsTwoHopsWithFees(t *testing.T) {
	first := RouteSegment{
		SegmentClass: ClassFX,
		FromAsset:    "USD",
		ToAsset:      "USDC",
		Provider:     "kraken",
		Cost:         Cost{FeePercent: 0.1, FixedFee: 0, EffectiveRate: 1.0},
		Latency:      Latency{MinMinutes: 5, MaxMinutes: 10},
		Reliability:  0.9,
	}
	second := RouteSegment{
		SegmentClass: ClassBridge,
		FromAsset:    "USDC",
		ToAsset:      "EUR",
		Provider:     "wormhole",
		Cost:         Cost{FeePercent: 0.2, FixedFee: 0, EffectiveRate: 0.85},
		Latency:      Latency{MinMinutes: 10, MaxMinutes: 20},
		Reliability:  0.88,
	}
	route := Route{Segments: []RouteSegment{first, second}}
	if err := route.Validate(); err != nil {
		t.Fatalf("unexpected discontinuity: %v", err)
	}

	metrics, err := ComputeMetrics(route, 1000)
	if err != nil {
		t.Fatalf("compute metrics: %v", err)
	}

	want := 1000.0 * 0.999 * 1.0 * 0.998 * 0.85
	if got := metrics.FinalAmount(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("final amount = %v, want %v", got, want)
	}
	if got, want := metrics.Reliability, 0.9*0.88; math.Abs(got-want) > 1e-9 {
		t.Fatalf("reliability = %v, want %v", got, want)
	}
}

func TestComputeMetricsInfeasibleSegmentDiscarded(t *testing.T) {
	seg := fxSegment(0, 500, 0.85, 0.95)
	route := Route{Segments: []RouteSegment{seg}}

	_, err := ComputeMetrics(route, 100)
	if err == nil {
		t.Fatal("expected infeasible segment error")
	}
	infeasible, ok := err.(*ErrInfeasibleSegment)
	if !ok {
		t.Fatalf("expected *ErrInfeasibleSegment, got %T (%v)", err, err)
	}
	if infeasible.Index != 0 {
		t.Fatalf("expected index 0, got %d", infeasible.Index)
	}
}

func TestLessOrdersByScoreThenTieBreaks(t *testing.T) {
	higher := ScoredRoute{Score: 0.9}
	lower := ScoredRoute{Score: 0.5}
	if !Less(higher, lower) {
		t.Fatal("expected higher score to sort first")
	}
	if Less(lower, higher) {
		t.Fatal("lower score should not sort before higher score")
	}
}

func TestLessTieBreaksByHopCountThenReliabilityThenProvider(t *testing.T) {
	shortRoute := ScoredRoute{
		Score:   0.7,
		Route:   Route{Segments: []RouteSegment{{Provider: "a"}}},
		Metrics: Metrics{Reliability: 0.5},
	}
	longRoute := ScoredRoute{
		Score:   0.7,
		Route:   Route{Segments: []RouteSegment{{Provider: "a"}, {Provider: "b"}}},
		Metrics: Metrics{Reliability: 0.99},
	}
	if !Less(shortRoute, longRoute) {
		t.Fatal("expected fewer-hop route to win a score tie regardless of reliability")
	}

	sameHopsHigherReliability := ScoredRoute{
		Score:   0.7,
		Route:   Route{Segments: []RouteSegment{{Provider: "z"}}},
		Metrics: Metrics{Reliability: 0.9},
	}
	sameHopsLowerReliability := ScoredRoute{
		Score:   0.7,
		Route:   Route{Segments: []RouteSegment{{Provider: "a"}}},
		Metrics: Metrics{Reliability: 0.1},
	}
	if !Less(sameHopsHigherReliability, sameHopsLowerReliability) {
		t.Fatal("expected higher reliability to win a hop-count tie")
	}

	sameEverythingProviderA := ScoredRoute{
		Score:   0.7,
		Route:   Route{Segments: []RouteSegment{{Provider: "a"}}},
		Metrics: Metrics{Reliability: 0.9},
	}
	sameEverythingProviderB := ScoredRoute{
		Score:   0.7,
		Route:   Route{Segments: []RouteSegment{{Provider: "b"}}},
		Metrics: Metrics{Reliability: 0.9},
	}
	if !Less(sameEverythingProviderA, sameEverythingProviderB) {
		t.Fatal("expected lexicographically earlier provider sequence to win a full tie")
	}
}

func TestRouteValidateDetectsDiscontinuity(t *testing.T) {
	a := RouteSegment{FromAsset: "USD", ToAsset: "EUR"}
	b := RouteSegment{FromAsset: "GBP", ToAsset: "CHF"}
	route := Route{Segments: []RouteSegment{a, b}}
	if err := route.Validate(); err == nil {
		t.Fatal("expected discontinuity error")
	}
}
