package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/routing"
)

type stubSolver struct {
	route edge.ScoredRoute
	err   error
}

func (s stubSolver) Solve(context.Context, []edge.RouteSegment, edge.Node, edge.Node, routing.Options) ([]edge.ScoredRoute, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.route.Route.Segments == nil {
		return nil, nil
	}
	return []edge.ScoredRoute{s.route}, nil
}

func remainingSuffix() []edge.RouteSegment {
	return []edge.RouteSegment{
		{SegmentClass: edge.ClassFX, FromAsset: "EUR", ToAsset: "GBP", Provider: "frankfurter", Cost: edge.Cost{EffectiveRate: 0.8}, Latency: edge.Latency{MinMinutes: 10, MaxMinutes: 20}, Reliability: 0.9},
	}
}

// TestEvaluateRerouteFiresOnStrongCostImprovement exercises §4.6.1: a
// candidate whose cost percent beats the current suffix by more than the
// configured threshold replaces it.
func TestEvaluateRerouteFiresOnStrongCostImprovement(t *testing.T) {
	better := edge.ScoredRoute{
		Route:   edge.Route{Segments: []edge.RouteSegment{{Provider: "better", FromAsset: "EUR", ToAsset: "GBP", Cost: edge.Cost{EffectiveRate: 0.95}}}},
		Metrics: edge.Metrics{CostPercent: 1, ETAHours: 1, Reliability: 0.9},
	}
	solver := stubSolver{route: better}

	// An 8% fee puts the current suffix at cost% 8, so the candidate's cost%
	// of 1 is a 7-point drop, past the 5-point threshold.
	current := remainingSuffix()
	current[0].Cost.FeePercent = 8

	newSuffix, fires := evaluateReroute(context.Background(), solver, nil, current,
		edge.NewNode("EUR", ""), 1000, routing.Options{}, DefaultRerouteThresholds)

	assert.True(t, fires)
	assert.Equal(t, "better", newSuffix[0].Provider)
}

func TestEvaluateRerouteDoesNotFireOnMarginalImprovement(t *testing.T) {
	marginal := edge.ScoredRoute{
		Route:   edge.Route{Segments: []edge.RouteSegment{{Provider: "marginal"}}},
		Metrics: edge.Metrics{Reliability: 0.9},
	}
	solver := stubSolver{route: marginal}

	currentSuffix := remainingSuffix()
	currentMetrics, err := edge.ComputeMetrics(edge.Route{Segments: currentSuffix}, 1000)
	if err == nil {
		marginal.Metrics.CostPercent = currentMetrics.CostPercent
		marginal.Metrics.ETAHours = currentMetrics.ETAHours
		marginal.Metrics.Reliability = currentMetrics.Reliability
	}

	_, fires := evaluateReroute(context.Background(), solver, nil, currentSuffix,
		edge.NewNode("EUR", ""), 1000, routing.Options{}, DefaultRerouteThresholds)

	assert.False(t, fires, "an identical candidate must not trigger a reroute")
}

func TestEvaluateRerouteNeverFiresWithNoRemainingSegments(t *testing.T) {
	_, fires := evaluateReroute(context.Background(), stubSolver{}, nil, nil,
		edge.NewNode("EUR", ""), 1000, routing.Options{}, DefaultRerouteThresholds)
	assert.False(t, fires)
}

func TestEvaluateRerouteNeverFiresWhenSolverErrors(t *testing.T) {
	solver := stubSolver{err: assertErrExec{}}
	_, fires := evaluateReroute(context.Background(), solver, nil, remainingSuffix(),
		edge.NewNode("EUR", ""), 1000, routing.Options{}, DefaultRerouteThresholds)
	assert.False(t, fires)
}

type assertErrExec struct{}

func (assertErrExec) Error() string { return "solver failure" }
