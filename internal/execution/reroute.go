package execution

import (
	"context"

	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/routing"
)

// RerouteThresholds names the §4.6.1 trigger conditions: a reroute fires
// when re-solving from the current node to the original target yields a
// path that clears any one of these margins against the remaining suffix of
// the current route.
type RerouteThresholds struct {
	CostPercentDrop float64
	ETAPercentDrop  float64
	ReliabilityRise float64
}

// DefaultRerouteThresholds matches the spec's defaults: cost% down by more
// than 5, ETA down by more than 20%, or reliability up by at least 0.1.
var DefaultRerouteThresholds = RerouteThresholds{CostPercentDrop: 5, ETAPercentDrop: 20, ReliabilityRise: 0.1}

// evaluateReroute implements §4.6.1: re-solve from the current node (the
// output of the just-completed segment, with its amount_out as notional) to
// the original target. If a strictly better path exists under any
// threshold, the replacement suffix is returned.
func evaluateReroute(ctx context.Context, solver routing.Solver, edges []edge.RouteSegment, remaining []edge.RouteSegment, currentNode edge.Node, currentAmount float64, opts routing.Options, thresholds RerouteThresholds) ([]edge.RouteSegment, bool) {
	if len(remaining) == 0 || solver == nil {
		return nil, false
	}
	target := remaining[len(remaining)-1].ToNode()

	currentSuffix := edge.Route{Segments: remaining}
	currentMetrics, err := edge.ComputeMetrics(currentSuffix, currentAmount)
	if err != nil {
		return nil, false
	}

	opts.InitialNotional = currentAmount
	candidates, err := solver.Solve(ctx, edges, currentNode, target, opts)
	if err != nil || len(candidates) == 0 {
		return nil, false
	}
	best := candidates[0]

	costImprovement := currentMetrics.CostPercent - best.Metrics.CostPercent
	etaImprovement := 0.0
	if currentMetrics.ETAHours > 0 {
		etaImprovement = 100 * (currentMetrics.ETAHours - best.Metrics.ETAHours) / currentMetrics.ETAHours
	}
	reliabilityImprovement := best.Metrics.Reliability - currentMetrics.Reliability

	fires := costImprovement > thresholds.CostPercentDrop ||
		etaImprovement > thresholds.ETAPercentDrop ||
		reliabilityImprovement >= thresholds.ReliabilityRise

	if !fires {
		return nil, false
	}
	return best.Route.Segments, true
}
