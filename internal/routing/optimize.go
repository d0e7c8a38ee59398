package routing

import (
	"context"

	"github.com/r3e-network/xrail/internal/corekit"
	"github.com/r3e-network/xrail/internal/domain/edge"
)

// Request is the optimize_route(...) logical interface of §6, expanded into
// a typed request.
type Request struct {
	FromAsset   edge.Asset
	FromNetwork edge.Network
	ToAsset     edge.Asset
	ToNetwork   edge.Network
	Amount      float64
	Opts        Options
}

// RouteResult is the non-error outcome of OptimizeRoute: up to K ranked
// candidates. An empty Candidates slice never occurs on success —
// OptimizeRoute returns a NoRouteFound error instead (§4.5).
type RouteResult struct {
	Candidates []edge.ScoredRoute
}

// OptimizeRoute implements the optimize_route(...) logical interface of §6
// on top of a Solver: input validation, the identity-route boundary case of
// §8, and NoRouteFound translation when the solver returns nothing.
func OptimizeRoute(ctx context.Context, solver Solver, edges []edge.RouteSegment, req Request) (RouteResult, error) {
	if req.Amount <= 0 {
		return RouteResult{}, corekit.NewValidationError("amount", "must be > 0")
	}

	source := edge.NewNode(req.FromAsset, req.FromNetwork)
	target := edge.NewNode(req.ToAsset, req.ToNetwork)

	if source == target {
		// §8 boundary: "source asset == target asset with no network
		// change" resolves to a trivial identity route of 0 segments
		// rather than NoRouteFound — see DESIGN.md for the rationale.
		identity := edge.ScoredRoute{
			Route:   edge.Route{Segments: nil},
			Metrics: edge.Metrics{Trajectory: []float64{req.Amount}, Reliability: 1},
			Score:   1,
		}
		return RouteResult{Candidates: []edge.ScoredRoute{identity}}, nil
	}

	opts := req.Opts
	opts.InitialNotional = req.Amount

	candidates, err := solver.Solve(ctx, edges, source, target, opts)
	if err != nil {
		return RouteResult{}, err
	}
	if len(candidates) == 0 {
		reason := noRouteReason(edges, source, opts)
		return RouteResult{}, corekit.NewNoRouteError(source.String(), target.String(), reason)
	}
	return RouteResult{Candidates: candidates}, nil
}

// noRouteReason gives a best-effort explanation for an empty result,
// surfaced verbatim on the NoRouteFound error (§4.5, §8 scenario 4).
func noRouteReason(edges []edge.RouteSegment, source edge.Node, opts Options) string {
	if opts.MaxHops <= 0 {
		return "max_hops_zero"
	}
	anyFromSource := false
	anyAboveFloor := false
	for _, e := range edges {
		if e.FromNode() != source {
			continue
		}
		anyFromSource = true
		if e.Reliability >= opts.ReliabilityFloor {
			anyAboveFloor = true
		}
	}
	if anyFromSource && !anyAboveFloor {
		return "below_reliability_floor"
	}
	return "no_admissible_path"
}
