package routing

import (
	"context"

	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/regulatory"
)

// Options bundles the per-solve parameters of §4.4's contract: "given
// (edges, source, target, K, objective_weights), return up to K admissible
// paths", plus the constraint inputs of §4.3.1 and the starting notional
// needed to evaluate per-segment fixed-fee feasibility (§4.3).
type Options struct {
	MaxHops            int
	ReliabilityFloor   float64
	Regulatory         *regulatory.Table
	MaxPerSegmentClass map[edge.SegmentClass]int
	InitialNotional    float64
	K                  int
	Weights            Weights
}

// Solver is the interchangeable contract of §4.4: "given (edges, source,
// target, K, objective_weights), return up to K admissible paths." Two
// implementations are specified; this module ships Implementation A
// (EnumeratorSolver) as the always-available baseline, with the Solver
// interface left open for an optimized Implementation B to be substituted
// later without changing any caller.
type Solver interface {
	Solve(ctx context.Context, edges []edge.RouteSegment, source, target edge.Node, opts Options) ([]edge.ScoredRoute, error)
}

// EnumeratorSolver is Implementation A of §4.4: full admissible-path
// enumeration under §4.3/§4.3.1, ranked by the ArgMax selector of §4.5.
type EnumeratorSolver struct{}

// Solve implements Solver.
func (EnumeratorSolver) Solve(_ context.Context, edges []edge.RouteSegment, source, target edge.Node, opts Options) ([]edge.ScoredRoute, error) {
	// maxHops <= 0 yields no admissible paths (§8: "max_hops = 0 with
	// source != target -> NoRouteFound"). Defaulting an unset MaxHops to
	// the spec's 5 is config's job (pkg/config.New), not the solver's —
	// the solver must honor an explicit 0 literally.
	maxHops := opts.MaxHops
	floor := opts.ReliabilityFloor

	filtered := FilterByReliability(edges, floor)
	g := Build(filtered)

	paths := EnumeratePaths(g, source, target, maxHops, Constraints{
		Regulatory:  opts.Regulatory,
		MaxPerClass: opts.MaxPerSegmentClass,
	})

	candidates := make([]Candidate, 0, len(paths))
	for _, segments := range paths {
		route := edge.Route{Segments: segments}
		metrics, err := edge.ComputeMetrics(route, opts.InitialNotional)
		if err != nil {
			// Infeasible paths (fixed fee exceeds incoming notional on some
			// segment) are discarded, not surfaced as an error (§4.3).
			continue
		}
		candidates = append(candidates, Candidate{Route: route, Metrics: metrics})
	}

	weights := opts.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights
	}

	ranked := Select(candidates, weights)
	return TopK(ranked, opts.K), nil
}

// PreferWithFallback implements §4.4's Implementation B composition
// contract: "prefer the optimized solver and fall back to A on solver
// failure." When primary is nil this degenerates to "always A", which is
// this module's shipped configuration (no Implementation B is registered).
func PreferWithFallback(primary Solver, fallback Solver) Solver {
	if primary == nil {
		return fallback
	}
	return &preferSolver{primary: primary, fallback: fallback}
}

type preferSolver struct {
	primary  Solver
	fallback Solver
}

func (p *preferSolver) Solve(ctx context.Context, edges []edge.RouteSegment, source, target edge.Node, opts Options) ([]edge.ScoredRoute, error) {
	result, err := p.primary.Solve(ctx, edges, source, target, opts)
	if err == nil {
		return result, nil
	}
	return p.fallback.Solve(ctx, edges, source, target, opts)
}
