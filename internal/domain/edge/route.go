package edge

import (
	"fmt"
	"math"
)

// Route is an ordered sequence of edges e1...en such that to(ei) ==
// from(ei+1): every consecutive pair agrees on asset and network.
type Route struct {
	Segments []RouteSegment
}

// Validate confirms the continuity invariant that makes a slice of edges a
// Route rather than an arbitrary bag of edges.
func (r Route) Validate() error {
	for i := 1; i < len(r.Segments); i++ {
		if r.Segments[i-1].ToNode() != r.Segments[i].FromNode() {
			return fmt.Errorf("route discontinuity at segment %d: %s != %s",
				i, r.Segments[i-1].ToNode(), r.Segments[i].FromNode())
		}
	}
	return nil
}

// Source returns the route's originating node. Callers must not invoke this
// on an empty route (an identity route has no segments and is handled
// separately by the optimizer per spec §9 open-question resolution).
func (r Route) Source() Node { return r.Segments[0].FromNode() }

// Target returns the route's terminal node.
func (r Route) Target() Node { return r.Segments[len(r.Segments)-1].ToNode() }

// Metrics holds the aggregate, path-level figures computed over a Route
// applied to a starting notional (§4.3).
type Metrics struct {
	// Trajectory holds A0..An, the notional at each point along the route;
	// Trajectory[0] is the input amount, Trajectory[len] is the output.
	Trajectory []float64
	// CostPercent is the fraction of potential output lost to fees, as a
	// percent: 100 * (1 - An/(A0 * prod(effective_rate))).
	CostPercent float64
	// ETAHours is the sum of per-segment mean latencies, in hours.
	ETAHours float64
	// Reliability is the product of per-segment reliability scores.
	Reliability float64
}

// FinalAmount is the last entry of the notional trajectory, An.
func (m Metrics) FinalAmount() float64 {
	if len(m.Trajectory) == 0 {
		return 0
	}
	return m.Trajectory[len(m.Trajectory)-1]
}

// ErrInfeasibleSegment is returned by ComputeMetrics when a segment's fixed
// fee would consume the entire incoming notional.
type ErrInfeasibleSegment struct {
	Index    int
	Notional float64
	FixedFee float64
}

func (e *ErrInfeasibleSegment) Error() string {
	return fmt.Sprintf("segment %d infeasible: notional %v <= fixed_fee %v", e.Index, e.Notional, e.FixedFee)
}

// ComputeMetrics computes the aggregate metrics of a route applied to an
// initial notional a0, per spec §4.3. A segment whose incoming notional does
// not exceed its fixed fee renders the whole path infeasible.
func ComputeMetrics(r Route, a0 float64) (Metrics, error) {
	n := len(r.Segments)
	trajectory := make([]float64, n+1)
	trajectory[0] = a0

	grossRateProduct := 1.0
	etaHours := 0.0
	reliability := 1.0

	for i, seg := range r.Segments {
		prev := trajectory[i]
		if prev <= seg.Cost.FixedFee {
			return Metrics{}, &ErrInfeasibleSegment{Index: i, Notional: prev, FixedFee: seg.Cost.FixedFee}
		}
		afterFixed := prev - seg.Cost.FixedFee
		afterPercent := afterFixed * (1 - seg.Cost.FeePercent/100)
		trajectory[i+1] = afterPercent * seg.Cost.EffectiveRate

		grossRateProduct *= seg.Cost.EffectiveRate
		etaHours += seg.Latency.MeanMinutes() / 60
		reliability *= seg.Reliability
	}

	an := trajectory[n]
	potential := a0 * grossRateProduct
	costPercent := 0.0
	if potential != 0 {
		costPercent = 100 * (1 - an/potential)
	}

	return Metrics{
		Trajectory:  trajectory,
		CostPercent: costPercent,
		ETAHours:    etaHours,
		Reliability: reliability,
	}, nil
}

// ScoredRoute pairs a route with its computed metrics and, once scored by
// the selector, its ArgMax score.
type ScoredRoute struct {
	Route   Route
	Metrics Metrics
	Score   float64
}

// tieEpsilon is the scalar score difference below which two candidates are
// considered tied (§4.3 numeric semantics).
const tieEpsilon = 1e-9

// Less implements the tie-break ordering of §4.3: higher score first; on a
// tie (score difference < 1e-9), fewer segments first, then higher
// reliability, then lexicographic provider sequence.
func Less(a, b ScoredRoute) bool {
	if math.Abs(a.Score-b.Score) >= tieEpsilon {
		return a.Score > b.Score
	}
	if len(a.Route.Segments) != len(b.Route.Segments) {
		return len(a.Route.Segments) < len(b.Route.Segments)
	}
	if math.Abs(a.Metrics.Reliability-b.Metrics.Reliability) >= tieEpsilon {
		return a.Metrics.Reliability > b.Metrics.Reliability
	}
	return providerSequence(a.Route) < providerSequence(b.Route)
}

func providerSequence(r Route) string {
	s := ""
	for i, seg := range r.Segments {
		if i > 0 {
			s += ">"
		}
		s += seg.Provider
	}
	return s
}
