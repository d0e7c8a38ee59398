package routing

import (
	"sort"

	"github.com/r3e-network/xrail/internal/domain/edge"
)

// Weights is the (alpha, beta, gamma) objective triple of §4.4: alpha
// weights cost, beta weights ETA, gamma weights reliability. Callers are
// expected to supply values that sum to 1 with each >= 0; Select does not
// itself validate this (config loading is responsible for the default
// 0.5/0.3/0.2 triple and for rejecting malformed overrides).
type Weights struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// DefaultWeights is the §4.4 default objective triple.
var DefaultWeights = Weights{Alpha: 0.5, Beta: 0.3, Gamma: 0.2}

// Candidate pairs a Route with its computed aggregate metrics, the unit the
// selector normalizes and scores.
type Candidate struct {
	Route   edge.Route
	Metrics edge.Metrics
}

// Select implements the ArgMax selector of §4.5: per-metric min-max
// normalization (lower-is-better metrics are inverted so 1.0 is always
// best), a weighted sum score, and the tie-break ordering of §4.3. Returns
// candidates sorted best-first.
func Select(candidates []Candidate, w Weights) []edge.ScoredRoute {
	if len(candidates) == 0 {
		return nil
	}

	costMin, costMax := minMax(candidates, func(c Candidate) float64 { return c.Metrics.CostPercent })
	etaMin, etaMax := minMax(candidates, func(c Candidate) float64 { return c.Metrics.ETAHours })
	relMin, relMax := minMax(candidates, func(c Candidate) float64 { return c.Metrics.Reliability })

	out := make([]edge.ScoredRoute, 0, len(candidates))
	for _, c := range candidates {
		costScore := invertedNormalize(c.Metrics.CostPercent, costMin, costMax)
		etaScore := invertedNormalize(c.Metrics.ETAHours, etaMin, etaMax)
		relScore := normalize(c.Metrics.Reliability, relMin, relMax)

		score := w.Alpha*costScore + w.Beta*etaScore + w.Gamma*relScore
		out = append(out, edge.ScoredRoute{Route: c.Route, Metrics: c.Metrics, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return edge.Less(out[i], out[j]) })
	return out
}

// TopK truncates a sorted candidate list to at most k entries (k <= 0 means
// no truncation — used when a caller wants the whole ranked set).
func TopK(sorted []edge.ScoredRoute, k int) []edge.ScoredRoute {
	if k <= 0 || k >= len(sorted) {
		return sorted
	}
	return sorted[:k]
}

// invertedNormalize scales a lower-is-better metric to [0,1] where 1 is
// best (§4.5: "m'i = (max - mi)/(max - min)").
func invertedNormalize(v, min, max float64) float64 {
	if max == min {
		return 1.0
	}
	return (max - v) / (max - min)
}

// normalize scales a higher-is-better metric to [0,1] where 1 is best
// (§4.5: "r'i = (ri - min)/(max - min)").
func normalize(v, min, max float64) float64 {
	if max == min {
		return 1.0
	}
	return (v - min) / (max - min)
}

func minMax(candidates []Candidate, metric func(Candidate) float64) (float64, float64) {
	min := metric(candidates[0])
	max := min
	for _, c := range candidates[1:] {
		v := metric(c)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
