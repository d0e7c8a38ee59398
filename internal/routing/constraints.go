package routing

import (
	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/regulatory"
)

// Constraints bundles the configurable admissibility rules of §4.3.1 beyond
// the reliability floor (which is applied earlier, via FilterByReliability,
// per rule 3's "excluded before enumeration, not after").
type Constraints struct {
	Regulatory  *regulatory.Table
	MaxPerClass map[edge.SegmentClass]int
}

// edgeAllowed applies §4.3.1 rule 2: the regulatory corridor/segment-class
// filter. An edge with no jurisdiction tags in its Constraints bag is
// unrestricted (the regulatory table's denylist has nothing to match).
func edgeAllowed(e edge.RouteSegment, reg *regulatory.Table) bool {
	if reg == nil {
		return true
	}
	from, _ := e.Constraints.Get(edge.ConstraintFromJurisdiction)
	to, _ := e.Constraints.Get(edge.ConstraintToJurisdiction)
	if from == "" && to == "" {
		return true
	}
	return reg.Allowed(from, to, string(e.SegmentClass))
}

// pathAdmissible applies §4.3.1 rule 4: segment-class caps over a complete
// candidate path (e.g. "at most one bridge per route"). Rules 1-3 are
// applied per-edge during enumeration (continuity by construction,
// regulatory filter via edgeAllowed, reliability floor via
// FilterByReliability before the graph is even built).
func pathAdmissible(path []edge.RouteSegment, c Constraints) bool {
	if len(c.MaxPerClass) == 0 {
		return true
	}
	counts := make(map[edge.SegmentClass]int)
	for _, e := range path {
		counts[e.SegmentClass]++
	}
	for class, max := range c.MaxPerClass {
		if max <= 0 {
			continue
		}
		if counts[class] > max {
			return false
		}
	}
	return true
}
