// Package routing implements the graph builder, path enumerator, solver,
// and ArgMax selector of spec.md §4.3-§4.5: given a snapshot of edges, it
// finds and ranks candidate routes between two nodes under corridor,
// reliability, and segment-class-cap constraints.
package routing

import "github.com/r3e-network/xrail/internal/domain/edge"

// Graph is a directed multigraph keyed by (asset, network): V is the set of
// distinct endpoints across the edge set, and every edge becomes an arc
// annotated with its originating RouteSegment. Parallel arcs between the
// same node pair are preserved — multiple providers for the same
// conversion are distinct routing options (§4.3).
type Graph struct {
	adjacency map[edge.Node][]edge.RouteSegment
}

// Build constructs a Graph from a flat edge set. Edges below the
// reliability floor are expected to already be excluded by the caller
// (§4.3.1: "excluded before enumeration, not after") — Build itself applies
// no filtering beyond grouping by source node.
func Build(edges []edge.RouteSegment) *Graph {
	g := &Graph{adjacency: make(map[edge.Node][]edge.RouteSegment)}
	for _, e := range edges {
		from := e.FromNode()
		g.adjacency[from] = append(g.adjacency[from], e)
		// Ensure the target node exists in the graph even if it has no
		// outgoing edges (it may still be a valid terminal node).
		if _, ok := g.adjacency[e.ToNode()]; !ok {
			g.adjacency[e.ToNode()] = nil
		}
	}
	return g
}

// Outgoing returns every arc leaving node, in insertion order.
func (g *Graph) Outgoing(node edge.Node) []edge.RouteSegment {
	return g.adjacency[node]
}

// HasNode reports whether node appears anywhere in the graph (as a source
// or a target of some edge).
func (g *Graph) HasNode(node edge.Node) bool {
	_, ok := g.adjacency[node]
	return ok
}

// FilterByReliability drops every edge whose reliability is below floor,
// implementing §4.3.1 rule 3 ("edges below a configurable floor ... are
// excluded before enumeration, not after").
func FilterByReliability(edges []edge.RouteSegment, floor float64) []edge.RouteSegment {
	if floor <= 0 {
		return edges
	}
	out := make([]edge.RouteSegment, 0, len(edges))
	for _, e := range edges {
		if e.Reliability >= floor {
			out = append(out, e)
		}
	}
	return out
}
