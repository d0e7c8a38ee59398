package routing

import "github.com/r3e-network/xrail/internal/domain/edge"

// EnumeratePaths performs the DFS-with-pruning enumeration of §4.3: every
// simple path (no repeated node) from source to target of length <= maxHops
// that passes the per-edge regulatory filter (rule 2) and the per-path
// segment-class caps (rule 4) is returned. Rule 1 (continuity) is enforced
// by construction — DFS only ever follows an edge whose FromNode matches
// the current node. Rule 3 (the reliability floor) must already have been
// applied to the edge set the Graph was built from.
func EnumeratePaths(g *Graph, source, target edge.Node, maxHops int, c Constraints) [][]edge.RouteSegment {
	if maxHops <= 0 {
		return nil
	}

	var results [][]edge.RouteSegment
	visited := map[edge.Node]bool{source: true}
	path := make([]edge.RouteSegment, 0, maxHops)

	var dfs func(node edge.Node)
	dfs = func(node edge.Node) {
		if node == target && len(path) > 0 {
			cp := make([]edge.RouteSegment, len(path))
			copy(cp, path)
			results = append(results, cp)
			// A simple path cannot revisit target, so there is nothing
			// useful to explore past this point.
			return
		}
		if len(path) >= maxHops {
			return
		}
		for _, e := range g.Outgoing(node) {
			if !edgeAllowed(e, c.Regulatory) {
				continue
			}
			next := e.ToNode()
			if visited[next] {
				continue
			}
			visited[next] = true
			path = append(path, e)
			dfs(next)
			path = path[:len(path)-1]
			visited[next] = false
		}
	}
	dfs(source)

	out := make([][]edge.RouteSegment, 0, len(results))
	for _, p := range results {
		if pathAdmissible(p, c) {
			out = append(out, p)
		}
	}
	return out
}
