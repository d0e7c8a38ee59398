package ingest

import (
	"sort"
	"sync"

	"github.com/r3e-network/xrail/internal/domain/edge"
)

// EdgeStore holds the "current" edge per (provider, from, to) key — the
// in-memory view the scheduler upserts into and the routing solver reads a
// consistent snapshot of (§5: "A route solve reads a consistent snapshot by
// reading the set of current edges once at the start; re-reads mid-solve
// are forbidden"). It mirrors (but does not replace) the namespaced hot
// cache, which exists for the separate TTL/staleness-tolerant read path of
// §4.2; EdgeStore is this process's authoritative, always-fresh view.
type EdgeStore struct {
	mu    sync.RWMutex
	edges map[edge.Key]edge.RouteSegment
}

// NewEdgeStore builds an empty EdgeStore.
func NewEdgeStore() *EdgeStore {
	return &EdgeStore{edges: make(map[edge.Key]edge.RouteSegment)}
}

// Upsert applies e if no current edge exists for its key, or the current
// edge's ObservedAt is strictly older than e's (§3: "for any (provider,
// from, to) the store holds at most one current edge; newer edges
// supersede older", and §4.2's ordering guarantee against stale adapter
// retries). Returns true if e was applied, false if the current edge is
// as new as e or newer.
func (s *EdgeStore) Upsert(e edge.RouteSegment) bool {
	key := e.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.edges[key]
	if ok && !e.ObservedAt.After(existing.ObservedAt) {
		return false
	}
	s.edges[key] = e
	return true
}

// Snapshot returns a stable, independently-owned copy of every current
// edge, in no particular order beyond being deterministic for a given
// store state (sorted by key for reproducibility in tests and logs).
func (s *EdgeStore) Snapshot() []edge.RouteSegment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]edge.RouteSegment, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.Provider != kj.Provider {
			return ki.Provider < kj.Provider
		}
		if ki.From.String() != kj.From.String() {
			return ki.From.String() < kj.From.String()
		}
		return ki.To.String() < kj.To.String()
	})
	return out
}

// Filter narrows a snapshot by optional provider/asset predicates; a zero
// value for a field means "don't filter on this field" (get_edges(filter)
// of §6).
type Filter struct {
	Provider  string
	FromAsset edge.Asset
	ToAsset   edge.Asset
}

// GetEdges implements the get_edges(filter) logical interface of §6.
func (s *EdgeStore) GetEdges(f Filter) []edge.RouteSegment {
	all := s.Snapshot()
	if f.Provider == "" && f.FromAsset == "" && f.ToAsset == "" {
		return all
	}
	out := make([]edge.RouteSegment, 0, len(all))
	for _, e := range all {
		if f.Provider != "" && e.Provider != f.Provider {
			continue
		}
		if f.FromAsset != "" && e.FromAsset != f.FromAsset.Normalize() {
			continue
		}
		if f.ToAsset != "" && e.ToAsset != f.ToAsset.Normalize() {
			continue
		}
		out = append(out, e)
	}
	return out
}
