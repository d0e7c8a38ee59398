// Package ingest implements the provider adapters and aggregator/scheduler
// of spec.md §4.1-4.2: concurrent, fault-isolated fetching from heterogeneous
// providers, normalized into edge.RouteSegment records and written into the
// hot cache and durable snapshot stream.
package ingest

import (
	"context"
	"time"

	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/clock"
	"github.com/r3e-network/xrail/internal/platform/credentials"
	"github.com/r3e-network/xrail/internal/platform/transport"
)

// TickResult is the output of one adapter tick: zero or more normalized
// edges, plus a structured error summary. An adapter never raises out of a
// tick (§4.1); callers only ever see TickResult.Err as a logged, non-fatal
// classification.
type TickResult struct {
	Edges []edge.RouteSegment
	Err   error
}

// Adapter is the ingestion-side contract for a single provider. Fetch must
// complete within the deadline carried by ctx; on deadline expiry the
// partial result accumulated so far is returned rather than blocking.
type Adapter interface {
	// ProviderID names the adapter for cache keys, credentials lookup, and
	// health-state tracking.
	ProviderID() string
	// SegmentClass reports the segment class this adapter emits, which
	// selects its refresh cadence (§4.2).
	SegmentClass() edge.SegmentClass
	// Fetch performs one tick: fetch, parse, normalize, classify failures.
	Fetch(ctx context.Context, deps Deps) TickResult
}

// Deps bundles the collaborators an adapter needs to perform a tick,
// mirroring the "Context, transport, credentials, clock" contract of §4.1.
type Deps struct {
	Transport   transport.Transport
	Credentials credentials.Store
	Clock       clock.Clock
}

// FastClassDeadline and SlowClassDeadline are the per-tick deadlines of
// §4.1: "default: 2s for fast-class, 10s for slow-class".
const (
	FastClassDeadline = 2 * time.Second
	SlowClassDeadline = 10 * time.Second
)

// Deadline returns the per-tick deadline for a segment class.
func Deadline(class edge.SegmentClass) time.Duration {
	if class.FastClass() {
		return FastClassDeadline
	}
	return SlowClassDeadline
}
