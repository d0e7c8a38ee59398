// Package execution implements the segment executors and the execution
// orchestrator state machine (spec.md §4.6, §4.7): driving a selected route
// segment by segment, producing a per-segment outcome log, and honoring
// external pause/resume/cancel/modify/reroute control operations.
package execution

import (
	"context"
	"fmt"

	"github.com/r3e-network/xrail/internal/corekit"
	"github.com/r3e-network/xrail/internal/domain/edge"
)

// Outcome is the (status, amount_out, fees_paid, provider_txn_id, error)
// tuple a segment executor returns (§4.7's segment execution contract).
type Outcome struct {
	Status        edge.SegmentStatus
	AmountOut     float64
	FeesPaid      float64
	ProviderTxnID string
	Error         error
}

// SegmentExecutor is the one-per-segment-class contract of §4.7:
// "execute(edge, amount_in) -> outcome".
type SegmentExecutor interface {
	Execute(ctx context.Context, seg edge.RouteSegment, amountIn float64) (Outcome, error)
}

// Canceller is an optional capability: providers whose rail supports
// pre-settlement cancellation implement it. ProviderExecutor.Cancel returns
// corekit.ErrNotSupported when its spec does not allow cancellation. The
// orchestrator does not call Cancel: cancelling an execution interrupts the
// in-flight segment through its context only.
type Canceller interface {
	Cancel(ctx context.Context, providerTxnID string) error
}

// Modifier is an optional capability for amending an in-flight provider
// order (§4.7: "modify = cancel+recreate"). ProviderExecutor implements it
// for every segment class; SimulatedExecutor does not. The orchestrator
// itself only ever modifies segments
// still in state pending, so this hook exists for completeness and for any
// executor that wants to expose it.
type Modifier interface {
	Modify(ctx context.Context, providerTxnID string, newParams edge.RouteSegment) error
}

// ValidateInput checks the amount: amountIn must be > 0 and, when
// perClassCap > 0, no more than perClassCap. It does not check assets: the
// segment's from/to assets are not compared with anything here.
func ValidateInput(seg edge.RouteSegment, amountIn, perClassCap float64) error {
	if amountIn <= 0 {
		return corekit.NewValidationError("amount_in", "must be > 0")
	}
	if perClassCap > 0 && amountIn > perClassCap {
		return corekit.NewValidationError("amount_in", fmt.Sprintf("exceeds cap %v for class %s", perClassCap, seg.SegmentClass))
	}
	return nil
}

// Dispatcher selects the SegmentExecutor registered for a given
// segment_class (§4.7: "one per segment class").
type Dispatcher struct {
	executors map[edge.SegmentClass]SegmentExecutor
}

// NewDispatcher builds a Dispatcher from an explicit class -> executor map.
func NewDispatcher(executors map[edge.SegmentClass]SegmentExecutor) *Dispatcher {
	return &Dispatcher{executors: executors}
}

// For returns the executor registered for class, or an error if none is
// configured — a configuration defect, not a routing outcome.
func (d *Dispatcher) For(class edge.SegmentClass) (SegmentExecutor, error) {
	ex, ok := d.executors[class]
	if !ok {
		return nil, fmt.Errorf("no segment executor configured for class %q", class)
	}
	return ex, nil
}
