package execution

import (
	"context"

	"github.com/google/uuid"

	"github.com/r3e-network/xrail/internal/domain/edge"
)

// SimulatedExecutor implements the §4.7 simulation mode: "the executor
// computes the expected outcome deterministically from edge fields
// (applying §4.3 notional trajectory for this one segment) and returns
// success without any external call." Provider availability never enters
// into it: Execute returns an error only when ValidateInput rejects the
// amount, and reports SegmentFailed only when ComputeMetrics finds the
// segment infeasible for amountIn (its fixed fee consumes the input).
type SimulatedExecutor struct {
	perClassCap float64
}

// NewSimulatedExecutor builds a SimulatedExecutor. perClassCap <= 0 means no
// cap is enforced.
func NewSimulatedExecutor(perClassCap float64) *SimulatedExecutor {
	return &SimulatedExecutor{perClassCap: perClassCap}
}

// Execute implements SegmentExecutor.
func (s *SimulatedExecutor) Execute(_ context.Context, seg edge.RouteSegment, amountIn float64) (Outcome, error) {
	if err := ValidateInput(seg, amountIn, s.perClassCap); err != nil {
		return Outcome{}, err
	}

	route := edge.Route{Segments: []edge.RouteSegment{seg}}
	metrics, err := edge.ComputeMetrics(route, amountIn)
	if err != nil {
		return Outcome{Status: edge.SegmentFailed, Error: err}, nil
	}

	afterFixed := amountIn - seg.Cost.FixedFee
	fees := seg.Cost.FixedFee + afterFixed*(seg.Cost.FeePercent/100)

	return Outcome{
		Status:        edge.SegmentSucceeded,
		AmountOut:     metrics.FinalAmount(),
		FeesPaid:      fees,
		ProviderTxnID: "sim-" + uuid.NewString(),
	}, nil
}

// Cancel is a no-op success: a simulated segment settles instantly, so there
// is never anything in flight to cancel.
func (s *SimulatedExecutor) Cancel(context.Context, string) error { return nil }
