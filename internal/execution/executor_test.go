package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/xrail/internal/domain/edge"
)

func TestValidateInputRejectsNonPositiveAmount(t *testing.T) {
	seg := edge.RouteSegment{SegmentClass: edge.ClassFX}
	require.Error(t, ValidateInput(seg, 0, 0))
	require.Error(t, ValidateInput(seg, -5, 0))
}

func TestValidateInputRejectsAmountAboveCap(t *testing.T) {
	seg := edge.RouteSegment{SegmentClass: edge.ClassCrypto}
	require.Error(t, ValidateInput(seg, 1000, 500))
	require.NoError(t, ValidateInput(seg, 500, 500))
}

func TestValidateInputZeroCapMeansUnbounded(t *testing.T) {
	seg := edge.RouteSegment{SegmentClass: edge.ClassCrypto}
	assert.NoError(t, ValidateInput(seg, 1_000_000, 0))
}

func TestDispatcherForReturnsRegisteredExecutor(t *testing.T) {
	fx := NewSimulatedExecutor(0)
	d := NewDispatcher(map[edge.SegmentClass]SegmentExecutor{edge.ClassFX: fx})

	got, err := d.For(edge.ClassFX)
	require.NoError(t, err)
	assert.Same(t, SegmentExecutor(fx), got)
}

func TestDispatcherForUnregisteredClassIsError(t *testing.T) {
	d := NewDispatcher(map[edge.SegmentClass]SegmentExecutor{})
	_, err := d.For(edge.ClassBridge)
	require.Error(t, err)
}

func TestSimulatedExecutorComputesDeterministicOutcome(t *testing.T) {
	s := NewSimulatedExecutor(0)
	seg := edge.RouteSegment{
		SegmentClass: edge.ClassFX,
		FromAsset:    "USD",
		ToAsset:      "EUR",
		Provider:     "frankfurter",
		Cost:         edge.Cost{EffectiveRate: 0.9, FeePercent: 1, FixedFee: 2},
		Reliability:  0.95,
	}
	outcome, err := s.Execute(context.Background(), seg, 1000)
	require.NoError(t, err)
	assert.Equal(t, edge.SegmentSucceeded, outcome.Status)
	assert.InDelta(t, (1000-2)*0.99*0.9, outcome.AmountOut, 1e-6)
	assert.InDelta(t, 2+(1000-2)*0.01, outcome.FeesPaid, 1e-6)
	assert.NotEmpty(t, outcome.ProviderTxnID)
}

func TestSimulatedExecutorRejectsInvalidAmount(t *testing.T) {
	s := NewSimulatedExecutor(100)
	seg := edge.RouteSegment{SegmentClass: edge.ClassFX, Cost: edge.Cost{EffectiveRate: 1}}
	_, err := s.Execute(context.Background(), seg, 1000)
	require.Error(t, err, "simulated executor must still honor the per-class cap")
}

func TestSimulatedExecutorCancelIsANoop(t *testing.T) {
	s := NewSimulatedExecutor(0)
	assert.NoError(t, s.Cancel(context.Background(), "sim-anything"))
}
