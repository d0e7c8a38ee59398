package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/clock"
	"github.com/r3e-network/xrail/internal/platform/durable"
	"github.com/r3e-network/xrail/internal/routing"
	"github.com/r3e-network/xrail/pkg/logger"
)

func newTestOrchestrator(t *testing.T, executor SegmentExecutor, edges func() []edge.RouteSegment, cfg Config) (*Orchestrator, *Store) {
	t.Helper()
	store := NewStore(durable.NewMemory(), 0)
	dispatcher := NewDispatcher(map[edge.SegmentClass]SegmentExecutor{
		edge.ClassFX:     executor,
		edge.ClassCrypto: executor,
		edge.ClassBridge: executor,
	})
	orc := NewOrchestrator(store, dispatcher, routing.EnumeratorSolver{}, edges, clock.NewReal(), logger.NewDefault("test"), cfg)
	return orc, store
}

func noEdges() []edge.RouteSegment { return nil }

// gateExecutor blocks each Execute until the test releases it, so control
// operations can be issued while a segment is verifiably in flight. entered
// is buffered so unobserved segments never wedge the run loop.
type gateExecutor struct {
	inner   SegmentExecutor
	entered chan struct{}
	release chan struct{}
}

func newGateExecutor() *gateExecutor {
	return &gateExecutor{
		inner:   NewSimulatedExecutor(0),
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (g *gateExecutor) Execute(ctx context.Context, seg edge.RouteSegment, amountIn float64) (Outcome, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return Outcome{Status: edge.SegmentCancelled}, ctx.Err()
	}
	return g.inner.Execute(ctx, seg, amountIn)
}

func threeSegmentRoute() edge.Route {
	return edge.Route{Segments: []edge.RouteSegment{
		{SegmentClass: edge.ClassFX, FromAsset: "USD", ToAsset: "EUR", Provider: "frankfurter", Cost: edge.Cost{EffectiveRate: 0.9}, Latency: edge.Latency{MinMinutes: 1, MaxMinutes: 2}, Reliability: 0.95},
		{SegmentClass: edge.ClassFX, FromAsset: "EUR", ToAsset: "GBP", Provider: "frankfurter", Cost: edge.Cost{EffectiveRate: 0.85}, Latency: edge.Latency{MinMinutes: 1, MaxMinutes: 2}, Reliability: 0.95},
		{SegmentClass: edge.ClassFX, FromAsset: "GBP", ToAsset: "USD", Provider: "frankfurter", Cost: edge.Cost{EffectiveRate: 1.3}, Latency: edge.Latency{MinMinutes: 1, MaxMinutes: 2}, Reliability: 0.95},
	}}
}

func awaitState(t *testing.T, orc *Orchestrator, id string, want edge.State, timeout time.Duration) edge.ExecutionRecord {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		rec, err := orc.Status(context.Background(), id)
		require.NoError(t, err)
		if rec.State == want {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for state %q, last seen %q", want, rec.State)
		}
		time.Sleep(time.Millisecond)
	}
}

func awaitIndex(t *testing.T, orc *Orchestrator, id string, wantIndex int, timeout time.Duration) edge.ExecutionRecord {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		rec, err := orc.Status(context.Background(), id)
		require.NoError(t, err)
		if rec.CurrentIndex >= wantIndex {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for current_index >= %d, last seen %d", wantIndex, rec.CurrentIndex)
		}
		time.Sleep(time.Millisecond)
	}
}

// TestOrchestratorRunsToCompletion exercises §8 scenario 5's happy path and
// invariant 1: final_amount matches the §4.3 notional trajectory.
func TestOrchestratorRunsToCompletion(t *testing.T) {
	orc, _ := newTestOrchestrator(t, NewSimulatedExecutor(0), noEdges, Config{})
	route := threeSegmentRoute()

	id, err := orc.Start(context.Background(), route, "USD", "USD", 1000)
	require.NoError(t, err)

	rec := awaitState(t, orc, id, edge.StateCompleted, 2*time.Second)
	require.Len(t, rec.SegmentOutcomes, 3)
	for _, so := range rec.SegmentOutcomes {
		assert.Equal(t, edge.SegmentSucceeded, so.Status)
	}
	expected := 1000 * 0.9 * 0.85 * 1.3
	assert.InDelta(t, expected, rec.FinalAmount, 1e-6)
}

// TestOrchestratorPauseResumePreservesProgress exercises §8 scenario 5 and
// invariant 6: pause->resume preserves current_index and prior outcomes. The
// gate executor holds segment 0 in flight so the pause lands while the
// execution is verifiably running, then takes effect at the next boundary.
func TestOrchestratorPauseResumePreservesProgress(t *testing.T) {
	gate := newGateExecutor()
	orc, _ := newTestOrchestrator(t, gate, noEdges, Config{})
	route := threeSegmentRoute()

	id, err := orc.Start(context.Background(), route, "USD", "USD", 1000)
	require.NoError(t, err)

	<-gate.entered
	require.NoError(t, orc.Pause(context.Background(), id))
	gate.release <- struct{}{}

	// Segment 0 settles, then the run loop parks at the boundary.
	paused := awaitIndex(t, orc, id, 1, time.Second)
	require.Equal(t, edge.StatePaused, paused.State)
	require.Equal(t, 1, paused.CurrentIndex)
	require.Equal(t, edge.SegmentSucceeded, paused.SegmentOutcomes[0].Status)
	outcomesAtPause := append([]edge.SegmentOutcome(nil), paused.SegmentOutcomes...)

	// Re-reading status without an intervening control op is a no-op.
	again, err := orc.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, paused.CurrentIndex, again.CurrentIndex)
	assert.Equal(t, outcomesAtPause, again.SegmentOutcomes)

	require.NoError(t, orc.Resume(context.Background(), id))
	<-gate.entered
	gate.release <- struct{}{}
	<-gate.entered
	gate.release <- struct{}{}

	final := awaitState(t, orc, id, edge.StateCompleted, 2*time.Second)
	require.Len(t, final.SegmentOutcomes, 3)
	for i := range final.SegmentOutcomes {
		assert.Equal(t, edge.SegmentSucceeded, final.SegmentOutcomes[i].Status)
	}
	assert.Equal(t, outcomesAtPause[0], final.SegmentOutcomes[0], "segments before pause must be unchanged")
}

// TestOrchestratorCancelHaltsInFlightSegment exercises §4.6's cancel
// semantics: the in-flight segment is interrupted best-effort and no further
// segments run.
func TestOrchestratorCancelHaltsInFlightSegment(t *testing.T) {
	gate := newGateExecutor()
	orc, _ := newTestOrchestrator(t, gate, noEdges, Config{})
	route := threeSegmentRoute()

	id, err := orc.Start(context.Background(), route, "USD", "USD", 1000)
	require.NoError(t, err)

	<-gate.entered
	require.NoError(t, orc.Cancel(context.Background(), id))

	rec := awaitState(t, orc, id, edge.StateCancelled, 2*time.Second)
	assert.True(t, rec.State.Terminal())
	assert.Equal(t, 0, rec.CurrentIndex, "no segment completed before the cancel")
	assert.Equal(t, edge.SegmentCancelled, rec.SegmentOutcomes[0].Status)
	assert.Equal(t, edge.SegmentStatus(""), rec.SegmentOutcomes[1].Status, "later segments never ran")
}

// TestOrchestratorRerouteInstallsCheaperSuffix exercises §8 scenario 6: a
// strictly cheaper direct path from the mid-route node replaces the
// remaining suffix, and the final amount follows the new route.
func TestOrchestratorRerouteInstallsCheaperSuffix(t *testing.T) {
	better := edge.RouteSegment{
		SegmentClass: edge.ClassFX,
		FromAsset:    "USDC",
		ToAsset:      "EUR",
		Provider:     "direct-eur",
		Cost:         edge.Cost{EffectiveRate: 0.9},
		Latency:      edge.Latency{MinMinutes: 1, MaxMinutes: 2},
		Reliability:  0.99,
	}
	gate := newGateExecutor()
	orc, _ := newTestOrchestrator(t, gate, func() []edge.RouteSegment { return []edge.RouteSegment{better} }, Config{
		AIRerouteEnabled:  true,
		RerouteThresholds: DefaultRerouteThresholds,
		RoutingOptions:    routing.Options{MaxHops: 5, K: 5, Weights: routing.DefaultWeights},
	})

	route := edge.Route{Segments: []edge.RouteSegment{
		{SegmentClass: edge.ClassCrypto, FromAsset: "USD", ToAsset: "USDC", Provider: "kraken", Cost: edge.Cost{EffectiveRate: 1.0}, Latency: edge.Latency{MinMinutes: 1, MaxMinutes: 2}, Reliability: 0.95},
		// The original suffix loses 8% to fees; the injected direct edge
		// loses nothing, clearing the 5-point cost-drop threshold.
		{SegmentClass: edge.ClassFX, FromAsset: "USDC", ToAsset: "EUR", Provider: "expensive-eur", Cost: edge.Cost{FeePercent: 8, EffectiveRate: 0.9}, Latency: edge.Latency{MinMinutes: 1, MaxMinutes: 2}, Reliability: 0.95},
	}}

	id, err := orc.Start(context.Background(), route, "USD", "EUR", 1000)
	require.NoError(t, err)

	<-gate.entered
	gate.release <- struct{}{}
	<-gate.entered
	gate.release <- struct{}{}

	rec := awaitState(t, orc, id, edge.StateCompleted, 2*time.Second)
	require.Len(t, rec.Route.Segments, 2)
	assert.Equal(t, "direct-eur", rec.Route.Segments[1].Provider, "the cheaper suffix must replace the original")
	assert.InDelta(t, 1000*1.0*0.9, rec.FinalAmount, 1e-6, "final amount follows the rerouted path, not the original")
	assert.Equal(t, edge.SegmentSucceeded, rec.SegmentOutcomes[1].Status)
}

// TestOrchestratorModifyPendingSegmentSucceeds exercises §4.6's modify
// semantics: a segment not yet started may be replaced in place.
func TestOrchestratorModifyPendingSegmentSucceeds(t *testing.T) {
	gate := newGateExecutor()
	orc, _ := newTestOrchestrator(t, gate, noEdges, Config{})
	route := threeSegmentRoute()

	id, err := orc.Start(context.Background(), route, "USD", "USD", 1000)
	require.NoError(t, err)

	<-gate.entered // segment 0 in flight, segment 2 still pending

	newSeg := route.Segments[2]
	newSeg.Provider = "alt-rail"
	require.NoError(t, orc.Modify(context.Background(), id, 2, newSeg))

	for i := 0; i < 3; i++ {
		gate.release <- struct{}{}
		if i < 2 {
			<-gate.entered
		}
	}

	rec := awaitState(t, orc, id, edge.StateCompleted, 2*time.Second)
	assert.Equal(t, "alt-rail", rec.Route.Segments[2].Provider)
	assert.Equal(t, edge.SegmentSucceeded, rec.SegmentOutcomes[2].Status)
}

// TestOrchestratorModifyRejectsStartedSegment exercises §4.6's modify
// precondition: only a not-yet-reached segment may be modified.
func TestOrchestratorModifyRejectsStartedSegment(t *testing.T) {
	gate := newGateExecutor()
	orc, _ := newTestOrchestrator(t, gate, noEdges, Config{})
	route := threeSegmentRoute()

	id, err := orc.Start(context.Background(), route, "USD", "USD", 1000)
	require.NoError(t, err)

	<-gate.entered // segment 0 has started
	err = orc.Modify(context.Background(), id, 0, edge.RouteSegment{})
	require.Error(t, err)

	require.NoError(t, orc.Cancel(context.Background(), id))
	awaitState(t, orc, id, edge.StateCancelled, 2*time.Second)
}

// TestOrchestratorRejectsZeroAmount exercises §8's boundary behavior:
// "Zero-amount execute -> ValidationError."
func TestOrchestratorRejectsZeroAmount(t *testing.T) {
	orc, _ := newTestOrchestrator(t, NewSimulatedExecutor(0), noEdges, Config{})
	_, err := orc.Start(context.Background(), threeSegmentRoute(), "USD", "USD", 0)
	require.Error(t, err)
}

// TestOrchestratorFailedSegmentRecordsPartialProgress exercises §7's
// user-visible failure behavior: the failing index, its error, and the value
// at the last succeeded segment are all retained.
func TestOrchestratorFailedSegmentRecordsPartialProgress(t *testing.T) {
	orc, _ := newTestOrchestrator(t, NewSimulatedExecutor(0), noEdges, Config{})

	// Segment 1's fixed fee exceeds any plausible notional, so the simulated
	// executor reports the segment as failed.
	route := edge.Route{Segments: []edge.RouteSegment{
		{SegmentClass: edge.ClassFX, FromAsset: "USD", ToAsset: "EUR", Provider: "frankfurter", Cost: edge.Cost{EffectiveRate: 0.9}, Latency: edge.Latency{MinMinutes: 1, MaxMinutes: 2}, Reliability: 0.95},
		{SegmentClass: edge.ClassFX, FromAsset: "EUR", ToAsset: "GBP", Provider: "frankfurter", Cost: edge.Cost{FixedFee: 1e9, EffectiveRate: 0.85}, Latency: edge.Latency{MinMinutes: 1, MaxMinutes: 2}, Reliability: 0.95},
	}}

	id, err := orc.Start(context.Background(), route, "USD", "GBP", 1000)
	require.NoError(t, err)

	rec := awaitState(t, orc, id, edge.StateFailed, 2*time.Second)
	assert.Equal(t, 1, rec.FailedSegmentIndex)
	assert.Error(t, rec.FailedSegmentError)
	assert.Equal(t, edge.SegmentSucceeded, rec.SegmentOutcomes[0].Status, "the settled segment stays settled")
	assert.Equal(t, edge.SegmentFailed, rec.SegmentOutcomes[1].Status)
	assert.InDelta(t, 900.0, rec.SegmentOutcomes[1].AmountIn, 1e-6, "the failing segment records its input notional")
}

// TestOrchestratorTerminalStateRejectsControlOps exercises invariant 3: no
// control operation may alter a terminal record.
func TestOrchestratorTerminalStateRejectsControlOps(t *testing.T) {
	orc, _ := newTestOrchestrator(t, NewSimulatedExecutor(0), noEdges, Config{})
	id, err := orc.Start(context.Background(), threeSegmentRoute(), "USD", "USD", 1000)
	require.NoError(t, err)

	done := awaitState(t, orc, id, edge.StateCompleted, 2*time.Second)

	assert.Error(t, orc.Pause(context.Background(), id))
	assert.Error(t, orc.Resume(context.Background(), id))
	assert.Error(t, orc.Cancel(context.Background(), id))
	assert.Error(t, orc.Reroute(context.Background(), id))

	after, err := orc.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, done.CurrentIndex, after.CurrentIndex)
	assert.Equal(t, done.FinalAmount, after.FinalAmount)
	assert.Equal(t, done.SegmentOutcomes, after.SegmentOutcomes)
}
