package execution

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/xrail/internal/corekit"
	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/clock"
	"github.com/r3e-network/xrail/internal/routing"
	"github.com/r3e-network/xrail/pkg/logger"
	"github.com/r3e-network/xrail/pkg/metrics"
)

// Config controls the orchestrator's reroute and execution-mode behavior
// (§4.6, §4.6.1).
type Config struct {
	AIRerouteEnabled  bool
	RerouteThresholds RerouteThresholds
	RoutingOptions    routing.Options
}

// Orchestrator drives ExecutionRecords through the state machine of §4.6,
// one goroutine per in-flight execution, honoring pause/resume/cancel/
// modify/reroute control operations issued concurrently from callers. It is
// grounded on the gas bank service's SettlementPoller
// (packages/com.r3e.services.gasbank/service/settlement.go): a
// ServiceBase-embedding driver with tracer/hook injection and a per-item
// mutex, generalized from a single ticker loop to one goroutine per
// execution plus external control signals.
type Orchestrator struct {
	corekit.ServiceBase

	store      *Store
	dispatcher *Dispatcher
	solver     routing.Solver
	edgesFn    func() []edge.RouteSegment
	clk        clock.Clock
	log        *logger.Logger
	tracer     corekit.Tracer
	hooks      corekit.ObservationHooks
	cfg        Config

	mu       sync.Mutex
	controls map[string]*controlState
}

// NewOrchestrator builds an Orchestrator. edgesFn supplies the current edge
// set the reroute check re-solves against (§4.6.1); it is typically
// ingest.EdgeStore.Snapshot.
func NewOrchestrator(store *Store, dispatcher *Dispatcher, solver routing.Solver, edgesFn func() []edge.RouteSegment, clk clock.Clock, log *logger.Logger, cfg Config) *Orchestrator {
	if log == nil {
		log = logger.NewDefault("execution-orchestrator")
	}
	o := &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		solver:     solver,
		edgesFn:    edgesFn,
		clk:        clk,
		log:        log,
		tracer:     corekit.NoopTracer,
		hooks:      corekit.NoopObservationHooks,
		cfg:        cfg,
		controls:   make(map[string]*controlState),
	}
	o.SetName("execution-orchestrator")
	o.MarkReady(true)
	return o
}

// WithTracer configures span emission for segment executions.
func (o *Orchestrator) WithTracer(tracer corekit.Tracer) {
	if tracer == nil {
		tracer = corekit.NoopTracer
	}
	o.mu.Lock()
	o.tracer = tracer
	o.mu.Unlock()
}

// WithObservationHooks configures callbacks for segment executions.
func (o *Orchestrator) WithObservationHooks(hooks corekit.ObservationHooks) {
	o.mu.Lock()
	o.hooks = hooks
	o.mu.Unlock()
}

// Describe advertises the orchestrator's layer and control surface for
// consistent startup logging and metric labels.
func (o *Orchestrator) Describe() corekit.Descriptor {
	return corekit.Descriptor{
		Name:  o.Name(),
		Layer: corekit.LayerExecution,
	}.WithCapabilities("pause", "resume", "cancel", "reroute", "modify")
}

func (o *Orchestrator) control(id string) *controlState {
	o.mu.Lock()
	defer o.mu.Unlock()
	cs, ok := o.controls[id]
	if !ok {
		cs = newControlState()
		o.controls[id] = cs
	}
	return cs
}

func (o *Orchestrator) dropControl(id string) {
	o.mu.Lock()
	delete(o.controls, id)
	o.mu.Unlock()
}

// Start implements the execute_route logical interface of §6: it creates a
// pending ExecutionRecord, launches its driving goroutine, and returns the
// execution_id immediately — progress is polled via Status.
func (o *Orchestrator) Start(ctx context.Context, route edge.Route, fromAsset, toAsset edge.Asset, amount float64) (string, error) {
	if amount <= 0 {
		return "", corekit.NewValidationError("amount", "must be > 0")
	}
	now := o.clk.Now()
	id := uuid.NewString()
	rec := edge.ExecutionRecord{
		ExecutionID:     id,
		Route:           route,
		CurrentIndex:    0,
		State:           edge.StatePending,
		SegmentOutcomes: make([]edge.SegmentOutcome, len(route.Segments)),
		FromAsset:       fromAsset,
		ToAsset:         toAsset,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.store.Create(ctx, rec); err != nil {
		return "", err
	}
	o.control(id) // pre-register so Pause/Cancel issued immediately after Start cannot race a missing entry

	go o.run(context.Background(), id, amount)
	return id, nil
}

// Status implements get_execution_status.
func (o *Orchestrator) Status(ctx context.Context, id string) (edge.ExecutionRecord, error) {
	return o.store.Get(ctx, id)
}

// Pause implements pause_execution: valid while running.
func (o *Orchestrator) Pause(ctx context.Context, id string) error {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.State != edge.StateRunning {
		return corekit.NewPreconditionError(id, "pause", string(rec.State))
	}
	o.control(id).pause()
	return o.transition(ctx, id, edge.StatePaused, nil)
}

// Resume implements resume_execution: valid while paused.
func (o *Orchestrator) Resume(ctx context.Context, id string) error {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.State != edge.StatePaused {
		return corekit.NewPreconditionError(id, "resume", string(rec.State))
	}
	if err := o.transition(ctx, id, edge.StateRunning, nil); err != nil {
		return err
	}
	o.control(id).resume()
	return nil
}

// Cancel implements cancel_execution: valid while running or paused.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.State != edge.StateRunning && rec.State != edge.StatePaused {
		return corekit.NewPreconditionError(id, "cancel", string(rec.State))
	}
	if err := o.transition(ctx, id, edge.StateCancelling, nil); err != nil {
		return err
	}
	o.control(id).requestCancel()
	return nil
}

// Reroute implements reroute_execution: forces the §4.6.1 reroute check at
// the next segment boundary regardless of the AIRerouteEnabled setting.
func (o *Orchestrator) Reroute(ctx context.Context, id string) error {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.State != edge.StateRunning {
		return corekit.NewPreconditionError(id, "reroute", string(rec.State))
	}
	o.control(id).requestReroute()
	return nil
}

// Modify implements modify_transaction: valid only for a segment not yet
// started (§4.6: "Modify(segment_index, new_parameters) is valid only when
// the target segment is in state pending").
func (o *Orchestrator) Modify(ctx context.Context, id string, segmentIndex int, newSegment edge.RouteSegment) error {
	now := o.clk.Now()
	return o.store.Mutate(ctx, id, now, func(rec *edge.ExecutionRecord) (edge.Transition, error) {
		if segmentIndex <= rec.CurrentIndex || segmentIndex >= len(rec.Route.Segments) {
			return edge.Transition{}, corekit.NewPreconditionError(id, "modify", string(rec.State))
		}
		rec.Route.Segments[segmentIndex] = newSegment
		return edge.Transition{
			ExecutionID:  id,
			OldState:     rec.State,
			NewState:     rec.State,
			CurrentIndex: rec.CurrentIndex,
		}, nil
	})
}

func (o *Orchestrator) transition(ctx context.Context, id string, newState edge.State, outcome *edge.SegmentOutcome) error {
	now := o.clk.Now()
	return o.store.Mutate(ctx, id, now, func(rec *edge.ExecutionRecord) (edge.Transition, error) {
		old := rec.State
		if old.Terminal() {
			return edge.Transition{}, corekit.NewPreconditionError(id, "transition", string(old))
		}
		rec.State = newState
		return edge.Transition{
			ExecutionID:    id,
			OldState:       old,
			NewState:       newState,
			CurrentIndex:   rec.CurrentIndex,
			SegmentOutcome: outcome,
		}, nil
	})
}

// run drives one ExecutionRecord from pending to a terminal state. It is
// the only writer of CurrentIndex/SegmentOutcomes/Route.Segments (besides
// Modify, which only touches not-yet-reached segments).
func (o *Orchestrator) run(ctx context.Context, id string, initialAmount float64) {
	defer o.dropControl(id)
	cs := o.control(id)

	if err := o.transition(ctx, id, edge.StateRunning, nil); err != nil {
		o.log.WithError(err).WithField("execution_id", id).Error("failed to start execution")
		return
	}

	for {
		if cs.awaitBoundary() {
			_ = o.transition(ctx, id, edge.StateCancelled, nil)
			return
		}

		rec, err := o.store.Get(ctx, id)
		if err != nil {
			o.log.WithError(err).WithField("execution_id", id).Error("execution record vanished")
			return
		}
		if rec.State == edge.StateCancelling {
			_ = o.transition(ctx, id, edge.StateCancelled, nil)
			return
		}
		if rec.CurrentIndex >= len(rec.Route.Segments) {
			o.finishCompleted(ctx, id, rec, initialAmount)
			return
		}

		idx := rec.CurrentIndex
		seg := rec.Route.Segments[idx]
		amountIn := initialAmount
		if idx > 0 {
			amountIn = rec.SegmentOutcomes[idx-1].AmountOut
		}

		outcome, cancelled := o.runSegment(ctx, cs, id, seg, amountIn)
		if cancelled {
			o.finishCancelled(ctx, id, idx, amountIn)
			return
		}

		if outcome.Status != edge.SegmentSucceeded {
			o.finishFailed(ctx, id, idx, amountIn, outcome)
			return
		}

		if err := o.recordSegmentSuccess(ctx, id, idx, amountIn, outcome); err != nil {
			o.log.WithError(err).WithField("execution_id", id).Error("failed to record segment outcome")
			return
		}

		automatic := o.cfg.AIRerouteEnabled
		manual := cs.takeForceReroute()
		if automatic || manual {
			o.maybeReroute(ctx, id, idx)
		}
	}
}

func (o *Orchestrator) runSegment(ctx context.Context, cs *controlState, id string, seg edge.RouteSegment, amountIn float64) (Outcome, bool) {
	executor, err := o.dispatcher.For(seg.SegmentClass)
	if err != nil {
		return Outcome{Status: edge.SegmentFailed, Error: err}, false
	}

	segCtx, cleanup := cs.beginSegment(ctx)
	defer cleanup()

	attrs := map[string]string{"execution_id": id, "segment_class": string(seg.SegmentClass), "provider": seg.Provider}
	spanCtx, finishSpan := o.tracer.StartSpan(segCtx, "execution.segment", attrs)
	finishObs := corekit.StartObservation(spanCtx, o.hooks, attrs)

	outcome, err := executor.Execute(spanCtx, seg, amountIn)
	finishObs(err)
	finishSpan(err)

	if errors.Is(segCtx.Err(), context.Canceled) {
		return Outcome{Status: edge.SegmentCancelled}, true
	}
	if err != nil {
		outcome.Status = edge.SegmentFailed
		outcome.Error = err
	}
	metrics.RecordSegmentOutcome(string(seg.SegmentClass), string(outcome.Status))
	return outcome, false
}

func (o *Orchestrator) recordSegmentSuccess(ctx context.Context, id string, idx int, amountIn float64, outcome Outcome) error {
	now := o.clk.Now()
	return o.store.Mutate(ctx, id, now, func(rec *edge.ExecutionRecord) (edge.Transition, error) {
		so := edge.SegmentOutcome{
			ProviderTxnID: outcome.ProviderTxnID,
			Status:        edge.SegmentSucceeded,
			AmountIn:      amountIn,
			AmountOut:     outcome.AmountOut,
			FeesPaid:      outcome.FeesPaid,
			Attempts:      1,
			ConfirmedAt:   now,
		}
		rec.SegmentOutcomes[idx] = so
		rec.CurrentIndex = idx + 1
		return edge.Transition{
			ExecutionID:    id,
			OldState:       rec.State,
			NewState:       rec.State,
			CurrentIndex:   rec.CurrentIndex,
			SegmentOutcome: &so,
		}, nil
	})
}

func (o *Orchestrator) finishFailed(ctx context.Context, id string, idx int, amountIn float64, outcome Outcome) {
	now := o.clk.Now()
	_ = o.store.Mutate(ctx, id, now, func(rec *edge.ExecutionRecord) (edge.Transition, error) {
		so := edge.SegmentOutcome{
			ProviderTxnID: outcome.ProviderTxnID,
			Status:        edge.SegmentFailed,
			AmountIn:      amountIn,
			Error:         outcome.Error,
		}
		rec.SegmentOutcomes[idx] = so
		old := rec.State
		rec.State = edge.StateFailed
		rec.FailedSegmentIndex = idx
		rec.FailedSegmentError = outcome.Error
		return edge.Transition{
			ExecutionID:    id,
			OldState:       old,
			NewState:       edge.StateFailed,
			CurrentIndex:   rec.CurrentIndex,
			SegmentOutcome: &so,
		}, nil
	})
}

func (o *Orchestrator) finishCancelled(ctx context.Context, id string, idx int, amountIn float64) {
	now := o.clk.Now()
	_ = o.store.Mutate(ctx, id, now, func(rec *edge.ExecutionRecord) (edge.Transition, error) {
		so := edge.SegmentOutcome{Status: edge.SegmentCancelled, AmountIn: amountIn}
		rec.SegmentOutcomes[idx] = so
		old := rec.State
		rec.State = edge.StateCancelled
		return edge.Transition{
			ExecutionID:    id,
			OldState:       old,
			NewState:       edge.StateCancelled,
			CurrentIndex:   rec.CurrentIndex,
			SegmentOutcome: &so,
		}, nil
	})
}

func (o *Orchestrator) finishCompleted(ctx context.Context, id string, snapshot edge.ExecutionRecord, initialAmount float64) {
	now := o.clk.Now()
	final := initialAmount
	if n := len(snapshot.SegmentOutcomes); n > 0 {
		final = snapshot.SegmentOutcomes[n-1].AmountOut
	}
	_ = o.store.Mutate(ctx, id, now, func(rec *edge.ExecutionRecord) (edge.Transition, error) {
		old := rec.State
		rec.State = edge.StateCompleted
		rec.FinalAmount = final
		return edge.Transition{ExecutionID: id, OldState: old, NewState: edge.StateCompleted, CurrentIndex: rec.CurrentIndex}, nil
	})
}

// maybeReroute implements the between-segments hook of §4.6 step 5: if
// re-routing fires, the remaining suffix of the route is replaced in
// place and a rerouting->running transition is recorded.
func (o *Orchestrator) maybeReroute(ctx context.Context, id string, justCompletedIdx int) {
	rec, err := o.store.Get(ctx, id)
	if err != nil || rec.CurrentIndex >= len(rec.Route.Segments) {
		return
	}
	remaining := rec.Route.Segments[rec.CurrentIndex:]
	currentNode := rec.Route.Segments[justCompletedIdx].ToNode()
	currentAmount := rec.SegmentOutcomes[justCompletedIdx].AmountOut

	edges := o.edgesFn()
	newSuffix, fires := evaluateReroute(ctx, o.solver, edges, remaining, currentNode, currentAmount, o.cfg.RoutingOptions, o.cfg.RerouteThresholds)
	if !fires {
		return
	}

	now := o.clk.Now()
	_ = o.store.Mutate(ctx, id, now, func(rec *edge.ExecutionRecord) (edge.Transition, error) {
		old := rec.State
		rec.State = edge.StateRerouting
		rec.Route.Segments = append(rec.Route.Segments[:rec.CurrentIndex], newSuffix...)
		// The replacement suffix may be shorter or longer than the one it
		// displaced; the outcome slice must track the new route length so
		// later segment writes land in bounds.
		if len(rec.SegmentOutcomes) != len(rec.Route.Segments) {
			outcomes := make([]edge.SegmentOutcome, len(rec.Route.Segments))
			copy(outcomes, rec.SegmentOutcomes[:min(len(rec.SegmentOutcomes), len(outcomes))])
			rec.SegmentOutcomes = outcomes
		}
		return edge.Transition{ExecutionID: id, OldState: old, NewState: edge.StateRerouting, CurrentIndex: rec.CurrentIndex}, nil
	})
	_ = o.transition(ctx, id, edge.StateRunning, nil)
	o.log.WithField("execution_id", id).Info("route rerouted between segments")
}

// PollConfirmationDefaults exposes the §4.7 default confirmation poll
// budget for callers constructing ProviderSpec values.
func PollConfirmationDefaults() (int, time.Duration) {
	return DefaultConfirmationPolls, DefaultConfirmationInterval
}
