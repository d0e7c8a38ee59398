package execution

import (
	"context"
	"sync"
)

// controlState holds the external-control bookkeeping for one running
// execution: the pause/resume predicate, cancellation, and a handle to
// cancel whichever segment is currently in flight (§4.6's pause/cancel
// semantics, modeled as an observable predicate checked at segment
// boundaries rather than any async-specific control flow).
type controlState struct {
	mu   sync.Mutex
	cond *sync.Cond

	paused          bool
	cancelRequested bool
	forceReroute    bool
	segCancel       context.CancelFunc
}

func newControlState() *controlState {
	cs := &controlState{}
	cs.cond = sync.NewCond(&cs.mu)
	return cs
}

// pause sets the pause predicate; it takes effect at the next segment
// boundary the run loop checks (§4.6: "pause takes effect between
// segments").
func (cs *controlState) pause() {
	cs.mu.Lock()
	cs.paused = true
	cs.mu.Unlock()
}

// resume clears the pause predicate and wakes the run loop.
func (cs *controlState) resume() {
	cs.mu.Lock()
	cs.paused = false
	cs.mu.Unlock()
	cs.cond.Broadcast()
}

// requestCancel marks the execution for cancellation and, if a segment is
// currently in flight, cancels its context as a best-effort interrupt
// (§4.6: "cancel attempts best-effort cancellation of the currently
// in-flight segment").
func (cs *controlState) requestCancel() {
	cs.mu.Lock()
	cs.cancelRequested = true
	segCancel := cs.segCancel
	cs.mu.Unlock()
	if segCancel != nil {
		segCancel()
	}
	cs.cond.Broadcast()
}

// requestReroute forces the next segment boundary's reroute check to run
// regardless of whether automatic AI re-routing is configured (the manual
// reroute_execution operation of §6).
func (cs *controlState) requestReroute() {
	cs.mu.Lock()
	cs.forceReroute = true
	cs.mu.Unlock()
}

// takeForceReroute consumes the one-shot manual reroute request.
func (cs *controlState) takeForceReroute() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	v := cs.forceReroute
	cs.forceReroute = false
	return v
}

// awaitBoundary blocks while paused and returns true if cancellation was
// requested, either before or during the pause. It must be called at every
// segment boundary before the next segment starts.
func (cs *controlState) awaitBoundary() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for cs.paused && !cs.cancelRequested {
		cs.cond.Wait()
	}
	return cs.cancelRequested
}

// beginSegment installs a cancel func for the segment about to run and
// returns a derived context plus a cleanup to call once the segment
// settles.
func (cs *controlState) beginSegment(ctx context.Context) (context.Context, func()) {
	segCtx, cancel := context.WithCancel(ctx)
	cs.mu.Lock()
	cs.segCancel = cancel
	cs.mu.Unlock()
	return segCtx, func() {
		cs.mu.Lock()
		cs.segCancel = nil
		cs.mu.Unlock()
	}
}
