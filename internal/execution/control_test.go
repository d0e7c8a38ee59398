package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlStateAwaitBoundaryBlocksWhilePaused(t *testing.T) {
	cs := newControlState()
	cs.pause()

	done := make(chan bool, 1)
	go func() { done <- cs.awaitBoundary() }()

	select {
	case <-done:
		t.Fatal("awaitBoundary returned while still paused")
	case <-time.After(50 * time.Millisecond):
	}

	cs.resume()
	select {
	case cancelled := <-done:
		assert.False(t, cancelled)
	case <-time.After(time.Second):
		t.Fatal("awaitBoundary never returned after resume")
	}
}

func TestControlStateCancelDuringPauseUnblocks(t *testing.T) {
	cs := newControlState()
	cs.pause()

	done := make(chan bool, 1)
	go func() { done <- cs.awaitBoundary() }()

	cs.requestCancel()
	select {
	case cancelled := <-done:
		assert.True(t, cancelled, "a cancel requested while paused must unblock awaitBoundary with cancelled=true")
	case <-time.After(time.Second):
		t.Fatal("awaitBoundary never returned after requestCancel")
	}
}

func TestControlStateRequestCancelCancelsInFlightSegment(t *testing.T) {
	cs := newControlState()
	segCtx, cleanup := cs.beginSegment(context.Background())
	defer cleanup()

	cs.requestCancel()
	select {
	case <-segCtx.Done():
	default:
		t.Fatal("requestCancel must cancel the in-flight segment context")
	}
}

func TestControlStateTakeForceRerouteIsOneShot(t *testing.T) {
	cs := newControlState()
	cs.requestReroute()
	assert.True(t, cs.takeForceReroute())
	assert.False(t, cs.takeForceReroute(), "the force-reroute flag is consumed on first read")
}

func TestControlStateAwaitBoundaryWithoutPauseReturnsImmediately(t *testing.T) {
	cs := newControlState()
	var wg sync.WaitGroup
	wg.Add(1)
	var cancelled bool
	go func() {
		defer wg.Done()
		cancelled = cs.awaitBoundary()
	}()
	wg.Wait()
	require.False(t, cancelled)
}
