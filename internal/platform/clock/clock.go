// Package clock implements the Clock collaborator (§6): now()/sleep(),
// wrapping github.com/benbjohnson/clock so adapters, the scheduler, and the
// confirmation poller can be driven deterministically under test.
package clock

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the collaborator contract consumed by adapters, the scheduler,
// and the confirmation poller.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	// After returns a channel delivering the current time after d. It takes
	// no context; WaitForDeadline combines it with ctx.Done.
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the minimal ticker contract used by the scheduler.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real wraps clock.Clock (itself a thin wrapper over the time package) so
// production code and tests share the same interface.
type Real struct {
	inner clock.Clock
}

// NewReal builds a Clock backed by the real wall clock.
func NewReal() *Real {
	return &Real{inner: clock.New()}
}

func (r *Real) Now() time.Time { return r.inner.Now() }

func (r *Real) Sleep(d time.Duration) { r.inner.Sleep(d) }

func (r *Real) After(d time.Duration) <-chan time.Time { return r.inner.After(d) }

func (r *Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: r.inner.Ticker(d)}
}

type realTicker struct{ t *clock.Ticker }

func (t *realTicker) C() <-chan time.Time { return t.t.C }
func (t *realTicker) Stop()               { t.t.Stop() }

// Mock wraps clock.Mock for deterministic tests: Advance() moves time
// forward and fires any due tickers/timers synchronously.
type Mock struct {
	inner *clock.Mock
}

// NewMock builds a Clock whose time only advances when told to.
func NewMock() *Mock {
	return &Mock{inner: clock.NewMock()}
}

func (m *Mock) Now() time.Time { return m.inner.Now() }

func (m *Mock) Sleep(d time.Duration) { m.inner.Sleep(d) }

func (m *Mock) After(d time.Duration) <-chan time.Time { return m.inner.After(d) }

func (m *Mock) NewTicker(d time.Duration) Ticker {
	return &mockTicker{t: m.inner.Ticker(d)}
}

// Advance moves the mock clock forward by d, firing due timers/tickers.
func (m *Mock) Advance(d time.Duration) { m.inner.Add(d) }

type mockTicker struct{ t *clock.Ticker }

func (t *mockTicker) C() <-chan time.Time { return t.t.C }
func (t *mockTicker) Stop()               { t.t.Stop() }

// WaitForDeadline blocks until ctx is done or d elapses on clk, whichever
// comes first, returning ctx.Err() in the former case.
func WaitForDeadline(ctx context.Context, clk Clock, d time.Duration) error {
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
