package ingest

import (
	"sync"
	"time"

	"github.com/r3e-network/xrail/internal/corekit"
)

// FailureKind classifies a remote call outcome per §4.1: {transient,
// permanent, auth, rate_limited, parse}.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTransient
	FailurePermanent
	FailureAuth
	FailureRateLimited
	FailureParse
)

// Health tracks one adapter's backoff/disable state across ticks. Transient
// and rate-limited failures are recorded and skipped for the current tick
// only (no retry within a tick — the next scheduled tick is the retry).
// Permanent failures disable the adapter for a doubling backoff window
// (initial 30s, capped at 10m). Auth failures disable the adapter until
// credentials rotate, which Reauthorize models explicitly.
type Health struct {
	mu             sync.Mutex
	backoffUntil   time.Time
	currentBackoff time.Duration
	authDisabled   bool
	lastKind       FailureKind
	lastErr        error
}

// NewHealth builds an adapter health tracker starting in a healthy state.
func NewHealth() *Health { return &Health{} }

// Disabled reports whether the adapter should be skipped this tick.
func (h *Health) Disabled(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.authDisabled {
		return true
	}
	return now.Before(h.backoffUntil)
}

// RecordSuccess clears any backoff window; a successful tick always
// rehabilitates the adapter (auth disablement still requires Reauthorize).
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backoffUntil = time.Time{}
	h.currentBackoff = 0
	h.lastKind = FailureNone
	h.lastErr = nil
}

// RecordFailure applies the classification rules of §4.1. Transient,
// rate-limited, and parse failures are logged for this tick only and do not
// extend any backoff window; permanent failures open or extend the doubling
// backoff window; auth failures latch authDisabled until Reauthorize.
func (h *Health) RecordFailure(now time.Time, kind FailureKind, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastKind = kind
	h.lastErr = err

	switch kind {
	case FailurePermanent:
		h.currentBackoff = corekit.AdapterBackoffPolicy.NextBackoff(h.currentBackoff)
		h.backoffUntil = now.Add(h.currentBackoff)
	case FailureAuth:
		h.authDisabled = true
	default:
		// transient, rate_limited, parse: this tick only, no backoff change.
	}
}

// Reauthorize clears an auth-disabled adapter after credential rotation.
func (h *Health) Reauthorize() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authDisabled = false
}

// LastFailure returns the most recently recorded failure kind and error.
func (h *Health) LastFailure() (FailureKind, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastKind, h.lastErr
}
