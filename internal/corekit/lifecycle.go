package corekit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// RunState is the lifecycle state of a ServiceBase-embedding component:
// the ingest scheduler and the execution orchestrator share this readiness
// vocabulary.
type RunState int32

const (
	StateUninitialized RunState = iota
	StateReady
	StateNotReady
	StateStopped
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateNotReady:
		return "not-ready"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// ServiceBase provides the thread-safe ready/not-ready toggle shared by the
// long-running components in this module (the aggregator scheduler, the
// execution orchestrator), so each stops hand-rolling its own readiness
// tracking and Start/Stop bookkeeping.
type ServiceBase struct {
	state atomic.Int32
	name  atomic.Value // string

	mu        sync.RWMutex
	lastError error
}

// SetName records a display name used in error messages and logs.
func (b *ServiceBase) SetName(name string) {
	b.name.Store(strings.TrimSpace(name))
}

// Name returns the configured display name.
func (b *ServiceBase) Name() string {
	if v := b.name.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// MarkReady sets the ready/not-ready state.
func (b *ServiceBase) MarkReady(ready bool) {
	if ready {
		b.state.Store(int32(StateReady))
	} else {
		b.state.Store(int32(StateNotReady))
	}
}

// MarkStopped records a clean stop.
func (b *ServiceBase) MarkStopped() {
	b.state.Store(int32(StateStopped))
}

// MarkFailed records a terminal failure alongside its cause.
func (b *ServiceBase) MarkFailed(err error) {
	b.mu.Lock()
	b.lastError = err
	b.mu.Unlock()
	b.state.Store(int32(StateFailed))
}

// State returns the current run state.
func (b *ServiceBase) State() RunState { return RunState(b.state.Load()) }

// LastError returns the most recently recorded failure, if any.
func (b *ServiceBase) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError
}

// Ready returns an error describing why the component is not ready, or nil.
func (b *ServiceBase) Ready(context.Context) error {
	switch b.State() {
	case StateReady:
		return nil
	case StateFailed:
		return fmt.Errorf("%s: failed: %w", b.Name(), b.LastError())
	default:
		return fmt.Errorf("%s: not ready (%s)", b.Name(), b.State())
	}
}
