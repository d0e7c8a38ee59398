package corekit

import (
	"context"
	"time"
)

// ObservationHooks captures optional callbacks invoked around ingestion
// ticks, route optimizations, and execution segments, independent of any
// specific metrics backend.
type ObservationHooks struct {
	OnStart    func(ctx context.Context, meta map[string]string)
	OnComplete func(ctx context.Context, meta map[string]string, err error, duration time.Duration)
}

// NoopObservationHooks is the safe zero value, used when a caller has not
// wired metrics or tracing.
var NoopObservationHooks = ObservationHooks{}

// StartObservation fires OnStart and returns a completion callback that
// fires OnComplete with the elapsed duration.
func StartObservation(ctx context.Context, hooks ObservationHooks, meta map[string]string) func(error) {
	if hooks.OnStart != nil {
		hooks.OnStart(ctx, meta)
	}
	start := time.Now()
	return func(err error) {
		if hooks.OnComplete != nil {
			hooks.OnComplete(ctx, meta, err, time.Since(start))
		}
	}
}
