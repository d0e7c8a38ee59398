package corekit

import (
	"context"
	"time"
)

// RetryPolicy governs retry behavior shared by the adapter backoff state
// machine (§4.1) and the segment executor's retry-on-transient behavior
// (§4.7).
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// SegmentExecutorRetryPolicy implements §4.7: "retry up to 2 additional
// times with exponential backoff (1s, 4s)" — three attempts total.
var SegmentExecutorRetryPolicy = RetryPolicy{
	Attempts:       3,
	InitialBackoff: time.Second,
	MaxBackoff:     4 * time.Second,
	Multiplier:     4,
}

// AdapterBackoffPolicy implements §4.1's permanent-error disable window:
// "initial 30s, doubling to a 10-minute cap." It is consulted by the
// ingestion adapter health state machine, not by Retry itself — an adapter
// backoff spans ticks, not a single call.
var AdapterBackoffPolicy = RetryPolicy{
	Attempts:       0,
	InitialBackoff: 30 * time.Second,
	MaxBackoff:     10 * time.Minute,
	Multiplier:     2,
}

// NextBackoff advances a backoff duration under a policy, doubling (or
// applying the configured multiplier) up to MaxBackoff.
func (p RetryPolicy) NextBackoff(current time.Duration) time.Duration {
	if current <= 0 {
		return p.InitialBackoff
	}
	next := time.Duration(float64(current) * p.Multiplier)
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		return p.MaxBackoff
	}
	return next
}

// Retry executes fn under policy, retrying only on errors for which
// shouldRetry returns true. It returns the last error encountered, or nil on
// success. shouldRetry may be nil, in which case every error is retried —
// callers performing segment execution pass IsTransient so permanent and
// auth errors propagate on the first attempt (§4.7: "Permanent errors
// propagate as failed outcomes").
func Retry(ctx context.Context, policy RetryPolicy, shouldRetry func(error) bool, fn func() error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 1
	}
	backoff := policy.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if attempt == policy.Attempts {
			return err
		}
		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = policy.NextBackoff(backoff)
		}
	}
	return lastErr
}
