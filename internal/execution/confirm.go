package execution

import (
	"context"

	"github.com/r3e-network/xrail/internal/corekit"
	"github.com/r3e-network/xrail/internal/platform/clock"
	"github.com/r3e-network/xrail/pkg/metrics"

	"time"
)

// DefaultConfirmationPolls and DefaultConfirmationInterval implement §4.7's
// default poll budget: "default 30 polls, 5s interval."
const (
	DefaultConfirmationPolls    = 30
	DefaultConfirmationInterval = 5 * time.Second
)

// PollResult is one attempt's outcome, returned by the poll callback passed
// to PollUntilTerminal.
type PollResult struct {
	Terminal  bool
	Succeeded bool
	AmountOut float64
	FeesPaid  float64
}

// PollUntilTerminal implements the confirmation half of §4.7: poll with
// bounded iterations until the provider transaction reaches a terminal
// state, or return ErrConfirmationTimeout once the poll budget is
// exhausted. poll is called at most maxPolls times, waiting interval
// between calls via clk so tests can drive this deterministically with a
// mock clock.
func PollUntilTerminal(ctx context.Context, clk clock.Clock, provider string, maxPolls int, interval time.Duration, poll func(ctx context.Context) (PollResult, error)) (PollResult, error) {
	if maxPolls <= 0 {
		maxPolls = DefaultConfirmationPolls
	}
	if interval <= 0 {
		interval = DefaultConfirmationInterval
	}

	for attempt := 1; attempt <= maxPolls; attempt++ {
		result, err := poll(ctx)
		if err != nil {
			if corekit.IsTransient(err) && attempt < maxPolls {
				if waitErr := clock.WaitForDeadline(ctx, clk, interval); waitErr != nil {
					return PollResult{}, waitErr
				}
				continue
			}
			return PollResult{}, err
		}
		if result.Terminal {
			metrics.RecordConfirmationPolls(provider, attempt)
			return result, nil
		}
		if attempt == maxPolls {
			break
		}
		if err := clock.WaitForDeadline(ctx, clk, interval); err != nil {
			return PollResult{}, err
		}
	}

	metrics.RecordConfirmationPolls(provider, maxPolls)
	return PollResult{}, corekit.ErrConfirmationTimeout
}
