package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// AdapterError carries a provider ID and its classified FailureKind,
// surfaced from a tick but never raised out of it (§4.1).
type AdapterError struct {
	Provider string
	Kind     FailureKind
	Detail   string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, kindName(e.Kind), e.Detail)
}

func kindName(k FailureKind) string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	case FailureAuth:
		return "auth"
	case FailureRateLimited:
		return "rate_limited"
	case FailureParse:
		return "parse"
	default:
		return "none"
	}
}

// ClassifyStatus maps an HTTP status code to a FailureKind, FailureNone for
// 2xx. 429 is rate_limited; 401/403 are auth; other 4xx are permanent; 5xx
// are transient.
func ClassifyStatus(status int) FailureKind {
	switch {
	case status >= 200 && status < 300:
		return FailureNone
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuth
	case status >= 400 && status < 500:
		return FailurePermanent
	default:
		return FailureTransient
	}
}

// classifyTransportError classifies a transport-level error (connection
// refused, timeout, context deadline) as transient — these never indicate a
// permanent provider-side rejection.
func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &AdapterError{Provider: provider, Kind: FailureTransient, Detail: "deadline exceeded"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &AdapterError{Provider: provider, Kind: FailureTransient, Detail: netErr.Error()}
	}
	return &AdapterError{Provider: provider, Kind: FailureTransient, Detail: err.Error()}
}
