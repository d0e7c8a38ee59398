// Package corekit holds the cross-cutting helpers shared by ingestion,
// routing, and execution: the error taxonomy, retry policy, observation
// hooks, the tracer interface, and operation descriptors.
package corekit

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy's error kinds (§7). Concrete error types
// below wrap one of these via Unwrap so callers can test with errors.Is.
var (
	// ErrValidation indicates the caller supplied invalid inputs.
	ErrValidation = errors.New("validation error")

	// ErrNoRouteFound indicates the optimizer returned no admissible path.
	// This is not a system failure; it is surfaced to the caller verbatim.
	ErrNoRouteFound = errors.New("no route found")

	// ErrNotConfigured indicates a required provider credential is missing.
	ErrNotConfigured = errors.New("not configured")

	// ErrProviderTransient indicates a network/5xx/timeout condition.
	ErrProviderTransient = errors.New("provider transient error")

	// ErrProviderPermanent indicates a non-auth 4xx condition.
	ErrProviderPermanent = errors.New("provider permanent error")

	// ErrProviderAuth indicates a 401/403 condition.
	ErrProviderAuth = errors.New("provider auth error")

	// ErrRateLimited indicates a 429 or provider-specific rate-limit signal.
	ErrRateLimited = errors.New("rate limited")

	// ErrFundingFailed indicates a bank-rail create succeeded but the
	// subsequent fund call failed.
	ErrFundingFailed = errors.New("funding failed")

	// ErrConfirmationTimeout indicates the confirmation poll budget was
	// exhausted before the provider transaction reached a terminal state.
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrPreconditionFailed indicates a control operation was applied to an
	// execution in the wrong state.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInternal indicates a defect reached the caller.
	ErrInternal = errors.New("internal error")

	// ErrNotSupported indicates a segment executor's cancel or modify hook
	// was called against a provider whose rail does not support the
	// operation (§4.7: "cancel usually unsupported (surfaces as
	// NotSupported)").
	ErrNotSupported = errors.New("not supported")
)

// ValidationError carries the offending field alongside ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for a specific field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ProviderError carries the provider name and the remote call's classified
// kind, wrapping one of ErrProviderTransient/ErrProviderPermanent/
// ErrProviderAuth/ErrRateLimited.
type ProviderError struct {
	Provider string
	Kind     error
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Kind }

// NewProviderError builds a ProviderError of the given classified kind.
func NewProviderError(provider string, kind error, cause error) error {
	return &ProviderError{Provider: provider, Kind: kind, Cause: cause}
}

// FundingError distinguishes "transfer created but not funded" from "no
// transfer created at all" (§7).
type FundingError struct {
	ProviderTxnID string
	Cause         error
}

func (e *FundingError) Error() string {
	return fmt.Sprintf("funding failed for txn %q: %v", e.ProviderTxnID, e.Cause)
}

func (e *FundingError) Unwrap() error { return ErrFundingFailed }

// NewFundingError builds a FundingError for an already-created transfer.
func NewFundingError(providerTxnID string, cause error) error {
	return &FundingError{ProviderTxnID: providerTxnID, Cause: cause}
}

// PreconditionError names the execution and the state it was found in when
// a control operation was rejected.
type PreconditionError struct {
	ExecutionID string
	Operation   string
	State       string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: cannot %s while in state %q", e.ExecutionID, e.Operation, e.State)
}

func (e *PreconditionError) Unwrap() error { return ErrPreconditionFailed }

// NewPreconditionError builds a PreconditionError.
func NewPreconditionError(executionID, operation, state string) error {
	return &PreconditionError{ExecutionID: executionID, Operation: operation, State: state}
}

// NoRouteError carries a human-readable reason alongside ErrNoRouteFound.
type NoRouteError struct {
	From, To string
	Reason   string
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no route from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *NoRouteError) Unwrap() error { return ErrNoRouteFound }

// NewNoRouteError builds a NoRouteError.
func NewNoRouteError(from, to, reason string) error {
	return &NoRouteError{From: from, To: to, Reason: reason}
}

// IsTransient reports whether err should be treated as retryable (transient
// or rate_limited per §7's propagation policy).
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderTransient) || errors.Is(err, ErrRateLimited)
}

// IsAuth reports whether err indicates the provider disabled credentials.
func IsAuth(err error) bool {
	return errors.Is(err, ErrProviderAuth)
}
