package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/r3e-network/xrail/internal/corekit"
	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/clock"
	"github.com/r3e-network/xrail/internal/platform/credentials"
	"github.com/r3e-network/xrail/internal/platform/transport"
)

// ProviderSpec configures a generic, real-mode ProviderExecutor for one
// segment class family, mirroring ingest.QuoteAdapter's URL-template + gjson
// field-path approach on the execution side of the same providers (§4.7's
// "invoke the underlying provider adapter's execution-side methods").
type ProviderSpec struct {
	SegmentClass edge.SegmentClass

	// RequiresFunding marks the bank-rail family's create->fund->poll flow
	// (§4.7: "if the provider model requires a separate fund step").
	RequiresFunding bool
	// SupportsCancel marks rails whose provider accepts pre-settlement
	// cancellation (§4.7 per-class specifics).
	SupportsCancel bool

	CreateURLFormat string // printf template taking (fromAsset, toAsset)
	FundURLFormat   string // printf template taking (providerTxnID)
	PollURLFormat   string // printf template taking (providerTxnID)
	CancelURLFormat string // printf template taking (providerTxnID)

	TxnIDPath     string
	StatusPath    string
	AmountOutPath string
	FeesPaidPath  string
	SuccessStatus string
	FailureStatus string

	ConfirmationPolls    int
	ConfirmationInterval time.Duration
	PerClassCap          float64
}

// ProviderExecutor is the real-mode SegmentExecutor: create, optionally
// fund, then poll for confirmation, with retry-on-transient at every
// external call per §4.7.
type ProviderExecutor struct {
	spec        ProviderSpec
	transport   transport.Transport
	credentials credentials.Store
	clk         clock.Clock
}

// NewProviderExecutor builds a ProviderExecutor for one provider's segment
// class.
func NewProviderExecutor(spec ProviderSpec, t transport.Transport, creds credentials.Store, clk clock.Clock) *ProviderExecutor {
	return &ProviderExecutor{spec: spec, transport: t, credentials: creds, clk: clk}
}

// Execute implements SegmentExecutor.
func (p *ProviderExecutor) Execute(ctx context.Context, seg edge.RouteSegment, amountIn float64) (Outcome, error) {
	if err := ValidateInput(seg, amountIn, p.spec.PerClassCap); err != nil {
		return Outcome{}, err
	}

	cred, err := p.credentials.Get(ctx, seg.Provider)
	if err != nil {
		return Outcome{Status: edge.SegmentFailed}, fmt.Errorf("%s: %w: %v", seg.Provider, corekit.ErrNotConfigured, err)
	}

	txnID, err := p.create(ctx, seg, amountIn, cred.APIKey)
	if err != nil {
		return Outcome{Status: edge.SegmentFailed}, err
	}

	if p.spec.RequiresFunding {
		if err := p.fund(ctx, txnID, cred.APIKey); err != nil {
			return Outcome{Status: edge.SegmentFailed, ProviderTxnID: txnID}, corekit.NewFundingError(txnID, err)
		}
	}

	result, err := PollUntilTerminal(ctx, p.clk, seg.Provider, p.spec.ConfirmationPolls, p.spec.ConfirmationInterval,
		func(ctx context.Context) (PollResult, error) { return p.poll(ctx, txnID, cred.APIKey) })
	if err != nil {
		return Outcome{Status: edge.SegmentFailed, ProviderTxnID: txnID}, err
	}
	if !result.Succeeded {
		return Outcome{Status: edge.SegmentFailed, ProviderTxnID: txnID}, fmt.Errorf("%s: settlement reported failure", seg.Provider)
	}

	return Outcome{
		Status:        edge.SegmentSucceeded,
		AmountOut:     result.AmountOut,
		FeesPaid:      result.FeesPaid,
		ProviderTxnID: txnID,
	}, nil
}

// Cancel implements Canceller.
func (p *ProviderExecutor) Cancel(ctx context.Context, providerTxnID string) error {
	if !p.spec.SupportsCancel {
		return fmt.Errorf("%s: %w", p.spec.SegmentClass, corekit.ErrNotSupported)
	}
	url := fmt.Sprintf(p.spec.CancelURLFormat, providerTxnID)
	_, err := p.doWithRetry(ctx, http.MethodPost, url, nil, "")
	return err
}

// Modify implements Modifier for the crypto family's "modify =
// cancel+recreate": it cancels the existing order; the caller is
// responsible for issuing a fresh Execute call to recreate it.
func (p *ProviderExecutor) Modify(ctx context.Context, providerTxnID string, _ edge.RouteSegment) error {
	return p.Cancel(ctx, providerTxnID)
}

func (p *ProviderExecutor) create(ctx context.Context, seg edge.RouteSegment, amountIn float64, apiKey string) (string, error) {
	url := fmt.Sprintf(p.spec.CreateURLFormat, seg.FromAsset, seg.ToAsset)
	body, _ := json.Marshal(map[string]interface{}{
		"from_asset": seg.FromAsset,
		"to_asset":   seg.ToAsset,
		"amount":     amountIn,
	})
	resp, err := p.doWithRetry(ctx, http.MethodPost, url, bytes.NewReader(body), apiKey)
	if err != nil {
		return "", err
	}
	txnID := gjson.GetBytes(resp, p.spec.TxnIDPath)
	if !txnID.Exists() {
		return "", fmt.Errorf("%s: create response missing %q", seg.Provider, p.spec.TxnIDPath)
	}
	return txnID.String(), nil
}

func (p *ProviderExecutor) fund(ctx context.Context, txnID, apiKey string) error {
	url := fmt.Sprintf(p.spec.FundURLFormat, txnID)
	_, err := p.doWithRetry(ctx, http.MethodPost, url, nil, apiKey)
	return err
}

func (p *ProviderExecutor) poll(ctx context.Context, txnID, apiKey string) (PollResult, error) {
	url := fmt.Sprintf(p.spec.PollURLFormat, txnID)
	resp, err := p.doWithRetry(ctx, http.MethodGet, url, nil, apiKey)
	if err != nil {
		return PollResult{}, err
	}
	status := gjson.GetBytes(resp, p.spec.StatusPath).String()
	switch status {
	case p.spec.SuccessStatus:
		return PollResult{
			Terminal:  true,
			Succeeded: true,
			AmountOut: gjson.GetBytes(resp, p.spec.AmountOutPath).Float(),
			FeesPaid:  gjson.GetBytes(resp, p.spec.FeesPaidPath).Float(),
		}, nil
	case p.spec.FailureStatus:
		return PollResult{Terminal: true, Succeeded: false}, nil
	default:
		return PollResult{Terminal: false}, nil
	}
}

// doWithRetry performs one HTTP call, retrying up to
// corekit.SegmentExecutorRetryPolicy's budget on a transient classification
// (§4.7: "retry up to 2 additional times with exponential backoff").
func (p *ProviderExecutor) doWithRetry(ctx context.Context, method, url string, body *bytes.Reader, apiKey string) ([]byte, error) {
	var result []byte

	err := corekit.Retry(ctx, corekit.SegmentExecutorRetryPolicy, corekit.IsTransient, func() error {
		headers := map[string]string{"Content-Type": "application/json"}
		if apiKey != "" {
			headers["Authorization"] = "Bearer " + apiKey
		}
		req := transport.Request{Method: method, URL: url, Headers: headers}
		if body != nil {
			body.Seek(0, io.SeekStart)
			req.Body = body
		}
		resp, err := p.transport.Do(ctx, req)
		if err != nil {
			return classifyTransportErr(err)
		}
		if kind := classifyStatus(resp.StatusCode); kind != nil {
			return kind
		}
		result = resp.Body
		return nil
	})
	return result, err
}

// classifyStatus maps an HTTP status to the corekit provider error taxonomy
// (§7), mirroring ingest.ClassifyStatus on the execution side.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return corekit.NewProviderError("", corekit.ErrRateLimited, fmt.Errorf("status %d", status))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return corekit.NewProviderError("", corekit.ErrProviderAuth, fmt.Errorf("status %d", status))
	case status >= 400 && status < 500:
		return corekit.NewProviderError("", corekit.ErrProviderPermanent, fmt.Errorf("status %d", status))
	default:
		return corekit.NewProviderError("", corekit.ErrProviderTransient, fmt.Errorf("status %d", status))
	}
}

// classifyTransportErr classifies a transport-level error (connection
// refused, timeout, context deadline) as transient.
func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return corekit.NewProviderError("", corekit.ErrProviderTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return corekit.NewProviderError("", corekit.ErrProviderTransient, err)
	}
	return corekit.NewProviderError("", corekit.ErrProviderTransient, err)
}
