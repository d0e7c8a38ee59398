package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/transport"
)

// Target names one (from, to) conversion a QuoteAdapter is configured to
// price on each tick.
type Target struct {
	FromAsset   string
	FromNetwork string
	ToAsset     string
	ToNetwork   string
}

// QuotePaths names the gjson paths used to pull fields out of a provider's
// native JSON quote response, mirroring services/datafeeds.go's
// source.JSONPath convention but generalized to the several fields a route
// segment needs instead of a single price.
type QuotePaths struct {
	Rate        string // required: effective_rate (or gross rate, see GrossRate)
	FeePercent  string // optional: proportional fee, already expressed as percent
	FixedFee    string // optional: fixed fee in source units
	Reliability string // optional: provider-reported success probability
}

// QuoteAdapter is a generic Adapter driven by a URL template and a set of
// gjson field paths, grounded on services/datafeeds/datafeeds.go's
// fetchPriceFromSource (HTTP GET, gjson.GetBytes field extraction). One
// instance, configured differently, backs each of the six segment classes
// (§4.1's fx/crypto/bridge/on_ramp/off_ramp/bank_rail adapters).
type QuoteAdapter struct {
	providerID string
	class      edge.SegmentClass
	urlFormat  string // printf-style template taking (fromAsset, toAsset)
	targets    []Target
	paths      QuotePaths
	// GrossRate, when true, means Rate is the pre-fee gross rate and the
	// cost fields are broken out separately (§4.1's "otherwise the gross
	// rate with fees broken out" branch); when false, Rate is already the
	// post-fee effective rate.
	GrossRate bool
}

// NewQuoteAdapter builds a QuoteAdapter for one provider/segment-class pair.
func NewQuoteAdapter(providerID string, class edge.SegmentClass, urlFormat string, targets []Target, paths QuotePaths) *QuoteAdapter {
	return &QuoteAdapter{
		providerID: providerID,
		class:      class,
		urlFormat:  urlFormat,
		targets:    targets,
		paths:      paths,
	}
}

func (a *QuoteAdapter) ProviderID() string          { return a.providerID }
func (a *QuoteAdapter) SegmentClass() edge.SegmentClass { return a.class }

// Fetch implements Adapter. Every target is fetched independently; a
// per-target failure is classified and skipped, never aborting the rest of
// the tick (§4.1: "an adapter must never throw out of its tick").
func (a *QuoteAdapter) Fetch(ctx context.Context, deps Deps) TickResult {
	cred, err := deps.Credentials.Get(ctx, a.providerID)
	if err != nil {
		// Missing credentials disable the provider until rotation, the same
		// way a 401 would (§6: "Missing credentials disable the provider").
		return TickResult{Err: &AdapterError{Provider: a.providerID, Kind: FailureAuth, Detail: err.Error()}}
	}

	var edges []edge.RouteSegment
	var lastErr error
	now := deps.Clock.Now()

	for _, t := range a.targets {
		seg, err := a.fetchOne(ctx, deps, cred.APIKey, t, now)
		if err != nil {
			lastErr = err
			continue
		}
		edges = append(edges, Normalize(seg))
	}

	return TickResult{Edges: edges, Err: lastErr}
}

func (a *QuoteAdapter) fetchOne(ctx context.Context, deps Deps, apiKey string, t Target, observedAt time.Time) (edge.RouteSegment, error) {
	url := fmt.Sprintf(a.urlFormat, strings.ToLower(t.FromAsset), strings.ToLower(t.ToAsset))

	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}

	resp, err := deps.Transport.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		URL:     url,
		Headers: headers,
	})
	if err != nil {
		return edge.RouteSegment{}, classifyTransportError(a.providerID, err)
	}
	if kind := ClassifyStatus(resp.StatusCode); kind != FailureNone {
		return edge.RouteSegment{}, &AdapterError{Provider: a.providerID, Kind: kind, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	rateResult := gjson.GetBytes(resp.Body, a.paths.Rate)
	if !rateResult.Exists() {
		return edge.RouteSegment{}, &AdapterError{Provider: a.providerID, Kind: FailureParse, Detail: "rate field missing"}
	}

	feePercent := 0.0
	if a.paths.FeePercent != "" {
		if r := gjson.GetBytes(resp.Body, a.paths.FeePercent); r.Exists() {
			feePercent = r.Float()
		}
	}
	fixedFee := 0.0
	if a.paths.FixedFee != "" {
		if r := gjson.GetBytes(resp.Body, a.paths.FixedFee); r.Exists() {
			fixedFee = r.Float()
		}
	}

	effectiveRate := rateResult.Float()
	if a.GrossRate {
		effectiveRate = effectiveRate * (1 - feePercent/100)
	}

	reliability := 0.0
	if a.paths.Reliability != "" {
		if r := gjson.GetBytes(resp.Body, a.paths.Reliability); r.Exists() {
			reliability = r.Float()
		}
	}

	seg := edge.RouteSegment{
		SegmentClass: a.class,
		FromAsset:    edge.Asset(t.FromAsset),
		FromNetwork:  edge.Network(t.FromNetwork),
		ToAsset:      edge.Asset(t.ToAsset),
		ToNetwork:    edge.Network(t.ToNetwork),
		Provider:     a.providerID,
		Cost: edge.Cost{
			FeePercent:    feePercent,
			FixedFee:      fixedFee,
			EffectiveRate: effectiveRate,
		},
		Latency:     typicalLatencyFor(a.class),
		Reliability: reliability,
		ObservedAt:  observedAt,
	}
	if err := seg.Validate(); err != nil {
		return edge.RouteSegment{}, &AdapterError{Provider: a.providerID, Kind: FailureParse, Detail: err.Error()}
	}
	return seg, nil
}

// typicalLatencyFor supplies a per-class settlement window used when a
// provider's quote response carries no latency field of its own (the
// providers simulated here quote price and fee, not settlement time).
func typicalLatencyFor(class edge.SegmentClass) edge.Latency {
	switch class {
	case edge.ClassFX:
		return edge.Latency{MinMinutes: 5, MaxMinutes: 10}
	case edge.ClassBankRail:
		return edge.Latency{MinMinutes: 60, MaxMinutes: 1440}
	case edge.ClassCrypto:
		return edge.Latency{MinMinutes: 1, MaxMinutes: 15}
	case edge.ClassBridge:
		return edge.Latency{MinMinutes: 10, MaxMinutes: 45}
	case edge.ClassOnRamp, edge.ClassOffRamp:
		return edge.Latency{MinMinutes: 15, MaxMinutes: 60}
	default:
		return edge.Latency{MinMinutes: 1, MaxMinutes: 5}
	}
}
