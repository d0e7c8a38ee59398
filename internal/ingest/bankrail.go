package ingest

import "github.com/r3e-network/xrail/internal/domain/edge"

// NewBankRailAdapter simulates a SWIFT/ACH-like bank wire rail's quote
// endpoint: a fixed wire fee plus a near-1.0 conversion rate for same-asset
// corridors, or a real FX rate for cross-currency wires.
func NewBankRailAdapter(providerID string, targets []Target) *QuoteAdapter {
	return NewQuoteAdapter(
		providerID,
		edge.ClassBankRail,
		"https://"+providerID+".example/v1/wire/quote?from=%s&to=%s",
		targets,
		QuotePaths{
			Rate:       "rate",
			FeePercent: "fee_percent",
			FixedFee:   "wire_fee",
		},
	)
}
