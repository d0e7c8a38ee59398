package ingest

import "github.com/r3e-network/xrail/internal/domain/edge"

// NewBridgeAdapter simulates a cross-chain bridge quote provider (e.g. a
// canonical-bridge or third-party relayer API) returning a net conversion
// rate plus a fixed protocol fee in source-asset units.
func NewBridgeAdapter(providerID string, targets []Target) *QuoteAdapter {
	return NewQuoteAdapter(
		providerID,
		edge.ClassBridge,
		"https://"+providerID+".example/v1/quote?from=%s&to=%s",
		targets,
		QuotePaths{
			Rate:       "rate",
			FeePercent: "fee_percent",
			FixedFee:   "fixed_fee",
		},
	)
}
