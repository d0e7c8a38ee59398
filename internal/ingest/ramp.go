package ingest

import "github.com/r3e-network/xrail/internal/domain/edge"

// NewOnRampAdapter simulates a fiat-to-crypto on-ramp provider (e.g. a
// card/bank-to-stablecoin purchase API).
func NewOnRampAdapter(providerID string, targets []Target) *QuoteAdapter {
	return NewQuoteAdapter(
		providerID,
		edge.ClassOnRamp,
		"https://"+providerID+".example/v1/onramp/quote?from=%s&to=%s",
		targets,
		QuotePaths{
			Rate:       "quote.rate",
			FeePercent: "quote.fee_percent",
			FixedFee:   "quote.network_fee",
		},
	)
}

// NewOffRampAdapter simulates a crypto-to-fiat off-ramp provider (the
// mirror image of NewOnRampAdapter).
func NewOffRampAdapter(providerID string, targets []Target) *QuoteAdapter {
	return NewQuoteAdapter(
		providerID,
		edge.ClassOffRamp,
		"https://"+providerID+".example/v1/offramp/quote?from=%s&to=%s",
		targets,
		QuotePaths{
			Rate:       "quote.rate",
			FeePercent: "quote.fee_percent",
			FixedFee:   "quote.network_fee",
		},
	)
}
