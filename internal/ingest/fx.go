package ingest

import "github.com/r3e-network/xrail/internal/domain/edge"

// NewFrankfurterAdapter simulates an fx quote provider shaped like the
// Frankfurter/openexchangerates family: `{"rate": 0.85, "fee_percent": 0}`-style
// JSON per pair, one HTTP GET per configured currency pair.
func NewFrankfurterAdapter(targets []Target) *QuoteAdapter {
	a := NewQuoteAdapter(
		"frankfurter",
		edge.ClassFX,
		"https://api.frankfurter.example/v1/quote?from=%s&to=%s",
		targets,
		QuotePaths{
			Rate:       "rate",
			FeePercent: "fee_percent",
		},
	)
	return a
}

// NewOpenExchangeRatesAdapter simulates a second fx provider with a gross
// rate and fees broken out separately, exercising the GrossRate branch of
// §4.1's normalization rules.
func NewOpenExchangeRatesAdapter(targets []Target) *QuoteAdapter {
	a := NewQuoteAdapter(
		"openexchangerates",
		edge.ClassFX,
		"https://openexchangerates.example/api/latest?base=%s&symbols=%s",
		targets,
		QuotePaths{
			Rate:       "gross_rate",
			FeePercent: "fee_percent",
		},
	)
	a.GrossRate = true
	return a
}
