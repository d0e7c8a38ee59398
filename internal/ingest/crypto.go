package ingest

import "github.com/r3e-network/xrail/internal/domain/edge"

// NewKrakenAdapter simulates a crypto exchange order-book/quote provider
// shaped like Kraken's public ticker: `{"result": {"rate": ..., "fee_pct":
// ...}}`-style JSON per pair.
func NewKrakenAdapter(targets []Target) *QuoteAdapter {
	return NewQuoteAdapter(
		"kraken",
		edge.ClassCrypto,
		"https://api.kraken.example/0/public/Ticker?from=%s&to=%s",
		targets,
		QuotePaths{
			Rate:        "result.rate",
			FeePercent:  "result.fee_pct",
			Reliability: "result.reliability",
		},
	)
}
