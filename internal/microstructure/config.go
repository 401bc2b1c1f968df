package microstructure

import "time"

// Config holds the analyzer's tunable parameters. It is read-only once
// constructed and is threaded explicitly through every call.
type Config struct {
	// TopNLevels is how many levels per side upstream aggregates into
	// BidDepthTopN/AskDepthTopN.
	TopNLevels int
	// WideSpreadThreshold is the spread above which a quote is too wide to
	// display as the midpoint. Inclusive: a spread exactly at the threshold
	// still counts as narrow.
	WideSpreadThreshold float64
	// DivergenceThreshold is the midpoint/last-trade gap above which quotes
	// and trades are considered to disagree.
	DivergenceThreshold float64
	// DepthReference is the top-N depth that scores as a fully healthy book.
	DepthReference float64
	// DepthTargetSize is the notional filled when simulating execution
	// against the book.
	DepthTargetSize float64
	// TradeReferenceSize is the total traded size that scores as full trade
	// support.
	TradeReferenceSize float64
	// TinyTradeThreshold is the trade size below which the latest print is
	// penalized as too small to trust.
	TinyTradeThreshold float64
	// StaleTradeThreshold is the trade age at which recency bottoms out.
	StaleTradeThreshold time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TopNLevels:          3,
		WideSpreadThreshold: 0.10,
		DivergenceThreshold: 0.08,
		DepthReference:      5000,
		DepthTargetSize:     1000,
		TradeReferenceSize:  1200,
		TinyTradeThreshold:  75,
		StaleTradeThreshold: 180 * time.Second,
	}
}
