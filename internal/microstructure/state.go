package microstructure

import "time"

// PriceSource says which rule picked the displayed probability.
type PriceSource string

const (
	SourceMidpoint  PriceSource = "midpoint"
	SourceLastTrade PriceSource = "last_trade"
	SourceDerived   PriceSource = "derived"
)

// SignalWeights is the trust assigned to each probability anchor.
// All fields are non-negative and sum to 1 within 1e-6.
type SignalWeights struct {
	Displayed      float64 `json:"displayed"`
	BookAnchor     float64 `json:"book_anchor"`
	TradeAnchor    float64 `json:"trade_anchor"`
	FallbackAnchor float64 `json:"fallback_anchor"`
}

// State is the result of one analysis call. It is immutable once returned.
type State struct {
	ID                    string        `json:"id"`
	MarketID              string        `json:"market_id"`
	OutcomeID             string        `json:"outcome_id"`
	Timestamp             time.Time     `json:"timestamp"`
	DisplayedProbability  float64       `json:"displayed_probability"`
	DisplayPriceSource    PriceSource   `json:"display_price_source"`
	RobustProbability     float64       `json:"robust_probability"`
	BookReliabilityScore  float64       `json:"book_reliability_score"`
	TradeReliabilityScore float64       `json:"trade_reliability_score"`
	ManipulationRiskScore float64       `json:"manipulation_risk_score"`
	DepthImbalance        float64       `json:"depth_imbalance"`
	QuoteTradeDivergence  float64       `json:"quote_trade_divergence"`
	SignalWeights         SignalWeights `json:"signal_weights"`
	ExplanatoryTags       []string      `json:"explanatory_tags"`
	SourceID              string        `json:"source_id"`
}
