package microstructure

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoMarketData is returned when neither a book snapshot nor any trade is
// supplied; without either there is no timestamp to anchor the analysis to.
var ErrNoMarketData = errors.New("no market data: need a book snapshot or at least one trade")

// Analyzer blends the displayed price, a depth-weighted book anchor, a trade
// VWAP anchor, and the fallback probability into one robust probability,
// weighting each anchor by how reliable it currently looks.
//
// An Analyzer is stateless apart from its read-only config and is safe for
// concurrent use.
type Analyzer struct {
	config Config
}

// New creates an Analyzer with the given config.
func New(config Config) *Analyzer {
	return &Analyzer{config: config}
}

// Analyze scores one outcome from a snapshot and a trade window. snapshot may
// be nil and trades may be empty, but not both at once.
func (a *Analyzer) Analyze(outcome OutcomeContext, snapshot *OrderBookView, trades []TradeView, sourceID string) (*State, error) {
	if snapshot == nil && len(trades) == 0 {
		return nil, ErrNoMarketData
	}

	latest := latestTrade(trades)
	displayed, displaySource := a.displayedProbability(snapshot, latest, outcome.FallbackProbability)
	depthImbalance := depthImbalance(snapshot)
	divergence := quoteTradeDivergence(snapshot, latest)
	bookAnchor, bookAnchorOK := a.depthWeightedMid(snapshot)
	tradeAnchor, tradeAnchorOK := a.tradeAnchor(trades)

	tradeReliability := a.tradeReliability(snapshot, trades, latest, divergence)
	bookReliability := a.bookReliability(snapshot, len(trades) > 0, depthImbalance, divergence, tradeReliability)

	weights := a.signalWeights(displaySource, bookAnchorOK, tradeAnchorOK, bookReliability, tradeReliability)
	robust := a.robustProbability(displayed, bookAnchor, bookAnchorOK, tradeAnchor, tradeAnchorOK, outcome.FallbackProbability, weights)
	risk := a.manipulationRisk(snapshot, trades, latest, bookReliability, tradeReliability, divergence)
	tags := a.explanatoryTags(snapshot, trades, latest, bookReliability, tradeReliability, risk, divergence, depthImbalance, weights)

	timestamp := snapshotTimestamp(snapshot, latest)

	return &State{
		ID:                    fmt.Sprintf("mms_%s_%s", outcome.OutcomeID, timestamp.UTC().Format("20060102_150405")),
		MarketID:              outcome.MarketID,
		OutcomeID:             outcome.OutcomeID,
		Timestamp:             timestamp,
		DisplayedProbability:  displayed,
		DisplayPriceSource:    displaySource,
		RobustProbability:     robust,
		BookReliabilityScore:  bookReliability,
		TradeReliabilityScore: tradeReliability,
		ManipulationRiskScore: risk,
		DepthImbalance:        depthImbalance,
		QuoteTradeDivergence:  divergence,
		SignalWeights:         weights,
		ExplanatoryTags:       tags,
		SourceID:              sourceID,
	}, nil
}

// displayedProbability picks the price a user would see, by priority:
// narrow-spread midpoint, latest trade, any midpoint, latest trade, fallback.
// An unknown spread counts as narrow.
func (a *Analyzer) displayedProbability(snapshot *OrderBookView, latest *TradeView, fallback float64) (float64, PriceSource) {
	if snapshot != nil && snapshot.BestBid != nil && snapshot.BestAsk != nil &&
		floatOrZero(snapshot.Spread) <= a.config.WideSpreadThreshold && snapshot.Midpoint != nil {
		return clampProbability(*snapshot.Midpoint), SourceMidpoint
	}
	if latest != nil {
		return clampProbability(latest.Price), SourceLastTrade
	}
	if snapshot != nil && snapshot.Midpoint != nil {
		return clampProbability(*snapshot.Midpoint), SourceMidpoint
	}
	return clampProbability(fallback), SourceDerived
}

// depthImbalance is the relative skew between top-N bid and ask depth,
// in [-1,1]. Zero when there is no snapshot or no depth.
func depthImbalance(snapshot *OrderBookView) float64 {
	if snapshot == nil {
		return 0
	}
	total := snapshot.BidDepthTopN + snapshot.AskDepthTopN
	if total <= 0 {
		return 0
	}
	return (snapshot.BidDepthTopN - snapshot.AskDepthTopN) / total
}

// quoteTradeDivergence is the absolute gap between the book midpoint and the
// latest trade price. Zero when either side is unavailable.
func quoteTradeDivergence(snapshot *OrderBookView, latest *TradeView) float64 {
	if snapshot == nil || latest == nil || snapshot.Midpoint == nil {
		return 0
	}
	gap := *snapshot.Midpoint - latest.Price
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// latestTrade returns the maximum-timestamp trade; on equal timestamps the
// later list entry wins. Nil for an empty window.
func latestTrade(trades []TradeView) *TradeView {
	if len(trades) == 0 {
		return nil
	}
	latest := 0
	for i := 1; i < len(trades); i++ {
		if !trades[i].Timestamp.Before(trades[latest].Timestamp) {
			latest = i
		}
	}
	return &trades[latest]
}

func snapshotTimestamp(snapshot *OrderBookView, latest *TradeView) time.Time {
	if snapshot != nil {
		return snapshot.Timestamp
	}
	return latest.Timestamp
}

func floatOrZero(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

func clampProbability(value float64) float64 {
	return clamp(value, 0, 1)
}

func clamp(value, low, high float64) float64 {
	return max(low, min(high, value))
}
