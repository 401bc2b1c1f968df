// Package microstructure derives a manipulation-resistant probability
// estimate for one binary market outcome from an order-book snapshot and a
// window of recent trade prints.
package microstructure

import "time"

// Side is the taker side of a trade print.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Level is one price level of the book. Price is a probability in [0,1],
// Size is non-negative (validated by the upstream mapper).
type Level struct {
	Price float64
	Size  float64
}

// OrderBookView is an immutable snapshot of one outcome's order book.
// Optional prices are nil when the source did not report them.
type OrderBookView struct {
	MarketID     string
	OutcomeID    string
	Timestamp    time.Time
	BestBid      *float64
	BestAsk      *float64
	Spread       *float64
	Midpoint     *float64
	BidDepthTopN float64
	AskDepthTopN float64
	TickSize     float64 // carried through for consumers, unused by the scoring
	BidLevels    []Level
	AskLevels    []Level
}

// TradeView is one trade print. The input list need not be ordered; the
// analyzer treats the maximum-timestamp entry as the latest trade.
type TradeView struct {
	Timestamp time.Time
	Price     float64
	Size      float64
	Side      Side
}

// OutcomeContext carries the identifiers and the last trusted probability to
// fall back on when no reliable derived signal exists.
type OutcomeContext struct {
	MarketID            string
	OutcomeID           string
	FallbackProbability float64
}
