package microstructure

import "math"

// tradeReliability scores how much the trade window can be trusted:
// 45% total size, 30% recency against the snapshot, 25% agreement with the
// quote, minus a flat penalty when the latest print is tiny. Zero without
// trades.
func (a *Analyzer) tradeReliability(snapshot *OrderBookView, trades []TradeView, latest *TradeView, divergence float64) float64 {
	if len(trades) == 0 {
		return 0
	}

	var totalSize float64
	for _, trade := range trades {
		totalSize += max(trade.Size, 0)
	}
	sizeScore := min(math.Log1p(totalSize)/math.Log1p(a.config.TradeReferenceSize), 1)

	recencyScore := 1.0
	if snapshot != nil && latest != nil {
		age := snapshot.Timestamp.Sub(latest.Timestamp).Abs().Seconds()
		recencyScore = 1 - min(age/a.config.StaleTradeThreshold.Seconds(), 1)
	}

	// Without a quote to compare against, confirmation is a neutral 0.6.
	confirmationScore := 0.6
	if snapshot != nil {
		confirmationScore = 1 - min(divergence/a.config.DivergenceThreshold, 1)
	}

	var tinyTradePenalty float64
	if latest != nil && latest.Size < a.config.TinyTradeThreshold {
		tinyTradePenalty = 0.20
	}

	score := 0.45*sizeScore + 0.30*recencyScore + 0.25*confirmationScore - tinyTradePenalty
	return clamp(score, 0, 1)
}

// bookReliability scores the snapshot: 35% depth, 25% spread, 25% trade
// confirmation, 15% bid/ask balance. Without a snapshot it is 0.2 when trades
// exist and 0 otherwise.
func (a *Analyzer) bookReliability(snapshot *OrderBookView, hasTrades bool, depthImbalance, divergence, tradeReliability float64) float64 {
	if snapshot == nil {
		if hasTrades {
			return 0.2
		}
		return 0
	}

	minDepth := min(snapshot.BidDepthTopN, snapshot.AskDepthTopN)
	depthScore := min(math.Log1p(minDepth)/math.Log1p(a.config.DepthReference), 1)

	var spreadScore float64
	if snapshot.Spread != nil {
		spreadScore = 1 - min(*snapshot.Spread/a.config.WideSpreadThreshold, 1)
	}

	// Trade support is clamped by divergence: a large recent trade that
	// disagrees with the quote does not vouch for the book.
	tradeScore := 0.25
	if hasTrades {
		divergenceScore := 1 - min(divergence/a.config.DivergenceThreshold, 1)
		tradeScore = 0.4 + 0.6*min(tradeReliability, divergenceScore)
	}

	balanceScore := 1 - min(math.Abs(depthImbalance), 1)

	score := 0.35*depthScore + 0.25*spreadScore + 0.25*tradeScore + 0.15*balanceScore
	return clamp(score, 0, 1)
}
