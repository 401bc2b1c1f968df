package microstructure

// manipulationRisk combines the reliability deficit with structural red
// flags: wide spread, missing or shallow book, tiny latest print, and
// quote/trade disagreement. The flags are independent and may stack.
func (a *Analyzer) manipulationRisk(snapshot *OrderBookView, trades []TradeView, latest *TradeView, bookReliability, tradeReliability, divergence float64) float64 {
	risk := 1 - (0.65*bookReliability + 0.35*tradeReliability)

	if snapshot != nil && snapshot.Spread != nil && *snapshot.Spread > a.config.WideSpreadThreshold {
		risk += 0.12
	}

	if snapshot == nil {
		risk += 0.10
	} else if min(snapshot.BidDepthTopN, snapshot.AskDepthTopN) < 0.2*a.config.DepthReference {
		risk += 0.12
	}

	if len(trades) > 0 {
		if latest != nil && latest.Size < a.config.TinyTradeThreshold {
			risk += 0.08
		}
		if divergence > a.config.DivergenceThreshold {
			risk += 0.12
		}
	} else {
		risk += 0.05
	}

	return clamp(risk, 0, 1)
}
