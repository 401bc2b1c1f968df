package microstructure

// signalWeights allocates trust across the four anchors from the reliability
// scores and which anchors actually resolved, then normalizes so the weights
// sum to exactly one.
func (a *Analyzer) signalWeights(displaySource PriceSource, bookAnchorOK, tradeAnchorOK bool, bookReliability, tradeReliability float64) SignalWeights {
	var w SignalWeights
	if bookAnchorOK {
		w.BookAnchor = 0.50 * bookReliability
	}
	if tradeAnchorOK {
		w.TradeAnchor = 0.35 * tradeReliability
	}
	switch displaySource {
	case SourceMidpoint:
		w.Displayed = 0.15 * bookReliability
	case SourceLastTrade:
		w.Displayed = 0.10 * tradeReliability
	default:
		w.Displayed = 0.05
	}

	total := w.Displayed + w.BookAnchor + w.TradeAnchor
	if total > 1 {
		scale := 1 / total
		w.Displayed *= scale
		w.BookAnchor *= scale
		w.TradeAnchor *= scale
		total = 1
	}
	w.FallbackAnchor = max(0, 1-total)

	total = w.Displayed + w.BookAnchor + w.TradeAnchor + w.FallbackAnchor
	if total <= 0 {
		return SignalWeights{FallbackAnchor: 1}
	}
	w.Displayed /= total
	w.BookAnchor /= total
	w.TradeAnchor /= total
	w.FallbackAnchor /= total
	return w
}

// robustProbability blends the four anchor prices by their weights. Anchors
// that did not resolve contribute the fallback probability instead.
func (a *Analyzer) robustProbability(displayed, bookAnchor float64, bookAnchorOK bool, tradeAnchor float64, tradeAnchorOK bool, fallback float64, w SignalWeights) float64 {
	bookPrice := fallback
	if bookAnchorOK {
		bookPrice = bookAnchor
	}
	tradePrice := fallback
	if tradeAnchorOK {
		tradePrice = tradeAnchor
	}
	blended := w.Displayed*displayed +
		w.BookAnchor*bookPrice +
		w.TradeAnchor*tradePrice +
		w.FallbackAnchor*fallback
	return clampProbability(blended)
}
