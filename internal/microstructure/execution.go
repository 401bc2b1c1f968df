package microstructure

import "sort"

// executionPrice simulates filling min(available, DepthTargetSize) units
// against one side of the book and returns the volume-weighted fill price.
// Buys consume asks cheapest-first, sells consume bids highest-first.
// ok is false if there are no levels or nothing fillable.
func (a *Analyzer) executionPrice(levels []Level, side Side) (price float64, ok bool) {
	if len(levels) == 0 {
		return 0, false
	}

	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	if side == SideBuy {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })
	} else {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price > sorted[j].Price })
	}

	var available float64
	for _, lvl := range sorted {
		available += lvl.Size
	}
	target := min(available, a.config.DepthTargetSize)
	if target <= 0 {
		return 0, false
	}

	remaining := target
	var totalCost float64
	for _, lvl := range sorted {
		if remaining <= 0 {
			break
		}
		fill := min(lvl.Size, remaining)
		totalCost += fill * lvl.Price
		remaining -= fill
	}

	filled := target - remaining
	if filled <= 0 {
		return 0, false
	}
	return totalCost / filled, true
}

// depthWeightedMid averages the simulated buy and sell execution prices.
// A one-sided book uses the side that resolved.
func (a *Analyzer) depthWeightedMid(snapshot *OrderBookView) (float64, bool) {
	if snapshot == nil {
		return 0, false
	}
	buyPrice, buyOK := a.executionPrice(snapshot.AskLevels, SideBuy)
	sellPrice, sellOK := a.executionPrice(snapshot.BidLevels, SideSell)
	switch {
	case buyOK && sellOK:
		return clampProbability((buyPrice + sellPrice) / 2), true
	case buyOK:
		return clampProbability(buyPrice), true
	case sellOK:
		return clampProbability(sellPrice), true
	default:
		return 0, false
	}
}

// tradeAnchor is the size-weighted average price over the trade window.
// With zero total size it degrades to the latest trade's price.
func (a *Analyzer) tradeAnchor(trades []TradeView) (float64, bool) {
	if len(trades) == 0 {
		return 0, false
	}
	var totalSize, weighted float64
	for _, trade := range trades {
		size := max(trade.Size, 0)
		totalSize += size
		weighted += trade.Price * size
	}
	if totalSize <= 0 {
		return clampProbability(latestTrade(trades).Price), true
	}
	return clampProbability(weighted / totalSize), true
}
