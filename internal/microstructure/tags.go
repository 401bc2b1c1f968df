package microstructure

import "math"

// Explanatory tags, in the order the generator emits them. Downstream
// consumers match on these strings.
const (
	TagWideSpread             = "wide_spread"
	TagNarrowSpread           = "narrow_spread"
	TagShallowBook            = "shallow_book"
	TagDeepBook               = "deep_book"
	TagHealthyDepth           = "healthy_depth"
	TagNoBookSnapshot         = "no_book_snapshot"
	TagTradeOnlySignal        = "trade_only_signal"
	TagTradeConfirmed         = "trade_confirmed"
	TagQuoteNotTradeConfirmed = "quote_not_trade_confirmed"
	TagTinyRecentTrade        = "tiny_recent_trade"
	TagStrongTradeSupport     = "strong_trade_support"
	TagNoRecentTrade          = "no_recent_trade"
	TagExtremeDepthImbalance  = "extreme_depth_imbalance"
	TagFallbackAnchored       = "fallback_anchored"
	TagBookAnchored           = "book_anchored"
	TagTradeAnchored          = "trade_anchored"
	TagSmallTradeDistortion   = "small_trade_distortion_risk"
	TagReliableSignal         = "reliable_signal"
)

// explanatoryTags evaluates the tag rules in a fixed order so identical
// inputs always produce the identical tag list.
func (a *Analyzer) explanatoryTags(
	snapshot *OrderBookView,
	trades []TradeView,
	latest *TradeView,
	bookReliability, tradeReliability, risk, divergence, depthImbalance float64,
	weights SignalWeights,
) []string {
	tags := make([]string, 0, 8)

	if snapshot != nil && snapshot.Spread != nil {
		if *snapshot.Spread > a.config.WideSpreadThreshold {
			tags = append(tags, TagWideSpread)
		} else {
			tags = append(tags, TagNarrowSpread)
		}
	}

	if snapshot != nil {
		minDepth := min(snapshot.BidDepthTopN, snapshot.AskDepthTopN)
		switch {
		case minDepth < 0.2*a.config.DepthReference:
			tags = append(tags, TagShallowBook)
		case minDepth >= 0.8*a.config.DepthReference:
			tags = append(tags, TagDeepBook)
		default:
			tags = append(tags, TagHealthyDepth)
		}
	} else {
		tags = append(tags, TagNoBookSnapshot)
	}

	if len(trades) > 0 {
		switch {
		case snapshot == nil:
			tags = append(tags, TagTradeOnlySignal)
		case divergence <= a.config.DivergenceThreshold:
			tags = append(tags, TagTradeConfirmed)
		default:
			tags = append(tags, TagQuoteNotTradeConfirmed)
		}
		if latest != nil && latest.Size < a.config.TinyTradeThreshold {
			tags = append(tags, TagTinyRecentTrade)
		} else if tradeReliability >= 0.70 {
			tags = append(tags, TagStrongTradeSupport)
		}
	} else {
		tags = append(tags, TagNoRecentTrade)
	}

	if math.Abs(depthImbalance) > 0.5 {
		tags = append(tags, TagExtremeDepthImbalance)
	}

	// Anchor dominance tags are independent, not mutually exclusive.
	if weights.FallbackAnchor >= 0.50 {
		tags = append(tags, TagFallbackAnchored)
	}
	if weights.BookAnchor >= 0.40 {
		tags = append(tags, TagBookAnchored)
	}
	if weights.TradeAnchor >= 0.25 {
		tags = append(tags, TagTradeAnchored)
	}

	if risk >= 0.70 {
		tags = append(tags, TagSmallTradeDistortion)
	} else if bookReliability >= 0.80 {
		tags = append(tags, TagReliableSignal)
	}

	return tags
}
