// Package tracker maintains live per-token market state (sorted book levels,
// best prices, a rolling trade window) from websocket events and emits the
// immutable views the microstructure analyzer consumes.
package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/daszybak/market_signals/internal/microstructure"
	"github.com/daszybak/market_signals/internal/tracker/orderbook"
)

const (
	defaultTopNLevels  = 3
	defaultTradeWindow = 64
	defaultTickSize    = 0.01
)

// Config tunes how much state is kept per token.
type Config struct {
	// TopNLevels is how many levels per side go into emitted snapshots.
	TopNLevels int
	// TradeWindow caps how many recent trade prints are kept per token.
	TradeWindow int
}

// Tracker holds the live state for every subscribed token. All methods are
// safe for concurrent use.
type Tracker struct {
	mu          sync.RWMutex
	tokens      map[string]*tokenState
	topNLevels  int
	tradeWindow int
	logger      *slog.Logger
}

type tokenState struct {
	outcome  microstructure.OutcomeContext
	book     *orderbook.Book
	bestBid  *float64
	bestAsk  *float64
	spread   *float64
	midpoint *float64
	tickSize float64
	// lastEvent is the newest event time seen for this token; snapshots are
	// stamped with it.
	lastEvent time.Time
	trades    []microstructure.TradeView
}

// New creates a Tracker. Zero config fields fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Tracker {
	if cfg.TopNLevels <= 0 {
		cfg.TopNLevels = defaultTopNLevels
	}
	if cfg.TradeWindow <= 0 {
		cfg.TradeWindow = defaultTradeWindow
	}
	return &Tracker{
		tokens:      make(map[string]*tokenState),
		topNLevels:  cfg.TopNLevels,
		tradeWindow: cfg.TradeWindow,
		logger:      logger.With("component", "tracker"),
	}
}

// Register starts tracking a token. Re-registering refreshes the outcome
// context (the fallback probability moves as markets reprice) without
// discarding accumulated book or trade state.
func (t *Tracker) Register(tokenID string, outcome microstructure.OutcomeContext) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state, ok := t.tokens[tokenID]; ok {
		state.outcome = outcome
		return
	}
	t.tokens[tokenID] = &tokenState{
		outcome:  outcome,
		book:     orderbook.New(),
		tickSize: defaultTickSize,
	}
}

// Tracked reports whether a token is registered.
func (t *Tracker) Tracked(tokenID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tokens[tokenID]
	return ok
}

// TokenIDs returns all registered tokens.
func (t *Tracker) TokenIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.tokens))
	for id := range t.tokens {
		ids = append(ids, id)
	}
	return ids
}

// ApplyBook replaces both sides of a token's book from a full book event and
// rederives the best prices from the new levels.
func (t *Tracker) ApplyBook(tokenID string, eventTime time.Time, bids, asks []orderbook.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.tokens[tokenID]
	if !ok {
		t.logger.Debug("event for untracked token", "token", tokenID)
		return
	}
	state.book.Replace(orderbook.Bid, bids)
	state.book.Replace(orderbook.Ask, asks)
	state.touch(eventTime)
	state.refreshBestPrices()
}

// ApplyPriceChange sets the absolute size at one level and, when the event
// carries them, the new best bid/ask.
func (t *Tracker) ApplyPriceChange(tokenID string, eventTime time.Time, side orderbook.Side, lvl orderbook.Level, bestBid, bestAsk *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.tokens[tokenID]
	if !ok {
		t.logger.Debug("event for untracked token", "token", tokenID)
		return
	}
	state.book.Set(side, lvl.Price, lvl.Size, eventTime)
	state.touch(eventTime)
	if bestBid != nil {
		state.bestBid = cloneFloat(bestBid)
	}
	if bestAsk != nil {
		state.bestAsk = cloneFloat(bestAsk)
	}
	state.deriveSpreadAndMidpoint()
}

// ApplyBestBidAsk updates the quoted best prices and spread.
func (t *Tracker) ApplyBestBidAsk(tokenID string, eventTime time.Time, bestBid, bestAsk, spread *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.tokens[tokenID]
	if !ok {
		t.logger.Debug("event for untracked token", "token", tokenID)
		return
	}
	state.touch(eventTime)
	state.bestBid = cloneFloat(bestBid)
	state.bestAsk = cloneFloat(bestAsk)
	state.spread = cloneFloat(spread)
	if state.bestBid != nil && state.bestAsk != nil {
		mid := (*state.bestBid + *state.bestAsk) / 2
		state.midpoint = &mid
		if state.spread == nil {
			spread := max(*state.bestAsk-*state.bestBid, 0)
			state.spread = &spread
		}
	}
}

// ApplyTickSize records a tick size change.
func (t *Tracker) ApplyTickSize(tokenID string, eventTime time.Time, tickSize float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.tokens[tokenID]
	if !ok {
		t.logger.Debug("event for untracked token", "token", tokenID)
		return
	}
	state.touch(eventTime)
	if tickSize > 0 {
		state.tickSize = tickSize
	}
}

// RecordTrade appends a trade print to the token's window, dropping the
// oldest entries beyond the window cap.
func (t *Tracker) RecordTrade(tokenID string, trade microstructure.TradeView) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.tokens[tokenID]
	if !ok {
		t.logger.Debug("event for untracked token", "token", tokenID)
		return
	}
	state.touch(trade.Timestamp)
	state.trades = append(state.trades, trade)
	if len(state.trades) > t.tradeWindow {
		state.trades = append(state.trades[:0], state.trades[len(state.trades)-t.tradeWindow:]...)
	}
}

// TokenView is one token's analyzable state at snapshot time.
type TokenView struct {
	TokenID  string
	Outcome  microstructure.OutcomeContext
	Snapshot *microstructure.OrderBookView
	Trades   []microstructure.TradeView
}

// Snapshot returns the current view for one token. Snapshot is nil until the
// token has seen at least one book-affecting event; Trades is a copy.
func (t *Tracker) Snapshot(tokenID string) (TokenView, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.tokens[tokenID]
	if !ok {
		return TokenView{}, false
	}
	return t.buildView(tokenID, state), true
}

// Snapshots returns views for every token that has any state at all.
func (t *Tracker) Snapshots() []TokenView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]TokenView, 0, len(t.tokens))
	for tokenID, state := range t.tokens {
		if state.lastEvent.IsZero() {
			continue
		}
		views = append(views, t.buildView(tokenID, state))
	}
	return views
}

func (t *Tracker) buildView(tokenID string, state *tokenState) TokenView {
	view := TokenView{
		TokenID: tokenID,
		Outcome: state.outcome,
		Trades:  append([]microstructure.TradeView(nil), state.trades...),
	}
	if state.lastEvent.IsZero() {
		return view
	}

	bidLevels := toViewLevels(state.book.TopN(orderbook.Bid, t.topNLevels))
	askLevels := toViewLevels(state.book.TopN(orderbook.Ask, t.topNLevels))

	view.Snapshot = &microstructure.OrderBookView{
		MarketID:     state.outcome.MarketID,
		OutcomeID:    state.outcome.OutcomeID,
		Timestamp:    state.lastEvent,
		BestBid:      cloneFloat(state.bestBid),
		BestAsk:      cloneFloat(state.bestAsk),
		Spread:       cloneFloat(state.spread),
		Midpoint:     cloneFloat(state.midpoint),
		BidDepthTopN: sumSizes(bidLevels),
		AskDepthTopN: sumSizes(askLevels),
		TickSize:     state.tickSize,
		BidLevels:    bidLevels,
		AskLevels:    askLevels,
	}
	return view
}

func (s *tokenState) touch(eventTime time.Time) {
	if eventTime.After(s.lastEvent) {
		s.lastEvent = eventTime
	}
}

// refreshBestPrices rederives best bid/ask, spread, and midpoint from the
// book levels after a full book replacement. A side the replacement left
// empty keeps its previous quote: quotes only move when a new best is
// observed, matching how the upstream feed reports them.
func (s *tokenState) refreshBestPrices() {
	if best, ok := s.book.Best(orderbook.Bid); ok {
		bid := best.Price.Float64()
		s.bestBid = &bid
	}
	if best, ok := s.book.Best(orderbook.Ask); ok {
		ask := best.Price.Float64()
		s.bestAsk = &ask
	}
	s.deriveSpreadAndMidpoint()
}

func (s *tokenState) deriveSpreadAndMidpoint() {
	if s.bestBid == nil || s.bestAsk == nil {
		return
	}
	spread := max(*s.bestAsk-*s.bestBid, 0)
	mid := (*s.bestBid + *s.bestAsk) / 2
	s.spread = &spread
	s.midpoint = &mid
}

func toViewLevels(levels []orderbook.Level) []microstructure.Level {
	out := make([]microstructure.Level, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, microstructure.Level{
			Price: lvl.Price.Float64(),
			Size:  lvl.Size.Float64(),
		})
	}
	return out
}

func sumSizes(levels []microstructure.Level) float64 {
	var total float64
	for _, lvl := range levels {
		total += lvl.Size
	}
	return total
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
