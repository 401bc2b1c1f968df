// Package polymarket adapts Polymarket's APIs (CLOB, Gamma, WebSocket) to the
// Platform interface and feeds the live tracker.
package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/daszybak/market_signals/internal/microstructure"
	"github.com/daszybak/market_signals/internal/platform"
	"github.com/daszybak/market_signals/internal/polymarket/clob"
	"github.com/daszybak/market_signals/internal/polymarket/gamma"
	"github.com/daszybak/market_signals/internal/polymarket/websocket"
	"github.com/daszybak/market_signals/internal/store"
	"github.com/daszybak/market_signals/internal/tracker"
	"github.com/daszybak/market_signals/internal/tracker/orderbook"
	"github.com/daszybak/market_signals/pkg/hashset"
)

const platformName = "polymarket"

var _ platform.Platform = (*Polymarket)(nil)

// Storage is the slice of the store the adapter writes through.
type Storage interface {
	UpsertMarket(ctx context.Context, arg store.UpsertMarketParams) error
	UpsertToken(ctx context.Context, arg store.UpsertTokenParams) error
	GetTokensForPlatform(ctx context.Context, platform string) ([]store.TokenRow, error)
	InsertTradePrint(ctx context.Context, arg store.InsertTradePrintParams) error
}

type Config struct {
	ClobURL            string
	GammaURL           string
	WebsocketURL       string
	MarketSyncInterval time.Duration
}

type Polymarket struct {
	config           Config
	store            Storage
	tracker          *tracker.Tracker
	log              *slog.Logger
	subscribedTokens hashset.Set[string]

	clob  *clob.Client
	gamma *gamma.Client
	ws    *websocket.Client
}

// New creates a Polymarket adapter. Call Start() to connect.
func New(cfg Config, s Storage, tr *tracker.Tracker, log *slog.Logger) *Polymarket {
	return &Polymarket{
		config:           cfg,
		store:            s,
		tracker:          tr,
		log:              log.With("component", platformName),
		subscribedTokens: hashset.NewSet[string](),
		clob:             clob.New(cfg.ClobURL),
		gamma:            gamma.New(cfg.GammaURL),
	}
}

// Start connects the websocket and reads market events into the tracker.
// Blocks until ctx is cancelled.
func (p *Polymarket) Start(ctx context.Context) error {
	p.log.Info("starting")

	ws, err := websocket.New(ctx, p.config.WebsocketURL, p.log)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	p.ws = ws

	go p.syncLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("stopping", "reason", ctx.Err())
			return ctx.Err()
		default:
			msg, err := p.ws.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, websocket.ErrUnknownEvent) {
					p.log.Debug("skipping event", "error", err)
					continue
				}
				p.log.Error("read message failed", "error", err)
				return err
			}
			p.handleMessage(ctx, msg)
		}
	}
}

// Stop closes the websocket connection.
func (p *Polymarket) Stop(ctx context.Context) error {
	if p.ws != nil {
		return p.ws.Close(ctx)
	}
	return nil
}

func (p *Polymarket) syncLoop(ctx context.Context) {
	p.runSync(ctx)

	ticker := time.NewTicker(p.config.MarketSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runSync(ctx)
		case <-ctx.Done():
			p.log.Info("market sync stopped", "reason", ctx.Err())
			return
		}
	}
}

func (p *Polymarket) runSync(ctx context.Context) {
	if err := p.syncMarkets(ctx); err != nil {
		p.log.Error("syncing markets", "error", err)
	}
	if err := p.refreshFallbacks(ctx); err != nil {
		p.log.Error("refreshing fallback probabilities", "error", err)
	}

	tokens, err := p.store.GetTokensForPlatform(ctx, platformName)
	if err != nil {
		p.log.Error("loading tokens", "error", err)
		return
	}
	tokenIDs := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenIDs = append(tokenIDs, t.ID)
	}

	if err := p.subscribeToMarkets(ctx, tokenIDs); err != nil {
		p.log.Error("subscribing to markets", "error", err)
	}
}

// syncMarkets fetches the CLOB market list, upserts markets and tokens, and
// registers every token with the tracker so websocket events land somewhere.
func (p *Polymarket) syncMarkets(ctx context.Context) error {
	markets, err := p.clob.GetAllMarkets()
	if err != nil {
		return fmt.Errorf("get all markets: %w", err)
	}

	for _, m := range markets {
		var endDate pgtype.Timestamptz
		if m.EndDateISO != "" {
			t, err := time.Parse(time.RFC3339, m.EndDateISO)
			if err != nil {
				p.log.Warn("invalid end_date_iso", "market_id", m.ConditionID, "value", m.EndDateISO)
			} else {
				endDate = pgtype.Timestamptz{Time: t, Valid: true}
			}
		}

		if err := p.store.UpsertMarket(ctx, store.UpsertMarketParams{
			ID:          m.ConditionID,
			Platform:    platformName,
			Question:    m.Question,
			Description: m.Description,
			EndDate:     endDate,
		}); err != nil {
			return fmt.Errorf("upsert market %s: %w", m.ConditionID, err)
		}

		for _, t := range m.Tokens {
			fallback := t.Price.Float64()
			if err := p.store.UpsertToken(ctx, store.UpsertTokenParams{
				ID:                  t.TokenID,
				MarketID:            m.ConditionID,
				Outcome:             t.Outcome,
				FallbackProbability: fallback,
			}); err != nil {
				return fmt.Errorf("upsert token %s: %w", t.TokenID, err)
			}

			p.tracker.Register(t.TokenID, microstructure.OutcomeContext{
				MarketID:            m.ConditionID,
				OutcomeID:           outcomeID(m.ConditionID, t.Outcome),
				FallbackProbability: fallback,
			})
		}
	}

	p.log.Info("synced markets", "count", len(markets))
	return nil
}

// refreshFallbacks re-reads gamma's displayed prices, which move between
// market syncs, and pushes them into the tracker and store as the new
// fallback probabilities.
func (p *Polymarket) refreshFallbacks(ctx context.Context) error {
	markets, err := p.gamma.GetMarkets()
	if err != nil {
		return fmt.Errorf("get gamma markets: %w", err)
	}

	var updated int
	for _, m := range markets {
		if len(m.ClobTokenIDs) != len(m.OutcomePrices) || len(m.ClobTokenIDs) != len(m.Outcomes) {
			continue
		}
		for i, tokenID := range m.ClobTokenIDs {
			if !p.tracker.Tracked(tokenID) {
				continue
			}
			probability, err := strconv.ParseFloat(m.OutcomePrices[i], 64)
			if err != nil {
				continue
			}
			probability = min(max(probability, 0), 1)

			marketID := m.ConditionID
			if marketID == "" {
				marketID = m.ID
			}
			p.tracker.Register(tokenID, microstructure.OutcomeContext{
				MarketID:            marketID,
				OutcomeID:           outcomeID(marketID, m.Outcomes[i]),
				FallbackProbability: probability,
			})
			if err := p.store.UpsertToken(ctx, store.UpsertTokenParams{
				ID:                  tokenID,
				MarketID:            marketID,
				Outcome:             m.Outcomes[i],
				FallbackProbability: probability,
			}); err != nil {
				return fmt.Errorf("upsert token %s: %w", tokenID, err)
			}
			updated++
		}
	}

	p.log.Debug("refreshed fallbacks", "tokens", updated)
	return nil
}

// subscribeToMarkets resubscribes only when the token set actually grew;
// each subscribe message replaces the previous set server-side.
func (p *Polymarket) subscribeToMarkets(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		p.log.Warn("no tokens to subscribe to")
		return nil
	}

	wanted := hashset.SetFromSlice(tokenIDs)
	if len(wanted.Remove(p.subscribedTokens)) == 0 {
		return nil
	}

	if err := p.ws.SubscribeMarket(ctx, tokenIDs, true, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	p.subscribedTokens = wanted

	p.log.Info("subscribed to tokens", "count", len(tokenIDs))
	return nil
}

func (p *Polymarket) handleMessage(ctx context.Context, msg *websocket.Message) {
	switch msg.EventType {
	case websocket.BookEvent:
		p.handleBook(msg.Book)
	case websocket.PriceChangeEvent:
		p.handlePriceChange(msg.PriceChange)
	case websocket.BestBidAskEvent:
		p.handleBestBidAsk(msg.BestBidAsk)
	case websocket.TickSizeChangeEvent:
		p.handleTickSizeChange(msg.TickSizeChange)
	case websocket.LastTradePriceEvent:
		p.handleLastTradePrice(ctx, msg.LastTradePrice)
	case websocket.MarketResolvedEvent:
		p.log.Info("market resolved",
			"market", msg.MarketResolved.MarketConditionID,
			"winning_outcome", msg.MarketResolved.WinningOutcome)
	}
}

func (p *Polymarket) handleBook(book *websocket.Book) {
	eventTime := parseTimestampMS(book.Timestamp)
	p.tracker.ApplyBook(book.AssetID,
		eventTime,
		toBookLevels(book.Bids, eventTime),
		toBookLevels(book.Asks, eventTime),
	)
}

func (p *Polymarket) handlePriceChange(pc *websocket.PriceChange) {
	eventTime := parseTimestampMS(pc.Timestamp)
	for _, change := range pc.Changes {
		side := orderbook.Bid
		if strings.EqualFold(change.Side, "SELL") {
			side = orderbook.Ask
		}
		p.tracker.ApplyPriceChange(change.AssetID, eventTime, side,
			orderbook.Level{Price: change.Price, Size: change.Size, UpdatedAt: eventTime},
			parseOptionalFloat(change.BestBid),
			parseOptionalFloat(change.BestAsk),
		)
	}
}

func (p *Polymarket) handleBestBidAsk(bba *websocket.BestBidAsk) {
	p.tracker.ApplyBestBidAsk(bba.AssetID,
		parseTimestampMS(bba.Timestamp),
		parseOptionalFloat(bba.BestBid),
		parseOptionalFloat(bba.BestAsk),
		parseOptionalFloat(bba.Spread),
	)
}

func (p *Polymarket) handleTickSizeChange(tsc *websocket.TickSizeChange) {
	tickSize, err := strconv.ParseFloat(tsc.NewTickSize, 64)
	if err != nil {
		p.log.Warn("invalid tick size", "token", tsc.AssetID, "value", tsc.NewTickSize)
		return
	}
	p.tracker.ApplyTickSize(tsc.AssetID, parseTimestampMS(tsc.Timestamp), tickSize)
}

func (p *Polymarket) handleLastTradePrice(ctx context.Context, ltp *websocket.LastTradePrice) {
	eventTime := parseTimestampMS(ltp.Timestamp)
	trade := microstructure.TradeView{
		Timestamp: eventTime,
		Price:     ltp.Price.Float64(),
		Size:      ltp.Size.Float64(),
		Side:      tradeSide(ltp.Side),
	}
	p.tracker.RecordTrade(ltp.AssetID, trade)

	if err := p.store.InsertTradePrint(ctx, store.InsertTradePrintParams{
		Time:    eventTime,
		TokenID: ltp.AssetID,
		Price:   trade.Price,
		Size:    trade.Size,
		Side:    string(trade.Side),
	}); err != nil {
		p.log.Error("couldn't persist trade print", "token", ltp.AssetID, "error", err)
	}
}

func outcomeID(marketID, outcome string) string {
	side := strings.ToLower(strings.TrimSpace(outcome))
	side = strings.ReplaceAll(side, " ", "_")
	if side == "" {
		side = "unknown"
	}
	return fmt.Sprintf("out_%s_%s", marketID, side)
}

func tradeSide(value string) microstructure.Side {
	if strings.EqualFold(value, "SELL") {
		return microstructure.SideSell
	}
	return microstructure.SideBuy
}

func toBookLevels(summaries []websocket.OrderSummary, eventTime time.Time) []orderbook.Level {
	levels := make([]orderbook.Level, 0, len(summaries))
	for _, s := range summaries {
		levels = append(levels, orderbook.Level{
			Price:     s.Price,
			Size:      s.Size,
			UpdatedAt: eventTime,
		})
	}
	return levels
}

// parseTimestampMS parses Polymarket's millisecond-epoch timestamp strings,
// falling back to the current time on malformed input.
func parseTimestampMS(value string) time.Time {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

func parseOptionalFloat(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}
