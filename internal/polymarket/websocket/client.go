// Package websocket receives market-channel events from Polymarket.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/daszybak/market_signals/internal/price"
)

const (
	HandshakeTimeout    = 30 * time.Second
	DefaultCloseTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	PingInterval        = 50 * time.Second
)

type Client struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	stopPing chan struct{}
}

type Auth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type MarketSubscription struct {
	Auth        *Auth    `json:"auth"`
	AssetsIDs   []string `json:"assets_ids"`
	Type        string   `json:"type"`
	InitialDump *bool    `json:"initial_dump"`
}

func New(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:     conn,
		logger:   logger.With("component", "polymarket_ws"),
		stopPing: make(chan struct{}),
	}
	c.logger.Info("connected", "url", url, "status", resp.Status)
	go c.pingLoop()

	return c, nil
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			deadline := time.Now().Add(DefaultWriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Warn("couldn't send ping", "error", err)
				return
			}
		}
	}
}

func (c *Client) Close(ctx context.Context) error {
	close(c.stopPing)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultCloseTimeout)
	}

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	if err != nil {
		c.logger.Warn("couldn't send close message", "error", err)
	}

	return c.conn.Close()
}

// SubscribeMarket subscribes to the market channel for the given tokens.
// Polymarket treats each subscribe message as the full desired set.
func (c *Client) SubscribeMarket(ctx context.Context, tokenIDs []string, initialDump bool, auth *Auth) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	c.conn.SetWriteDeadline(deadline)

	sub := MarketSubscription{
		Auth:        auth,
		AssetsIDs:   tokenIDs,
		Type:        "market",
		InitialDump: &initialDump,
	}
	return c.conn.WriteJSON(sub)
}

type result struct {
	RawMessage []byte
	Error      error
}

// ReadMessage blocks for the next market event. Cancelling ctx unblocks the
// read by expiring the read deadline.
func (c *Client) ReadMessage(ctx context.Context) (*Message, error) {
	resultCh := make(chan result, 1)

	go func() {
		_, msg, err := c.conn.ReadMessage()
		resultCh <- result{
			RawMessage: msg,
			Error:      err,
		}
	}()

	select {
	case <-ctx.Done():
		if err := c.conn.SetReadDeadline(time.Now()); err != nil {
			c.logger.Warn("couldn't set read deadline", "error", err)
		}
		return nil, fmt.Errorf("reading message: %w", ctx.Err())
	case result := <-resultCh:
		if result.Error != nil {
			return nil, fmt.Errorf("couldn't read message: %w", result.Error)
		}
		msg, err := ParseMessage(result.RawMessage)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse message: %w", err)
		}
		return msg, nil
	}
}

// Message is one parsed market event; the payload matching EventType is set,
// the rest are nil.
type Message struct {
	EventType      string `json:"event_type"`
	Book           *Book
	PriceChange    *PriceChange
	BestBidAsk     *BestBidAsk
	TickSizeChange *TickSizeChange
	LastTradePrice *LastTradePrice
	MarketResolved *MarketResolved
}

type OrderSummary struct {
	Price price.Price `json:"price"`
	Size  price.Size  `json:"size"`
}

type Book struct {
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
	Bids      []OrderSummary `json:"bids"`
	Asks      []OrderSummary `json:"asks"`
}

// PriceChange batches level updates; best bid/ask ride along per change.
type PriceChange struct {
	Market    string        `json:"market"`
	Timestamp string        `json:"timestamp"`
	Changes   []LevelChange `json:"price_changes"`
}

type LevelChange struct {
	AssetID string      `json:"asset_id"`
	Price   price.Price `json:"price"`
	Size    price.Size  `json:"size"`
	Side    string      `json:"side"` // BUY = bid side, SELL = ask side
	BestBid string      `json:"best_bid"`
	BestAsk string      `json:"best_ask"`
}

type BestBidAsk struct {
	MarketConditionID string `json:"market"`
	AssetID           string `json:"asset_id"`
	BestBid           string `json:"best_bid"`
	BestAsk           string `json:"best_ask"`
	Spread            string `json:"spread"`
	Timestamp         string `json:"timestamp"`
}

type TickSizeChange struct {
	AssetID     string `json:"asset_id"`
	Market      string `json:"market"`
	OldTickSize string `json:"old_tick_size"`
	NewTickSize string `json:"new_tick_size"`
	Timestamp   string `json:"timestamp"`
}

type LastTradePrice struct {
	AssetID    string      `json:"asset_id"`
	FeeRateBPS string      `json:"fee_rate_bps"`
	Market     string      `json:"market"`
	Price      price.Price `json:"price"`
	Side       string      `json:"side"`
	Size       price.Size  `json:"size"`
	Timestamp  string      `json:"timestamp"`
}

type MarketResolved struct {
	MarketID          string `json:"id"`
	Question          string `json:"question"`
	MarketConditionID string `json:"market"`
	WinningOutcome    string `json:"winning_outcome"`
	Timestamp         string `json:"timestamp"`
}

const (
	BookEvent           = "book"
	PriceChangeEvent    = "price_change"
	TickSizeChangeEvent = "tick_size_change"
	BestBidAskEvent     = "best_bid_ask"
	LastTradePriceEvent = "last_trade_price"
	MarketResolvedEvent = "market_resolved"
)

// ErrUnknownEvent marks frames whose event_type has no parser. Callers can
// skip these instead of tearing down the connection.
var ErrUnknownEvent = errors.New("unknown event type")

// ParseMessage decodes a raw market-channel frame into a typed event.
func ParseMessage(msg []byte) (*Message, error) {
	base := &Message{}
	if err := json.Unmarshal(msg, base); err != nil {
		return nil, fmt.Errorf("couldn't parse base message: %w", err)
	}

	switch base.EventType {
	case BookEvent:
		book := &Book{}
		if err := json.Unmarshal(msg, book); err != nil {
			return nil, fmt.Errorf("couldn't parse book event: %w", err)
		}
		return &Message{EventType: BookEvent, Book: book}, nil
	case PriceChangeEvent:
		pc := &PriceChange{}
		if err := json.Unmarshal(msg, pc); err != nil {
			return nil, fmt.Errorf("couldn't parse price change event: %w", err)
		}
		return &Message{EventType: PriceChangeEvent, PriceChange: pc}, nil
	case TickSizeChangeEvent:
		tsc := &TickSizeChange{}
		if err := json.Unmarshal(msg, tsc); err != nil {
			return nil, fmt.Errorf("couldn't parse tick size change event: %w", err)
		}
		return &Message{EventType: TickSizeChangeEvent, TickSizeChange: tsc}, nil
	case BestBidAskEvent:
		bba := &BestBidAsk{}
		if err := json.Unmarshal(msg, bba); err != nil {
			return nil, fmt.Errorf("couldn't parse best bid ask event: %w", err)
		}
		return &Message{EventType: BestBidAskEvent, BestBidAsk: bba}, nil
	case LastTradePriceEvent:
		ltp := &LastTradePrice{}
		if err := json.Unmarshal(msg, ltp); err != nil {
			return nil, fmt.Errorf("couldn't parse last trade price event: %w", err)
		}
		return &Message{EventType: LastTradePriceEvent, LastTradePrice: ltp}, nil
	case MarketResolvedEvent:
		mr := &MarketResolved{}
		if err := json.Unmarshal(msg, mr); err != nil {
			return nil, fmt.Errorf("couldn't parse market resolved event: %w", err)
		}
		return &Message{EventType: MarketResolvedEvent, MarketResolved: mr}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, base.EventType)
	}
}
