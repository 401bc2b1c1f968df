package polymarket

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daszybak/market_signals/internal/microstructure"
	"github.com/daszybak/market_signals/internal/polymarket/websocket"
	"github.com/daszybak/market_signals/internal/price"
	"github.com/daszybak/market_signals/internal/store"
	"github.com/daszybak/market_signals/internal/tracker"
)

type fakeStorage struct {
	markets []store.UpsertMarketParams
	tokens  []store.UpsertTokenParams
	trades  []store.InsertTradePrintParams
}

func (f *fakeStorage) UpsertMarket(_ context.Context, arg store.UpsertMarketParams) error {
	f.markets = append(f.markets, arg)
	return nil
}

func (f *fakeStorage) UpsertToken(_ context.Context, arg store.UpsertTokenParams) error {
	f.tokens = append(f.tokens, arg)
	return nil
}

func (f *fakeStorage) GetTokensForPlatform(_ context.Context, _ string) ([]store.TokenRow, error) {
	rows := make([]store.TokenRow, 0, len(f.tokens))
	for _, t := range f.tokens {
		rows = append(rows, store.TokenRow(t))
	}
	return rows, nil
}

func (f *fakeStorage) InsertTradePrint(_ context.Context, arg store.InsertTradePrintParams) error {
	f.trades = append(f.trades, arg)
	return nil
}

func newTestAdapter(t *testing.T) (*Polymarket, *fakeStorage, *tracker.Tracker) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage := &fakeStorage{}
	tr := tracker.New(tracker.Config{}, logger)
	return New(Config{}, storage, tr, logger), storage, tr
}

func registerToken(tr *tracker.Tracker, tokenID string) {
	tr.Register(tokenID, microstructure.OutcomeContext{
		MarketID:            "cond_1",
		OutcomeID:           "out_cond_1_yes",
		FallbackProbability: 0.5,
	})
}

func scaledPrice(v float64) price.Price {
	return price.Price(int64(v * float64(price.PriceScale)))
}

func scaledSize(v float64) price.Size {
	return price.Size(int64(v * float64(price.PriceScale)))
}

func TestHandleBookFeedsTracker(t *testing.T) {
	p, _, tr := newTestAdapter(t)
	registerToken(tr, "token_1")

	p.handleMessage(context.Background(), &websocket.Message{
		EventType: websocket.BookEvent,
		Book: &websocket.Book{
			AssetID:   "token_1",
			Timestamp: "1700000000000",
			Bids: []websocket.OrderSummary{
				{Price: scaledPrice(0.52), Size: scaledSize(800)},
				{Price: scaledPrice(0.51), Size: scaledSize(400)},
			},
			Asks: []websocket.OrderSummary{
				{Price: scaledPrice(0.55), Size: scaledSize(600)},
			},
		},
	})

	view, ok := tr.Snapshot("token_1")
	require.True(t, ok)
	require.NotNil(t, view.Snapshot)
	require.NotNil(t, view.Snapshot.BestBid)
	require.InDelta(t, 0.52, *view.Snapshot.BestBid, 1e-9)
	require.NotNil(t, view.Snapshot.BestAsk)
	require.InDelta(t, 0.55, *view.Snapshot.BestAsk, 1e-9)
	require.Len(t, view.Snapshot.BidLevels, 2)
	require.Len(t, view.Snapshot.AskLevels, 1)
	require.Equal(t, time.UnixMilli(1700000000000).UTC(), view.Snapshot.Timestamp)
}

func TestHandlePriceChangeRoutesSides(t *testing.T) {
	p, _, tr := newTestAdapter(t)
	registerToken(tr, "token_1")

	p.handleMessage(context.Background(), &websocket.Message{
		EventType: websocket.PriceChangeEvent,
		PriceChange: &websocket.PriceChange{
			Timestamp: "1700000001000",
			Changes: []websocket.LevelChange{
				{
					AssetID: "token_1",
					Price:   scaledPrice(0.50),
					Size:    scaledSize(300),
					Side:    "BUY",
					BestBid: "0.50",
					BestAsk: "0.56",
				},
				{
					AssetID: "token_1",
					Price:   scaledPrice(0.56),
					Size:    scaledSize(250),
					Side:    "SELL",
				},
			},
		},
	})

	view, ok := tr.Snapshot("token_1")
	require.True(t, ok)
	require.NotNil(t, view.Snapshot)
	require.Len(t, view.Snapshot.BidLevels, 1)
	require.Len(t, view.Snapshot.AskLevels, 1)
	require.InDelta(t, 0.50, view.Snapshot.BidLevels[0].Price, 1e-9)
	require.InDelta(t, 0.56, view.Snapshot.AskLevels[0].Price, 1e-9)
	require.NotNil(t, view.Snapshot.Spread)
	require.InDelta(t, 0.06, *view.Snapshot.Spread, 1e-9)
}

func TestHandleLastTradePricePersists(t *testing.T) {
	p, storage, tr := newTestAdapter(t)
	registerToken(tr, "token_1")

	p.handleMessage(context.Background(), &websocket.Message{
		EventType: websocket.LastTradePriceEvent,
		LastTradePrice: &websocket.LastTradePrice{
			AssetID:   "token_1",
			Price:     scaledPrice(0.53),
			Size:      scaledSize(120),
			Side:      "SELL",
			Timestamp: "1700000002000",
		},
	})

	view, ok := tr.Snapshot("token_1")
	require.True(t, ok)
	require.Len(t, view.Trades, 1)
	require.Equal(t, microstructure.SideSell, view.Trades[0].Side)
	require.InDelta(t, 0.53, view.Trades[0].Price, 1e-9)
	require.InDelta(t, 120, view.Trades[0].Size, 1e-9)

	require.Len(t, storage.trades, 1)
	require.Equal(t, "token_1", storage.trades[0].TokenID)
	require.Equal(t, "sell", storage.trades[0].Side)
}

func TestOutcomeID(t *testing.T) {
	tests := []struct {
		marketID string
		outcome  string
		want     string
	}{
		{"cond_1", "Yes", "out_cond_1_yes"},
		{"cond_1", "NO", "out_cond_1_no"},
		{"cond_2", "Kansas City Chiefs", "out_cond_2_kansas_city_chiefs"},
		{"cond_3", "", "out_cond_3_unknown"},
	}
	for _, tt := range tests {
		if got := outcomeID(tt.marketID, tt.outcome); got != tt.want {
			t.Errorf("outcomeID(%q, %q) = %q, want %q", tt.marketID, tt.outcome, got, tt.want)
		}
	}
}

func TestParseTimestampMS(t *testing.T) {
	got := parseTimestampMS("1700000000000")
	require.Equal(t, time.UnixMilli(1700000000000).UTC(), got)

	before := time.Now().UTC()
	got = parseTimestampMS("not-a-number")
	require.False(t, got.Before(before))
}

func TestParseOptionalFloat(t *testing.T) {
	require.Nil(t, parseOptionalFloat(""))
	require.Nil(t, parseOptionalFloat("abc"))

	got := parseOptionalFloat("0.42")
	require.NotNil(t, got)
	require.InDelta(t, 0.42, *got, 1e-9)
}
