package analysis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daszybak/market_signals/internal/microstructure"
	"github.com/daszybak/market_signals/internal/price"
	"github.com/daszybak/market_signals/internal/store"
	"github.com/daszybak/market_signals/internal/tracker"
	"github.com/daszybak/market_signals/internal/tracker/orderbook"
)

type fakePersister struct {
	states   []*microstructure.State
	bookRows []store.InsertOrderBookSnapshotBatchParams
	stateErr error
}

func (f *fakePersister) InsertMicrostructureState(_ context.Context, state *microstructure.State) error {
	if f.stateErr != nil {
		return f.stateErr
	}
	f.states = append(f.states, state)
	return nil
}

func (f *fakePersister) InsertOrderBookSnapshotBatch(_ context.Context, params []store.InsertOrderBookSnapshotBatchParams) (int64, error) {
	f.bookRows = append(f.bookRows, params...)
	return int64(len(params)), nil
}

type fakeCache struct {
	latest map[string]*microstructure.State
}

func (f *fakeCache) SetLatest(_ context.Context, state *microstructure.State) error {
	if f.latest == nil {
		f.latest = make(map[string]*microstructure.State)
	}
	f.latest[state.OutcomeID] = state
	return nil
}

func TestSweepPersistsStatesAndBookLevels(t *testing.T) {
	eventTime := time.Date(2026, 2, 14, 12, 30, 0, 0, time.UTC)

	tr := tracker.New(tracker.Config{}, slog.Default())
	tr.Register("tok_yes", microstructure.OutcomeContext{
		MarketID:            "mkt_btc_100k",
		OutcomeID:           "out_mkt_btc_100k_yes",
		FallbackProbability: 0.45,
	})
	tr.ApplyBook("tok_yes", eventTime,
		[]orderbook.Level{{Price: 400_000, Size: 3_000_000_000, UpdatedAt: eventTime}},
		[]orderbook.Level{{Price: 420_000, Size: 3_000_000_000, UpdatedAt: eventTime}},
	)
	tr.RecordTrade("tok_yes", microstructure.TradeView{
		Timestamp: eventTime, Price: 0.50, Size: 1000, Side: microstructure.SideBuy,
	})

	persister := &fakePersister{}
	cache := &fakeCache{}
	runner := NewRunner(tr, microstructure.New(microstructure.DefaultConfig()),
		persister, cache, time.Second, "src_polymarket_clob_ws", slog.Default())

	runner.Sweep(context.Background())

	require.Len(t, persister.states, 1)
	state := persister.states[0]
	require.Equal(t, "out_mkt_btc_100k_yes", state.OutcomeID)
	require.Equal(t, "src_polymarket_clob_ws", state.SourceID)
	require.Equal(t, microstructure.SourceMidpoint, state.DisplayPriceSource)

	require.Len(t, persister.bookRows, 2)
	require.Equal(t, int64(400_000), persister.bookRows[0].Price)
	require.Equal(t, "bid", persister.bookRows[0].Side)

	require.Contains(t, cache.latest, "out_mkt_btc_100k_yes")
}

func TestSweepContinuesAfterPersistError(t *testing.T) {
	eventTime := time.Date(2026, 2, 14, 12, 30, 0, 0, time.UTC)

	tr := tracker.New(tracker.Config{}, slog.Default())
	tr.Register("tok_yes", microstructure.OutcomeContext{OutcomeID: "out_yes", FallbackProbability: 0.5})
	tr.RecordTrade("tok_yes", microstructure.TradeView{Timestamp: eventTime, Price: 0.5, Size: 100, Side: microstructure.SideBuy})

	persister := &fakePersister{stateErr: context.DeadlineExceeded}
	cache := &fakeCache{}
	runner := NewRunner(tr, microstructure.New(microstructure.DefaultConfig()),
		persister, cache, time.Second, "src_test", slog.Default())

	runner.Sweep(context.Background())

	require.Empty(t, persister.states)
	require.Empty(t, cache.latest)
}

func TestSweepSkipsTokensWithoutData(t *testing.T) {
	tr := tracker.New(tracker.Config{}, slog.Default())
	tr.Register("tok_idle", microstructure.OutcomeContext{OutcomeID: "out_idle"})

	persister := &fakePersister{}
	runner := NewRunner(tr, microstructure.New(microstructure.DefaultConfig()),
		persister, &fakeCache{}, time.Second, "src_test", slog.Default())

	runner.Sweep(context.Background())

	require.Empty(t, persister.states)
	require.Empty(t, persister.bookRows)
}

func TestScaledRoundTripsPriceUnits(t *testing.T) {
	units := []int64{0, 1, 7, 249, 251, 333_333, 500_000, 999_999, price.PriceScale}
	for _, u := range units {
		require.Equal(t, u, scaled(price.Price(u).Float64()), "units=%d", u)
		require.Equal(t, u, scaled(price.Size(u).Float64()), "units=%d", u)
	}
}
