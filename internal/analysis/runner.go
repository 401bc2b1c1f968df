// Package analysis periodically turns tracked market state into
// microstructure states and persists them.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/daszybak/market_signals/internal/microstructure"
	"github.com/daszybak/market_signals/internal/price"
	"github.com/daszybak/market_signals/internal/store"
	"github.com/daszybak/market_signals/internal/tracker"
)

// Persister is the slice of the store the runner writes through.
type Persister interface {
	InsertMicrostructureState(ctx context.Context, state *microstructure.State) error
	InsertOrderBookSnapshotBatch(ctx context.Context, params []store.InsertOrderBookSnapshotBatchParams) (int64, error)
}

// LatestCache receives the freshest state per outcome.
type LatestCache interface {
	SetLatest(ctx context.Context, state *microstructure.State) error
}

// Runner sweeps the tracker on an interval, scores every token with market
// data, and writes the results to the store and the cache.
type Runner struct {
	tracker  *tracker.Tracker
	analyzer *microstructure.Analyzer
	store    Persister
	cache    LatestCache
	interval time.Duration
	sourceID string
	logger   *slog.Logger
}

func NewRunner(
	tr *tracker.Tracker,
	analyzer *microstructure.Analyzer,
	persister Persister,
	cache LatestCache,
	interval time.Duration,
	sourceID string,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		tracker:  tr,
		analyzer: analyzer,
		store:    persister,
		cache:    cache,
		interval: interval,
		sourceID: sourceID,
		logger:   logger.With("component", "analysis_runner"),
	}
}

// Start runs the runner until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("started analysis runner", "interval", r.interval, "source", r.sourceID)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("analysis runner stopped", "error", ctx.Err())
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep analyzes every token with state and persists the results. Failures
// on one token don't stop the others.
func (r *Runner) Sweep(ctx context.Context) {
	views := r.tracker.Snapshots()
	if len(views) == 0 {
		return
	}

	var states, failures int
	for _, view := range views {
		state, err := r.analyzer.Analyze(view.Outcome, view.Snapshot, view.Trades, r.sourceID)
		if err != nil {
			if !errors.Is(err, microstructure.ErrNoMarketData) {
				r.logger.Error("couldn't analyze token", "token", view.TokenID, "error", err)
				failures++
			}
			continue
		}

		if err := r.store.InsertMicrostructureState(ctx, state); err != nil {
			r.logger.Error("couldn't persist state", "token", view.TokenID, "error", err)
			failures++
			continue
		}
		if err := r.cache.SetLatest(ctx, state); err != nil {
			r.logger.Warn("couldn't cache state", "token", view.TokenID, "error", err)
		}
		states++

		if view.Snapshot != nil {
			r.persistBookLevels(ctx, view)
		}
	}

	r.logger.Debug("sweep complete", "tokens", len(views), "states", states, "failures", failures)
}

func (r *Runner) persistBookLevels(ctx context.Context, view tracker.TokenView) {
	snap := view.Snapshot
	params := make([]store.InsertOrderBookSnapshotBatchParams, 0, len(snap.BidLevels)+len(snap.AskLevels))
	for level, bid := range snap.BidLevels {
		params = append(params, store.InsertOrderBookSnapshotBatchParams{
			Time:    snap.Timestamp,
			TokenID: view.TokenID,
			Side:    "bid",
			Level:   int16(level),
			Price:   scaled(bid.Price),
			Size:    scaled(bid.Size),
		})
	}
	for level, ask := range snap.AskLevels {
		params = append(params, store.InsertOrderBookSnapshotBatchParams{
			Time:    snap.Timestamp,
			TokenID: view.TokenID,
			Side:    "ask",
			Level:   int16(level),
			Price:   scaled(ask.Price),
			Size:    scaled(ask.Size),
		})
	}
	if len(params) == 0 {
		return
	}

	if _, err := r.store.InsertOrderBookSnapshotBatch(ctx, params); err != nil {
		r.logger.Error("couldn't persist book levels", "token", view.TokenID, "error", err)
	}
}

// scaled converts a float back to scaled units. Rounding, not truncation:
// values that came from price.Price pick up float error below half a unit,
// and truncating would persist them one unit low.
func scaled(value float64) int64 {
	return int64(math.Round(value * float64(price.PriceScale)))
}
