package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/daszybak/market_signals/internal/microstructure"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Queries runs the store's SQL against a pool or transaction.
type Queries struct {
	db DBTX
}

func newQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const upsertMarket = `
INSERT INTO markets (id, platform, question, description, end_date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	platform = EXCLUDED.platform,
	question = EXCLUDED.question,
	description = EXCLUDED.description,
	end_date = EXCLUDED.end_date
`

type UpsertMarketParams struct {
	ID          string
	Platform    string
	Question    string
	Description string
	EndDate     pgtype.Timestamptz
}

func (q *Queries) UpsertMarket(ctx context.Context, arg UpsertMarketParams) error {
	_, err := q.db.Exec(ctx, upsertMarket,
		arg.ID, arg.Platform, arg.Question, arg.Description, arg.EndDate)
	if err != nil {
		return fmt.Errorf("upsert market: %w", err)
	}
	return nil
}

const upsertToken = `
INSERT INTO tokens (id, market_id, outcome, fallback_probability)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	outcome = EXCLUDED.outcome,
	fallback_probability = EXCLUDED.fallback_probability
`

type UpsertTokenParams struct {
	ID                  string
	MarketID            string
	Outcome             string
	FallbackProbability float64
}

func (q *Queries) UpsertToken(ctx context.Context, arg UpsertTokenParams) error {
	_, err := q.db.Exec(ctx, upsertToken,
		arg.ID, arg.MarketID, arg.Outcome, arg.FallbackProbability)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

const getTokensForPlatform = `
SELECT t.id, t.market_id, t.outcome, t.fallback_probability
FROM tokens t
JOIN markets m ON m.id = t.market_id
WHERE m.platform = $1
`

type TokenRow struct {
	ID                  string
	MarketID            string
	Outcome             string
	FallbackProbability float64
}

func (q *Queries) GetTokensForPlatform(ctx context.Context, platform string) ([]TokenRow, error) {
	rows, err := q.db.Query(ctx, getTokensForPlatform, platform)
	if err != nil {
		return nil, fmt.Errorf("get tokens for platform: %w", err)
	}
	defer rows.Close()

	var tokens []TokenRow
	for rows.Next() {
		var t TokenRow
		if err := rows.Scan(&t.ID, &t.MarketID, &t.Outcome, &t.FallbackProbability); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

const insertOrderBookSnapshot = `
INSERT INTO order_book_snapshots (time, token_id, side, level, price, size)
VALUES ($1, $2, $3, $4, $5, $6)
`

type InsertOrderBookSnapshotBatchParams struct {
	Time    time.Time
	TokenID string
	Side    string
	Level   int16
	Price   int64
	Size    int64
	// ingested_at uses DB default NOW()
}

// InsertOrderBookSnapshotBatch inserts level rows in one round trip and
// returns the number of rows written.
func (q *Queries) InsertOrderBookSnapshotBatch(ctx context.Context, params []InsertOrderBookSnapshotBatchParams) (int64, error) {
	batch := &pgx.Batch{}
	for _, p := range params {
		batch.Queue(insertOrderBookSnapshot, p.Time, p.TokenID, p.Side, p.Level, p.Price, p.Size)
	}

	results := q.db.SendBatch(ctx, batch)
	defer results.Close()

	var count int64
	for range params {
		tag, err := results.Exec()
		if err != nil {
			return count, fmt.Errorf("insert snapshot row: %w", err)
		}
		count += tag.RowsAffected()
	}
	return count, nil
}

const insertTradePrint = `
INSERT INTO trade_prints (time, token_id, price, size, side)
VALUES ($1, $2, $3, $4, $5)
`

type InsertTradePrintParams struct {
	Time    time.Time
	TokenID string
	Price   float64
	Size    float64
	Side    string
}

func (q *Queries) InsertTradePrint(ctx context.Context, arg InsertTradePrintParams) error {
	_, err := q.db.Exec(ctx, insertTradePrint,
		arg.Time, arg.TokenID, arg.Price, arg.Size, arg.Side)
	if err != nil {
		return fmt.Errorf("insert trade print: %w", err)
	}
	return nil
}

const insertMicrostructureState = `
INSERT INTO microstructure_states (
	id, market_id, outcome_id, time,
	displayed_probability, display_price_source, robust_probability,
	book_reliability_score, trade_reliability_score, manipulation_risk_score,
	depth_imbalance, quote_trade_divergence,
	signal_weights, explanatory_tags, source_id
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING
`

// InsertMicrostructureState persists one analyzer result. Weights and tags
// are stored as jsonb so consumers read them by name.
func (q *Queries) InsertMicrostructureState(ctx context.Context, state *microstructure.State) error {
	weights, err := json.Marshal(state.SignalWeights)
	if err != nil {
		return fmt.Errorf("marshal signal weights: %w", err)
	}
	tags, err := json.Marshal(state.ExplanatoryTags)
	if err != nil {
		return fmt.Errorf("marshal explanatory tags: %w", err)
	}

	_, err = q.db.Exec(ctx, insertMicrostructureState,
		state.ID, state.MarketID, state.OutcomeID, state.Timestamp,
		state.DisplayedProbability, string(state.DisplayPriceSource), state.RobustProbability,
		state.BookReliabilityScore, state.TradeReliabilityScore, state.ManipulationRiskScore,
		state.DepthImbalance, state.QuoteTradeDivergence,
		weights, tags, state.SourceID,
	)
	if err != nil {
		return fmt.Errorf("insert microstructure state: %w", err)
	}
	return nil
}
