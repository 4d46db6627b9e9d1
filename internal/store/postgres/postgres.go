// Package postgres implements store.Store on PostgreSQL through pgx.
//
// Transactions for the same asset are serialized with a transaction-scoped
// advisory lock keyed by asset id, so several recorder processes can share
// one database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/bidask-recorder/internal/model"
	"github.com/rickgao/bidask-recorder/internal/store"
)

// Store is the Postgres-backed store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

const assetColumns = `id, symbol, COALESCE(name, ''), base_price_denom, base_size_denom,
	display_price_denom, display_size_denom, price_denom_factor, size_denom_factor, created_at`

func scanAsset(row pgx.Row) (*model.Asset, error) {
	var a model.Asset
	err := row.Scan(&a.ID, &a.Symbol, &a.Name, &a.BasePriceDenom, &a.BaseSizeDenom,
		&a.DisplayPriceDenom, &a.DisplaySizeDenom, &a.PriceFactor, &a.SizeFactor, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// EnsureAsset inserts the asset unless its symbol already exists.
func (s *Store) EnsureAsset(ctx context.Context, asset *model.Asset) (*model.Asset, error) {
	if err := asset.Validate(); err != nil {
		return nil, err
	}
	symbol := model.NormalizeSymbol(asset.Symbol)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO asset (symbol, name, base_price_denom, base_size_denom,
			display_price_denom, display_size_denom, price_denom_factor, size_denom_factor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO NOTHING
	`, symbol, asset.Name, asset.BasePriceDenom, asset.BaseSizeDenom,
		asset.DisplayPriceDenom, asset.DisplaySizeDenom, asset.PriceFactor, asset.SizeFactor)
	if err != nil {
		return nil, fmt.Errorf("ensure asset %s: %w", symbol, err)
	}

	return s.FindAsset(ctx, symbol)
}

// FindAsset looks up an asset by symbol, case-insensitively.
func (s *Store) FindAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM asset WHERE lower(symbol) = lower($1)`, symbol)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", symbol, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find asset %s: %w", symbol, err)
	}
	return a, nil
}

// WithAssetTx runs fn in one transaction holding the asset's advisory lock.
func (s *Store) WithAssetTx(ctx context.Context, assetID int64, fn func(store.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, assetID); err != nil {
			return fmt.Errorf("lock asset %d: %w", assetID, err)
		}
		return fn(&txn{tx: tx})
	})
}

// ResetData deletes recorded market data, keeping assets.
func (s *Store) ResetData(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE order_book, order_book_raw, trade RESTART IDENTITY`); err != nil {
		return fmt.Errorf("reset data: %w", err)
	}
	return nil
}

// Counts reports row counts per table.
func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	var c store.Counts
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM asset),
			(SELECT COUNT(*) FROM order_book_raw),
			(SELECT COUNT(*) FROM order_book),
			(SELECT COUNT(*) FROM trade),
			(SELECT COUNT(*) FROM (SELECT DISTINCT asset_id, snapshot_id FROM order_book) s)
	`).Scan(&c.Assets, &c.Raw, &c.Levels, &c.Trades, &c.Snapshots)
	if err != nil {
		return store.Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// Ping verifies the pool can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type txn struct {
	tx pgx.Tx
}

func (t *txn) LatestRaw(ctx context.Context, assetID int64) (*model.OrderBookRaw, error) {
	var raw model.OrderBookRaw
	err := t.tx.QueryRow(ctx, `
		SELECT id, asset_id, COALESCE(channel_uuid, ''), received_at, raw_data
		FROM order_book_raw
		WHERE asset_id = $1
		ORDER BY received_at DESC, id DESC
		LIMIT 1
	`, assetID).Scan(&raw.ID, &raw.AssetID, &raw.ChannelUUID, &raw.ReceivedAt, &raw.RawData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest raw snapshot: %w", err)
	}
	return &raw, nil
}

func (t *txn) InsertRaw(ctx context.Context, raw *model.OrderBookRaw) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_book_raw (asset_id, channel_uuid, received_at, raw_data)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, raw.AssetID, raw.ChannelUUID, raw.ReceivedAt, raw.RawData).Scan(&raw.ID)
	if err != nil {
		return fmt.Errorf("insert raw snapshot: %w", err)
	}
	return nil
}

func (t *txn) MaxSnapshotID(ctx context.Context, assetID int64) (int64, error) {
	var max int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(snapshot_id), 0) FROM order_book WHERE asset_id = $1`, assetID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max snapshot id: %w", err)
	}
	return max, nil
}

// InsertLevels inserts rows using pgx.Batch.
func (t *txn) InsertLevels(ctx context.Context, levels []model.OrderBookLevel) error {
	if len(levels) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range levels {
		batch.Queue(`
			INSERT INTO order_book (asset_id, snapshot_id, channel_uuid, received_at, side, level_rank,
				price_amount, quantity_amount, cumulative_amount, level_cost_amount, cumulative_cost_amount,
				price_display, quantity_display, cumulative_display, level_cost_display, cumulative_cost_display,
				price_denom, quantity_denom, total_orders)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`, l.AssetID, l.SnapshotID, l.ChannelUUID, l.ReceivedAt, string(l.Side), l.LevelRank,
			l.PriceAmount, l.QuantityAmount, l.CumulativeAmount, l.LevelCostAmount, l.CumulativeCostAmount,
			l.PriceDisplay, l.QuantityDisplay, l.CumulativeDisplay, l.LevelCostDisplay, l.CumulativeCostDisplay,
			l.PriceDenom, l.QuantityDenom, l.TotalOrders)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	for range levels {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert levels: %w", err)
		}
	}
	return nil
}

func (t *txn) TradeExists(ctx context.Context, tradeID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trade WHERE trade_id = $1)`, tradeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("trade exists: %w", err)
	}
	return exists, nil
}

func (t *txn) InsertTrade(ctx context.Context, trade *model.Trade) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO trade (trade_id, asset_id, price_amount, quantity_amount, trade_time, channel_uuid, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (trade_id) DO NOTHING
	`, trade.TradeID, trade.AssetID, trade.PriceAmount, trade.QuantityAmount, trade.TradeTime, trade.ChannelUUID, trade.RawData)
	if err != nil {
		return false, fmt.Errorf("insert trade %s: %w", trade.TradeID, err)
	}
	return ct.RowsAffected() > 0, nil
}
