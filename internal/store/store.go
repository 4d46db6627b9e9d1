// Package store defines the relational store used by the recorder.
//
// Writers run each unit of work through Store.WithAssetTx, which commits or
// rolls back as a whole and never runs two transactions for the same asset
// at the same time.
package store

import (
	"context"
	"errors"

	"github.com/rickgao/bidask-recorder/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is a relational market-data store.
type Store interface {
	// Migrate creates missing tables and indexes.
	Migrate(ctx context.Context) error

	// EnsureAsset inserts the asset if its symbol is unknown and returns the
	// stored row. An existing row is returned unchanged.
	EnsureAsset(ctx context.Context, asset *model.Asset) (*model.Asset, error)

	// FindAsset looks up an asset by symbol, case-insensitively.
	FindAsset(ctx context.Context, symbol string) (*model.Asset, error)

	// WithAssetTx runs fn in one transaction serialized per asset.
	WithAssetTx(ctx context.Context, assetID int64, fn func(Tx) error) error

	// ResetData deletes all order-book, raw snapshot and trade rows.
	// Assets are kept.
	ResetData(ctx context.Context) error

	// Counts reports row counts per table.
	Counts(ctx context.Context) (Counts, error)

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// LatestRaw returns the most recently received raw snapshot for the
	// asset, or ErrNotFound.
	LatestRaw(ctx context.Context, assetID int64) (*model.OrderBookRaw, error)
	InsertRaw(ctx context.Context, raw *model.OrderBookRaw) error

	// MaxSnapshotID returns the highest snapshot id stored for the asset, 0 if none.
	MaxSnapshotID(ctx context.Context, assetID int64) (int64, error)
	InsertLevels(ctx context.Context, levels []model.OrderBookLevel) error

	TradeExists(ctx context.Context, tradeID string) (bool, error)
	// InsertTrade reports false when a trade with the same id already exists.
	InsertTrade(ctx context.Context, trade *model.Trade) (bool, error)
}

// Counts is a row count per table.
type Counts struct {
	Assets    int64
	Raw       int64
	Levels    int64
	Trades    int64
	Snapshots int64
}
