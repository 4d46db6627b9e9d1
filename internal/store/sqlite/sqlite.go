// Package sqlite implements store.Store on an embedded SQLite database
// through gorm and the pure-Go glebarez driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rickgao/bidask-recorder/internal/model"
	"github.com/rickgao/bidask-recorder/internal/store"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is the SQLite-backed store.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
	locks store.AssetLocks
}

var _ store.Store = (*Store)(nil)

// Open connects to the database file at path, creating its directory.
// A single connection is used, so transactions are serialized by the pool.
func Open(path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Store{db: db, sqlDB: sqlDB}, nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&model.Asset{}, &model.OrderBookRaw{}, &model.OrderBookLevel{}, &model.Trade{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_asset_symbol_lower ON asset (lower(symbol))").Error; err != nil {
		return fmt.Errorf("create symbol index: %w", err)
	}
	return nil
}

// EnsureAsset inserts the asset unless its symbol already exists.
func (s *Store) EnsureAsset(ctx context.Context, asset *model.Asset) (*model.Asset, error) {
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	row := *asset
	row.ID = 0
	row.Symbol = model.NormalizeSymbol(row.Symbol)
	if err := s.db.WithContext(ctx).Where("symbol = ?", row.Symbol).FirstOrCreate(&row).Error; err != nil {
		return nil, fmt.Errorf("ensure asset %s: %w", row.Symbol, err)
	}
	return &row, nil
}

// FindAsset looks up an asset by symbol.
func (s *Store) FindAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	var a model.Asset
	err := s.db.WithContext(ctx).Where("symbol = ?", model.NormalizeSymbol(symbol)).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("asset %s: %w", symbol, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find asset %s: %w", symbol, err)
	}
	return &a, nil
}

// WithAssetTx runs fn in one transaction while holding the asset's lock.
func (s *Store) WithAssetTx(ctx context.Context, assetID int64, fn func(store.Tx) error) error {
	unlock := s.locks.Lock(assetID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txn{db: tx})
	})
}

// ResetData deletes recorded market data, keeping assets.
func (s *Store) ResetData(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"order_book", "order_book_raw", "trade"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Counts reports row counts per table.
func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	var c store.Counts
	db := s.db.WithContext(ctx)

	targets := []struct {
		model any
		dst   *int64
	}{
		{&model.Asset{}, &c.Assets},
		{&model.OrderBookRaw{}, &c.Raw},
		{&model.OrderBookLevel{}, &c.Levels},
		{&model.Trade{}, &c.Trades},
	}
	for _, tgt := range targets {
		if err := db.Model(tgt.model).Count(tgt.dst).Error; err != nil {
			return store.Counts{}, fmt.Errorf("count rows: %w", err)
		}
	}

	row := db.Raw("SELECT COUNT(*) FROM (SELECT DISTINCT asset_id, snapshot_id FROM order_book)").Row()
	if err := row.Scan(&c.Snapshots); err != nil {
		return store.Counts{}, fmt.Errorf("count snapshots: %w", err)
	}
	return c, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

type txn struct {
	db *gorm.DB
}

func (t *txn) LatestRaw(ctx context.Context, assetID int64) (*model.OrderBookRaw, error) {
	var raw model.OrderBookRaw
	err := t.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("received_at DESC").
		Order("id DESC").
		Take(&raw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest raw snapshot: %w", err)
	}
	return &raw, nil
}

func (t *txn) InsertRaw(ctx context.Context, raw *model.OrderBookRaw) error {
	if err := t.db.WithContext(ctx).Create(raw).Error; err != nil {
		return fmt.Errorf("insert raw snapshot: %w", err)
	}
	return nil
}

func (t *txn) MaxSnapshotID(ctx context.Context, assetID int64) (int64, error) {
	var max int64
	row := t.db.WithContext(ctx).
		Model(&model.OrderBookLevel{}).
		Select("COALESCE(MAX(snapshot_id), 0)").
		Where("asset_id = ?", assetID).
		Row()
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("max snapshot id: %w", err)
	}
	return max, nil
}

func (t *txn) InsertLevels(ctx context.Context, levels []model.OrderBookLevel) error {
	if len(levels) == 0 {
		return nil
	}
	if err := t.db.WithContext(ctx).CreateInBatches(levels, 200).Error; err != nil {
		return fmt.Errorf("insert levels: %w", err)
	}
	return nil
}

func (t *txn) TradeExists(ctx context.Context, tradeID string) (bool, error) {
	var n int64
	if err := t.db.WithContext(ctx).Model(&model.Trade{}).Where("trade_id = ?", tradeID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("trade exists: %w", err)
	}
	return n > 0, nil
}

func (t *txn) InsertTrade(ctx context.Context, trade *model.Trade) (bool, error) {
	res := t.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(trade)
	if res.Error != nil {
		return false, fmt.Errorf("insert trade %s: %w", trade.TradeID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
