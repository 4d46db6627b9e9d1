package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/bidask-recorder/internal/model"
	"github.com/rickgao/bidask-recorder/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAsset() *model.Asset {
	return &model.Asset{
		Symbol:            "hash-usd",
		Name:              "HASH-USD Trading Pair",
		BasePriceDenom:    "microUSD",
		BaseSizeDenom:     "nanoHASH",
		DisplayPriceDenom: "USD",
		DisplaySizeDenom:  "HASH",
		PriceFactor:       1_000_000,
		SizeFactor:        1_000_000_000,
	}
}

func TestEnsureAsset_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureAsset(ctx, testAsset())
	if err != nil {
		t.Fatalf("EnsureAsset failed: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if first.Symbol != "HASH-USD" {
		t.Errorf("Symbol = %q, want HASH-USD", first.Symbol)
	}

	changed := testAsset()
	changed.Name = "renamed"
	second, err := s.EnsureAsset(ctx, changed)
	if err != nil {
		t.Fatalf("second EnsureAsset failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second ID = %d, want %d", second.ID, first.ID)
	}
	if second.Name != "HASH-USD Trading Pair" {
		t.Errorf("existing asset was modified: name %q", second.Name)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Assets != 1 {
		t.Errorf("Assets = %d, want 1", counts.Assets)
	}
}

func TestEnsureAsset_ZeroFactorRejected(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	a := testAsset()
	a.SizeFactor = 0
	if _, err := s.EnsureAsset(ctx, a); !errors.Is(err, model.ErrInvalidFactor) {
		t.Fatalf("EnsureAsset error = %v, want ErrInvalidFactor", err)
	}

	if _, err := s.FindAsset(ctx, "HASH-USD"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindAsset error = %v, want ErrNotFound", err)
	}
}

func TestFindAsset_CaseInsensitive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.EnsureAsset(ctx, testAsset()); err != nil {
		t.Fatalf("EnsureAsset failed: %v", err)
	}

	a, err := s.FindAsset(ctx, "Hash-Usd")
	if err != nil {
		t.Fatalf("FindAsset failed: %v", err)
	}
	if a.PriceFactor != 1_000_000 || a.SizeFactor != 1_000_000_000 {
		t.Errorf("factors = %d/%d", a.PriceFactor, a.SizeFactor)
	}
}

func TestLatestRaw_Ordering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	asset, err := s.EnsureAsset(ctx, testAsset())
	if err != nil {
		t.Fatalf("EnsureAsset failed: %v", err)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err = s.WithAssetTx(ctx, asset.ID, func(tx store.Tx) error {
		if _, err := tx.LatestRaw(ctx, asset.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("LatestRaw on empty table = %v, want ErrNotFound", err)
		}
		for i, at := range []time.Time{base.Add(2 * time.Second), base, base.Add(time.Second)} {
			raw := &model.OrderBookRaw{
				AssetID:     asset.ID,
				ReceivedAt:  at,
				RawData:     []byte(`{"bids":[],"asks":[]}`),
				ChannelUUID: string(rune('a' + i)),
			}
			if err := tx.InsertRaw(ctx, raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithAssetTx failed: %v", err)
	}

	err = s.WithAssetTx(ctx, asset.ID, func(tx store.Tx) error {
		latest, err := tx.LatestRaw(ctx, asset.ID)
		if err != nil {
			return err
		}
		if latest.ChannelUUID != "a" {
			t.Errorf("latest raw = %q, want the one received last (a)", latest.ChannelUUID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithAssetTx failed: %v", err)
	}
}

func TestWithAssetTx_RollbackOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	asset, err := s.EnsureAsset(ctx, testAsset())
	if err != nil {
		t.Fatalf("EnsureAsset failed: %v", err)
	}

	boom := errors.New("boom")
	err = s.WithAssetTx(ctx, asset.ID, func(tx store.Tx) error {
		raw := &model.OrderBookRaw{AssetID: asset.ID, ReceivedAt: time.Now().UTC(), RawData: []byte(`{}`)}
		if err := tx.InsertRaw(ctx, raw); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithAssetTx error = %v, want boom", err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Raw != 0 {
		t.Errorf("Raw = %d after rollback, want 0", counts.Raw)
	}
}

func TestLevelsAndTrades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	asset, err := s.EnsureAsset(ctx, testAsset())
	if err != nil {
		t.Fatalf("EnsureAsset failed: %v", err)
	}
	now := time.Now().UTC()

	err = s.WithAssetTx(ctx, asset.ID, func(tx store.Tx) error {
		max, err := tx.MaxSnapshotID(ctx, asset.ID)
		if err != nil {
			return err
		}
		if max != 0 {
			t.Errorf("MaxSnapshotID on empty table = %d, want 0", max)
		}

		levels := []model.OrderBookLevel{
			{AssetID: asset.ID, SnapshotID: 4, ReceivedAt: now, Side: model.SideBid, LevelRank: 1, PriceAmount: 31000, QuantityAmount: 10, PriceDenom: "microUSD", QuantityDenom: "nanoHASH"},
			{AssetID: asset.ID, SnapshotID: 4, ReceivedAt: now, Side: model.SideAsk, LevelRank: 1, PriceAmount: 32000, QuantityAmount: 10, PriceDenom: "microUSD", QuantityDenom: "nanoHASH"},
		}
		if err := tx.InsertLevels(ctx, levels); err != nil {
			return err
		}

		max, err = tx.MaxSnapshotID(ctx, asset.ID)
		if err != nil {
			return err
		}
		if max != 4 {
			t.Errorf("MaxSnapshotID = %d, want 4", max)
		}

		trade := &model.Trade{TradeID: "T1", AssetID: asset.ID, PriceAmount: 31000, QuantityAmount: 5, TradeTime: now}
		inserted, err := tx.InsertTrade(ctx, trade)
		if err != nil {
			return err
		}
		if !inserted {
			t.Error("first InsertTrade reported duplicate")
		}

		exists, err := tx.TradeExists(ctx, "T1")
		if err != nil {
			return err
		}
		if !exists {
			t.Error("TradeExists(T1) = false")
		}

		dup := &model.Trade{TradeID: "T1", AssetID: asset.ID, PriceAmount: 1, QuantityAmount: 1, TradeTime: now}
		inserted, err = tx.InsertTrade(ctx, dup)
		if err != nil {
			return err
		}
		if inserted {
			t.Error("duplicate InsertTrade reported insert")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithAssetTx failed: %v", err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Levels != 2 || counts.Snapshots != 1 || counts.Trades != 1 {
		t.Errorf("counts = %+v, want 2 levels, 1 snapshot, 1 trade", counts)
	}
}

func TestResetData_KeepsAssets(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	asset, err := s.EnsureAsset(ctx, testAsset())
	if err != nil {
		t.Fatalf("EnsureAsset failed: %v", err)
	}
	err = s.WithAssetTx(ctx, asset.ID, func(tx store.Tx) error {
		_, err := tx.InsertTrade(ctx, &model.Trade{TradeID: "T9", AssetID: asset.ID, TradeTime: time.Now().UTC()})
		return err
	})
	if err != nil {
		t.Fatalf("insert trade: %v", err)
	}

	if err := s.ResetData(ctx); err != nil {
		t.Fatalf("ResetData failed: %v", err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Trades != 0 || counts.Assets != 1 {
		t.Errorf("counts = %+v, want 0 trades and 1 asset", counts)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "market_data.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
