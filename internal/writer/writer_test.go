package writer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rickgao/bidask-recorder/internal/market"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/model"
	"github.com/rickgao/bidask-recorder/internal/store"
	"github.com/rickgao/bidask-recorder/internal/store/sqlite"
)

func testAsset() *model.Asset {
	return &model.Asset{
		Symbol:            "HASH-USD",
		Name:              "Hash",
		BasePriceDenom:    "microUSD",
		BaseSizeDenom:     "nhash",
		DisplayPriceDenom: "USD",
		DisplaySizeDenom:  "HASH",
		PriceFactor:       1_000_000,
		SizeFactor:        1_000_000_000,
	}
}

func setupStore(t *testing.T) (*sqlite.Store, *market.Registry) {
	t.Helper()
	s, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	reg := market.NewRegistry(s, nil)
	if _, err := reg.Ensure(ctx, testAsset()); err != nil {
		t.Fatalf("ensure asset: %v", err)
	}
	return s, reg
}

func testBook(t *testing.T, bids, asks string) model.BookPayload {
	t.Helper()
	p, err := model.NewBookPayload(json.RawMessage(bids), json.RawMessage(asks))
	if err != nil {
		t.Fatalf("NewBookPayload: %v", err)
	}
	return p
}

func counts(t *testing.T, s store.Store) store.Counts {
	t.Helper()
	c, err := s.Counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	return c
}

func stopCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

var testTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newSink() *metrics.Sink { return metrics.NewSink() }
