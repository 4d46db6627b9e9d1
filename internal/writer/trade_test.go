package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/bidask-recorder/internal/market"
	"github.com/rickgao/bidask-recorder/internal/router"
)

func testTrade(id string) router.TradeMsg {
	return router.TradeMsg{
		Symbol:      "HASH-USD",
		ChannelUUID: "c-2",
		TradeID:     id,
		Price:       decimal.RequireFromString("0.031"),
		Quantity:    decimal.RequireFromString("12.5"),
		TradeTime:   testTime,
		ReceivedAt:  testTime.Add(time.Second),
		Raw:         []byte(`{"id":"` + id + `"}`),
	}
}

func TestTradeWriter_Transform(t *testing.T) {
	w := NewTradeWriter(DefaultWriterConfig(), nil, nil, nil, nil, nil)
	asset := testAsset()
	asset.ID = 4

	row, err := w.transform(asset, testTrade("t-1"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if row.TradeID != "t-1" || row.AssetID != 4 {
		t.Errorf("row = %s/%d", row.TradeID, row.AssetID)
	}
	if row.PriceAmount != 31_000 {
		t.Errorf("PriceAmount = %d, want 31000", row.PriceAmount)
	}
	if row.QuantityAmount != 12_500_000_000 {
		t.Errorf("QuantityAmount = %d, want 12500000000", row.QuantityAmount)
	}
	if !row.TradeTime.Equal(testTime) {
		t.Errorf("TradeTime = %v, want exchange time %v", row.TradeTime, testTime)
	}
	if row.ChannelUUID != "c-2" || string(row.RawData) != `{"id":"t-1"}` {
		t.Errorf("row = %+v", row)
	}
}

func TestTradeWriter_TransformRejectsZeroValues(t *testing.T) {
	w := NewTradeWriter(DefaultWriterConfig(), nil, nil, nil, nil, nil)

	tests := []struct {
		name string
		edit func(*router.TradeMsg)
	}{
		{"missing id", func(m *router.TradeMsg) { m.TradeID = "" }},
		{"zero price", func(m *router.TradeMsg) { m.Price = decimal.Zero }},
		{"zero quantity", func(m *router.TradeMsg) { m.Quantity = decimal.Zero }},
		{"negative price", func(m *router.TradeMsg) { m.Price = decimal.RequireFromString("-1") }},
		{"below one base unit", func(m *router.TradeMsg) { m.Price = decimal.RequireFromString("0.0000001") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testTrade("t-1")
			tt.edit(&msg)
			if _, err := w.transform(testAsset(), msg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTradeWriter_Idempotent(t *testing.T) {
	s, reg := setupStore(t)
	sink := newSink()
	w := NewTradeWriter(DefaultWriterConfig(), nil, s, reg, sink, nil)
	ctx := context.Background()

	if ok, err := w.Write(ctx, testTrade("t-1")); err != nil || !ok {
		t.Fatalf("first Write = %v, %v", ok, err)
	}
	ok, err := w.Write(ctx, testTrade("t-1"))
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if ok {
		t.Error("second Write stored a duplicate trade")
	}

	if c := counts(t, s); c.Trades != 1 {
		t.Errorf("trades = %d, want 1", c.Trades)
	}
	stats := w.Stats()
	if stats.Inserts != 1 || stats.Duplicates != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := sink.Summary().DuplicateTrades; got != 1 {
		t.Errorf("duplicate trades = %d, want 1", got)
	}
}

func TestTradeWriter_UnknownAsset(t *testing.T) {
	s, reg := setupStore(t)
	w := NewTradeWriter(DefaultWriterConfig(), nil, s, reg, nil, nil)

	msg := testTrade("t-1")
	msg.Symbol = "ETH-USD"
	if _, err := w.Write(context.Background(), msg); !errors.Is(err, market.ErrUnknownAsset) {
		t.Fatalf("err = %v, want ErrUnknownAsset", err)
	}
	if c := counts(t, s); c.Trades != 0 {
		t.Errorf("trades = %d, want 0", c.Trades)
	}
}

func TestTradeWriter_DrainsOnStop(t *testing.T) {
	s, reg := setupStore(t)
	input := router.NewGrowableBuffer[router.TradeMsg](2, 0)
	w := NewTradeWriter(DefaultWriterConfig(), input, s, reg, nil, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, id := range []string{"t-1", "t-2", "t-1", "t-3"} {
		input.Send(testTrade(id))
	}
	input.Close()
	if err := w.Stop(stopCtx(t)); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if c := counts(t, s); c.Trades != 3 {
		t.Errorf("trades = %d, want 3", c.Trades)
	}
}
