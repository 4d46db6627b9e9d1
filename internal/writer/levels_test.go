package writer

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rickgao/bidask-recorder/internal/model"
)

func TestBuildLevels_RanksAndSides(t *testing.T) {
	asset := testAsset()
	asset.ID = 7
	book := testBook(t,
		`[["0.031","100"],["0.030","50"],["0.029","10"]]`,
		`[["0.032","75"],["0.033","5"]]`,
	)

	rows, err := BuildLevels(asset, SnapshotRef{AssetID: 7, SnapshotID: 3, ChannelUUID: "c-1", ReceivedAt: testTime}, book, 8)
	if err != nil {
		t.Fatalf("BuildLevels: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("len(rows) = %d, want 5", len(rows))
	}

	want := []struct {
		side model.Side
		rank int
	}{
		{model.SideBid, 1}, {model.SideBid, 2}, {model.SideBid, 3},
		{model.SideAsk, 1}, {model.SideAsk, 2},
	}
	for i, w := range want {
		r := rows[i]
		if r.Side != w.side || r.LevelRank != w.rank {
			t.Errorf("rows[%d] = %s/%d, want %s/%d", i, r.Side, r.LevelRank, w.side, w.rank)
		}
		if r.SnapshotID != 3 || r.AssetID != 7 || r.ChannelUUID != "c-1" {
			t.Errorf("rows[%d] snapshot ref = %d/%d/%s", i, r.AssetID, r.SnapshotID, r.ChannelUUID)
		}
		if r.PriceDenom != "microUSD" || r.QuantityDenom != "nhash" {
			t.Errorf("rows[%d] denoms = %s/%s", i, r.PriceDenom, r.QuantityDenom)
		}
		if r.CumulativeAmount != nil || r.CumulativeCostAmount != nil || r.CumulativeDisplay.Valid {
			t.Errorf("rows[%d] has cumulative values without exchange totals", i)
		}
	}
}

func TestBuildLevels_Amounts(t *testing.T) {
	book := testBook(t, `[{"price":"0.031","quantity":"100"}]`, `[]`)

	rows, err := BuildLevels(testAsset(), SnapshotRef{SnapshotID: 1}, book, 8)
	if err != nil {
		t.Fatalf("BuildLevels: %v", err)
	}
	r := rows[0]

	if r.PriceAmount != 31_000 {
		t.Errorf("PriceAmount = %d, want 31000", r.PriceAmount)
	}
	if r.QuantityAmount != 100_000_000_000 {
		t.Errorf("QuantityAmount = %d, want 100000000000", r.QuantityAmount)
	}
	if r.LevelCostAmount != 3_100_000 {
		t.Errorf("LevelCostAmount = %d, want 3100000", r.LevelCostAmount)
	}
	if !r.PriceDisplay.Equal(decimal.RequireFromString("0.031")) {
		t.Errorf("PriceDisplay = %s, want 0.031", r.PriceDisplay)
	}
	if !r.LevelCostDisplay.Equal(decimal.RequireFromString("3.1")) {
		t.Errorf("LevelCostDisplay = %s, want 3.1", r.LevelCostDisplay)
	}
}

func TestBuildLevels_Cumulative(t *testing.T) {
	book := testBook(t,
		`[{"price":"0.031","quantity":"100","total":"100","totalOrders":2},{"price":"0.030","quantity":"50","total":"150"}]`,
		`[{"price":"0.032","quantity":"75"}]`,
	)

	rows, err := BuildLevels(testAsset(), SnapshotRef{SnapshotID: 1}, book, 8)
	if err != nil {
		t.Fatalf("BuildLevels: %v", err)
	}

	first, second, ask := rows[0], rows[1], rows[2]
	if first.CumulativeAmount == nil || *first.CumulativeAmount != 100_000_000_000 {
		t.Errorf("first cumulative = %v, want 100000000000", first.CumulativeAmount)
	}
	if first.TotalOrders == nil || *first.TotalOrders != 2 {
		t.Errorf("first total orders = %v, want 2", first.TotalOrders)
	}
	if second.CumulativeAmount == nil || *second.CumulativeAmount != 150_000_000_000 {
		t.Errorf("second cumulative = %v, want 150000000000", second.CumulativeAmount)
	}
	// 3.1 + 1.5 USD
	if second.CumulativeCostAmount == nil || *second.CumulativeCostAmount != 4_600_000 {
		t.Errorf("second cumulative cost = %v, want 4600000", second.CumulativeCostAmount)
	}
	if !second.CumulativeCostDisplay.Valid || !second.CumulativeCostDisplay.Decimal.Equal(decimal.RequireFromString("4.6")) {
		t.Errorf("second cumulative cost display = %v, want 4.6", second.CumulativeCostDisplay)
	}
	if ask.CumulativeAmount != nil {
		t.Errorf("ask without total has cumulative %d", *ask.CumulativeAmount)
	}
}

func TestBuildLevels_TotalBelowQuantityRejected(t *testing.T) {
	book := testBook(t, `[{"price":"0.031","quantity":"100","total":"10"}]`, `[]`)

	if _, err := BuildLevels(testAsset(), SnapshotRef{SnapshotID: 1}, book, 8); err == nil {
		t.Fatal("expected error for total below quantity")
	}
}

func TestBuildLevels_Empty(t *testing.T) {
	rows, err := BuildLevels(testAsset(), SnapshotRef{SnapshotID: 1}, testBook(t, `[]`, `[]`), 8)
	if err != nil {
		t.Fatalf("BuildLevels: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}
