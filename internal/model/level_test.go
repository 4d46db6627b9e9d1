package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLevel_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		price      string
		quantity   string
		wantTotal  string
		wantOrders int
	}{
		{"object with strings", `{"price":"0.031","quantity":"1500"}`, "0.031", "1500", "", 0},
		{"object with numbers", `{"price":0.031,"quantity":1500}`, "0.031", "1500", "", 0},
		{"object with total", `{"price":"0.031","quantity":"10","total":"25","totalOrders":3}`, "0.031", "10", "25", 3},
		{"tuple of strings", `["0.030", "2.5"]`, "0.03", "2.5", "", 0},
		{"tuple of numbers", `[0.03, 2.5]`, "0.03", "2.5", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Level
			if err := json.Unmarshal([]byte(tt.input), &l); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !l.Price.Equal(decimal.RequireFromString(tt.price)) {
				t.Errorf("Price = %s, want %s", l.Price, tt.price)
			}
			if !l.Quantity.Equal(decimal.RequireFromString(tt.quantity)) {
				t.Errorf("Quantity = %s, want %s", l.Quantity, tt.quantity)
			}
			if tt.wantTotal == "" {
				if l.Total.Valid {
					t.Errorf("Total = %s, want none", l.Total.Decimal)
				}
			} else if !l.Total.Valid || !l.Total.Decimal.Equal(decimal.RequireFromString(tt.wantTotal)) {
				t.Errorf("Total = %+v, want %s", l.Total, tt.wantTotal)
			}
			if tt.wantOrders == 0 {
				if l.TotalOrders != nil {
					t.Errorf("TotalOrders = %d, want nil", *l.TotalOrders)
				}
			} else if l.TotalOrders == nil || *l.TotalOrders != tt.wantOrders {
				t.Errorf("TotalOrders = %v, want %d", l.TotalOrders, tt.wantOrders)
			}
		})
	}
}

func TestLevel_UnmarshalJSON_Invalid(t *testing.T) {
	inputs := []string{
		`{"quantity":"1"}`,
		`{"price":"abc","quantity":"1"}`,
		`{"price":"-1","quantity":"1"}`,
		`["0.1"]`,
		`{"price":null,"quantity":"1"}`,
	}

	for _, in := range inputs {
		var l Level
		err := json.Unmarshal([]byte(in), &l)
		if !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidLevel", in, err)
		}
	}
}

func TestBookPayload(t *testing.T) {
	p, err := NewBookPayload(
		json.RawMessage(`[{"price":"0.031","quantity":"100"},{"price":"0.030","quantity":"50"}]`),
		nil,
	)
	if err != nil {
		t.Fatalf("NewBookPayload failed: %v", err)
	}
	if len(p.Bids) != 2 || len(p.Asks) != 0 {
		t.Fatalf("got %d bids %d asks, want 2 and 0", len(p.Bids), len(p.Asks))
	}

	stored := OrderBookRaw{RawData: p.Raw}
	back, err := stored.Payload()
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if !back.Same(p) {
		t.Error("decoded payload differs from original")
	}
}

func TestSameLevels(t *testing.T) {
	lv := func(p, q string) Level {
		return Level{Price: decimal.RequireFromString(p), Quantity: decimal.RequireFromString(q)}
	}
	base := []Level{lv("0.031", "100"), lv("0.030", "50")}

	tests := []struct {
		name  string
		other []Level
		want  bool
	}{
		{"identical", []Level{lv("0.031", "100"), lv("0.030", "50")}, true},
		{"different textual form", []Level{lv("0.0310", "100.0"), lv("0.03", "50")}, true},
		{"price differs", []Level{lv("0.032", "100"), lv("0.030", "50")}, false},
		{"quantity differs", []Level{lv("0.031", "101"), lv("0.030", "50")}, false},
		{"shorter", []Level{lv("0.031", "100")}, false},
		{"reordered", []Level{lv("0.030", "50"), lv("0.031", "100")}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameLevels(base, tt.other); got != tt.want {
				t.Errorf("SameLevels = %v, want %v", got, tt.want)
			}
		})
	}

	if !SameLevels(nil, []Level{}) {
		t.Error("two empty sides should match")
	}
}

func TestOrderBookLevel_Validate(t *testing.T) {
	cum := int64(5)
	tests := []struct {
		name    string
		level   OrderBookLevel
		wantErr bool
	}{
		{"valid", OrderBookLevel{Side: SideBid, LevelRank: 1, QuantityAmount: 5}, false},
		{"bad side", OrderBookLevel{Side: "mid", LevelRank: 1}, true},
		{"zero rank", OrderBookLevel{Side: SideAsk, LevelRank: 0}, true},
		{"negative price", OrderBookLevel{Side: SideAsk, LevelRank: 1, PriceAmount: -1}, true},
		{"cumulative below quantity", OrderBookLevel{Side: SideAsk, LevelRank: 1, QuantityAmount: 6, CumulativeAmount: &cum}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.level.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
