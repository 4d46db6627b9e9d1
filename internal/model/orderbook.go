package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side of the book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Valid reports whether s is bid or ask.
func (s Side) Valid() bool { return s == SideBid || s == SideAsk }

// BookPayload is a parsed order-book snapshot together with the raw JSON
// it was parsed from.
type BookPayload struct {
	Bids []Level
	Asks []Level
	Raw  json.RawMessage // {"bids":[...],"asks":[...]}
}

type rawBook struct {
	Bids json.RawMessage `json:"bids"`
	Asks json.RawMessage `json:"asks"`
}

// NewBookPayload parses the bid and ask arrays of a snapshot. A missing side
// is treated as empty.
func NewBookPayload(bids, asks json.RawMessage) (BookPayload, error) {
	bids = emptyIfMissing(bids)
	asks = emptyIfMissing(asks)

	var p BookPayload
	if err := json.Unmarshal(bids, &p.Bids); err != nil {
		return BookPayload{}, fmt.Errorf("parse bids: %w", err)
	}
	if err := json.Unmarshal(asks, &p.Asks); err != nil {
		return BookPayload{}, fmt.Errorf("parse asks: %w", err)
	}

	raw, err := json.Marshal(rawBook{Bids: bids, Asks: asks})
	if err != nil {
		return BookPayload{}, fmt.Errorf("encode raw book: %w", err)
	}
	p.Raw = raw
	return p, nil
}

// DecodeBookPayload parses a stored raw snapshot.
func DecodeBookPayload(raw []byte) (BookPayload, error) {
	var rb rawBook
	if err := json.Unmarshal(raw, &rb); err != nil {
		return BookPayload{}, fmt.Errorf("decode raw book: %w", err)
	}
	return NewBookPayload(rb.Bids, rb.Asks)
}

// Same reports whether both sides match level for level.
func (p BookPayload) Same(o BookPayload) bool {
	return SameLevels(p.Bids, o.Bids) && SameLevels(p.Asks, o.Asks)
}

func emptyIfMissing(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return json.RawMessage("[]")
	}
	return raw
}

// OrderBookRaw is the verbatim snapshot kept for duplicate detection.
type OrderBookRaw struct {
	ID          int64     `gorm:"primaryKey"`
	AssetID     int64     `gorm:"not null;index:idx_order_book_raw_asset_time,priority:1"`
	ChannelUUID string    `gorm:"column:channel_uuid;size:50"`
	ReceivedAt  time.Time `gorm:"not null;index:idx_order_book_raw_asset_time,priority:2"`
	RawData     []byte    `gorm:"type:blob;not null"`
}

// TableName pins the table name used by gorm.
func (OrderBookRaw) TableName() string { return "order_book_raw" }

// Payload parses the stored snapshot.
func (r *OrderBookRaw) Payload() (BookPayload, error) {
	return DecodeBookPayload(r.RawData)
}

// OrderBookLevel is one normalized price level of a stored snapshot.
type OrderBookLevel struct {
	ID          int64     `gorm:"primaryKey"`
	AssetID     int64     `gorm:"not null;uniqueIndex:idx_order_book_unique_level,priority:1;index:idx_order_book_asset_time,priority:1"`
	SnapshotID  int64     `gorm:"not null;uniqueIndex:idx_order_book_unique_level,priority:2;index:idx_order_book_snapshot_side,priority:1"`
	ChannelUUID string    `gorm:"column:channel_uuid;size:50"`
	ReceivedAt  time.Time `gorm:"not null;index:idx_order_book_asset_time,priority:2;index:idx_order_book_received_at"`
	Side        Side      `gorm:"size:4;not null;uniqueIndex:idx_order_book_unique_level,priority:3;index:idx_order_book_snapshot_side,priority:2;index:idx_order_book_side_price,priority:1;check:side IN ('bid','ask')"`
	LevelRank   int       `gorm:"not null;uniqueIndex:idx_order_book_unique_level,priority:4;check:level_rank > 0"`

	PriceAmount          int64  `gorm:"not null;index:idx_order_book_side_price,priority:2;check:price_amount >= 0"`
	QuantityAmount       int64  `gorm:"not null;check:quantity_amount >= 0"`
	CumulativeAmount     *int64 `gorm:"check:cumulative_amount IS NULL OR cumulative_amount >= quantity_amount"`
	LevelCostAmount      int64  `gorm:"not null;check:level_cost_amount >= 0"`
	CumulativeCostAmount *int64

	PriceDisplay          decimal.Decimal     `gorm:"type:numeric(30,18);not null"`
	QuantityDisplay       decimal.Decimal     `gorm:"type:numeric(30,18);not null"`
	CumulativeDisplay     decimal.NullDecimal `gorm:"type:numeric(30,18)"`
	LevelCostDisplay      decimal.Decimal     `gorm:"type:numeric(30,18);not null"`
	CumulativeCostDisplay decimal.NullDecimal `gorm:"type:numeric(30,18)"`

	PriceDenom    string `gorm:"size:20;not null"`
	QuantityDenom string `gorm:"size:20;not null"`
	TotalOrders   *int
}

// TableName pins the table name used by gorm.
func (OrderBookLevel) TableName() string { return "order_book" }

// Validate checks the row-level invariants.
func (l *OrderBookLevel) Validate() error {
	switch {
	case !l.Side.Valid():
		return fmt.Errorf("invalid side %q", l.Side)
	case l.LevelRank <= 0:
		return fmt.Errorf("level rank must be positive, got %d", l.LevelRank)
	case l.PriceAmount < 0 || l.QuantityAmount < 0 || l.LevelCostAmount < 0:
		return fmt.Errorf("negative amount at %s rank %d", l.Side, l.LevelRank)
	case l.CumulativeAmount != nil && *l.CumulativeAmount < l.QuantityAmount:
		return fmt.Errorf("cumulative %d below quantity %d at %s rank %d", *l.CumulativeAmount, l.QuantityAmount, l.Side, l.LevelRank)
	}
	return nil
}
