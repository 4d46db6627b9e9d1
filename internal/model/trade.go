package model

import "time"

// Trade is one executed trade reported by the exchange.
type Trade struct {
	ID             int64     `gorm:"primaryKey"`
	TradeID        string    `gorm:"size:100;not null;uniqueIndex:idx_trade_trade_id"`
	AssetID        int64     `gorm:"not null;index:idx_trade_asset_time,priority:1"`
	PriceAmount    int64     `gorm:"not null;check:price_amount >= 0"`
	QuantityAmount int64     `gorm:"not null;check:quantity_amount >= 0"`
	TradeTime      time.Time `gorm:"not null;index:idx_trade_asset_time,priority:2"`
	ChannelUUID    string    `gorm:"column:channel_uuid;size:50"`
	RawData        []byte    `gorm:"type:blob"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName pins the table name used by gorm.
func (Trade) TableName() string { return "trade" }
