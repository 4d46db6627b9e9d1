package router

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/bidask-recorder/internal/model"
)

// RouterConfig holds configuration for the Message Router.
type RouterConfig struct {
	OrderBookBufferSize int // Initial capacity, default 10000
	TradeBufferSize     int // Initial capacity, default 10000
	MaxBufferSize       int // Growth ceiling per buffer, 0 unbounded
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		OrderBookBufferSize: 10000,
		TradeBufferSize:     10000,
	}
}

// OrderBookMsg is a snapshot ready for the order-book writer.
type OrderBookMsg struct {
	Symbol      string
	ChannelUUID string
	ReceivedAt  time.Time
	Book        model.BookPayload
}

// TradeMsg is a trade ready for the trade writer.
type TradeMsg struct {
	Symbol      string
	ChannelUUID string
	TradeID     string
	Price       decimal.Decimal // display units
	Quantity    decimal.Decimal // display units
	TradeTime   time.Time       // exchange time
	ReceivedAt  time.Time
	Raw         []byte
}
