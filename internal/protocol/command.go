package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action is the verb of an outbound command.
type Action string

const (
	ActionSubscribe   Action = "SUBSCRIBE"
	ActionUnsubscribe Action = "UNSUBSCRIBE"
)

// Channel is an exchange data feed.
type Channel string

const (
	ChannelOrderBook Channel = "ORDER_BOOK"
	ChannelTrades    Channel = "TRADES"
)

// Command is a subscription request sent to the exchange.
// ChannelUUID correlates inbound data frames with the request.
type Command struct {
	Action      Action  `json:"action"`
	Channel     Channel `json:"channel"`
	Symbol      string  `json:"symbol"`
	ChannelUUID string  `json:"channelUuid"`
	Timestamp   int64   `json:"timestamp"` // epoch milliseconds
}

// NewCommand builds a command with a fresh correlation id.
func NewCommand(action Action, channel Channel, symbol string, now time.Time) Command {
	return Command{
		Action:      action,
		Channel:     channel,
		Symbol:      symbol,
		ChannelUUID: uuid.NewString(),
		Timestamp:   now.UnixMilli(),
	}
}

// Encode returns the wire form of the command.
func (c Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}
