package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/bidask-recorder/internal/model"
)

// ErrMalformed is returned for frames that are not valid JSON or lack
// fields their variant requires.
var ErrMalformed = errors.New("malformed frame")

// Message is one decoded inbound frame. The concrete type is one of
// *OrderBookUpdate, *TradeUpdate, *SubscriptionAck, *ErrorMessage, *Unknown.
type Message interface {
	Received() time.Time
	message()
}

// Meta holds what every frame carries regardless of variant.
type Meta struct {
	ReceivedAt time.Time
	Raw        json.RawMessage
}

// Received returns the local receipt time.
func (m Meta) Received() time.Time { return m.ReceivedAt }

func (Meta) message() {}

// OrderBookUpdate is a full bid/ask snapshot.
type OrderBookUpdate struct {
	Meta
	ChannelUUID string
	Symbol      string // empty unless the exchange includes it
	Book        model.BookPayload
}

// TradeUpdate is one executed trade.
type TradeUpdate struct {
	Meta
	ChannelUUID string
	Symbol      string
	TradeID     string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	TradeTime   time.Time
}

// SubscriptionAck acknowledges a subscribe or unsubscribe command.
type SubscriptionAck struct {
	Meta
	Action      string
	Channel     string
	Symbol      string
	ChannelUUID string
	Status      string
}

// ErrorMessage is an error reported by the exchange.
type ErrorMessage struct {
	Meta
	Message string
}

// Unknown is any well-formed frame that matches no other variant.
type Unknown struct {
	Meta
	Type string
}

type envelope struct {
	Type        string          `json:"type"`
	Action      string          `json:"action"`
	Channel     string          `json:"channel"`
	Symbol      string          `json:"symbol"`
	ChannelUUID string          `json:"channelUuid"`
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	Bids        json.RawMessage `json:"bids"`
	Asks        json.RawMessage `json:"asks"`
	ID          json.RawMessage `json:"id"`
	Price       json.RawMessage `json:"price"`
	Quantity    json.RawMessage `json:"quantity"`
	Created     string          `json:"created"`
}

// Decode classifies and parses one inbound text frame.
func Decode(data []byte, receivedAt time.Time) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	meta := Meta{ReceivedAt: receivedAt, Raw: json.RawMessage(data)}

	switch {
	case strings.EqualFold(env.Type, "error"):
		return &ErrorMessage{Meta: meta, Message: env.Message}, nil

	case env.Channel == string(ChannelTrades) || strings.EqualFold(env.Type, "trade"):
		if env.Action != "" {
			return ack(meta, env), nil
		}
		return decodeTrade(meta, env)

	case env.Bids != nil || env.Asks != nil:
		book, err := model.NewBookPayload(env.Bids, env.Asks)
		if err != nil {
			return nil, fmt.Errorf("%w: order book: %v", ErrMalformed, err)
		}
		return &OrderBookUpdate{
			Meta:        meta,
			ChannelUUID: env.ChannelUUID,
			Symbol:      model.NormalizeSymbol(env.Symbol),
			Book:        book,
		}, nil

	case env.Action != "" || env.Status != "" || isAckType(env.Type):
		return ack(meta, env), nil

	default:
		return &Unknown{Meta: meta, Type: env.Type}, nil
	}
}

func ack(meta Meta, env envelope) *SubscriptionAck {
	return &SubscriptionAck{
		Meta:        meta,
		Action:      env.Action,
		Channel:     env.Channel,
		Symbol:      model.NormalizeSymbol(env.Symbol),
		ChannelUUID: env.ChannelUUID,
		Status:      env.Status,
	}
}

func isAckType(t string) bool {
	switch strings.ToLower(t) {
	case "subscriptions", "subscribed", "unsubscribed", "ack":
		return true
	}
	return false
}

func decodeTrade(meta Meta, env envelope) (*TradeUpdate, error) {
	id := tradeID(env.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: trade missing id", ErrMalformed)
	}
	price, err := requiredDecimal("price", env.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: trade %s: %v", ErrMalformed, id, err)
	}
	qty, err := requiredDecimal("quantity", env.Quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: trade %s: %v", ErrMalformed, id, err)
	}
	if env.Created == "" {
		return nil, fmt.Errorf("%w: trade %s missing created", ErrMalformed, id)
	}
	ts, err := ParseTradeTime(env.Created)
	if err != nil {
		return nil, fmt.Errorf("%w: trade %s: %v", ErrMalformed, id, err)
	}

	return &TradeUpdate{
		Meta:        meta,
		ChannelUUID: env.ChannelUUID,
		Symbol:      model.NormalizeSymbol(env.Symbol),
		TradeID:     id,
		Price:       price,
		Quantity:    qty,
		TradeTime:   ts,
	}, nil
}

// tradeID accepts string or numeric ids.
func tradeID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func requiredDecimal(field string, raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("missing %s", field)
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %v", field, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative %s %s", field, d)
	}
	return d, nil
}

// ParseTradeTime parses the exchange's ISO-8601 trade timestamps
// ("2024-05-01T12:00:00.123Z"). Values without a zone are taken as UTC.
func ParseTradeTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse trade time %q: %w", s, err)
	}
	return t.UTC(), nil
}
