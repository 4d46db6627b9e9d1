package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidLevel is returned for price levels that cannot be parsed.
var ErrInvalidLevel = errors.New("invalid price level")

// Level is one price point of a bid or ask side as sent by the exchange.
// It decodes from {"price":..,"quantity":..} objects or [price, quantity]
// pairs, with each amount given as a JSON string or number.
type Level struct {
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Total       decimal.NullDecimal // running quantity total, when the exchange sends one
	TotalOrders *int
}

type levelObject struct {
	Price       json.RawMessage `json:"price"`
	Quantity    json.RawMessage `json:"quantity"`
	Total       json.RawMessage `json:"total"`
	TotalOrders *int            `json:"totalOrders"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Level) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
		}
		if len(pair) < 2 {
			return fmt.Errorf("%w: expected [price, quantity], got %d elements", ErrInvalidLevel, len(pair))
		}
		return l.set(pair[0], pair[1], nil, nil)
	}

	var obj levelObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	return l.set(obj.Price, obj.Quantity, obj.Total, obj.TotalOrders)
}

func (l *Level) set(price, quantity, total json.RawMessage, orders *int) error {
	p, err := parseAmount("price", price)
	if err != nil {
		return err
	}
	q, err := parseAmount("quantity", quantity)
	if err != nil {
		return err
	}
	l.Price = p
	l.Quantity = q
	l.TotalOrders = orders
	l.Total = decimal.NullDecimal{}
	if len(total) > 0 && !bytes.Equal(total, []byte("null")) {
		t, err := parseAmount("total", total)
		if err != nil {
			return err
		}
		l.Total = decimal.NewNullDecimal(t)
	}
	return nil
}

func parseAmount(field string, raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("%w: missing %s", ErrInvalidLevel, field)
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %s: %v", ErrInvalidLevel, field, raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %s %s", ErrInvalidLevel, field, d)
	}
	return d, nil
}

// SameLevels reports whether two sides hold the same price and quantity at
// every index. Amounts compare by value, so "0.50" equals 0.5.
func SameLevels(a, b []Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Price.Equal(b[i].Price) || !a[i].Quantity.Equal(b[i].Quantity) {
			return false
		}
	}
	return true
}
