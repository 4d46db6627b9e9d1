package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SizeDisplayPlaces is the minimum number of decimal places for size display values.
const SizeDisplayPlaces int32 = 8

var (
	ErrInvalidFactor = errors.New("conversion factor must be positive")
	ErrOverflow      = errors.New("amount overflows base units")
	ErrEmptySymbol   = errors.New("asset symbol is required")
)

var (
	maxBase = decimal.NewFromInt(math.MaxInt64)
	minBase = decimal.NewFromInt(math.MinInt64)
)

// Asset is a tradable pair with its denomination table.
// Immutable once stored.
type Asset struct {
	ID                int64     `gorm:"primaryKey"`
	Symbol            string    `gorm:"size:50;not null;uniqueIndex:idx_asset_symbol"`
	Name              string    `gorm:"size:255"`
	BasePriceDenom    string    `gorm:"size:20;not null"`
	BaseSizeDenom     string    `gorm:"size:20;not null"`
	DisplayPriceDenom string    `gorm:"size:10;not null"`
	DisplaySizeDenom  string    `gorm:"size:10;not null"`
	PriceFactor       int64     `gorm:"column:price_denom_factor;not null;check:price_denom_factor > 0"`
	SizeFactor        int64     `gorm:"column:size_denom_factor;not null;check:size_denom_factor > 0"`
	CreatedAt         time.Time `gorm:"not null"`
}

// TableName pins the table name used by gorm.
func (Asset) TableName() string { return "asset" }

// Denominations names the base and display units of an asset.
type Denominations struct {
	BasePrice    string
	BaseSize     string
	DisplayPrice string
	DisplaySize  string
}

// NewAsset builds a validated asset. The symbol is normalized to upper case.
func NewAsset(symbol, name string, d Denominations, priceFactor, sizeFactor int64) (*Asset, error) {
	a := &Asset{
		Symbol:            NormalizeSymbol(symbol),
		Name:              name,
		BasePriceDenom:    d.BasePrice,
		BaseSizeDenom:     d.BaseSize,
		DisplayPriceDenom: d.DisplayPrice,
		DisplaySizeDenom:  d.DisplaySize,
		PriceFactor:       priceFactor,
		SizeFactor:        sizeFactor,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// FactorForDecimals returns 10^decimals.
func FactorForDecimals(decimals int) int64 {
	f := int64(1)
	for i := 0; i < decimals; i++ {
		f *= 10
	}
	return f
}

// NormalizeSymbol upper-cases and trims a symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Validate reports whether the asset may be stored.
func (a *Asset) Validate() error {
	if a.Symbol == "" {
		return ErrEmptySymbol
	}
	if a.PriceFactor <= 0 {
		return fmt.Errorf("%s price factor %d: %w", a.Symbol, a.PriceFactor, ErrInvalidFactor)
	}
	if a.SizeFactor <= 0 {
		return fmt.Errorf("%s size factor %d: %w", a.Symbol, a.SizeFactor, ErrInvalidFactor)
	}
	return nil
}

// PriceToBase converts a display price to base units.
func (a *Asset) PriceToBase(display decimal.Decimal) (int64, error) {
	return ToBase(display, a.PriceFactor)
}

// SizeToBase converts a display quantity to base units.
func (a *Asset) SizeToBase(display decimal.Decimal) (int64, error) {
	return ToBase(display, a.SizeFactor)
}

// PriceToDisplay converts base units to a display price with at least
// places decimal places.
func (a *Asset) PriceToDisplay(base int64, places int32) (decimal.Decimal, error) {
	return ToDisplay(base, a.PriceFactor, displayPlaces(a.PriceFactor, places))
}

// SizeToDisplay converts base units to a display quantity.
func (a *Asset) SizeToDisplay(base int64) (decimal.Decimal, error) {
	return ToDisplay(base, a.SizeFactor, displayPlaces(a.SizeFactor, SizeDisplayPlaces))
}

// ToBase multiplies by factor and truncates toward zero.
func ToBase(display decimal.Decimal, factor int64) (int64, error) {
	if factor <= 0 {
		return 0, ErrInvalidFactor
	}
	v := display.Mul(decimal.NewFromInt(factor)).Truncate(0)
	if v.GreaterThan(maxBase) || v.LessThan(minBase) {
		return 0, fmt.Errorf("%s × %d: %w", display, factor, ErrOverflow)
	}
	return v.IntPart(), nil
}

// ToDisplay divides by factor and rounds half-up to places.
func ToDisplay(base int64, factor int64, places int32) (decimal.Decimal, error) {
	if factor <= 0 {
		return decimal.Zero, ErrInvalidFactor
	}
	return decimal.NewFromInt(base).DivRound(decimal.NewFromInt(factor), places), nil
}

// displayPlaces never rounds away digits the factor can represent, so
// display(base(x)) == x holds for every representable x.
func displayPlaces(factor int64, min int32) int32 {
	var digits int32
	for f := factor; f >= 10; f /= 10 {
		digits++
	}
	if digits > min {
		return digits
	}
	return min
}
