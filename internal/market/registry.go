package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/model"
	"github.com/rickgao/bidask-recorder/internal/store"
)

// ErrUnknownAsset is returned for symbols with no stored asset.
var ErrUnknownAsset = errors.New("unknown asset")

// AssetStore is the store surface the registry needs.
type AssetStore interface {
	EnsureAsset(ctx context.Context, asset *model.Asset) (*model.Asset, error)
	FindAsset(ctx context.Context, symbol string) (*model.Asset, error)
}

// Registry caches assets by symbol.
type Registry struct {
	store  AssetStore
	logger *slog.Logger

	mu       sync.RWMutex
	bySymbol map[string]*model.Asset
}

// NewRegistry creates an empty registry.
func NewRegistry(st AssetStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    st,
		logger:   logger.With("component", "market_registry"),
		bySymbol: make(map[string]*model.Asset),
	}
}

// AssetFromConfig builds a validated asset from its config entry.
func AssetFromConfig(c config.AssetConfig) (*model.Asset, error) {
	return model.NewAsset(c.Symbol, c.Name, model.Denominations{
		BasePrice:    c.BasePriceDenom,
		BaseSize:     c.BaseSizeDenom,
		DisplayPrice: c.DisplayPriceDenom,
		DisplaySize:  c.DisplaySizeDenom,
	}, model.FactorForDecimals(c.PriceDecimals), model.FactorForDecimals(c.SizeDecimals))
}

// Bootstrap ensures every configured asset exists in the store.
func (r *Registry) Bootstrap(ctx context.Context, assets []config.AssetConfig) error {
	for _, c := range assets {
		a, err := AssetFromConfig(c)
		if err != nil {
			return fmt.Errorf("asset %s: %w", c.Symbol, err)
		}
		if _, err := r.Ensure(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Ensure stores the asset if needed and caches the stored row.
func (r *Registry) Ensure(ctx context.Context, asset *model.Asset) (*model.Asset, error) {
	stored, err := r.store.EnsureAsset(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("ensure asset %s: %w", asset.Symbol, err)
	}

	if stored.PriceFactor != asset.PriceFactor || stored.SizeFactor != asset.SizeFactor {
		r.logger.Warn("stored asset differs from configuration, keeping stored factors",
			"symbol", stored.Symbol,
			"stored_price_factor", stored.PriceFactor,
			"stored_size_factor", stored.SizeFactor,
			"config_price_factor", asset.PriceFactor,
			"config_size_factor", asset.SizeFactor,
		)
	}

	r.put(stored)
	r.logger.Info("asset ready",
		"symbol", stored.Symbol,
		"id", stored.ID,
		"price_factor", stored.PriceFactor,
		"size_factor", stored.SizeFactor,
	)
	return stored, nil
}

// Lookup resolves a symbol to its asset.
func (r *Registry) Lookup(ctx context.Context, symbol string) (*model.Asset, error) {
	key := model.NormalizeSymbol(symbol)
	if a, ok := r.get(key); ok {
		return a, nil
	}

	a, err := r.store.FindAsset(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAsset, symbol)
	}
	if err != nil {
		return nil, err
	}
	r.put(a)
	return a, nil
}

// Symbols returns the cached symbols.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		out = append(out, s)
	}
	return out
}

func (r *Registry) get(symbol string) (*model.Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[symbol]
	return a, ok
}

func (r *Registry) put(a *model.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySymbol[a.Symbol] = a
}
