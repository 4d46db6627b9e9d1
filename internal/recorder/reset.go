package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/market"
	"github.com/rickgao/bidask-recorder/internal/store"
)

// Reset deletes all recorded order-book, raw snapshot and trade rows, then
// re-ensures the configured assets. It returns the row counts found before
// the reset.
func Reset(ctx context.Context, st store.Store, assets []config.AssetConfig, logger *slog.Logger) (store.Counts, error) {
	if logger == nil {
		logger = slog.Default()
	}

	before, err := st.Counts(ctx)
	if err != nil {
		return store.Counts{}, err
	}

	if err := st.ResetData(ctx); err != nil {
		return before, fmt.Errorf("reset data: %w", err)
	}

	if err := market.NewRegistry(st, logger).Bootstrap(ctx, assets); err != nil {
		return before, fmt.Errorf("bootstrap assets: %w", err)
	}

	logger.Info("database reset",
		"order_book", before.Levels,
		"order_book_raw", before.Raw,
		"trade", before.Trades,
		"assets_kept", before.Assets,
	)
	return before, nil
}
