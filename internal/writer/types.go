package writer

import (
	"context"

	"github.com/rickgao/bidask-recorder/internal/model"
)

// WriterConfig contains configuration for writers.
type WriterConfig struct {
	// PriceDisplayPlaces is the minimum number of decimals kept for display
	// prices and costs. The asset's price factor may require more.
	PriceDisplayPlaces int32
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		PriceDisplayPlaces: 8,
	}
}

// AssetResolver resolves a symbol to its stored asset.
// *market.Registry implements it.
type AssetResolver interface {
	Lookup(ctx context.Context, symbol string) (*model.Asset, error)
}

// OrderBookWriterMetrics holds counters for the order-book writer.
type OrderBookWriterMetrics struct {
	Snapshots  int64 // snapshots written
	Levels     int64 // level rows written
	Duplicates int64 // unchanged snapshots skipped
	Dropped    int64 // unknown asset
	Errors     int64 // rolled back
}

// WriterMetrics holds counters for the trade writer.
type WriterMetrics struct {
	Inserts    int64
	Duplicates int64
	Dropped    int64
	Errors     int64
}
