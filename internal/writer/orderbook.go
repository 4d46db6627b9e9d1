package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/bidask-recorder/internal/dedup"
	"github.com/rickgao/bidask-recorder/internal/market"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/router"
	"github.com/rickgao/bidask-recorder/internal/store"
)

// OrderBookWriter consumes OrderBookMsg from the router buffer and writes
// the order_book_raw and order_book tables.
type OrderBookWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from Message Router
	input *router.GrowableBuffer[router.OrderBookMsg]

	// Database
	store  store.Store
	assets AssetResolver
	filter *dedup.Filter
	sink   *metrics.Sink

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	mu      sync.Mutex
	metrics OrderBookWriterMetrics
}

// NewOrderBookWriter creates a new OrderBookWriter.
func NewOrderBookWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[router.OrderBookMsg],
	st store.Store,
	assets AssetResolver,
	sink *metrics.Sink,
	logger *slog.Logger,
) *OrderBookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = metrics.NewSink()
	}
	logger = logger.With("component", "orderbook_writer")
	return &OrderBookWriter{
		cfg:    cfg,
		input:  input,
		store:  st,
		assets: assets,
		filter: dedup.NewFilter(logger),
		sink:   sink,
		logger: logger,
	}
}

// Start begins consuming messages and writing to the database.
// Writes outlive ctx so queued snapshots drain on shutdown; Stop ends them.
func (w *OrderBookWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))

	w.wg.Add(1)
	go w.consumeLoop()

	w.logger.Info("orderbook writer started")
	return nil
}

// Stop waits for the input buffer to drain. The buffer must be closed
// first (Router.Stop does this); on timeout pending messages are dropped.
func (w *OrderBookWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping orderbook writer")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("orderbook writer stopped")
	case <-ctx.Done():
		w.logger.Warn("orderbook writer stop timed out", "pending", w.input.Len())
		w.input.Close()
	}

	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

// Stats returns current metrics.
func (w *OrderBookWriter) Stats() OrderBookWriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// consumeLoop writes messages until the input buffer is closed and empty.
func (w *OrderBookWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		msg, ok := w.input.Receive()
		if !ok {
			return
		}
		if w.ctx.Err() != nil {
			return
		}
		w.Write(w.ctx, msg)
	}
}

// Write stores one snapshot. It returns true when new rows were written and
// false for duplicates and failures.
func (w *OrderBookWriter) Write(ctx context.Context, msg router.OrderBookMsg) (bool, error) {
	asset, err := w.assets.Lookup(ctx, msg.Symbol)
	if err != nil {
		if errors.Is(err, market.ErrUnknownAsset) {
			w.logger.Warn("dropping snapshot for unknown asset", "symbol", msg.Symbol)
			w.count(func(m *OrderBookWriterMetrics) { m.Dropped++ })
		} else {
			w.logger.Error("asset lookup failed", "symbol", msg.Symbol, "error", err)
			w.sink.DatabaseError()
			w.count(func(m *OrderBookWriterMetrics) { m.Errors++ })
		}
		return false, err
	}

	var (
		written bool
		levels  int
	)
	err = w.store.WithAssetTx(ctx, asset.ID, func(tx store.Tx) error {
		isNew, raw, err := w.filter.CreateIfChanged(ctx, tx, asset.ID, msg.ChannelUUID, msg.ReceivedAt, msg.Book)
		if err != nil {
			return err
		}
		if !isNew {
			return nil
		}

		maxID, err := tx.MaxSnapshotID(ctx, asset.ID)
		if err != nil {
			return fmt.Errorf("next snapshot id: %w", err)
		}

		rows, err := BuildLevels(asset, SnapshotRef{
			AssetID:     asset.ID,
			SnapshotID:  maxID + 1,
			ChannelUUID: msg.ChannelUUID,
			ReceivedAt:  raw.ReceivedAt,
		}, msg.Book, w.cfg.PriceDisplayPlaces)
		if err != nil {
			return fmt.Errorf("build levels: %w", err)
		}

		if err := tx.InsertLevels(ctx, rows); err != nil {
			return fmt.Errorf("insert levels: %w", err)
		}
		written, levels = true, len(rows)
		return nil
	})

	if err != nil {
		w.logger.Error("failed to store order book",
			"symbol", asset.Symbol,
			"error", err,
		)
		w.sink.DatabaseError()
		w.count(func(m *OrderBookWriterMetrics) { m.Errors++ })
		return false, err
	}

	if !written {
		w.logger.Debug("skipping unchanged order book", "symbol", asset.Symbol)
		w.sink.DuplicateSnapshot()
		w.count(func(m *OrderBookWriterMetrics) { m.Duplicates++ })
		return false, nil
	}

	w.sink.DatabaseWrite()
	w.count(func(m *OrderBookWriterMetrics) {
		m.Snapshots++
		m.Levels += int64(levels)
	})
	w.logger.Debug("stored order book",
		"symbol", asset.Symbol,
		"bids", len(msg.Book.Bids),
		"asks", len(msg.Book.Asks),
	)
	return true, nil
}

func (w *OrderBookWriter) count(f func(*OrderBookWriterMetrics)) {
	w.mu.Lock()
	f(&w.metrics)
	w.mu.Unlock()
}
