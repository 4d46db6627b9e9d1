package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/bidask-recorder/internal/market"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/model"
	"github.com/rickgao/bidask-recorder/internal/router"
	"github.com/rickgao/bidask-recorder/internal/store"
)

// TradeWriter consumes TradeMsg from the router buffer and writes to the trade table.
type TradeWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from Message Router
	input *router.GrowableBuffer[router.TradeMsg]

	// Database
	store  store.Store
	assets AssetResolver
	sink   *metrics.Sink

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	mu      sync.Mutex
	metrics WriterMetrics
}

// NewTradeWriter creates a new TradeWriter.
func NewTradeWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[router.TradeMsg],
	st store.Store,
	assets AssetResolver,
	sink *metrics.Sink,
	logger *slog.Logger,
) *TradeWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = metrics.NewSink()
	}
	return &TradeWriter{
		cfg:    cfg,
		input:  input,
		store:  st,
		assets: assets,
		sink:   sink,
		logger: logger.With("component", "trade_writer"),
	}
}

// Start begins consuming messages and writing to the database.
func (w *TradeWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))

	w.wg.Add(1)
	go w.consumeLoop()

	w.logger.Info("trade writer started")
	return nil
}

// Stop waits for the closed input buffer to drain.
func (w *TradeWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping trade writer")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("trade writer stopped")
	case <-ctx.Done():
		w.logger.Warn("trade writer stop timed out", "pending", w.input.Len())
		w.input.Close()
	}

	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

// Stats returns current metrics.
func (w *TradeWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

func (w *TradeWriter) consumeLoop() {
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

// Write stores one trade. It returns false for trades already stored.
func (w *TradeWriter) Write(ctx context.Context, msg router.TradeMsg) (bool, error) {
	asset, err := w.assets.Lookup(ctx, msg.Symbol)
	if err != nil {
		if errors.Is(err, market.ErrUnknownAsset) {
			w.logger.Warn("dropping trade for unknown asset", "symbol", msg.Symbol, "trade_id", msg.TradeID)
			w.count(func(m *WriterMetrics) { m.Dropped++ })
		} else {
			w.logger.Error("asset lookup failed", "symbol", msg.Symbol, "error", err)
			w.sink.DatabaseError()
			w.count(func(m *WriterMetrics) { m.Errors++ })
		}
		return false, err
	}

	row, err := w.transform(asset, msg)
	if err != nil {
		w.logger.Warn("dropping invalid trade", "symbol", asset.Symbol, "trade_id", msg.TradeID, "error", err)
		w.count(func(m *WriterMetrics) { m.Dropped++ })
		return false, err
	}

	var inserted bool
	err = w.store.WithAssetTx(ctx, asset.ID, func(tx store.Tx) error {
		exists, err := tx.TradeExists(ctx, row.TradeID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		inserted, err = tx.InsertTrade(ctx, row)
		return err
	})

	if err != nil {
		w.logger.Error("failed to store trade",
			"symbol", asset.Symbol,
			"trade_id", msg.TradeID,
			"error", err,
		)
		w.sink.DatabaseError()
		w.count(func(m *WriterMetrics) { m.Errors++ })
		return false, err
	}

	if !inserted {
		w.logger.Debug("skipping known trade", "trade_id", msg.TradeID)
		w.sink.DuplicateTrade()
		w.count(func(m *WriterMetrics) { m.Duplicates++ })
		return false, nil
	}

	w.sink.DatabaseWrite()
	w.count(func(m *WriterMetrics) { m.Inserts++ })
	w.logger.Debug("stored trade",
		"symbol", asset.Symbol,
		"trade_id", row.TradeID,
		"price", msg.Price,
		"quantity", msg.Quantity,
	)
	return true, nil
}

// transform converts a TradeMsg to a trade row in base units.
func (w *TradeWriter) transform(asset *model.Asset, msg router.TradeMsg) (*model.Trade, error) {
	if msg.TradeID == "" {
		return nil, errors.New("trade id is required")
	}
	if !msg.Price.IsPositive() || !msg.Quantity.IsPositive() {
		return nil, fmt.Errorf("price %s and quantity %s must be positive", msg.Price, msg.Quantity)
	}

	price, err := asset.PriceToBase(msg.Price)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	qty, err := asset.SizeToBase(msg.Quantity)
	if err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}
	if price == 0 || qty == 0 {
		return nil, fmt.Errorf("price %s or quantity %s below one base unit", msg.Price, msg.Quantity)
	}

	return &model.Trade{
		TradeID:        msg.TradeID,
		AssetID:        asset.ID,
		PriceAmount:    price,
		QuantityAmount: qty,
		TradeTime:      msg.TradeTime.UTC(),
		ChannelUUID:    msg.ChannelUUID,
		RawData:        msg.Raw,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (w *TradeWriter) count(f func(*WriterMetrics)) {
	w.mu.Lock()
	f(&w.metrics)
	w.mu.Unlock()
}
