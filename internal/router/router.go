package router

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/bidask-recorder/internal/connection"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/protocol"
)

// SymbolResolver maps correlation ids to symbols.
// *connection.Tracker implements it.
type SymbolResolver interface {
	SymbolFor(channelUUID string) (string, bool)
	Symbols() []string
}

// RouterBuffers provides access to output buffers for writers.
type RouterBuffers struct {
	OrderBook *GrowableBuffer[OrderBookMsg]
	Trade     *GrowableBuffer[TradeMsg]
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	MessagesRouted   int64
	ParseErrors      int64
	Unresolved       int64
	OrderBookBuffer  BufferStats
	TradeBuffer      BufferStats
}

// Router parses raw WebSocket messages and routes them to the writers.
type Router struct {
	cfg      RouterConfig
	resolver SymbolResolver
	sink     *metrics.Sink
	logger   *slog.Logger

	// Input from the connection Manager
	input <-chan connection.TimestampedMessage

	// Output to writers
	orderBookBuf *GrowableBuffer[OrderBookMsg]
	tradeBuf     *GrowableBuffer[TradeMsg]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	received    atomic.Int64
	routed      atomic.Int64
	parseErrors atomic.Int64
	unresolved  atomic.Int64
}

// NewRouter creates a new Message Router.
func NewRouter(cfg RouterConfig, input <-chan connection.TimestampedMessage, resolver SymbolResolver, sink *metrics.Sink, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = metrics.NewSink()
	}

	return &Router{
		cfg:          cfg,
		resolver:     resolver,
		sink:         sink,
		logger:       logger.With("component", "router"),
		input:        input,
		orderBookBuf: NewGrowableBuffer[OrderBookMsg](cfg.OrderBookBufferSize, cfg.MaxBufferSize),
		tradeBuf:     NewGrowableBuffer[TradeMsg](cfg.TradeBufferSize, cfg.MaxBufferSize),
	}
}

// Start begins routing messages.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started",
		"orderbook_buffer", r.cfg.OrderBookBufferSize,
		"trade_buffer", r.cfg.TradeBufferSize,
	)

	return nil
}

// Stop halts routing, routes frames still queued on the input and closes
// the output buffers so writers drain and exit. Callers stop the producer
// first.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if n := r.drainInput(); n > 0 {
			r.logger.Info("routed queued frames on shutdown", "frames", n)
		}
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out", "pending", len(r.input))
	}

	r.orderBookBuf.Close()
	r.tradeBuf.Close()

	return nil
}

// drainInput routes whatever is buffered on the input without blocking.
func (r *Router) drainInput() int {
	n := 0
	for {
		select {
		case raw, ok := <-r.input:
			if !ok {
				return n
			}
			r.Route(raw)
			n++
		default:
			return n
		}
	}
}

// Buffers returns output buffers for writers.
func (r *Router) Buffers() RouterBuffers {
	return RouterBuffers{
		OrderBook: r.orderBookBuf,
		Trade:     r.tradeBuf,
	}
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		MessagesReceived: r.received.Load(),
		MessagesRouted:   r.routed.Load(),
		ParseErrors:      r.parseErrors.Load(),
		Unresolved:       r.unresolved.Load(),
		OrderBookBuffer:  r.orderBookBuf.Stats(),
		TradeBuffer:      r.tradeBuf.Stats(),
	}
}

// routeLoop is the main routing goroutine.
func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.Route(raw)
		}
	}
}

// Route decodes and dispatches a single frame.
func (r *Router) Route(raw connection.TimestampedMessage) {
	r.received.Add(1)

	msg, err := protocol.Decode(raw.Data, raw.ReceivedAt)
	if err != nil {
		r.sink.MessageReceived(metrics.KindInvalid)
		r.parseErrors.Add(1)
		r.logger.Warn("failed to decode message", "error", err, "size", len(raw.Data))
		return
	}

	var sent bool

	switch m := msg.(type) {
	case *protocol.OrderBookUpdate:
		r.sink.MessageReceived(metrics.KindOrderBook)
		symbol, ok := r.resolve(m.ChannelUUID, m.Symbol)
		if !ok {
			return
		}
		sent = r.orderBookBuf.Send(OrderBookMsg{
			Symbol:      symbol,
			ChannelUUID: m.ChannelUUID,
			ReceivedAt:  m.ReceivedAt,
			Book:        m.Book,
		})

	case *protocol.TradeUpdate:
		r.sink.MessageReceived(metrics.KindTrade)
		symbol, ok := r.resolve(m.ChannelUUID, m.Symbol)
		if !ok {
			return
		}
		sent = r.tradeBuf.Send(TradeMsg{
			Symbol:      symbol,
			ChannelUUID: m.ChannelUUID,
			TradeID:     m.TradeID,
			Price:       m.Price,
			Quantity:    m.Quantity,
			TradeTime:   m.TradeTime,
			ReceivedAt:  m.ReceivedAt,
			Raw:         m.Raw,
		})

	case *protocol.SubscriptionAck:
		r.sink.MessageReceived(metrics.KindAck)
		r.logger.Info("subscription acknowledged",
			"action", m.Action,
			"channel", m.Channel,
			"symbol", m.Symbol,
			"channel_uuid", m.ChannelUUID,
			"status", m.Status,
		)
		return

	case *protocol.ErrorMessage:
		r.sink.MessageReceived(metrics.KindError)
		r.logger.Warn("exchange error", "message", m.Message)
		return

	case *protocol.Unknown:
		r.sink.MessageReceived(metrics.KindUnknown)
		r.logger.Debug("skipping message type", "type", m.Type)
		return
	}

	if sent {
		r.routed.Add(1)
	} else {
		r.logger.Warn("buffer closed, dropping message")
	}
}

// resolve picks the symbol for a data frame: correlation id first, then
// the frame's own symbol, then the only subscribed symbol.
func (r *Router) resolve(channelUUID, frameSymbol string) (string, bool) {
	if r.resolver != nil && channelUUID != "" {
		if sym, ok := r.resolver.SymbolFor(channelUUID); ok {
			return sym, true
		}
	}
	if frameSymbol != "" {
		return frameSymbol, true
	}
	if r.resolver != nil {
		if syms := r.resolver.Symbols(); len(syms) == 1 {
			return syms[0], true
		}
	}

	r.unresolved.Add(1)
	r.logger.Warn("cannot resolve symbol for frame", "channel_uuid", channelUUID)
	return "", false
}
