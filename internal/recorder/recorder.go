package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/connection"
	"github.com/rickgao/bidask-recorder/internal/market"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/router"
	"github.com/rickgao/bidask-recorder/internal/store"
	"github.com/rickgao/bidask-recorder/internal/writer"
)

// DefaultShutdownTimeout bounds Run's shutdown after its context ends.
const DefaultShutdownTimeout = 30 * time.Second

// Recorder is one running market-data recorder.
type Recorder struct {
	cfg    *config.RecorderConfig
	logger *slog.Logger

	store    store.Store
	registry *market.Registry
	sink     *metrics.Sink

	manager     *connection.Manager
	router      *router.Router
	bookWriter  *writer.OrderBookWriter
	tradeWriter *writer.TradeWriter
	reporter    *metrics.Reporter

	shutdownTimeout time.Duration
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	clientFactory   connection.ClientFactory
	alerter         metrics.Alerter
	sink            *metrics.Sink
	shutdownTimeout time.Duration
}

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f connection.ClientFactory) Option {
	return func(o *options) {
		o.clientFactory = f
	}
}

// WithAlerter replaces the alert delivery built from configuration.
func WithAlerter(a metrics.Alerter) Option {
	return func(o *options) {
		o.alerter = a
	}
}

// WithSink shares a metrics sink, for example with a Prometheus collector
// registered before the recorder is built.
func WithSink(s *metrics.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithShutdownTimeout bounds the shutdown performed by Run.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = d
	}
}

// New builds a recorder over an opened, migrated store.
// cfg must already have defaults applied.
func New(cfg *config.RecorderConfig, st store.Store, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{shutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sink == nil {
		o.sink = metrics.NewSink()
	}

	var mopts []connection.ManagerOption
	if o.clientFactory != nil {
		mopts = append(mopts, connection.WithClientFactory(o.clientFactory))
	}
	manager := connection.NewManager(
		connection.ManagerConfigFrom(cfg.Exchange.WSURL, cfg.Connection),
		o.sink, logger, mopts...,
	)

	rt := router.NewRouter(router.RouterConfig{
		OrderBookBufferSize: cfg.Writers.BufferSize,
		TradeBufferSize:     cfg.Writers.BufferSize,
	}, manager.Messages(), manager.Tracker(), o.sink, logger)

	registry := market.NewRegistry(st, logger)
	wcfg := writer.WriterConfig{PriceDisplayPlaces: cfg.Writers.PriceDisplayPlaces}
	bufs := rt.Buffers()

	if o.alerter == nil {
		o.alerter = alerterFrom(cfg.Monitoring, logger)
	}
	reporter := metrics.NewReporter(o.sink, metrics.ReporterConfig{
		Interval:          cfg.Monitoring.ReportInterval,
		Cooldown:          cfg.Monitoring.AlertCooldown,
		FailedConnections: cfg.Monitoring.FailedConnectionsAlert,
		Silence:           cfg.Monitoring.SilenceAlert,
		HeartbeatFailures: cfg.Monitoring.HeartbeatFailureAlert,
	}, o.alerter, logger)

	return &Recorder{
		cfg:             cfg,
		logger:          logger.With("component", "recorder"),
		store:           st,
		registry:        registry,
		sink:            o.sink,
		manager:         manager,
		router:          rt,
		bookWriter:      writer.NewOrderBookWriter(wcfg, bufs.OrderBook, st, registry, o.sink, logger),
		tradeWriter:     writer.NewTradeWriter(wcfg, bufs.Trade, st, registry, o.sink, logger),
		reporter:        reporter,
		shutdownTimeout: o.shutdownTimeout,
	}
}

// alerterFrom logs every alert and, when a webhook is configured, posts it too.
func alerterFrom(cfg config.MonitoringConfig, logger *slog.Logger) metrics.Alerter {
	log := metrics.LogAlerter{Logger: logger.With("component", "alerts")}
	if cfg.AlertWebhookURL == "" {
		return log
	}
	return metrics.MultiAlerter{
		log,
		metrics.NewWebhookAlerter(cfg.AlertWebhookURL,
			metrics.WithWebhookTimeout(cfg.AlertTimeout),
			metrics.WithWebhookRetries(max(cfg.AlertRetries, 0), cfg.AlertRetryBackoff),
			metrics.WithWebhookLogger(logger),
		),
	}
}

// Start bootstraps assets, starts the pipeline back to front and connects.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.registry.Bootstrap(ctx, r.cfg.Assets); err != nil {
		return fmt.Errorf("bootstrap assets: %w", err)
	}

	if err := r.bookWriter.Start(ctx); err != nil {
		return fmt.Errorf("start orderbook writer: %w", err)
	}
	if err := r.tradeWriter.Start(ctx); err != nil {
		return fmt.Errorf("start trade writer: %w", err)
	}
	// The router is stopped explicitly so queued frames survive ctx.
	if err := r.router.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	if !r.cfg.Monitoring.Disabled {
		r.reporter.Start(ctx)
	}

	r.manager.Subscribe(r.cfg.Exchange.Symbols, r.cfg.Exchange.Channels)
	if err := r.manager.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	r.logger.Info("recorder started",
		"instance_id", r.cfg.Instance.ID,
		"url", r.cfg.Exchange.WSURL,
		"symbols", r.cfg.Exchange.Symbols,
		"channels", r.cfg.Exchange.Channels,
	)
	return nil
}

// Stop disconnects, drains the writers and logs a final summary.
// ctx bounds the whole shutdown.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	var errs []error
	if err := r.manager.Disconnect(ctx); err != nil {
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}
	if err := r.router.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop router: %w", err))
	}

	// Writers drain independently.
	var g errgroup.Group
	g.Go(func() error { return r.bookWriter.Stop(ctx) })
	g.Go(func() error { return r.tradeWriter.Stop(ctx) })
	if err := g.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("stop writers: %w", err))
	}
	r.reporter.Stop()
	r.reporter.Report()

	r.logger.Info("recorder stopped",
		"orderbook", r.bookWriter.Stats(),
		"trades", r.tradeWriter.Stats(),
		"router", r.router.Stats(),
	)
	return errors.Join(errs...)
}

// Run starts the recorder and blocks until ctx ends or the connection
// gives up, then shuts down. It returns connection.ErrRetriesExhausted in
// the latter case.
func (r *Recorder) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
		defer cancel()
		r.Stop(stopCtx)
		return err
	}

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown requested")
	case <-r.manager.Done():
		r.logger.Error("connection gave up, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()
	stopErr := r.Stop(stopCtx)

	if err := r.manager.Err(); err != nil {
		return err
	}
	return stopErr
}

// Sink returns the metrics sink shared by all components.
func (r *Recorder) Sink() *metrics.Sink { return r.sink }

// Manager returns the connection manager.
func (r *Recorder) Manager() *connection.Manager { return r.manager }

// Registry returns the asset registry.
func (r *Recorder) Registry() *market.Registry { return r.registry }
