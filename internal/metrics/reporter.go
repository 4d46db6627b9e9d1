package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ReporterConfig holds reporting and alert thresholds.
type ReporterConfig struct {
	Interval time.Duration
	Cooldown time.Duration

	FailedConnections uint64        // alert when failures exceed this
	Silence           time.Duration // alert when no data for longer than this
	HeartbeatFailures uint64        // alert when consecutive failures reach this
}

// Reporter periodically logs the sink summary and raises alerts.
type Reporter struct {
	sink    *Sink
	cfg     ReporterConfig
	alerter Alerter
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	lastAlert map[AlertKind]time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter creates a reporter. A nil alerter logs alerts only.
func NewReporter(sink *Sink, cfg ReporterConfig, alerter Alerter, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = LogAlerter{Logger: logger}
	}
	return &Reporter{
		sink:      sink,
		cfg:       cfg,
		alerter:   alerter,
		logger:    logger.With("component", "metrics_reporter"),
		now:       time.Now,
		lastAlert: make(map[AlertKind]time.Time),
	}
}

// Start begins periodic reporting.
func (r *Reporter) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	if r.cfg.Interval <= 0 {
		return
	}
	r.wg.Add(1)
	go r.loop()
}

// Stop halts reporting and waits for the loop to exit.
func (r *Reporter) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Reporter) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Report()
			r.Check(r.ctx)
		}
	}
}

// Report logs the current summary.
func (r *Reporter) Report() {
	s := r.sink.Summary()
	r.logger.Info("metrics summary",
		"connected", s.Connected,
		"uptime", s.CurrentUptime.Round(time.Second),
		"total_uptime", s.TotalUptime.Round(time.Second),
		"connection_attempts", s.ConnectionAttempts,
		"failed_connections", s.FailedConnections,
		"connection_success_rate", s.ConnectionSuccessRate,
		"messages_received", s.MessagesReceived,
		"order_book_updates", s.OrderBookUpdates,
		"trade_updates", s.TradeUpdates,
		"database_writes", s.DatabaseWrites,
		"database_errors", s.DatabaseErrors,
		"duplicate_snapshots", s.DuplicateSnapshots,
		"duplicate_trades", s.DuplicateTrades,
		"heartbeat_success_rate", s.HeartbeatSuccessRate,
		"forced_reconnects", s.ForcedReconnects,
	)
}

// Check evaluates alert conditions and delivers any that are not cooling
// down. It returns the alerts raised.
func (r *Reporter) Check(ctx context.Context) []Alert {
	s := r.sink.Summary()
	now := r.now()

	var raised []Alert
	if r.cfg.FailedConnections > 0 && s.FailedConnections > r.cfg.FailedConnections {
		raised = r.raise(ctx, raised, now, s, AlertFailedConnections,
			fmt.Sprintf("high connection failure count: %d", s.FailedConnections))
	}

	if r.cfg.Silence > 0 {
		last := s.LastDataReceived
		if last.IsZero() {
			last = s.StartedAt
		}
		if silent := now.Sub(last); silent > r.cfg.Silence {
			raised = r.raise(ctx, raised, now, s, AlertNoData,
				fmt.Sprintf("no data received for %s", silent.Round(time.Second)))
		}
	}

	if r.cfg.HeartbeatFailures > 0 && s.ConsecutiveHeartbeatFailures >= r.cfg.HeartbeatFailures {
		raised = r.raise(ctx, raised, now, s, AlertHeartbeat,
			fmt.Sprintf("consecutive heartbeat failures: %d", s.ConsecutiveHeartbeatFailures))
	}

	return raised
}

func (r *Reporter) raise(ctx context.Context, raised []Alert, now time.Time, s Summary, kind AlertKind, msg string) []Alert {
	r.mu.Lock()
	last, ok := r.lastAlert[kind]
	if ok && now.Sub(last) < r.cfg.Cooldown {
		r.mu.Unlock()
		return raised
	}
	r.lastAlert[kind] = now
	r.mu.Unlock()

	a := Alert{Kind: kind, Message: msg, Timestamp: now, Summary: s}
	if err := r.alerter.Alert(ctx, a); err != nil {
		r.logger.Error("alert delivery failed", "kind", kind, "error", err)
	}
	return append(raised, a)
}
