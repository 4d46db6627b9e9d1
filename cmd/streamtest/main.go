// streamtest connects to the Figure Markets WebSocket and prints decoded
// frames to the console.
// Usage: go run ./cmd/streamtest -config configs/recorder.example.yaml -verbose
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/connection"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/protocol"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults when empty)")
	symbols := flag.String("symbols", "", "comma-separated symbols, overrides config")
	verbose := flag.Bool("verbose", false, "print raw frame JSON")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadWithDefaults(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}
	if *symbols != "" {
		cfg.Exchange.Symbols = strings.Split(*symbols, ",")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	sink := metrics.NewSink()
	mgr := connection.NewManager(connection.ManagerConfigFrom(cfg.Exchange.WSURL, cfg.Connection), sink, logger)
	mgr.Subscribe(cfg.Exchange.Symbols, cfg.Exchange.Channels)

	logger.Info("connecting", "url", cfg.Exchange.WSURL, "symbols", cfg.Exchange.Symbols, "channels", cfg.Exchange.Channels)
	if err := mgr.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	stats := time.NewTicker(10 * time.Second)
	defer stats.Stop()

	logger.Info("streaming started - press Ctrl+C to stop")

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-mgr.Done():
			logger.Error("connection gave up", "error", mgr.Err())
			break loop
		case <-stats.C:
			s := sink.Summary()
			logger.Info("stats",
				"state", mgr.State(),
				"messages", s.MessagesReceived,
				"order_books", s.OrderBookUpdates,
				"trades", s.TradeUpdates,
				"invalid", s.InvalidMessages,
			)
		case raw := <-mgr.Messages():
			printFrame(mgr.Tracker(), raw, *verbose)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mgr.Disconnect(shutdownCtx)
	logger.Info("shutdown complete")
}

func printFrame(tracker *connection.Tracker, raw connection.TimestampedMessage, verbose bool) {
	ts := raw.ReceivedAt.Format("15:04:05.000")

	msg, err := protocol.Decode(raw.Data, raw.ReceivedAt)
	if err != nil {
		fmt.Printf("%s [INVALID] %v\n", ts, err)
		return
	}

	if verbose {
		fmt.Printf("%s %s\n", ts, raw.Data)
		return
	}

	switch m := msg.(type) {
	case *protocol.OrderBookUpdate:
		symbol := m.Symbol
		if s, ok := tracker.SymbolFor(m.ChannelUUID); ok {
			symbol = s
		}
		fmt.Printf("%s [ORDER_BOOK] symbol=%s bids=%d asks=%d%s\n",
			ts, symbol, len(m.Book.Bids), len(m.Book.Asks), topOfBook(m))
	case *protocol.TradeUpdate:
		fmt.Printf("%s [TRADE] symbol=%s id=%s price=%s quantity=%s time=%s\n",
			ts, m.Symbol, m.TradeID, m.Price, m.Quantity, m.TradeTime.Format(time.RFC3339Nano))
	case *protocol.SubscriptionAck:
		fmt.Printf("%s [ACK] action=%s channel=%s symbol=%s status=%s\n",
			ts, m.Action, m.Channel, m.Symbol, m.Status)
	case *protocol.ErrorMessage:
		fmt.Printf("%s [ERROR] %s\n", ts, m.Message)
	case *protocol.Unknown:
		fmt.Printf("%s [UNKNOWN] type=%s\n", ts, m.Type)
	}
}

func topOfBook(m *protocol.OrderBookUpdate) string {
	var b strings.Builder
	if len(m.Book.Bids) > 0 {
		fmt.Fprintf(&b, " best_bid=%s", m.Book.Bids[0].Price)
	}
	if len(m.Book.Asks) > 0 {
		fmt.Fprintf(&b, " best_ask=%s", m.Book.Asks[0].Price)
	}
	return b.String()
}
