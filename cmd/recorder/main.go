// recorder records Figure Markets order-book snapshots and trades.
//
// Usage:
//
//	recorder [-config path] [-env path] [record|reset|version]
//
// record is the default command. reset deletes recorded market data and
// keeps assets; it refuses to run without -yes.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/connection"
	"github.com/rickgao/bidask-recorder/internal/database"
	"github.com/rickgao/bidask-recorder/internal/logging"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/recorder"
	"github.com/rickgao/bidask-recorder/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults when empty)")
	envPath := flag.String("env", ".env", "path to .env file")
	yes := flag.Bool("yes", false, "skip the reset confirmation prompt")
	flag.Parse()

	// Load environment variables from .env if present
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error loading %s: %v\n", *envPath, err)
	}

	command := "record"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	switch command {
	case "version":
		fmt.Println(version.String())
		return
	case "record", "reset":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want record, reset or version)\n", command)
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	var code int
	if command == "reset" {
		code = runReset(cfg, *yes, os.Stdin, logger)
	} else {
		code = runRecord(cfg, logger)
	}
	if code != 0 {
		logCloser.Close()
		os.Exit(code)
	}
}

func loadConfig(path string) (*config.RecorderConfig, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}

func runRecord(cfg *config.RecorderConfig, logger *slog.Logger) int {
	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"environment", cfg.Instance.Environment,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	st, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer st.Close()

	sink := metrics.NewSink()
	rec := recorder.New(cfg, st, logger, recorder.WithSink(sink))

	if !cfg.Monitoring.Disabled {
		srv := newHealthServer(cfg.Monitoring, rec, sink, logger)
		go func() {
			logger.Info("starting health server",
				"addr", srv.Addr,
				"metrics_path", cfg.Monitoring.Path,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	err = rec.Run(ctx)
	switch {
	case errors.Is(err, connection.ErrRetriesExhausted):
		logger.Error("recorder stopped: reconnect attempts exhausted")
		return 1
	case err != nil:
		logger.Error("recorder failed", "error", err)
		return 1
	}

	logger.Info("recorder stopped")
	return 0
}

func runReset(cfg *config.RecorderConfig, yes bool, in io.Reader, logger *slog.Logger) int {
	ctx := context.Background()

	st, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer st.Close()

	counts, err := st.Counts(ctx)
	if err != nil {
		logger.Error("failed to count rows", "error", err)
		return 1
	}
	fmt.Printf("order_book: %d rows (%d snapshots)\norder_book_raw: %d rows\ntrade: %d rows\nasset: %d rows (kept)\n",
		counts.Levels, counts.Snapshots, counts.Raw, counts.Trades, counts.Assets)

	if !yes && !confirm(in) {
		fmt.Println("reset cancelled")
		return 1
	}

	if _, err := recorder.Reset(ctx, st, cfg.Assets, logger); err != nil {
		logger.Error("reset failed", "error", err)
		return 1
	}
	fmt.Println("reset complete")
	return 0
}

func confirm(in io.Reader) bool {
	fmt.Print("Delete all recorded market data? Type 'yes' to continue: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}
