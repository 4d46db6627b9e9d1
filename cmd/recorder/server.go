package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/metrics"
	"github.com/rickgao/bidask-recorder/internal/recorder"
)

// healthChecker is the part of the recorder the health endpoint needs.
type healthChecker interface {
	Health(ctx context.Context) recorder.Health
}

func newHealthServer(cfg config.MonitoringConfig, rec healthChecker, sink *metrics.Sink, logger *slog.Logger) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewCollector(sink),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           createHandler(cfg.Path, rec, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// createHandler serves /health and the Prometheus metrics path.
func createHandler(metricsPath string, rec healthChecker, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := rec.Health(ctx)

		w.Header().Set("Content-Type", "application/json")
		if health.Status == recorder.StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})

	if metricsPath == "" {
		metricsPath = config.DefaultMetricsPath
	}
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}
