package recorder

import (
	"context"

	"github.com/rickgao/bidask-recorder/internal/metrics"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Health is the service state reported on /health.
type Health struct {
	Status     string          `json:"status"`
	Connection string          `json:"connection"`
	Database   string          `json:"database"`
	Error      string          `json:"error,omitempty"`
	Metrics    metrics.Summary `json:"metrics"`
}

// Health checks the connection state and pings the store. A store that
// does not answer or a connection that gave up is unhealthy; a session
// being re-established is degraded.
func (r *Recorder) Health(ctx context.Context) Health {
	h := Health{
		Status:     StatusHealthy,
		Connection: r.manager.State().String(),
		Database:   "connected",
		Metrics:    r.sink.Summary(),
	}

	if !r.manager.Connected() {
		h.Status = StatusDegraded
	}
	if r.manager.Err() != nil {
		h.Status = StatusUnhealthy
		h.Error = r.manager.Err().Error()
	}

	if err := r.store.Ping(ctx); err != nil {
		h.Status = StatusUnhealthy
		h.Database = "disconnected"
		h.Error = err.Error()
	}
	return h
}
