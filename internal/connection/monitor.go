package connection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/bidask-recorder/internal/config"
	"github.com/rickgao/bidask-recorder/internal/metrics"
)

// healthMonitor decides when a session must be abandoned. It owns the
// session's last-seen time and heartbeat failure count; the listener and
// heartbeat monitor report to it over channels.
type healthMonitor struct {
	maxSilence time.Duration
	threshold  int
	sink       *metrics.Sink
	logger     *slog.Logger
	now        func() time.Time
}

// run evaluates health on every tick until ctx ends or a reconnect is
// needed. It returns at most one forcing error per session.
func (h *healthMonitor) run(ctx context.Context, ticks <-chan time.Time, seen <-chan time.Time, beats <-chan bool) error {
	lastSeen := h.now()
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case t := <-seen:
			if t.After(lastSeen) {
				lastSeen = t
			}

		case ok := <-beats:
			if ok {
				failures = 0
			} else {
				failures++
			}

		case <-ticks:
			h.sink.HealthCheck()

			if err := h.check(lastSeen, failures); err != nil {
				h.sink.ForcedReconnect()
				h.logger.Warn("forcing reconnect", "reason", err)
				return err
			}
		}
	}
}

func (h *healthMonitor) check(lastSeen time.Time, failures int) error {
	if h.maxSilence > 0 {
		if silent := h.now().Sub(lastSeen); silent > h.maxSilence {
			return fmt.Errorf("%w: silent for %s", ErrSilence, silent.Round(time.Millisecond))
		}
	}
	if h.threshold > 0 && failures >= h.threshold {
		return fmt.Errorf("%w: %d consecutive", ErrHeartbeatFailures, failures)
	}
	return nil
}

// heartbeatMonitor keeps the transport alive. In ping mode it sends a ping
// control frame per tick and reports whether a pong arrived in time.
// In passive mode it only logs a status line.
type heartbeatMonitor struct {
	mode    string
	timeout time.Duration
	sink    *metrics.Sink
	logger  *slog.Logger
}

func (hb *heartbeatMonitor) run(ctx context.Context, c Client, ticks <-chan time.Time, beats chan<- bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
		}

		if hb.mode != config.HeartbeatPing {
			hb.logger.Debug("connection status", "connected", c.IsConnected())
			continue
		}

		ok, err := hb.beat(ctx, c)
		if err != nil {
			return err
		}

		select {
		case beats <- ok:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// beat sends one ping and waits for its pong.
func (hb *heartbeatMonitor) beat(ctx context.Context, c Client) (bool, error) {
	// Discard a pong left over from an earlier beat.
	select {
	case <-c.Pongs():
	default:
	}

	hb.sink.HeartbeatSent()
	if err := c.Ping(); err != nil {
		hb.logger.Debug("failed to send ping", "error", err)
		hb.sink.HeartbeatFailed()
		return false, nil
	}

	timer := time.NewTimer(hb.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.Pongs():
		hb.sink.HeartbeatReceived()
		return true, nil
	case <-timer.C:
		hb.logger.Warn("heartbeat timed out", "timeout", hb.timeout)
		hb.sink.HeartbeatFailed()
		return false, nil
	}
}

// offerLatest replaces any pending value in ch with t. ch must have
// capacity 1 and a single sender.
func offerLatest(ch chan time.Time, t time.Time) {
	select {
	case ch <- t:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- t:
	default:
	}
}
