package metrics

import "time"

// Summary is a point-in-time copy of the sink.
type Summary struct {
	StartedAt time.Time `json:"started_at"`

	ConnectionAttempts    uint64        `json:"connection_attempts"`
	SuccessfulConnections uint64        `json:"successful_connections"`
	FailedConnections     uint64        `json:"failed_connections"`
	ReconnectAttempts     uint64        `json:"reconnect_attempts"`
	Connected             bool          `json:"connected"`
	CurrentUptime         time.Duration `json:"current_uptime"`
	TotalUptime           time.Duration `json:"total_uptime"`
	LastDisconnect        time.Time     `json:"last_disconnect,omitempty"`
	ConnectionSuccessRate float64       `json:"connection_success_rate"`

	MessagesReceived    uint64    `json:"messages_received"`
	OrderBookUpdates    uint64    `json:"order_book_updates"`
	TradeUpdates        uint64    `json:"trade_updates"`
	Acks                uint64    `json:"acks"`
	ErrorMessages       uint64    `json:"error_messages"`
	InvalidMessages     uint64    `json:"invalid_messages"`
	UnknownMessages     uint64    `json:"unknown_messages"`
	DatabaseWrites      uint64    `json:"database_writes"`
	DatabaseErrors      uint64    `json:"database_errors"`
	DuplicateSnapshots  uint64    `json:"duplicate_snapshots"`
	DuplicateTrades     uint64    `json:"duplicate_trades"`
	LastDataReceived    time.Time `json:"last_data_received,omitempty"`
	DatabaseSuccessRate float64   `json:"database_success_rate"`

	// SecondsSinceLastData counts from StartedAt until the first frame.
	SecondsSinceLastData float64 `json:"seconds_since_last_data"`

	HeartbeatsSent               uint64  `json:"heartbeats_sent"`
	HeartbeatsReceived           uint64  `json:"heartbeats_received"`
	HeartbeatFailures            uint64  `json:"heartbeat_failures"`
	ConsecutiveHeartbeatFailures uint64  `json:"consecutive_heartbeat_failures"`
	HealthChecks                 uint64  `json:"health_checks"`
	ForcedReconnects             uint64  `json:"forced_reconnects"`
	HeartbeatSuccessRate         float64 `json:"heartbeat_success_rate"`
}

// Summary returns a snapshot of all counters with derived rates.
// Rates are percentages and 0 when nothing was attempted.
func (s *Sink) Summary() Summary {
	out := Summary{
		ConnectionAttempts:    s.connectionAttempts.Load(),
		SuccessfulConnections: s.connectionSuccesses.Load(),
		FailedConnections:     s.connectionFailures.Load(),
		ReconnectAttempts:     s.reconnectAttempts.Load(),

		MessagesReceived:   s.messagesReceived.Load(),
		OrderBookUpdates:   s.orderBookUpdates.Load(),
		TradeUpdates:       s.tradeUpdates.Load(),
		Acks:               s.acks.Load(),
		ErrorMessages:      s.errorMessages.Load(),
		InvalidMessages:    s.invalidMessages.Load(),
		UnknownMessages:    s.unknownMessages.Load(),
		DatabaseWrites:     s.databaseWrites.Load(),
		DatabaseErrors:     s.databaseErrors.Load(),
		DuplicateSnapshots: s.duplicateSnapshots.Load(),
		DuplicateTrades:    s.duplicateTrades.Load(),
		LastDataReceived:   s.LastDataReceived(),

		HeartbeatsSent:               s.heartbeatsSent.Load(),
		HeartbeatsReceived:           s.heartbeatsReceived.Load(),
		HeartbeatFailures:            s.heartbeatFailures.Load(),
		ConsecutiveHeartbeatFailures: s.consecutiveHBFailure.Load(),
		HealthChecks:                 s.healthChecks.Load(),
		ForcedReconnects:             s.forcedReconnects.Load(),
	}

	s.mu.Lock()
	now := s.now()
	out.StartedAt = s.startedAt
	out.TotalUptime = s.totalUptime
	out.LastDisconnect = s.lastDisconnect
	if !s.uptimeStart.IsZero() {
		out.Connected = true
		out.CurrentUptime = now.Sub(s.uptimeStart)
		out.TotalUptime += out.CurrentUptime
	}
	s.mu.Unlock()

	since := out.StartedAt
	if !out.LastDataReceived.IsZero() {
		since = out.LastDataReceived
	}
	out.SecondsSinceLastData = now.Sub(since).Seconds()

	out.ConnectionSuccessRate = percent(out.SuccessfulConnections, out.ConnectionAttempts)
	out.DatabaseSuccessRate = percent(out.DatabaseWrites, out.DatabaseWrites+out.DatabaseErrors)
	out.HeartbeatSuccessRate = percent(out.HeartbeatsReceived, out.HeartbeatsSent)
	return out
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
