package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// MessageKind classifies an inbound frame for counting.
type MessageKind int

const (
	KindOrderBook MessageKind = iota
	KindTrade
	KindAck
	KindError
	KindInvalid
	KindUnknown
)

// Sink holds the recorder's counters. Counters never decrease. The zero
// value is not usable; create with NewSink.
type Sink struct {
	now func() time.Time

	// Connection
	connectionAttempts  atomic.Uint64
	connectionSuccesses atomic.Uint64
	connectionFailures  atomic.Uint64
	reconnectAttempts   atomic.Uint64

	// Data
	messagesReceived   atomic.Uint64
	orderBookUpdates   atomic.Uint64
	tradeUpdates       atomic.Uint64
	acks               atomic.Uint64
	errorMessages      atomic.Uint64
	invalidMessages    atomic.Uint64
	unknownMessages    atomic.Uint64
	databaseWrites     atomic.Uint64
	databaseErrors     atomic.Uint64
	duplicateSnapshots atomic.Uint64
	duplicateTrades    atomic.Uint64
	lastData           atomic.Int64 // unix nanos, 0 = never

	// Health
	heartbeatsSent       atomic.Uint64
	heartbeatsReceived   atomic.Uint64
	heartbeatFailures    atomic.Uint64
	consecutiveHBFailure atomic.Uint64 // gauge, resets on success
	healthChecks         atomic.Uint64
	forcedReconnects     atomic.Uint64

	mu             sync.Mutex
	startedAt      time.Time
	uptimeStart    time.Time // zero while disconnected
	totalUptime    time.Duration
	lastDisconnect time.Time
}

// NewSink creates a sink using the wall clock.
func NewSink() *Sink {
	return NewSinkWithClock(time.Now)
}

// NewSinkWithClock creates a sink reading time from now.
func NewSinkWithClock(now func() time.Time) *Sink {
	return &Sink{now: now, startedAt: now()}
}

// ConnectionAttempt records a dial attempt.
func (s *Sink) ConnectionAttempt() { s.connectionAttempts.Add(1) }

// ReconnectAttempt records a dial attempt that follows a failure.
func (s *Sink) ReconnectAttempt() { s.reconnectAttempts.Add(1) }

// ConnectionFailed records a failed dial or a session lost while listening.
func (s *Sink) ConnectionFailed() { s.connectionFailures.Add(1) }

// ConnectionSucceeded records an established session and starts its uptime.
func (s *Sink) ConnectionSucceeded() {
	s.connectionSuccesses.Add(1)
	s.mu.Lock()
	s.uptimeStart = s.now()
	s.mu.Unlock()
}

// Disconnected closes the current uptime window.
func (s *Sink) Disconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.uptimeStart.IsZero() {
		s.totalUptime += now.Sub(s.uptimeStart)
		s.uptimeStart = time.Time{}
	}
	s.lastDisconnect = now
}

// MessageReceived counts one inbound frame.
func (s *Sink) MessageReceived(kind MessageKind) {
	s.messagesReceived.Add(1)
	s.lastData.Store(s.now().UnixNano())

	switch kind {
	case KindOrderBook:
		s.orderBookUpdates.Add(1)
	case KindTrade:
		s.tradeUpdates.Add(1)
	case KindAck:
		s.acks.Add(1)
	case KindError:
		s.errorMessages.Add(1)
	case KindInvalid:
		s.invalidMessages.Add(1)
	case KindUnknown:
		s.unknownMessages.Add(1)
	}
}

// DatabaseWrite records a committed unit of work.
func (s *Sink) DatabaseWrite() { s.databaseWrites.Add(1) }

// DatabaseError records a rolled-back unit of work.
func (s *Sink) DatabaseError() { s.databaseErrors.Add(1) }

// DuplicateSnapshot records a snapshot skipped as unchanged.
func (s *Sink) DuplicateSnapshot() { s.duplicateSnapshots.Add(1) }

// DuplicateTrade records a trade skipped as already stored.
func (s *Sink) DuplicateTrade() { s.duplicateTrades.Add(1) }

// HeartbeatSent records a keepalive ping.
func (s *Sink) HeartbeatSent() { s.heartbeatsSent.Add(1) }

// HeartbeatReceived records a keepalive reply.
func (s *Sink) HeartbeatReceived() {
	s.heartbeatsReceived.Add(1)
	s.consecutiveHBFailure.Store(0)
}

// HeartbeatFailed records a missing keepalive reply.
func (s *Sink) HeartbeatFailed() {
	s.heartbeatFailures.Add(1)
	s.consecutiveHBFailure.Add(1)
}

// HealthCheck records one health evaluation.
func (s *Sink) HealthCheck() { s.healthChecks.Add(1) }

// ForcedReconnect records a reconnect ordered by the health monitor.
func (s *Sink) ForcedReconnect() { s.forcedReconnects.Add(1) }

// LastDataReceived returns when the last frame arrived, zero if never.
func (s *Sink) LastDataReceived() time.Time {
	n := s.lastData.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
