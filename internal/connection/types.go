package connection

import (
	"errors"
	"time"

	"github.com/rickgao/bidask-recorder/internal/config"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrRetriesExhausted  = errors.New("reconnect retries exhausted")
	ErrSilence           = errors.New("no data within max silence")
	ErrHeartbeatFailures = errors.New("heartbeat failure threshold reached")
	ErrWriteFailed       = errors.New("write failed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// State is the lifecycle state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateListening
	StateReconnecting
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateReconnecting:
		return "reconnecting"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL
	HandshakeTimeout time.Duration // Dial handshake limit
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: config.DefaultHandshakeTimeout,
		WriteTimeout:     config.DefaultWriteTimeout,
		BufferSize:       config.DefaultConnBufferSize,
	}
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	Client ClientConfig

	ReconnectDelay    time.Duration // First retry delay
	ReconnectMaxDelay time.Duration // Retry delay ceiling
	ReconnectFactor   float64       // Growth per consecutive failure
	MaxRetries        int           // Consecutive failures before giving up, <= 0 retries forever
	CarryRetries      bool          // Keep the failure count across successful sessions

	HealthInterval    time.Duration // Health check period
	MaxSilence        time.Duration // Inbound silence that forces a reconnect, 0 disables
	HeartbeatMode     string        // "ping" or "passive"
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	HeartbeatFailures int // Consecutive failures that force a reconnect

	MessageBufferSize int // Buffer size for output message channel
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:            DefaultClientConfig(),
		ReconnectDelay:    config.DefaultReconnectDelay,
		ReconnectMaxDelay: config.DefaultReconnectMaxDelay,
		ReconnectFactor:   config.DefaultReconnectFactor,
		MaxRetries:        config.DefaultMaxRetries,
		HealthInterval:    config.DefaultHealthInterval,
		MaxSilence:        config.DefaultMaxSilence,
		HeartbeatMode:     config.DefaultHeartbeatMode,
		HeartbeatInterval: config.DefaultHeartbeatInterval,
		HeartbeatTimeout:  config.DefaultHeartbeatTimeout,
		HeartbeatFailures: config.DefaultHeartbeatFailures,
		MessageBufferSize: config.DefaultConnBufferSize,
	}
}

// ManagerConfigFrom maps loaded configuration onto a ManagerConfig.
func ManagerConfigFrom(url string, c config.ConnectionConfig) ManagerConfig {
	return ManagerConfig{
		Client: ClientConfig{
			URL:              url,
			HandshakeTimeout: c.HandshakeTimeout,
			WriteTimeout:     c.WriteTimeout,
			BufferSize:       c.BufferSize,
		},
		ReconnectDelay:    c.ReconnectDelay,
		ReconnectMaxDelay: c.ReconnectMaxDelay,
		ReconnectFactor:   c.ReconnectFactor,
		MaxRetries:        c.RetryBudget(),
		CarryRetries:      c.CarryRetries,
		HealthInterval:    c.HealthInterval,
		MaxSilence:        c.MaxSilence,
		HeartbeatMode:     c.HeartbeatMode,
		HeartbeatInterval: c.HeartbeatInterval,
		HeartbeatTimeout:  c.HeartbeatTimeout,
		HeartbeatFailures: c.HeartbeatFailures,
		MessageBufferSize: c.BufferSize,
	}
}

// Subscription is one tracked (symbol, channel) pair.
type Subscription struct {
	Symbol      string
	Channel     string
	ChannelUUID string // Correlation id of the most recent SUBSCRIBE
}
