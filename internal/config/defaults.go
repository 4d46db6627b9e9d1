package config

import (
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultInstanceID             = "recorder"
	DefaultEnvironment            = "development"
	DefaultWSURL                  = "wss://figuremarkets.com/service-hft-exchange-websocket/ws/v1"
	DefaultSymbol                 = "HASH-USD"
	DefaultReconnectDelay         = 5 * time.Second
	DefaultReconnectMaxDelay      = 60 * time.Second
	DefaultReconnectFactor        = 1.5
	DefaultMaxRetries             = 10
	DefaultHandshakeTimeout       = 10 * time.Second
	DefaultWriteTimeout           = 5 * time.Second
	DefaultHealthInterval         = 30 * time.Second
	DefaultMaxSilence             = 300 * time.Second
	DefaultHeartbeatMode          = HeartbeatPing
	DefaultHeartbeatInterval      = 20 * time.Second
	DefaultHeartbeatTimeout       = 10 * time.Second
	DefaultHeartbeatFailures      = 3
	DefaultConnBufferSize         = 1000
	DefaultDriver                 = DriverSQLite
	DefaultSQLitePath             = "./market_data.db"
	DefaultDBPort                 = 5432
	DefaultDBSSLMode              = "prefer"
	DefaultMaxConns               = 10
	DefaultMinConns               = 2
	DefaultWriterBufferSize       = 10000
	DefaultPriceDisplayPlaces     = 8
	DefaultReportInterval         = 300 * time.Second
	DefaultAlertCooldown          = 300 * time.Second
	DefaultAlertTimeout           = 10 * time.Second
	DefaultAlertRetries           = 3
	DefaultAlertRetryBackoff      = time.Second
	DefaultFailedConnectionsAlert = 5
	DefaultSilenceAlert           = 600 * time.Second
	DefaultHeartbeatFailureAlert  = 5
	DefaultMetricsPort            = 9090
	DefaultMetricsPath            = "/metrics"
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "json"
	DefaultLogFile                = "logs/recorder.log"
	DefaultLogMaxSizeMB           = 10
	DefaultLogMaxBackups          = 3
	DefaultLogMaxAgeDays          = 28
)

// Supported values for enumerated fields.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	HeartbeatPing    = "ping"
	HeartbeatPassive = "passive"

	ChannelOrderBook = "ORDER_BOOK"
	ChannelTrades    = "TRADES"
)

// DefaultAssets is the asset table used when none is configured.
func DefaultAssets() []AssetConfig {
	return []AssetConfig{{
		Symbol:            DefaultSymbol,
		Name:              "HASH-USD Trading Pair",
		BasePriceDenom:    "microUSD",
		BaseSizeDenom:     "nanoHASH",
		DisplayPriceDenom: "USD",
		DisplaySizeDenom:  "HASH",
		PriceDecimals:     6,
		SizeDecimals:      9,
	}}
}

// ApplyDefaults fills zero-valued optional fields.
func (c *RecorderConfig) ApplyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}
	if c.Instance.Environment == "" {
		c.Instance.Environment = DefaultEnvironment
	}

	// Exchange defaults
	if c.Exchange.WSURL == "" {
		c.Exchange.WSURL = DefaultWSURL
	}
	if len(c.Exchange.Symbols) == 0 {
		c.Exchange.Symbols = []string{DefaultSymbol}
	}
	for i, s := range c.Exchange.Symbols {
		c.Exchange.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if len(c.Exchange.Channels) == 0 {
		c.Exchange.Channels = []string{ChannelOrderBook, ChannelTrades}
	}
	if len(c.Assets) == 0 {
		c.Assets = DefaultAssets()
	}

	// Connection defaults
	conn := &c.Connection
	if conn.ReconnectDelay == 0 {
		conn.ReconnectDelay = DefaultReconnectDelay
	}
	if conn.ReconnectMaxDelay == 0 {
		conn.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if conn.ReconnectFactor == 0 {
		conn.ReconnectFactor = DefaultReconnectFactor
	}
	if conn.MaxRetries == nil {
		retries := DefaultMaxRetries
		conn.MaxRetries = &retries
	}
	if conn.HandshakeTimeout == 0 {
		conn.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if conn.WriteTimeout == 0 {
		conn.WriteTimeout = DefaultWriteTimeout
	}
	if conn.HealthInterval == 0 {
		conn.HealthInterval = DefaultHealthInterval
	}
	if conn.MaxSilence == 0 {
		conn.MaxSilence = DefaultMaxSilence
	}
	if conn.HeartbeatMode == "" {
		conn.HeartbeatMode = DefaultHeartbeatMode
	}
	if conn.HeartbeatInterval == 0 {
		conn.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if conn.HeartbeatTimeout == 0 {
		conn.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if conn.HeartbeatFailures == 0 {
		conn.HeartbeatFailures = DefaultHeartbeatFailures
	}
	if conn.BufferSize == 0 {
		conn.BufferSize = DefaultConnBufferSize
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}
	applyDBDefaults(&c.Database.Postgres)

	// Writers defaults
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultWriterBufferSize
	}
	if c.Writers.PriceDisplayPlaces == 0 {
		c.Writers.PriceDisplayPlaces = DefaultPriceDisplayPlaces
	}

	// Monitoring defaults
	mon := &c.Monitoring
	if mon.ReportInterval == 0 {
		mon.ReportInterval = DefaultReportInterval
	}
	if mon.AlertCooldown == 0 {
		mon.AlertCooldown = DefaultAlertCooldown
	}
	if mon.AlertTimeout == 0 {
		mon.AlertTimeout = DefaultAlertTimeout
	}
	if mon.AlertRetries == 0 {
		mon.AlertRetries = DefaultAlertRetries
	}
	if mon.AlertRetryBackoff == 0 {
		mon.AlertRetryBackoff = DefaultAlertRetryBackoff
	}
	if mon.FailedConnectionsAlert == 0 {
		mon.FailedConnectionsAlert = DefaultFailedConnectionsAlert
	}
	if mon.SilenceAlert == 0 {
		mon.SilenceAlert = DefaultSilenceAlert
	}
	if mon.HeartbeatFailureAlert == 0 {
		mon.HeartbeatFailureAlert = DefaultHeartbeatFailureAlert
	}
	if mon.Port == 0 {
		mon.Port = DefaultMetricsPort
	}
	if mon.Path == "" {
		mon.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.File == "" {
		c.Logging.File = DefaultLogFile
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
