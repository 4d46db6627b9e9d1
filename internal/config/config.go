package config

import "time"

// RecorderConfig is the root configuration for a recorder instance.
type RecorderConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Assets     []AssetConfig    `yaml:"assets"`
	Connection ConnectionConfig `yaml:"connection"`
	Database   DatabaseConfig   `yaml:"database"`
	Writers    WritersConfig    `yaml:"writers"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InstanceConfig identifies this recorder.
type InstanceConfig struct {
	ID          string `yaml:"id"`
	Environment string `yaml:"environment"`
}

// ExchangeConfig holds the upstream endpoint and what to subscribe to.
type ExchangeConfig struct {
	WSURL    string   `yaml:"ws_url"`
	Symbols  []string `yaml:"symbols"`
	Channels []string `yaml:"channels"`
}

// AssetConfig describes a tradable pair and its unit conversion.
// Decimals are powers of ten: 6 means one display unit is 10^6 base units.
type AssetConfig struct {
	Symbol            string `yaml:"symbol"`
	Name              string `yaml:"name"`
	BasePriceDenom    string `yaml:"base_price_denom"`
	BaseSizeDenom     string `yaml:"base_size_denom"`
	DisplayPriceDenom string `yaml:"display_price_denom"`
	DisplaySizeDenom  string `yaml:"display_size_denom"`
	PriceDecimals     int    `yaml:"price_decimals"`
	SizeDecimals      int    `yaml:"size_decimals"`
}

// ConnectionConfig holds WebSocket lifecycle settings.
type ConnectionConfig struct {
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	ReconnectFactor   float64       `yaml:"reconnect_factor"`
	MaxRetries        *int          `yaml:"max_retries"`   // 0 or negative retries forever, unset uses the default
	CarryRetries      bool          `yaml:"carry_retries"` // keep the retry count across successful sessions
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HealthInterval    time.Duration `yaml:"health_check_interval"`
	MaxSilence        time.Duration `yaml:"max_silence"`
	HeartbeatMode     string        `yaml:"heartbeat_mode"` // "ping" or "passive"
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
	HeartbeatFailures int           `yaml:"heartbeat_failure_threshold"`
	BufferSize        int           `yaml:"buffer_size"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver   string       `yaml:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig `yaml:"sqlite"`
	Postgres DBConfig     `yaml:"postgres"`
}

// SQLiteConfig holds the embedded store location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WritersConfig holds persistence writer settings.
type WritersConfig struct {
	BufferSize         int   `yaml:"buffer_size"`
	PriceDisplayPlaces int32 `yaml:"price_display_places"`
}

// MonitoringConfig holds metrics reporting, alerting and the health server.
type MonitoringConfig struct {
	Disabled               bool          `yaml:"disabled"`
	ReportInterval         time.Duration `yaml:"report_interval"`
	AlertCooldown          time.Duration `yaml:"alert_cooldown"`
	AlertWebhookURL        string        `yaml:"alert_webhook_url"`
	AlertTimeout           time.Duration `yaml:"alert_timeout"`
	AlertRetries           int           `yaml:"alert_retries"` // negative disables retries
	AlertRetryBackoff      time.Duration `yaml:"alert_retry_backoff"`
	FailedConnectionsAlert uint64        `yaml:"failed_connections_alert"`
	SilenceAlert           time.Duration `yaml:"silence_alert"`
	HeartbeatFailureAlert  uint64        `yaml:"heartbeat_failure_alert"`
	Port                   int           `yaml:"port"`
	Path                   string        `yaml:"path"`
}

// LoggingConfig holds log level, format and file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "json" or "text"
	File       string `yaml:"file"`   // empty disables file output
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RetryBudget returns the configured reconnect budget. Zero or negative
// means retry forever.
func (c ConnectionConfig) RetryBudget() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}
