package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *RecorderConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Exchange.WSURL == "" {
		return errors.New("exchange.ws_url is required")
	}
	u, err := url.Parse(c.Exchange.WSURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("exchange.ws_url must be a ws:// or wss:// URL, got %q", c.Exchange.WSURL)
	}
	if len(c.Exchange.Symbols) == 0 {
		return errors.New("exchange.symbols must not be empty")
	}
	for _, ch := range c.Exchange.Channels {
		if ch != ChannelOrderBook && ch != ChannelTrades {
			return fmt.Errorf("exchange.channels: unsupported channel %q", ch)
		}
	}

	known := make(map[string]bool, len(c.Assets))
	for i, a := range c.Assets {
		if err := a.validate(fmt.Sprintf("assets[%d]", i)); err != nil {
			return err
		}
		known[strings.ToUpper(a.Symbol)] = true
	}
	for _, s := range c.Exchange.Symbols {
		if !known[strings.ToUpper(s)] {
			return fmt.Errorf("exchange.symbols: %q has no entry in assets", s)
		}
	}

	if err := c.Connection.validate(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLite.Path == "" {
			return errors.New("database.sqlite.path is required")
		}
	case DriverPostgres:
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}
	if c.Writers.PriceDisplayPlaces < 0 {
		return errors.New("writers.price_display_places must be >= 0")
	}

	if c.Monitoring.Port < 1 || c.Monitoring.Port > 65535 {
		return fmt.Errorf("monitoring.port must be between 1 and 65535, got %d", c.Monitoring.Port)
	}
	if c.Monitoring.AlertRetryBackoff <= 0 {
		return errors.New("monitoring.alert_retry_backoff must be positive")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

func (a *AssetConfig) validate(prefix string) error {
	if a.Symbol == "" {
		return fmt.Errorf("%s.symbol is required", prefix)
	}
	if a.PriceDecimals < 0 || a.PriceDecimals > 18 {
		return fmt.Errorf("%s.price_decimals must be between 0 and 18", prefix)
	}
	if a.SizeDecimals < 0 || a.SizeDecimals > 18 {
		return fmt.Errorf("%s.size_decimals must be between 0 and 18", prefix)
	}
	return nil
}

func (c *ConnectionConfig) validate() error {
	if c.ReconnectDelay <= 0 {
		return errors.New("connection.reconnect_delay must be > 0")
	}
	if c.ReconnectMaxDelay < c.ReconnectDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%v) cannot be below reconnect_delay (%v)", c.ReconnectMaxDelay, c.ReconnectDelay)
	}
	if c.ReconnectFactor < 1 {
		return errors.New("connection.reconnect_factor must be >= 1")
	}
	if c.HealthInterval <= 0 {
		return errors.New("connection.health_check_interval must be > 0")
	}
	if c.MaxSilence <= 0 {
		return errors.New("connection.max_silence must be > 0")
	}
	if c.HeartbeatMode != HeartbeatPing && c.HeartbeatMode != HeartbeatPassive {
		return fmt.Errorf("connection.heartbeat_mode must be %q or %q, got %q", HeartbeatPing, HeartbeatPassive, c.HeartbeatMode)
	}
	if c.HeartbeatTimeout >= c.HeartbeatInterval {
		return errors.New("connection.heartbeat_timeout must be shorter than heartbeat_interval")
	}
	if c.HeartbeatFailures < 1 {
		return errors.New("connection.heartbeat_failure_threshold must be >= 1")
	}
	if c.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
