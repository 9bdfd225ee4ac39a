package config

import (
	"fmt"
	"time"
)

// Store drivers understood by the application.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Duplicate login policies.
const (
	DuplicateLoginReject  = "reject"
	DuplicateLoginReplace = "replace"
)

// Config holds server configuration values.
type Config struct {
	TCPAddr           string        `mapstructure:"tcp_addr" yaml:"tcp_addr"`
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// SessionConfig tunes per-connection behaviour.
type SessionConfig struct {
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MaxLineBytes       int           `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	OutboundBuffer     int           `mapstructure:"outbound_buffer" yaml:"outbound_buffer"`
	HistoryLimit       int           `mapstructure:"history_limit" yaml:"history_limit"`
	DuplicateLogin     string        `mapstructure:"duplicate_login" yaml:"duplicate_login"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		TCPAddr:           ":12345",
		HTTPAddr:          ":8080",
		LogLevel:          "info",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		JWTSecret:         "change-me",
		JWTIssuer:         "linechat",
		JWTAudience:       "linechat-admin",
		Store: StoreConfig{
			Driver:     StoreDriverSQLite,
			SQLitePath: "linechat.db",
		},
		Session: SessionConfig{
			IdleTimeout:    10 * time.Minute,
			MaxLineBytes:   64 * 1024,
			OutboundBuffer: 64,
			DuplicateLogin: DuplicateLoginReject,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.TCPAddr != "" {
		c.TCPAddr = other.TCPAddr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
	if other.Store.PostgresDSN != "" {
		c.Store.PostgresDSN = other.Store.PostgresDSN
	}
	if other.Session.DuplicateLogin != "" {
		c.Session.DuplicateLogin = other.Session.DuplicateLogin
	}
	if other.Session.HistoryLimit != 0 {
		c.Session.HistoryLimit = other.Session.HistoryLimit
	}
}

// Validate reports configuration values the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for driver %q", c.Store.Driver)
		}
	case StoreDriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for driver %q", c.Store.Driver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Session.DuplicateLogin {
	case DuplicateLoginReject, DuplicateLoginReplace:
	default:
		return fmt.Errorf("unknown session.duplicate_login policy %q", c.Session.DuplicateLogin)
	}

	if c.Session.OutboundBuffer <= 0 {
		return fmt.Errorf("session.outbound_buffer must be positive")
	}
	if c.Session.MaxLineBytes <= 0 {
		return fmt.Errorf("session.max_line_bytes must be positive")
	}
	if c.TCPAddr == "" {
		return fmt.Errorf("tcp_addr is required")
	}
	return nil
}
