// Package config holds the connection, pool and reconnect settings for a
// redistools client. Configuration is read once, validated, and then passed
// by value to the components that need it.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/go-i2p/redistools/lib/errors"
)

// Default configuration values
const (
	DefaultHost               = "localhost"
	DefaultPort               = 6379
	DefaultProtocol           = 2
	DefaultDialTimeoutMillis  = 5000
	DefaultReadTimeoutMillis  = 3000
	DefaultWriteTimeoutMillis = 3000

	DefaultMaxActive                 = 32
	DefaultMinIdle                   = 24
	DefaultMaxIdle                   = 32
	DefaultBorrowTimeoutMillis       = 30000
	DefaultVerifyTimeoutMillis       = 2000
	DefaultMaxIdleTimeMillis         = 600000
	DefaultMaintenanceIntervalMillis = 60000

	DefaultReconnectAttempts   = 48
	DefaultReconnectWaitMillis = 5000
	DefaultReconnectMultiplier = 1.0

	DefaultLogLevel = "info"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvHost                    = "REDIS_HOST"
	EnvPort                    = "REDIS_PORT"
	EnvPassword                = "REDIS_PASSWORD"
	EnvDB                      = "REDIS_DB"
	EnvMaxActive               = "REDIS_POOL_MAX_ACTIVE"
	EnvMinIdle                 = "REDIS_POOL_MIN_IDLE"
	EnvMaxIdle                 = "REDIS_POOL_MAX_IDLE"
	EnvVerifyOnBorrow          = "REDIS_POOL_VERIFY_ON_BORROW"
	EnvFailuresBeforeReconnect = "REDIS_FAILURES_BEFORE_RECONNECT"
	EnvReconnectAttempts       = "REDIS_RECONNECT_ATTEMPTS"
	EnvReconnectWaitMillis     = "REDIS_RECONNECT_WAIT_MILLIS"
	EnvLogLevel                = "LOG_LEVEL"
	EnvMetricsAddr             = "METRICS_ADDR"
)

// Config holds all configuration for a redistools client.
type Config struct {
	Redis     RedisConfig     `toml:"redis" yaml:"redis"`
	Pool      PoolConfig      `toml:"pool" yaml:"pool"`
	Reconnect ReconnectConfig `toml:"reconnect" yaml:"reconnect"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
}

// RedisConfig describes the remote endpoint and per-connection settings.
type RedisConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	Password string `toml:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `toml:"db" yaml:"db"`
	// Protocol is the RESP version spoken on each connection (2 or 3)
	Protocol           int `toml:"protocol" yaml:"protocol"`
	DialTimeoutMillis  int `toml:"dial_timeout_millis" yaml:"dial_timeout_millis"`
	ReadTimeoutMillis  int `toml:"read_timeout_millis" yaml:"read_timeout_millis"`
	WriteTimeoutMillis int `toml:"write_timeout_millis" yaml:"write_timeout_millis"`
}

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	// MaxActive is the upper bound on live connections
	MaxActive int `toml:"max_active" yaml:"max_active"`
	// MinIdle is the number of idle connections maintenance tries to keep
	MinIdle int `toml:"min_idle" yaml:"min_idle"`
	// MaxIdle is the most idle connections kept; extras are closed on release
	MaxIdle int `toml:"max_idle" yaml:"max_idle"`
	// VerifyOnBorrow makes the pool PING every connection before handing it out
	VerifyOnBorrow            bool `toml:"verify_on_borrow" yaml:"verify_on_borrow"`
	BorrowTimeoutMillis       int  `toml:"borrow_timeout_millis" yaml:"borrow_timeout_millis"`
	VerifyTimeoutMillis       int  `toml:"verify_timeout_millis" yaml:"verify_timeout_millis"`
	MaxIdleTimeMillis         int  `toml:"max_idle_time_millis" yaml:"max_idle_time_millis"`
	MaintenanceIntervalMillis int  `toml:"maintenance_interval_millis" yaml:"maintenance_interval_millis"`
}

// ReconnectConfig is the retry budget of the reconnect engine.
type ReconnectConfig struct {
	// FailuresBeforeReconnect is the number of consecutive unhealthy borrows
	// tolerated before the pool is rebuilt. Zero means MaxActive/2 + 1.
	FailuresBeforeReconnect int `toml:"failures_before_reconnect" yaml:"failures_before_reconnect"`
	// Attempts is the number of rebuild rounds before giving up
	Attempts int `toml:"attempts" yaml:"attempts"`
	// WaitMillis is the pause between rounds
	WaitMillis int `toml:"wait_millis" yaml:"wait_millis"`
	// Multiplier grows the pause after each round; 1.0 keeps it fixed
	Multiplier float64 `toml:"multiplier" yaml:"multiplier"`
	// MaxWaitMillis caps the grown pause; zero means no cap
	MaxWaitMillis int `toml:"max_wait_millis" yaml:"max_wait_millis"`
	// JitterFraction randomizes each pause by ±fraction
	JitterFraction float64 `toml:"jitter_fraction" yaml:"jitter_fraction"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for the metrics server; empty disables it
	Listen string `toml:"listen,omitempty" yaml:"listen,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Host:               DefaultHost,
			Port:               DefaultPort,
			Protocol:           DefaultProtocol,
			DialTimeoutMillis:  DefaultDialTimeoutMillis,
			ReadTimeoutMillis:  DefaultReadTimeoutMillis,
			WriteTimeoutMillis: DefaultWriteTimeoutMillis,
		},
		Pool: PoolConfig{
			MaxActive:                 DefaultMaxActive,
			MinIdle:                   DefaultMinIdle,
			MaxIdle:                   DefaultMaxIdle,
			VerifyOnBorrow:            true,
			BorrowTimeoutMillis:       DefaultBorrowTimeoutMillis,
			VerifyTimeoutMillis:       DefaultVerifyTimeoutMillis,
			MaxIdleTimeMillis:         DefaultMaxIdleTimeMillis,
			MaintenanceIntervalMillis: DefaultMaintenanceIntervalMillis,
		},
		Reconnect: ReconnectConfig{
			Attempts:   DefaultReconnectAttempts,
			WaitMillis: DefaultReconnectWaitMillis,
			Multiplier: DefaultReconnectMultiplier,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// LoadConfig reads configuration from a TOML or YAML file, chosen by
// extension, then applies environment overrides.
// If the file doesn't exist, the defaults (plus environment) are used.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		log.WithField("path", path).Debug("config file not found, using defaults")
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// SaveConfig writes the configuration to a TOML or YAML file, chosen by
// extension. It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = toml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from the process environment.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvHost); ok {
		c.Redis.Host = v
	}
	if v, ok := os.LookupEnv(EnvPassword); ok {
		c.Redis.Password = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		c.Metrics.Listen = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{EnvPort, &c.Redis.Port},
		{EnvDB, &c.Redis.DB},
		{EnvMaxActive, &c.Pool.MaxActive},
		{EnvMinIdle, &c.Pool.MinIdle},
		{EnvMaxIdle, &c.Pool.MaxIdle},
		{EnvFailuresBeforeReconnect, &c.Reconnect.FailuresBeforeReconnect},
		{EnvReconnectAttempts, &c.Reconnect.Attempts},
		{EnvReconnectWaitMillis, &c.Reconnect.WaitMillis},
	}
	for _, f := range ints {
		v, ok := os.LookupEnv(f.env)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(errors.CodeConfiguration, f.env+" must be an integer",
				errors.Join(errors.ErrConfiguration, err))
		}
		*f.dst = n
	}

	if v, ok := os.LookupEnv(EnvVerifyOnBorrow); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(errors.CodeConfiguration, EnvVerifyOnBorrow+" must be a boolean",
				errors.Join(errors.ErrConfiguration, err))
		}
		c.Pool.VerifyOnBorrow = b
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return errors.Wrap(errors.CodeConfiguration, msg, errors.ErrConfiguration)
	}

	if c.Redis.Host == "" {
		return invalid("redis.host is required")
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return invalid("redis.port must be between 1 and 65535")
	}
	if c.Redis.DB < 0 {
		return invalid("redis.db must not be negative")
	}
	if c.Redis.Protocol != 2 && c.Redis.Protocol != 3 {
		return invalid("redis.protocol must be 2 or 3")
	}
	if c.Pool.MaxActive < 1 {
		return invalid("pool.max_active must be at least 1")
	}
	if c.Pool.MinIdle < 0 || c.Pool.MaxIdle < 0 {
		return invalid("pool idle bounds must not be negative")
	}
	if c.Pool.MinIdle > c.Pool.MaxIdle {
		return invalid("pool.min_idle must not exceed pool.max_idle")
	}
	if c.Pool.MaxIdle > c.Pool.MaxActive {
		return invalid("pool.max_idle must not exceed pool.max_active")
	}
	if c.Reconnect.FailuresBeforeReconnect < 0 {
		return invalid("reconnect.failures_before_reconnect must not be negative")
	}
	if c.Reconnect.Attempts < 1 {
		return invalid("reconnect.attempts must be at least 1")
	}
	if c.Reconnect.WaitMillis < 0 || c.Reconnect.MaxWaitMillis < 0 {
		return invalid("reconnect waits must not be negative")
	}
	if c.Reconnect.Multiplier != 0 && c.Reconnect.Multiplier < 1 {
		return invalid("reconnect.multiplier must be at least 1")
	}
	if c.Reconnect.JitterFraction < 0 || c.Reconnect.JitterFraction >= 1 {
		return invalid("reconnect.jitter_fraction must be in [0, 1)")
	}
	return nil
}

// Addr returns the host:port of the store.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// DialTimeout returns the connect timeout.
func (r RedisConfig) DialTimeout() time.Duration {
	return millis(r.DialTimeoutMillis)
}

// ReadTimeout returns the per-command read timeout.
func (r RedisConfig) ReadTimeout() time.Duration {
	return millis(r.ReadTimeoutMillis)
}

// WriteTimeout returns the per-command write timeout.
func (r RedisConfig) WriteTimeout() time.Duration {
	return millis(r.WriteTimeoutMillis)
}

// BorrowTimeout returns how long a borrow may wait for capacity.
func (p PoolConfig) BorrowTimeout() time.Duration {
	return millis(p.BorrowTimeoutMillis)
}

// VerifyTimeout returns the deadline for the borrow-time PING.
func (p PoolConfig) VerifyTimeout() time.Duration {
	return millis(p.VerifyTimeoutMillis)
}

// MaxIdleTime returns how long a connection may sit idle before eviction.
func (p PoolConfig) MaxIdleTime() time.Duration {
	return millis(p.MaxIdleTimeMillis)
}

// MaintenanceInterval returns the eviction/replenish period.
func (p PoolConfig) MaintenanceInterval() time.Duration {
	return millis(p.MaintenanceIntervalMillis)
}

// Threshold returns the number of consecutive failed borrows tolerated
// before escalating to a rebuild, given the pool's capacity.
func (r ReconnectConfig) Threshold(maxActive int) int {
	if r.FailuresBeforeReconnect > 0 {
		return r.FailuresBeforeReconnect
	}
	return maxActive/2 + 1
}

// Wait returns the base pause between rebuild rounds.
func (r ReconnectConfig) Wait() time.Duration {
	return millis(r.WaitMillis)
}

// MaxWait returns the cap on the grown pause, zero meaning uncapped.
func (r ReconnectConfig) MaxWait() time.Duration {
	return millis(r.MaxWaitMillis)
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
