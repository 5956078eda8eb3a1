package resilience

import (
	"time"

	"github.com/go-i2p/redistools/lib/config"
)

// Config is the retry budget of an Engine.
type Config struct {
	// FailuresBeforeReconnect is how many consecutive unhealthy borrows
	// are tolerated before the pool is rebuilt.
	FailuresBeforeReconnect int
	// ReconnectAttempts is the number of rebuild rounds before giving up.
	ReconnectAttempts int
	// ReconnectWait is the pause between rounds.
	ReconnectWait time.Duration
	// Multiplier grows the pause after each round. Values below 1 mean fixed.
	Multiplier float64
	// MaxWait caps the grown pause. Zero means no cap.
	MaxWait time.Duration
	// JitterFraction randomizes each pause by ±fraction.
	JitterFraction float64
}

// DefaultConfig returns the retry budget for the default pool size.
func DefaultConfig() Config {
	return ConfigFrom(*config.DefaultConfig())
}

// ConfigFrom derives the retry budget from a loaded configuration.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		FailuresBeforeReconnect: cfg.Reconnect.Threshold(cfg.Pool.MaxActive),
		ReconnectAttempts:       cfg.Reconnect.Attempts,
		ReconnectWait:           cfg.Reconnect.Wait(),
		Multiplier:              cfg.Reconnect.Multiplier,
		MaxWait:                 cfg.Reconnect.MaxWait(),
		JitterFraction:          cfg.Reconnect.JitterFraction,
	}
}

func (c Config) withDefaults() Config {
	if c.FailuresBeforeReconnect <= 0 {
		c.FailuresBeforeReconnect = config.DefaultMaxActive/2 + 1
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = config.DefaultReconnectAttempts
	}
	if c.ReconnectWait < 0 {
		c.ReconnectWait = 0
	}
	return c
}
