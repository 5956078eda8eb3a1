package store

import (
	"context"

	"github.com/go-i2p/redistools/lib/config"
	"github.com/go-i2p/redistools/lib/pool"
	"github.com/go-i2p/redistools/lib/resilience"
)

// Client runs work against the store through a resilient engine. It is safe
// for concurrent use; create one per store and share it.
type Client struct {
	cfg    config.Config
	engine *resilience.Engine
}

// New creates a Client. No connection is opened until first use.
func New(cfg config.Config, opts ...resilience.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	useRedisLogger()

	log.WithField("addr", cfg.Redis.Addr()).
		WithField("maxActive", cfg.Pool.MaxActive).
		Debug("store client created")

	return &Client{
		cfg:    cfg,
		engine: resilience.New(NewPoolFactory(cfg), resilience.ConfigFrom(cfg), opts...),
	}, nil
}

// Do runs fn with a healthy connection and releases it afterwards.
// See resilience.Engine.Run for the error contract.
func (c *Client) Do(ctx context.Context, fn func(ctx context.Context, conn *Conn) error) error {
	return c.engine.Run(ctx, func(ctx context.Context, pc pool.Connection) error {
		return fn(ctx, pc.(*Conn))
	})
}

// Call is Do for work that produces a value.
func Call[T any](ctx context.Context, c *Client, fn func(ctx context.Context, conn *Conn) (T, error)) (T, error) {
	return resilience.Call(ctx, c.engine, func(ctx context.Context, pc pool.Connection) (T, error) {
		return fn(ctx, pc.(*Conn))
	})
}

// Lease is a borrowed store connection.
type Lease struct {
	*resilience.Lease
}

// Conn returns the leased connection.
func (l *Lease) Conn() *Conn {
	return l.Lease.Conn().(*Conn)
}

// Acquire borrows a healthy connection. The caller must Release it.
func (c *Client) Acquire(ctx context.Context) (*Lease, error) {
	l, err := c.engine.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Lease{Lease: l}, nil
}

// Release returns a lease. It is idempotent.
func (c *Client) Release(l *Lease) {
	if l == nil {
		return
	}
	c.engine.Release(l.Lease)
}

// Stats returns the engine's reconnect statistics.
func (c *Client) Stats() resilience.Stats {
	return c.engine.Stats()
}

// PoolStats returns statistics of the live pool, if there is one.
func (c *Client) PoolStats() (pool.Stats, bool) {
	p, _ := c.engine.Manager().Current()
	sp, ok := p.(*pool.Pool)
	if !ok {
		return pool.Stats{}, false
	}
	stats := sp.Stats()
	pool.UpdateMetrics(stats)
	return stats, true
}

// Config returns the configuration the client was built with.
func (c *Client) Config() config.Config {
	return c.cfg
}

// Close closes the engine and its pool.
func (c *Client) Close() error {
	return c.engine.Close()
}
