// Package store connects the resilient pool engine to Redis. Each pooled
// Conn is a single-connection go-redis client; the Client facade runs units
// of work against healthy Conns.
package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/go-i2p/redistools/lib/config"
)

var connIDs atomic.Uint64

// Conn is one pooled connection to the store. It embeds a go-redis client
// limited to a single socket, so every command issued through it uses the
// same server connection for the lifetime of a lease.
type Conn struct {
	*redis.Client

	id     uint64
	broken atomic.Bool
}

// ID identifies the connection in logs.
func (c *Conn) ID() uint64 {
	return c.id
}

// IsConnected reports whether the connection is usable. It turns false
// after a transport-level failure or Close.
func (c *Conn) IsConnected() bool {
	return !c.broken.Load()
}

// MarkBroken flags the connection so it is discarded instead of reused.
func (c *Conn) MarkBroken() {
	if c.broken.CompareAndSwap(false, true) {
		BrokenConnectionsTotal.Inc()
		log.WithField("conn", c.id).Debug("connection marked broken")
	}
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	c.broken.Store(true)
	return c.Client.Close()
}

// Dial opens a connection and verifies it with PING.
func Dial(ctx context.Context, cfg config.RedisConfig) (*Conn, error) {
	c := &Conn{id: connIDs.Add(1)}
	c.Client = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		Protocol:     cfg.Protocol,
		DialTimeout:  cfg.DialTimeout(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		// One socket per Conn; pooling and retries belong to the engine.
		PoolSize:              1,
		MaxIdleConns:          1,
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	c.AddHook(healthHook{conn: c})

	if err := c.Ping(ctx).Err(); err != nil {
		c.Client.Close()
		return nil, fmt.Errorf("dialing %s: %w", cfg.Addr(), err)
	}

	DialsTotal.Inc()
	log.WithField("conn", c.id).WithField("addr", cfg.Addr()).Debug("connection opened")
	return c, nil
}

// healthHook marks its Conn broken when a command fails below the protocol
// level. Server replies such as WRONGTYPE or a missing key leave it healthy.
type healthHook struct {
	conn *Conn
}

func (h healthHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		nc, err := next(ctx, network, addr)
		if err != nil {
			h.conn.MarkBroken()
		}
		return nc, err
	}
}

func (h healthHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.observe(err)
		return err
	}
}

func (h healthHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		h.observe(err)
		return err
	}
}

func (h healthHook) observe(err error) {
	if IsTransportError(err) {
		h.conn.MarkBroken()
	}
}

// IsTransportError reports whether err means the connection itself failed,
// as opposed to redis.Nil or an error reply from the server.
func IsTransportError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	var reply redis.Error
	return !errors.As(err, &reply)
}
