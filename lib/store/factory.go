package store

import (
	"context"
	"net"

	"github.com/go-i2p/redistools/lib/config"
	apperrors "github.com/go-i2p/redistools/lib/errors"
	"github.com/go-i2p/redistools/lib/pool"
	"github.com/go-i2p/redistools/lib/resilience"
)

// NewPoolFactory returns the factory the engine uses to build and rebuild
// pools. Creating a pool resolves the host but does not connect; the pool
// dials lazily on borrow.
func NewPoolFactory(cfg config.Config) resilience.PoolFactory {
	pcfg := PoolConfig(cfg.Pool)
	dial := func(ctx context.Context) (pool.Connection, error) {
		c, err := Dial(ctx, cfg.Redis)
		if err != nil {
			DialFailuresTotal.Inc()
			log.WithField("addr", cfg.Redis.Addr()).WithError(err).Debug("dial failed")
			return nil, err
		}
		return c, nil
	}

	return func(ctx context.Context) (resilience.Pool, error) {
		if err := resolve(ctx, cfg.Redis.Host); err != nil {
			log.WithField("host", cfg.Redis.Host).WithError(err).Warn("store host did not resolve")
			return nil, apperrors.Join(ErrPoolUnresolvable, err)
		}
		PoolsCreatedTotal.Inc()
		return pool.New(dial, pcfg), nil
	}
}

// PoolConfig maps the pool section of the configuration onto pool.Config,
// using PING as the verifier.
func PoolConfig(p config.PoolConfig) pool.Config {
	return pool.Config{
		MaxActive:           p.MaxActive,
		MinIdle:             p.MinIdle,
		MaxIdle:             p.MaxIdle,
		MaxIdleTime:         p.MaxIdleTime(),
		BorrowTimeout:       p.BorrowTimeout(),
		MaintenanceInterval: p.MaintenanceInterval(),
		VerifyOnBorrow:      p.VerifyOnBorrow,
		Verify:              Ping,
		VerifyTimeout:       p.VerifyTimeout(),
	}
}

// Ping verifies a pooled connection.
func Ping(ctx context.Context, conn pool.Connection) error {
	c, ok := conn.(*Conn)
	if !ok {
		return apperrors.ErrInvalidInput
	}
	return c.Ping(ctx).Err()
}

func resolve(ctx context.Context, host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	_, err := net.DefaultResolver.LookupHost(ctx, host)
	return err
}
