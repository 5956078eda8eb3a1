// Package pool provides a bounded connection pool for managing reusable
// connections to a remote store.
//
// The pool supports:
//   - A hard cap on open connections (MaxActive)
//   - An idle set bounded by MaxIdle; extra connections are closed on release
//   - Borrow-time verification (VerifyOnBorrow plus a Verifier such as PING)
//   - Periodic maintenance: idle eviction, verification and MinIdle replenishment
//   - Context-aware borrowing with a default borrow timeout
//
// Creating a pool never dials. Connections are opened on demand by Acquire
// or by maintenance.
//
// # Basic Usage
//
//	cfg := pool.DefaultConfig()
//	cfg.MaxActive = 32
//	cfg.VerifyOnBorrow = true
//	cfg.Verify = func(ctx context.Context, c pool.Connection) error {
//	    return c.(*store.Conn).Ping(ctx).Err()
//	}
//
//	p := pool.New(factory, cfg)
//	defer p.Close()
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(conn)
//
// Release inspects Connection.IsConnected and discards broken connections
// instead of returning them to the idle set. Discard may be called directly
// when the caller already knows a connection is bad.
//
// # Metrics
//
// Pool metrics are registered with the metrics package:
//   - redistools_pool_connections_max
//   - redistools_pool_connections_open
//   - redistools_pool_connections_idle
//   - redistools_pool_connections_in_use
//   - redistools_pool_acquire_total{outcome}
//   - redistools_pool_verify_fails_total
//   - redistools_pool_acquire_duration_seconds
package pool
