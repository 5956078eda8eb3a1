package resilience

import (
	"sync/atomic"

	"github.com/go-i2p/redistools/lib/pool"
)

// Lease is one caller's hold on a connection. It remembers the pool and
// generation the connection came from, so releasing after a rebuild goes
// back to the (closed) originating pool instead of the new one.
type Lease struct {
	conn       pool.Connection
	pool       Pool
	generation uint64
	done       atomic.Bool
}

func newLease(conn pool.Connection, p Pool, gen uint64) *Lease {
	return &Lease{conn: conn, pool: p, generation: gen}
}

// Conn returns the leased connection.
func (l *Lease) Conn() pool.Connection {
	return l.conn
}

// Generation returns the pool generation the connection was borrowed from.
func (l *Lease) Generation() uint64 {
	return l.generation
}

// Release hands the connection back. Dead connections are discarded.
// Calling Release more than once, or on a nil lease, is a no-op.
func (l *Lease) Release() {
	if l == nil || !l.done.CompareAndSwap(false, true) {
		return
	}
	if !l.conn.IsConnected() {
		l.pool.Discard(l.conn)
		return
	}
	l.pool.Release(l.conn)
}

// Discard closes the connection without returning it for reuse.
func (l *Lease) Discard() {
	if l == nil || !l.done.CompareAndSwap(false, true) {
		return
	}
	l.pool.Discard(l.conn)
}

// Released reports whether the lease has been released or discarded.
func (l *Lease) Released() bool {
	return l.done.Load()
}
