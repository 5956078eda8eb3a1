package resilience

import (
	"context"
	"sync"

	"github.com/go-i2p/redistools/lib/pool"
)

// Pool is the connection pool handle managed by a PoolManager.
// *pool.Pool satisfies it.
type Pool interface {
	Acquire(ctx context.Context) (pool.Connection, error)
	Release(conn pool.Connection)
	Discard(conn pool.Connection)
	Close() error
}

// PoolFactory creates a new pool. It should fail only when the pool cannot
// be constructed at all, e.g. the endpoint does not resolve; unreachable
// servers surface later as borrow errors.
type PoolFactory func(ctx context.Context) (Pool, error)

// PoolManager owns the lifecycle of the single live pool handle.
// Destroy and create of a rebuild happen under one write lock, so readers
// see either the old pool or the new one, never a half-built one.
type PoolManager struct {
	factory PoolFactory

	mu         sync.RWMutex
	pool       Pool
	generation uint64
	closed     bool
}

// NewPoolManager creates a manager. No pool is created until Ensure.
func NewPoolManager(factory PoolFactory) *PoolManager {
	return &PoolManager{factory: factory}
}

// Ensure returns the live pool, creating it if none exists.
// It is safe to call concurrently; only one caller creates.
func (m *PoolManager) Ensure(ctx context.Context) (Pool, uint64, error) {
	m.mu.RLock()
	p, gen, closed := m.pool, m.generation, m.closed
	m.mu.RUnlock()
	if closed {
		return nil, gen, ErrEngineClosed
	}
	if p != nil {
		return p, gen, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, m.generation, ErrEngineClosed
	}
	if m.pool != nil {
		return m.pool, m.generation, nil
	}
	if err := m.createLocked(ctx); err != nil {
		return nil, m.generation, err
	}
	return m.pool, m.generation, nil
}

// Current returns the live pool, which may be nil, and its generation.
func (m *PoolManager) Current() (Pool, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool, m.generation
}

// Generation returns the number of pools successfully created so far.
func (m *PoolManager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Destroy closes the live pool and clears the handle. A nil handle is a no-op.
func (m *PoolManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyLocked()
}

// Rebuild destroys the live pool and creates a new one. On failure the
// handle is left nil and the generation is unchanged.
func (m *PoolManager) Rebuild(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.generation, ErrEngineClosed
	}
	m.destroyLocked()
	err := m.createLocked(ctx)
	return m.generation, err
}

// Close destroys the live pool and refuses further creation.
func (m *PoolManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.destroyLocked()
}

func (m *PoolManager) createLocked(ctx context.Context) error {
	p, err := m.factory(ctx)
	if err != nil {
		m.pool = nil
		log.WithError(err).Warn("pool creation failed")
		return err
	}
	m.pool = p
	m.generation++
	PoolGeneration.Set(float64(m.generation))
	log.WithField("generation", m.generation).Debug("pool created")
	return nil
}

func (m *PoolManager) destroyLocked() {
	if m.pool == nil {
		return
	}
	if err := m.pool.Close(); err != nil {
		log.WithField("generation", m.generation).WithError(err).Debug("closing pool")
	}
	m.pool = nil
	log.WithField("generation", m.generation).Debug("pool destroyed")
}
