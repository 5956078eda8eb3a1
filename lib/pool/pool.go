package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Connection represents a poolable connection.
type Connection interface {
	// Close closes the connection.
	Close() error
	// IsConnected reports whether the connection is still usable.
	IsConnected() bool
}

// Factory creates new connections.
type Factory func(ctx context.Context) (Connection, error)

// Verifier checks a connection against the remote end, e.g. with a PING.
type Verifier func(ctx context.Context, conn Connection) error

// Config configures the connection pool.
type Config struct {
	// MaxActive is the maximum number of open connections.
	// Default: 8
	MaxActive int
	// MinIdle is the number of idle connections maintenance tries to keep.
	MinIdle int
	// MaxIdle is the maximum number of idle connections kept on release.
	// Default: MaxActive
	MaxIdle int
	// MaxIdleTime is how long an idle connection can stay in the pool.
	// Default: 10 minutes
	MaxIdleTime time.Duration
	// BorrowTimeout bounds Acquire when the caller's context has no deadline.
	// Default: 30 seconds
	BorrowTimeout time.Duration
	// MaintenanceInterval is how often idle connections are evicted, verified
	// and replenished. Set to 0 to disable.
	MaintenanceInterval time.Duration
	// VerifyOnBorrow verifies idle connections before handing them out.
	VerifyOnBorrow bool
	// Verify is the check used on borrow and during maintenance.
	// If nil, only IsConnected is consulted.
	Verify Verifier
	// VerifyTimeout bounds a single Verify call.
	// Default: 2 seconds
	VerifyTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxActive:           8,
		MaxIdle:             8,
		MaxIdleTime:         10 * time.Minute,
		BorrowTimeout:       30 * time.Second,
		MaintenanceInterval: time.Minute,
		VerifyTimeout:       2 * time.Second,
	}
}

// pooledConn wraps a connection with metadata.
type pooledConn struct {
	conn     Connection
	lastUsed time.Time
}

// Pool is a connection pool.
type Pool struct {
	factory   Factory
	config    Config
	mu        sync.Mutex
	cond      *sync.Cond
	idle      []*pooledConn
	numOpen   int
	closed    bool
	stopMaint chan struct{}
	maintDone chan struct{}

	// Metrics
	acquireCount   uint64
	acquireSuccess uint64
	acquireFailed  uint64
	releaseCount   uint64
	discardCount   uint64
	verifyFails    uint64
}

// New creates a new connection pool. No connections are opened until the
// first Acquire or maintenance run.
func New(factory Factory, cfg Config) *Pool {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 8
	}
	if cfg.MaxIdle <= 0 || cfg.MaxIdle > cfg.MaxActive {
		cfg.MaxIdle = cfg.MaxActive
	}
	if cfg.MinIdle > cfg.MaxIdle {
		cfg.MinIdle = cfg.MaxIdle
	}
	if cfg.MaxIdleTime <= 0 {
		cfg.MaxIdleTime = 10 * time.Minute
	}
	if cfg.BorrowTimeout <= 0 {
		cfg.BorrowTimeout = 30 * time.Second
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 2 * time.Second
	}

	p := &Pool{
		factory:   factory,
		config:    cfg,
		idle:      make([]*pooledConn, 0, cfg.MaxIdle),
		stopMaint: make(chan struct{}),
		maintDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	if cfg.MaintenanceInterval > 0 {
		go p.maintenanceLoop()
	} else {
		close(p.maintDone)
	}

	log.WithField("maxActive", cfg.MaxActive).
		WithField("minIdle", cfg.MinIdle).
		WithField("maxIdle", cfg.MaxIdle).
		WithField("verifyOnBorrow", cfg.VerifyOnBorrow).
		Debug("pool created")
	return p
}

// Acquire borrows a connection from the pool, creating one if the pool is
// below MaxActive. It blocks until a connection is available, the borrow
// timeout expires, or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (Connection, error) {
	atomic.AddUint64(&p.acquireCount, 1)
	start := time.Now()
	defer func() {
		AcquireLatency.Observe(time.Since(start).Seconds())
	}()

	// Use configured timeout if context has no deadline
	borrowCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		borrowCtx, cancel = context.WithTimeout(ctx, p.config.BorrowTimeout)
		defer cancel()
	}

	conn, err := p.acquire(borrowCtx)
	if err != nil {
		atomic.AddUint64(&p.acquireFailed, 1)
		AcquireTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	atomic.AddUint64(&p.acquireSuccess, 1)
	AcquireTotal.WithLabelValues("ok").Inc()
	return conn, nil
}

func (p *Pool) acquire(ctx context.Context) (Connection, error) {
	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			if err == context.DeadlineExceeded {
				return nil, ErrBorrowTimeout
			}
			return nil, err
		}

		if pc, ok := p.popIdleLocked(); ok {
			if !p.config.VerifyOnBorrow {
				p.mu.Unlock()
				log.Debug("acquired idle connection from pool")
				return pc.conn, nil
			}

			// Verify outside the lock; a slow PING must not stall other borrowers.
			p.mu.Unlock()
			if p.verify(ctx, pc.conn) {
				log.Debug("acquired verified idle connection from pool")
				return pc.conn, nil
			}
			atomic.AddUint64(&p.verifyFails, 1)
			VerifyFailsTotal.Inc()
			log.Debug("closing idle connection that failed verification")
			p.Discard(pc.conn)
			p.mu.Lock()
			continue
		}

		if p.numOpen < p.config.MaxActive {
			p.numOpen++
			p.mu.Unlock()

			conn, err := p.factory(ctx)
			if err != nil {
				p.mu.Lock()
				p.numOpen--
				p.cond.Signal()
				p.mu.Unlock()
				log.WithError(err).Debug("failed to create new connection")
				return nil, err
			}

			log.Debug("created new connection")
			return conn, nil
		}

		log.Debug("waiting for available connection")
		p.waitWithContext(ctx)
	}
}

// popIdleLocked takes the most recently used idle connection, closing any
// that sat idle too long (caller must hold lock).
func (p *Pool) popIdleLocked() (*pooledConn, bool) {
	now := time.Now()
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if now.Sub(pc.lastUsed) > p.config.MaxIdleTime {
			log.Debug("closing stale connection")
			p.numOpen--
			go pc.conn.Close()
			continue
		}
		return pc, true
	}
	return nil, false
}

// verify reports whether conn passed the configured check.
func (p *Pool) verify(ctx context.Context, conn Connection) bool {
	if !conn.IsConnected() {
		return false
	}
	if p.config.Verify == nil {
		return true
	}
	vctx, cancel := context.WithTimeout(ctx, p.config.VerifyTimeout)
	defer cancel()
	return p.config.Verify(vctx, conn) == nil
}

// waitWithContext waits for a condition signal or context cancellation.
func (p *Pool) waitWithContext(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()
	p.cond.Wait()
	close(done)
}

// Release returns a connection to the pool. Dead connections are discarded,
// and connections beyond MaxIdle or returned to a closed pool are closed.
func (p *Pool) Release(conn Connection) {
	if conn == nil {
		return
	}

	if !conn.IsConnected() {
		p.Discard(conn)
		return
	}

	atomic.AddUint64(&p.releaseCount, 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		log.Debug("pool closed, closing released connection")
		p.numOpen--
		go conn.Close()
		return
	}

	if len(p.idle) >= p.config.MaxIdle {
		log.Debug("idle set full, closing released connection")
		p.numOpen--
		p.cond.Signal()
		go conn.Close()
		return
	}

	p.idle = append(p.idle, &pooledConn{conn: conn, lastUsed: time.Now()})
	p.cond.Signal()
	log.Debug("connection released to pool")
}

// Discard removes a connection from the pool without returning it.
// Use this when a connection is known to be bad.
func (p *Pool) Discard(conn Connection) {
	if conn == nil {
		return
	}

	atomic.AddUint64(&p.discardCount, 1)

	p.mu.Lock()
	p.numOpen--
	p.cond.Signal()
	p.mu.Unlock()

	log.Debug("discarding bad connection")
	conn.Close()
}

// Close closes the pool and all idle connections. Borrowed connections are
// closed when they come back.
func (p *Pool) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}

	p.closed = true
	close(p.stopMaint)

	for _, pc := range p.idle {
		p.numOpen--
		go pc.conn.Close()
	}
	p.idle = nil

	p.cond.Broadcast()
	p.mu.Unlock()

	<-p.maintDone

	log.Debug("pool closed")
	return nil
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// maintenanceLoop periodically evicts, verifies and replenishes idle connections.
func (p *Pool) maintenanceLoop() {
	defer close(p.maintDone)

	ticker := time.NewTicker(p.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopMaint:
			return
		case <-ticker.C:
			p.runMaintenance()
		}
	}
}

// runMaintenance drops expired and unhealthy idle connections, then opens
// new ones until MinIdle is reached. Replenishment is best effort.
func (p *Pool) runMaintenance() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	var toClose []Connection
	candidates := make([]*pooledConn, 0, len(p.idle))
	now := time.Now()
	for _, pc := range p.idle {
		if now.Sub(pc.lastUsed) > p.config.MaxIdleTime {
			toClose = append(toClose, pc.conn)
			p.numOpen--
			continue
		}
		candidates = append(candidates, pc)
	}
	p.idle = p.idle[:0]
	p.mu.Unlock()

	// Checked connections stay counted in numOpen while out of the idle set.
	ctx, cancel := context.WithTimeout(context.Background(), p.config.BorrowTimeout)
	defer cancel()

	healthy := make([]*pooledConn, 0, len(candidates))
	for _, pc := range candidates {
		if p.verify(ctx, pc.conn) {
			healthy = append(healthy, pc)
			continue
		}
		atomic.AddUint64(&p.verifyFails, 1)
		VerifyFailsTotal.Inc()
		toClose = append(toClose, pc.conn)
	}

	p.mu.Lock()
	for _, pc := range healthy {
		if p.closed || len(p.idle) >= p.config.MaxIdle {
			toClose = append(toClose, pc.conn)
			p.numOpen--
			continue
		}
		p.idle = append(p.idle, pc)
	}
	p.numOpen -= len(candidates) - len(healthy)
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, conn := range toClose {
		go conn.Close()
	}
	if len(toClose) > 0 {
		log.WithField("closed", len(toClose)).Debug("maintenance removed connections")
	}

	added := p.replenish(ctx)
	if added > 0 {
		log.WithField("added", added).Debug("maintenance replenished idle connections")
	}
	UpdateMetrics(p.Stats())
}

// replenish opens connections until MinIdle idle connections exist or
// MaxActive is reached. It stops at the first dial error.
func (p *Pool) replenish(ctx context.Context) int {
	added := 0
	for {
		p.mu.Lock()
		if p.closed || len(p.idle) >= p.config.MinIdle || p.numOpen >= p.config.MaxActive {
			p.mu.Unlock()
			return added
		}
		p.numOpen++
		p.mu.Unlock()

		conn, err := p.factory(ctx)

		p.mu.Lock()
		if err != nil {
			p.numOpen--
			p.cond.Signal()
			p.mu.Unlock()
			log.WithError(err).Debug("replenishing idle connection failed")
			return added
		}
		if p.closed {
			p.numOpen--
			p.mu.Unlock()
			conn.Close()
			return added
		}
		p.idle = append(p.idle, &pooledConn{conn: conn, lastUsed: time.Now()})
		p.cond.Signal()
		p.mu.Unlock()
		added++
	}
}

// Stats holds pool statistics.
type Stats struct {
	// MaxActive is the maximum number of open connections.
	MaxActive int
	// NumOpen is the current number of open connections.
	NumOpen int
	// NumIdle is the current number of idle connections.
	NumIdle int
	// NumInUse is the number of connections currently borrowed.
	NumInUse int
	// AcquireCount is the total number of acquire attempts.
	AcquireCount uint64
	// AcquireSuccess is the number of successful acquires.
	AcquireSuccess uint64
	// AcquireFailed is the number of failed acquires.
	AcquireFailed uint64
	// ReleaseCount is the number of connections returned for reuse.
	ReleaseCount uint64
	// DiscardCount is the number of connections discarded as broken.
	DiscardCount uint64
	// VerifyFails is the number of connections that failed verification.
	VerifyFails uint64
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		MaxActive:      p.config.MaxActive,
		NumOpen:        p.numOpen,
		NumIdle:        len(p.idle),
		NumInUse:       p.numOpen - len(p.idle),
		AcquireCount:   atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess: atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:  atomic.LoadUint64(&p.acquireFailed),
		ReleaseCount:   atomic.LoadUint64(&p.releaseCount),
		DiscardCount:   atomic.LoadUint64(&p.discardCount),
		VerifyFails:    atomic.LoadUint64(&p.verifyFails),
	}
}
