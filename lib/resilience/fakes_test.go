package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/go-i2p/redistools/lib/errors"
	"github.com/go-i2p/redistools/lib/pool"
)

// fakeConn is a scripted connection.
type fakeConn struct {
	id     int64
	alive  bool
	closed atomic.Bool
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConn) IsConnected() bool {
	return c.alive && !c.closed.Load()
}

// poolScript describes the connections a fakePool hands out when it has no
// idle connection: script[i] is the liveness of the i-th fresh connection,
// and rest applies once the script runs out.
type poolScript struct {
	script    []bool
	rest      bool
	borrowErr error
}

func dead(n int) []bool {
	return make([]bool, n)
}

// fakePool reuses released connections (LIFO) and otherwise creates
// connections according to its script.
type fakePool struct {
	ids *atomic.Int64
	cfg poolScript

	mu       sync.Mutex
	next     int
	idle     []*fakeConn
	closed   bool
	borrows  int
	releases int
	discards int
}

func (p *fakePool) Acquire(ctx context.Context) (pool.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, apperrors.ErrPoolClosed
	}
	p.borrows++
	if p.cfg.borrowErr != nil {
		return nil, p.cfg.borrowErr
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		return c, nil
	}
	alive := p.cfg.rest
	if p.next < len(p.cfg.script) {
		alive = p.cfg.script[p.next]
	}
	p.next++
	return &fakeConn{id: p.ids.Add(1), alive: alive}, nil
}

func (p *fakePool) Release(conn pool.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
	if p.closed {
		conn.Close()
		return
	}
	p.idle = append(p.idle, conn.(*fakeConn))
}

func (p *fakePool) Discard(conn pool.Connection) {
	p.mu.Lock()
	p.discards++
	p.mu.Unlock()
	conn.Close()
}

func (p *fakePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return apperrors.ErrPoolClosed
	}
	p.closed = true
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
	return nil
}

func (p *fakePool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePool) counts() (borrows, releases, discards int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.borrows, p.releases, p.discards
}

var errUnresolvable = errors.New("lookup redis.invalid: no such host")

// fakeFactory creates pools from a list of scripts, one per creation; the
// last script repeats. A script index listed in fail makes that creation fail.
type fakeFactory struct {
	scripts []poolScript
	fail    map[int]bool
	delay   time.Duration

	ids     atomic.Int64
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32

	mu    sync.Mutex
	pools []*fakePool
}

func (f *fakeFactory) create(ctx context.Context) (Pool, error) {
	n := int(f.calls.Add(1)) - 1

	cur := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.fail[n] {
		return nil, errUnresolvable
	}
	script := f.scripts[len(f.scripts)-1]
	if n < len(f.scripts) {
		script = f.scripts[n]
	}
	p := &fakePool{ids: &f.ids, cfg: script}
	f.mu.Lock()
	f.pools = append(f.pools, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeFactory) created() []*fakePool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePool(nil), f.pools...)
}

// waitRecorder records requested pauses without sleeping.
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waitRecorder) recorded() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.waits...)
}

func scenarioConfig() Config {
	return Config{
		FailuresBeforeReconnect: 17,
		ReconnectAttempts:       3,
		ReconnectWait:           5000 * time.Millisecond,
	}
}

// realPools builds pool.Pool instances of live fakeConns, so tests see the
// pool's own blocking and borrow timeout.
type realPools struct {
	maxActive int
	timeout   time.Duration

	ids   atomic.Int64
	calls atomic.Int32

	mu    sync.Mutex
	pools []*pool.Pool
}

func (r *realPools) create(ctx context.Context) (Pool, error) {
	r.calls.Add(1)
	p := pool.New(func(ctx context.Context) (pool.Connection, error) {
		return &fakeConn{id: r.ids.Add(1), alive: true}, nil
	}, pool.Config{MaxActive: r.maxActive, BorrowTimeout: r.timeout})
	r.mu.Lock()
	r.pools = append(r.pools, p)
	r.mu.Unlock()
	return p, nil
}

func (r *realPools) openConns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.pools {
		if !p.Closed() {
			n += p.Stats().NumOpen
		}
	}
	return n
}
