package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	apperrors "github.com/go-i2p/redistools/lib/errors"
	"github.com/go-i2p/redistools/lib/pool"
)

// Engine hands out verified-healthy connections, rebuilding the pool when
// too many consecutive borrows fail. Construct one per store endpoint and
// share it; all methods are safe for concurrent use.
type Engine struct {
	cfg       Config
	manager   *PoolManager
	acquirer  *ResourceAcquirer
	reconnect *ReconnectStrategy

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	escalations atomic.Uint64
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	wait WaitFunc
}

// WithWaitFunc replaces the pause between rebuild rounds.
func WithWaitFunc(fn WaitFunc) Option {
	return func(o *engineOptions) {
		o.wait = fn
	}
}

// New creates an Engine. The pool is created lazily on first use.
func New(factory PoolFactory, cfg Config, opts ...Option) *Engine {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	manager := NewPoolManager(factory)
	acquirer := NewResourceAcquirer(manager, cfg.FailuresBeforeReconnect)

	log.WithField("failuresBeforeReconnect", cfg.FailuresBeforeReconnect).
		WithField("reconnectAttempts", cfg.ReconnectAttempts).
		WithField("reconnectWait", cfg.ReconnectWait).
		Debug("engine created")

	return &Engine{
		cfg:       cfg,
		manager:   manager,
		acquirer:  acquirer,
		reconnect: NewReconnectStrategy(ctx, manager, acquirer, cfg, o.wait),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Acquire returns a lease on a healthy connection. It tries the live pool
// first and escalates to at most one shared rebuild sequence per call.
//
// Errors satisfy errors.IsUnavailable; if ctx ended first they also satisfy
// errors.IsTimeout.
func (e *Engine) Acquire(ctx context.Context) (*Lease, error) {
	start := time.Now()
	defer func() {
		AcquireLatency.Observe(time.Since(start).Seconds())
	}()

	if e.closed.Load() {
		return nil, apperrors.Unavailable(ErrEngineClosed)
	}

	lease, gen, err := e.acquirer.TryAcquire(ctx)
	if err != nil {
		return nil, e.acquireError(ctx, err)
	}
	if lease != nil {
		return lease, nil
	}

	e.escalations.Add(1)
	EscalationsTotal.Inc()
	log.WithField("generation", gen).Warn("failure threshold reached, escalating to rebuild")

	if err := e.reconnect.Reconnect(ctx, gen); err != nil {
		return nil, e.acquireError(ctx, err)
	}

	lease, _, err = e.acquirer.TryAcquire(ctx)
	if err != nil {
		return nil, e.acquireError(ctx, err)
	}
	if lease == nil {
		return nil, apperrors.Unavailable(ErrNoHealthyResource)
	}
	return lease, nil
}

func (e *Engine) acquireError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.Canceled(ctxErr)
	}
	return apperrors.Unavailable(err)
}

// Release hands a lease back. It is idempotent and safe for leases whose
// pool has since been replaced.
func (e *Engine) Release(lease *Lease) {
	lease.Release()
}

// Run acquires a connection, runs work with it and releases it on every
// exit path, including a panic in work.
//
// A nil error means work succeeded. Otherwise the error satisfies exactly one
// of errors.IsUnavailable (no connection could be obtained) or
// errors.IsWorkFailed (work returned an error or panicked).
func (e *Engine) Run(ctx context.Context, work func(ctx context.Context, conn pool.Connection) error) (err error) {
	lease, err := e.Acquire(ctx)
	if err != nil {
		RunsTotal.WithLabelValues("unavailable").Inc()
		return err
	}
	defer lease.Release()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("work panicked")
			err = apperrors.WorkFailed(fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			RunsTotal.WithLabelValues("work_failed").Inc()
		} else {
			RunsTotal.WithLabelValues("ok").Inc()
		}
	}()

	if werr := work(ctx, lease.Conn()); werr != nil {
		return apperrors.WorkFailed(werr)
	}
	return nil
}

// Call is Run for work that produces a value.
func Call[T any](ctx context.Context, e *Engine, work func(ctx context.Context, conn pool.Connection) (T, error)) (T, error) {
	var out T
	err := e.Run(ctx, func(ctx context.Context, conn pool.Connection) error {
		v, err := work(ctx, conn)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Close stops any in-flight rebuild and closes the live pool. Leases still
// held are closed when released.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}
	e.cancel()
	e.manager.Close()
	log.Debug("engine closed")
	return nil
}

// Stats describes the engine's reconnect activity.
type Stats struct {
	// Generation is the number of pools created so far.
	Generation uint64
	// Escalations is the number of acquisitions that hit the failure threshold.
	Escalations uint64
	// RebuildRounds is the number of destroy-and-create rounds run.
	RebuildRounds uint64
	// Waits is the number of pauses taken between rounds.
	Waits uint64
	// State is the current reconnect state.
	State ReconnectState
}

// Stats returns current engine statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		Generation:    e.manager.Generation(),
		Escalations:   e.escalations.Load(),
		RebuildRounds: e.reconnect.Rounds(),
		Waits:         e.reconnect.Waits(),
		State:         e.reconnect.State(),
	}
}

// Manager exposes the pool manager, mainly for inspection.
func (e *Engine) Manager() *PoolManager {
	return e.manager
}
