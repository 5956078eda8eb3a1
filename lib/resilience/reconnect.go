package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ReconnectState is the phase of the reconnect state machine.
//
//	Idle -> Rebuilding -> Probing -> Success
//	                         |
//	                         +-> Idle (next round) ... -> Failed
type ReconnectState int32

const (
	// StateIdle means no rebuild is running, or the strategy is between rounds.
	StateIdle ReconnectState = iota
	// StateRebuilding means the pool is being destroyed and recreated.
	StateRebuilding
	// StateProbing means a fresh pool is being checked for a healthy connection.
	StateProbing
	// StateSuccess means the last sequence produced a healthy pool.
	StateSuccess
	// StateFailed means the last sequence exhausted every round.
	StateFailed
)

func (s ReconnectState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRebuilding:
		return "rebuilding"
	case StateProbing:
		return "probing"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// reconnectKey is the single singleflight key: one rebuild sequence per engine.
const reconnectKey = "rebuild"

// WaitFunc pauses for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// ReconnectStrategy tears down and rebuilds the pool a bounded number of
// times. Concurrent callers share one in-flight sequence.
type ReconnectStrategy struct {
	manager  *PoolManager
	acquirer *ResourceAcquirer
	cfg      Config
	lifetime context.Context
	wait     WaitFunc

	group  singleflight.Group
	state  atomic.Int32
	rounds atomic.Uint64
	waits  atomic.Uint64
}

// NewReconnectStrategy creates a strategy. Rebuild sequences run under
// lifetime, not under any single caller's context.
func NewReconnectStrategy(lifetime context.Context, manager *PoolManager, acquirer *ResourceAcquirer, cfg Config, wait WaitFunc) *ReconnectStrategy {
	if wait == nil {
		wait = sleepContext
	}
	return &ReconnectStrategy{
		manager:  manager,
		acquirer: acquirer,
		cfg:      cfg.withDefaults(),
		lifetime: lifetime,
		wait:     wait,
	}
}

// Reconnect runs, or joins, the shared rebuild sequence. observedGen is the
// pool generation the caller failed against. It returns nil once a healthy
// pool is in place, ErrReconnectExhausted when every round failed, or ctx's
// error if the caller stops waiting first.
func (s *ReconnectStrategy) Reconnect(ctx context.Context, observedGen uint64) error {
	ch := s.group.DoChan(reconnectKey, func() (any, error) {
		return nil, s.run(observedGen)
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debug("joined in-flight rebuild")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current phase.
func (s *ReconnectStrategy) State() ReconnectState {
	return ReconnectState(s.state.Load())
}

// Rounds returns the total number of rebuild rounds run.
func (s *ReconnectStrategy) Rounds() uint64 {
	return s.rounds.Load()
}

// Waits returns the total number of inter-round pauses taken.
func (s *ReconnectStrategy) Waits() uint64 {
	return s.waits.Load()
}

func (s *ReconnectStrategy) run(observedGen uint64) error {
	ctx := s.lifetime

	// Someone else already rebuilt since the caller failed; try that pool first.
	if gen := s.manager.Generation(); gen != observedGen {
		s.setState(StateProbing)
		lease, _, err := s.acquirer.TryAcquire(ctx)
		if err != nil && !IsBusy(err) {
			s.setState(StateFailed)
			return err
		}
		if lease != nil || err != nil {
			lease.Release()
			s.setState(StateSuccess)
			ReconnectsTotal.WithLabelValues("skipped").Inc()
			log.WithField("generation", gen).Debug("newer pool is healthy, skipping rebuild")
			return nil
		}
	}

	attempts := s.cfg.ReconnectAttempts
	for round := 1; round <= attempts; round++ {
		s.setState(StateRebuilding)
		s.rounds.Add(1)
		RebuildRoundsTotal.Inc()

		gen, err := s.manager.Rebuild(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.setState(StateFailed)
				return ErrEngineClosed
			}
			log.WithField("round", round).WithError(err).Warn("pool rebuild failed")
		} else {
			s.setState(StateProbing)
			lease, _, err := s.acquirer.TryAcquire(ctx)
			if err != nil && !IsBusy(err) {
				s.setState(StateFailed)
				return ErrEngineClosed
			}
			// A busy fresh pool already handed out healthy connections.
			if lease != nil || err != nil {
				// Hand the healthy connection back; the waiting callers lease from this pool.
				lease.Release()
				s.setState(StateSuccess)
				ReconnectsTotal.WithLabelValues("success").Inc()
				log.WithField("round", round).WithField("generation", gen).Info("pool rebuilt")
				return nil
			}
			log.WithField("round", round).WithField("generation", gen).Warn("rebuilt pool has no healthy connection")
		}

		if round == attempts {
			break
		}

		s.setState(StateIdle)
		d := s.backoff(round)
		s.waits.Add(1)
		log.WithField("round", round).WithField("wait", d).Debug("waiting before next rebuild")
		if err := s.wait(ctx, d); err != nil {
			s.setState(StateFailed)
			return ErrEngineClosed
		}
	}

	s.setState(StateFailed)
	ReconnectsTotal.WithLabelValues("failed").Inc()
	log.WithField("attempts", attempts).Error("reconnect attempts exhausted")
	return ErrReconnectExhausted
}

// backoff returns the pause after the given 1-based round.
func (s *ReconnectStrategy) backoff(round int) time.Duration {
	base := float64(s.cfg.ReconnectWait)
	delay := base
	if s.cfg.Multiplier > 1 {
		delay = base * math.Pow(s.cfg.Multiplier, float64(round-1))
	}

	if s.cfg.MaxWait > 0 && delay > float64(s.cfg.MaxWait) {
		delay = float64(s.cfg.MaxWait)
	}

	// Add jitter: ±JitterFraction
	if s.cfg.JitterFraction > 0 {
		jitter := delay * s.cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (s *ReconnectStrategy) setState(next ReconnectState) {
	prev := ReconnectState(s.state.Swap(int32(next)))
	ReconnectStateGauge.Set(float64(next))
	if prev != next {
		log.WithField("from", prev.String()).WithField("to", next.String()).Debug("reconnect state changed")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
