package resilience

import (
	"context"
	"errors"

	apperrors "github.com/go-i2p/redistools/lib/errors"
)

// ResourceAcquirer borrows verified-healthy connections from the live pool.
type ResourceAcquirer struct {
	manager   *PoolManager
	threshold int
}

// NewResourceAcquirer creates an acquirer that tolerates threshold
// consecutive unhealthy borrows before giving up.
func NewResourceAcquirer(manager *PoolManager, threshold int) *ResourceAcquirer {
	if threshold < 1 {
		threshold = 1
	}
	return &ResourceAcquirer{manager: manager, threshold: threshold}
}

// TryAcquire makes up to threshold borrows from the live pool. A connected
// connection is returned at once; a dead one is discarded and counted; a
// failed dial is counted too.
//
// A nil lease with a nil error means no healthy connection was found and the
// caller should escalate. The returned generation is the pool generation the
// attempt ran against. Errors are returned for context cancellation, engine
// shutdown, and a pool whose connections are all leased (see IsBusy); none
// of these call for a rebuild.
func (a *ResourceAcquirer) TryAcquire(ctx context.Context) (*Lease, uint64, error) {
	p, gen, err := a.manager.Ensure(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, gen, ctxErr
		}
		if errors.Is(err, ErrEngineClosed) {
			return nil, gen, err
		}
		log.WithError(err).Debug("no pool available")
		return nil, gen, nil
	}

	for failures := 0; failures < a.threshold; failures++ {
		if err := ctx.Err(); err != nil {
			return nil, gen, err
		}

		conn, err := p.Acquire(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, gen, ctxErr
			}
			if IsBusy(err) {
				log.WithField("generation", gen).Debug("pool busy, all connections leased")
				return nil, gen, err
			}
			BorrowFailuresTotal.Inc()
			if apperrors.IsClosed(err) {
				// Replaced underneath us; the reconnect step sees the newer generation.
				log.WithField("generation", gen).Debug("pool closed during acquisition")
				return nil, gen, nil
			}
			log.WithField("attempt", failures+1).WithError(err).Debug("borrow failed")
			continue
		}

		if conn.IsConnected() {
			return newLease(conn, p, gen), gen, nil
		}

		DeadConnectionsTotal.Inc()
		log.WithField("attempt", failures+1).Debug("discarding dead connection")
		p.Discard(conn)
	}

	log.WithField("threshold", a.threshold).
		WithField("generation", gen).
		Warn("no healthy connection within failure threshold")
	return nil, gen, nil
}

// IsBusy reports whether err means every connection was leased for the whole
// borrow wait. A busy pool is healthy and is never torn down.
func IsBusy(err error) bool {
	return errors.Is(err, apperrors.ErrBorrowTimeout) || errors.Is(err, apperrors.ErrPoolExhausted)
}
