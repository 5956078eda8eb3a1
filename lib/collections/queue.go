package collections

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/go-i2p/redistools/lib/errors"
	"github.com/go-i2p/redistools/lib/store"
)

// takePollInterval bounds each blocking pop issued by Take, so a cancelled
// context is noticed and the connection goes back to the pool in between.
const takePollInterval = time.Second

// Queue is a FIFO queue backed by a list. Producers push at the head and
// consumers pop from the tail, so any number of processes can share one
// queue.
type Queue struct {
	view
}

// NewQueue returns a view of the queue stored under key.
func NewQueue(r Runner, key string) *Queue {
	return &Queue{view: newView(r, key)}
}

// Add appends value to the queue.
func (q *Queue) Add(ctx context.Context, value string) error {
	return q.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		return conn.LPush(ctx, q.full, value).Err()
	})
}

// AddAll appends values in order inside one transaction.
func (q *Queue) AddAll(ctx context.Context, values []string) error {
	if len(values) == 0 {
		return nil
	}
	return q.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		_, err := conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, v := range values {
				pipe.LPush(ctx, q.full, v)
			}
			return nil
		})
		return err
	})
}

// Take removes and returns the oldest value, blocking until one is
// available or ctx ends.
func (q *Queue) Take(ctx context.Context) (string, error) {
	for {
		v, ok, err := q.Poll(ctx, takePollInterval)
		if err != nil {
			if ctxErr := contextEnded(ctx); ctxErr != nil {
				return "", apperrors.Canceled(ctxErr)
			}
			return "", err
		}
		if ok {
			return v, nil
		}
		if err := ctx.Err(); err != nil {
			return "", apperrors.Canceled(err)
		}
	}
}

// contextEnded is ctx.Err, also reporting a deadline that a socket timeout
// noticed before the context's own timer fired.
func contextEnded(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}

// Poll removes and returns the oldest value, waiting up to timeout for one
// to arrive. A timeout of zero or less does not wait. The store counts
// blocking timeouts in whole seconds, so positive timeouts round up.
func (q *Queue) Poll(ctx context.Context, timeout time.Duration) (string, bool, error) {
	type popped struct {
		value string
		ok    bool
	}
	res, err := call(ctx, q.runner, func(ctx context.Context, conn *store.Conn) (popped, error) {
		if timeout <= 0 {
			v, err := conn.RPop(ctx, q.full).Result()
			if errors.Is(err, redis.Nil) {
				return popped{}, nil
			}
			return popped{value: v, ok: err == nil}, err
		}
		kv, err := conn.BRPop(ctx, timeout, q.full).Result()
		if errors.Is(err, redis.Nil) {
			return popped{}, nil
		}
		if err != nil {
			return popped{}, err
		}
		return popped{value: kv[1], ok: true}, nil
	})
	return res.value, res.ok, err
}

// Peek returns the oldest value without removing it.
func (q *Queue) Peek(ctx context.Context) (string, bool, error) {
	type peeked struct {
		value string
		ok    bool
	}
	res, err := call(ctx, q.runner, func(ctx context.Context, conn *store.Conn) (peeked, error) {
		v, err := conn.LIndex(ctx, q.full, -1).Result()
		if errors.Is(err, redis.Nil) {
			return peeked{}, nil
		}
		return peeked{value: v, ok: err == nil}, err
	})
	return res.value, res.ok, err
}

// Element is Peek that fails with ErrEmptyCollection on an empty queue.
func (q *Queue) Element(ctx context.Context) (string, error) {
	v, ok, err := q.Peek(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrEmptyCollection
	}
	return v, nil
}

// Size returns the number of queued values.
func (q *Queue) Size(ctx context.Context) (int64, error) {
	return call(ctx, q.runner, func(ctx context.Context, conn *store.Conn) (int64, error) {
		return conn.LLen(ctx, q.full).Result()
	})
}

// IsEmpty reports whether the queue holds no values.
func (q *Queue) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.Size(ctx)
	return n == 0, err
}

// All returns every queued value, oldest first.
func (q *Queue) All(ctx context.Context) ([]string, error) {
	vals, err := call(ctx, q.runner, func(ctx context.Context, conn *store.Conn) ([]string, error) {
		return conn.LRange(ctx, q.full, 0, -1).Result()
	})
	slices.Reverse(vals)
	return vals, err
}

// Remove deletes the oldest occurrence of value and reports whether one
// was found.
func (q *Queue) Remove(ctx context.Context, value string) (bool, error) {
	n, err := call(ctx, q.runner, func(ctx context.Context, conn *store.Conn) (int64, error) {
		return conn.LRem(ctx, q.full, -1, value).Result()
	})
	return n == 1, err
}

// Drain atomically removes and returns every value, oldest first.
func (q *Queue) Drain(ctx context.Context) ([]string, error) {
	vals, err := call(ctx, q.runner, func(ctx context.Context, conn *store.Conn) ([]string, error) {
		var rng *redis.StringSliceCmd
		_, err := conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			rng = pipe.LRange(ctx, q.full, 0, -1)
			pipe.Del(ctx, q.full)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return rng.Val(), nil
	})
	slices.Reverse(vals)
	if err == nil {
		log.WithField("key", q.full).WithField("count", len(vals)).Debug("queue drained")
	}
	return vals, err
}

// DrainN atomically removes and returns up to n of the oldest values,
// oldest first.
func (q *Queue) DrainN(ctx context.Context, n int) ([]string, error) {
	if n < 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "drain count must not be negative", apperrors.ErrInvalidInput)
	}
	if n == 0 {
		return nil, nil
	}
	vals, err := call(ctx, q.runner, func(ctx context.Context, conn *store.Conn) ([]string, error) {
		var rng *redis.StringSliceCmd
		_, err := conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			rng = pipe.LRange(ctx, q.full, int64(-n), -1)
			pipe.LTrim(ctx, q.full, 0, int64(-n-1))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return rng.Val(), nil
	})
	slices.Reverse(vals)
	return vals, err
}

// ForEach calls fn on a snapshot of the queue, oldest first, stopping
// when fn returns false.
func (q *Queue) ForEach(ctx context.Context, fn func(value string) bool) error {
	if fn == nil {
		return ErrNilArgument
	}
	vals, err := q.All(ctx)
	if err != nil {
		return err
	}
	for _, v := range vals {
		if !fn(v) {
			return nil
		}
	}
	return nil
}
