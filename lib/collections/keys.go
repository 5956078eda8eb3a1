package collections

import (
	"context"
	"math"

	apperrors "github.com/go-i2p/redistools/lib/errors"
	"github.com/go-i2p/redistools/lib/store"
)

// StoreVersion is the layout version embedded in every key.
const StoreVersion = "0"

const keyPrefix = "rs:" + StoreVersion + ":"

// Score bounds for range queries over a SortedSet.
var (
	MinusInf = math.Inf(-1)
	PlusInf  = math.Inf(1)
)

// These are aliases to the central error definitions in lib/errors.
var (
	// ErrEmptyCollection is returned by Queue.Element on an empty queue.
	ErrEmptyCollection = apperrors.ErrEmptyCollection
	// ErrNilArgument is returned when a required callback is nil.
	ErrNilArgument = apperrors.ErrNilArgument
)

// Runner runs a unit of work with a store connection. *store.Client
// implements it.
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context, conn *store.Conn) error) error
}

// FullKey returns the namespaced store key for key.
func FullKey(key string) string {
	return keyPrefix + key
}

// view is the part shared by every collection.
type view struct {
	runner Runner
	key    string
	full   string
}

func newView(r Runner, key string) view {
	return view{runner: r, key: key, full: FullKey(key)}
}

// Key returns the unprefixed key.
func (v view) Key() string {
	return v.key
}

// FullKey returns the namespaced store key.
func (v view) FullKey() string {
	return v.full
}

// Clear deletes the record.
func (v view) Clear(ctx context.Context) error {
	return v.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		return conn.Del(ctx, v.full).Err()
	})
}

func call[T any](ctx context.Context, r Runner, fn func(ctx context.Context, conn *store.Conn) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		v, err := fn(ctx, conn)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
