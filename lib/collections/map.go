package collections

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/go-i2p/redistools/lib/store"
)

// Map is a string-to-string map backed by a hash.
type Map struct {
	view
}

// NewMap returns a view of the map stored under key.
func NewMap(r Runner, key string) *Map {
	return &Map{view: newView(r, key)}
}

// Size returns the number of fields.
func (m *Map) Size(ctx context.Context) (int64, error) {
	return call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) (int64, error) {
		return conn.HLen(ctx, m.full).Result()
	})
}

// IsEmpty reports whether the map has no fields.
func (m *Map) IsEmpty(ctx context.Context) (bool, error) {
	n, err := m.Size(ctx)
	return n == 0, err
}

// ContainsKey reports whether field is set.
func (m *Map) ContainsKey(ctx context.Context, field string) (bool, error) {
	return call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) (bool, error) {
		return conn.HExists(ctx, m.full, field).Result()
	})
}

// ContainsValue reports whether any field holds value. It reads every
// value, so it costs O(n).
func (m *Map) ContainsValue(ctx context.Context, value string) (bool, error) {
	vals, err := m.Values(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(vals, value), nil
}

// Get returns the value of field and whether it was set.
func (m *Map) Get(ctx context.Context, field string) (string, bool, error) {
	type got struct {
		value string
		ok    bool
	}
	res, err := call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) (got, error) {
		v, err := conn.HGet(ctx, m.full, field).Result()
		if errors.Is(err, redis.Nil) {
			return got{}, nil
		}
		return got{value: v, ok: err == nil}, err
	})
	return res.value, res.ok, err
}

// Put sets field to value.
func (m *Map) Put(ctx context.Context, field, value string) error {
	return m.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		return conn.HSet(ctx, m.full, field, value).Err()
	})
}

// Remove deletes field and reports whether it was set.
func (m *Map) Remove(ctx context.Context, field string) (bool, error) {
	n, err := call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) (int64, error) {
		return conn.HDel(ctx, m.full, field).Result()
	})
	return n == 1, err
}

// PutAll sets every field in entries with one command.
func (m *Map) PutAll(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	args := make([]any, 0, 2*len(entries))
	for k, v := range entries {
		args = append(args, k, v)
	}
	return m.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		return conn.HSet(ctx, m.full, args...).Err()
	})
}

// Keys returns every field name.
func (m *Map) Keys(ctx context.Context) ([]string, error) {
	return call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) ([]string, error) {
		return conn.HKeys(ctx, m.full).Result()
	})
}

// Values returns every value.
func (m *Map) Values(ctx context.Context) ([]string, error) {
	return call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) ([]string, error) {
		return conn.HVals(ctx, m.full).Result()
	})
}

// Entries returns a snapshot of the whole map.
func (m *Map) Entries(ctx context.Context) (map[string]string, error) {
	return call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) (map[string]string, error) {
		return conn.HGetAll(ctx, m.full).Result()
	})
}

// GetAll returns the values of the given fields that are set.
func (m *Map) GetAll(ctx context.Context, fields ...string) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	return call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) (map[string]string, error) {
		vals, err := conn.HMGet(ctx, m.full, fields...).Result()
		if err != nil {
			return nil, err
		}
		out := make(map[string]string, len(fields))
		for i, v := range vals {
			if s, ok := v.(string); ok {
				out[fields[i]] = s
			}
		}
		return out, nil
	})
}

// ForEach calls fn on a snapshot of the map in field order, stopping when
// fn returns false.
func (m *Map) ForEach(ctx context.Context, fn func(field, value string) bool) error {
	if fn == nil {
		return ErrNilArgument
	}
	entries, err := m.Entries(ctx)
	if err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(entries)) {
		if !fn(k, entries[k]) {
			return nil
		}
	}
	return nil
}

// Increment adds by to the integer stored in field, creating it at zero,
// and returns the new value.
func (m *Map) Increment(ctx context.Context, field string, by int64) (int64, error) {
	return call(ctx, m.runner, func(ctx context.Context, conn *store.Conn) (int64, error) {
		return conn.HIncrBy(ctx, m.full, field, by).Result()
	})
}
