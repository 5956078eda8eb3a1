package collections

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/go-i2p/redistools/lib/store"
)

// Member is an element of a SortedSet together with its score.
type Member struct {
	Element string
	Score   float64
}

// SortedSet is a set of unique elements ordered by score, backed by a
// sorted set. Elements with equal scores are ordered lexicographically.
type SortedSet struct {
	view
}

// NewSortedSet returns a view of the sorted set stored under key.
func NewSortedSet(r Runner, key string) *SortedSet {
	return &SortedSet{view: newView(r, key)}
}

// Size returns the number of elements.
func (s *SortedSet) Size(ctx context.Context) (int64, error) {
	return call(ctx, s.runner, func(ctx context.Context, conn *store.Conn) (int64, error) {
		return conn.ZCard(ctx, s.full).Result()
	})
}

// IsEmpty reports whether the set has no elements.
func (s *SortedSet) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.Size(ctx)
	return n == 0, err
}

// Contains reports whether element is in the set.
func (s *SortedSet) Contains(ctx context.Context, element string) (bool, error) {
	return call(ctx, s.runner, func(ctx context.Context, conn *store.Conn) (bool, error) {
		err := conn.ZScore(ctx, s.full, element).Err()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return err == nil, err
	})
}

// ContainsAll reports whether every element is in the set.
func (s *SortedSet) ContainsAll(ctx context.Context, elements ...string) (bool, error) {
	if len(elements) == 0 {
		return true, nil
	}
	return call(ctx, s.runner, func(ctx context.Context, conn *store.Conn) (bool, error) {
		all, err := conn.ZRange(ctx, s.full, 0, -1).Result()
		if err != nil {
			return false, err
		}
		present := make(map[string]struct{}, len(all))
		for _, e := range all {
			present[e] = struct{}{}
		}
		for _, e := range elements {
			if _, ok := present[e]; !ok {
				return false, nil
			}
		}
		return true, nil
	})
}

// All returns every member in score order.
func (s *SortedSet) All(ctx context.Context) ([]Member, error) {
	return call(ctx, s.runner, func(ctx context.Context, conn *store.Conn) ([]Member, error) {
		zs, err := conn.ZRangeWithScores(ctx, s.full, 0, -1).Result()
		return toMembers(zs), err
	})
}

// Add inserts m, or updates its score if the element is already present.
func (s *SortedSet) Add(ctx context.Context, m Member) error {
	return s.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		return conn.ZAdd(ctx, s.full, toZ(m)).Err()
	})
}

// AddAll inserts members inside one transaction.
func (s *SortedSet) AddAll(ctx context.Context, members []Member) error {
	if len(members) == 0 {
		return nil
	}
	return s.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		_, err := conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, m := range members {
				pipe.ZAdd(ctx, s.full, toZ(m))
			}
			return nil
		})
		return err
	})
}

// Remove deletes element and reports whether it was present.
func (s *SortedSet) Remove(ctx context.Context, element string) (bool, error) {
	n, err := call(ctx, s.runner, func(ctx context.Context, conn *store.Conn) (int64, error) {
		return conn.ZRem(ctx, s.full, element).Result()
	})
	return n == 1, err
}

// RemoveAll deletes elements inside one transaction.
func (s *SortedSet) RemoveAll(ctx context.Context, elements ...string) error {
	if len(elements) == 0 {
		return nil
	}
	return s.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		_, err := conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, e := range elements {
				pipe.ZRem(ctx, s.full, e)
			}
			return nil
		})
		return err
	})
}

// RetainAll atomically replaces the contents of the set with members.
func (s *SortedSet) RetainAll(ctx context.Context, members []Member) error {
	return s.runner.Do(ctx, func(ctx context.Context, conn *store.Conn) error {
		_, err := conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.full)
			for _, m := range members {
				pipe.ZAdd(ctx, s.full, toZ(m))
			}
			return nil
		})
		return err
	})
}

// SubSet returns members with from <= score < to.
func (s *SortedSet) SubSet(ctx context.Context, from, to float64) ([]Member, error) {
	return s.rangeByScore(ctx, formatScore(from), "("+formatScore(to))
}

// HeadSet returns members with score < to.
func (s *SortedSet) HeadSet(ctx context.Context, to float64) ([]Member, error) {
	return s.rangeByScore(ctx, "-inf", "("+formatScore(to))
}

// TailSet returns members with score >= from.
func (s *SortedSet) TailSet(ctx context.Context, from float64) ([]Member, error) {
	return s.rangeByScore(ctx, formatScore(from), "+inf")
}

func (s *SortedSet) rangeByScore(ctx context.Context, min, max string) ([]Member, error) {
	return call(ctx, s.runner, func(ctx context.Context, conn *store.Conn) ([]Member, error) {
		zs, err := conn.ZRangeByScoreWithScores(ctx, s.full, &redis.ZRangeBy{Min: min, Max: max}).Result()
		return toMembers(zs), err
	})
}

// First returns the member with the lowest score.
func (s *SortedSet) First(ctx context.Context) (Member, bool, error) {
	return s.at(ctx, 0)
}

// Last returns the member with the highest score.
func (s *SortedSet) Last(ctx context.Context) (Member, bool, error) {
	return s.at(ctx, -1)
}

func (s *SortedSet) at(ctx context.Context, idx int64) (Member, bool, error) {
	ms, err := call(ctx, s.runner, func(ctx context.Context, conn *store.Conn) ([]Member, error) {
		zs, err := conn.ZRangeWithScores(ctx, s.full, idx, idx).Result()
		return toMembers(zs), err
	})
	if err != nil || len(ms) == 0 {
		return Member{}, false, err
	}
	return ms[0], true, nil
}

// ForEach calls fn on a snapshot of the set in score order, stopping when
// fn returns false.
func (s *SortedSet) ForEach(ctx context.Context, fn func(m Member) bool) error {
	if fn == nil {
		return ErrNilArgument
	}
	ms, err := s.All(ctx)
	if err != nil {
		return err
	}
	for _, m := range ms {
		if !fn(m) {
			return nil
		}
	}
	return nil
}

func toZ(m Member) redis.Z {
	return redis.Z{Score: m.Score, Member: m.Element}
}

func toMembers(zs []redis.Z) []Member {
	if len(zs) == 0 {
		return nil
	}
	out := make([]Member, len(zs))
	for i, z := range zs {
		el, _ := z.Member.(string)
		out[i] = Member{Element: el, Score: z.Score}
	}
	return out
}

func formatScore(f float64) string {
	switch {
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsInf(f, 1):
		return "+inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
