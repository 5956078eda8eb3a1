package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-i2p/redistools/lib/collections"
	"github.com/go-i2p/redistools/lib/store"
)

// runMapDemo fills a hash with plain entries and per-day page view counters,
// then prints it.
func runMapDemo(ctx context.Context, client *store.Client, out io.Writer) error {
	m := collections.NewMap(client, "test:map")

	entries := make(map[string]string, 10)
	for i := 0; i < 10; i++ {
		entries["key"+strconv.Itoa(i)] = "value" + strconv.Itoa(i)
	}
	if err := m.PutAll(ctx, entries); err != nil {
		return err
	}

	today := startOfDay(time.Now()).Unix()
	views := []struct {
		page string
		by   int64
	}{
		{"homepage", 12},
		{"mailbox", 62},
		{"onlinenow", 15},
	}
	for _, v := range views {
		field := fmt.Sprintf("page:%s:views:%d", v.page, today)
		if _, err := m.Increment(ctx, field, v.by); err != nil {
			return err
		}
	}

	return m.ForEach(ctx, func(field, value string) bool {
		fmt.Fprintf(out, "key: %s, value: %s\n", field, value)
		return true
	})
}

// runQueueDemo runs one producer and one consumer against the same queue.
func runQueueDemo(ctx context.Context, client *store.Client, out io.Writer, items int) error {
	q := collections.NewQueue(client, "test:bq")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < items; i++ {
			if err := q.Add(ctx, strconv.Itoa(i)); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < items; i++ {
			v, err := q.Take(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Found: %s\n", v)
		}
		return nil
	})
	return g.Wait()
}

func startOfDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
