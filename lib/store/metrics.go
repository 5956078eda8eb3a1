package store

import "github.com/go-i2p/redistools/lib/metrics"

var (
	// DialsTotal counts connections opened and verified with PING.
	DialsTotal = metrics.NewCounter(
		"store_dials_total",
		"Total number of store connections opened",
	)
	// DialFailuresTotal counts connection attempts that failed.
	DialFailuresTotal = metrics.NewCounter(
		"store_dial_failures_total",
		"Total number of failed store connection attempts",
	)
	// BrokenConnectionsTotal counts connections that failed at the transport level.
	BrokenConnectionsTotal = metrics.NewCounter(
		"store_broken_connections_total",
		"Total number of store connections marked broken",
	)
	// PoolsCreatedTotal counts pools handed to the engine.
	PoolsCreatedTotal = metrics.NewCounter(
		"store_pools_created_total",
		"Total number of store connection pools created",
	)
)
