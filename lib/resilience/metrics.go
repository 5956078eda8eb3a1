package resilience

import (
	"github.com/go-i2p/redistools/lib/metrics"
)

// Engine metrics for Prometheus exposition.
var (
	// PoolGeneration is the generation of the live pool.
	PoolGeneration = metrics.NewGauge(
		"pool_generation",
		"Number of pools created so far; increases on every rebuild",
	)

	// ReconnectStateGauge tracks the reconnect state machine.
	// 0 = idle, 1 = rebuilding, 2 = probing, 3 = success, 4 = failed
	ReconnectStateGauge = metrics.NewGauge(
		"reconnect_state",
		"Current reconnect state (0=idle, 1=rebuilding, 2=probing, 3=success, 4=failed)",
	)

	// EscalationsTotal counts acquisitions that hit the failure threshold.
	EscalationsTotal = metrics.NewCounter(
		"escalations_total",
		"Total acquisitions that escalated to a pool rebuild",
	)

	// RebuildRoundsTotal counts destroy-and-create rounds.
	RebuildRoundsTotal = metrics.NewCounter(
		"rebuild_rounds_total",
		"Total pool rebuild rounds",
	)

	// ReconnectsTotal counts finished rebuild sequences by outcome.
	ReconnectsTotal = metrics.NewCounterVec(
		"reconnects_total",
		"Total rebuild sequences by outcome (success, skipped, failed)",
		"outcome",
	)

	// DeadConnectionsTotal counts borrowed connections found dead.
	DeadConnectionsTotal = metrics.NewCounter(
		"dead_connections_total",
		"Total borrowed connections discarded because they were not connected",
	)

	// BorrowFailuresTotal counts borrow errors.
	BorrowFailuresTotal = metrics.NewCounter(
		"borrow_failures_total",
		"Total borrow attempts that returned an error",
	)

	// RunsTotal counts units of work by outcome.
	RunsTotal = metrics.NewCounterVec(
		"runs_total",
		"Total units of work by outcome (ok, unavailable, work_failed)",
		"outcome",
	)

	// AcquireLatency tracks end-to-end acquisition time including reconnects.
	AcquireLatency = metrics.NewHistogram(
		"acquire_duration_seconds",
		"Time spent acquiring a healthy connection, including reconnects",
		metrics.DefaultLatencyBuckets,
	)
)
