package pool

import "github.com/go-i2p/redistools/lib/metrics"

// Pool utilization metrics. Gauges describe the most recently reported pool;
// counters accumulate across pool generations.
var (
	// ConnectionsMax is the maximum pool size.
	ConnectionsMax = metrics.NewGauge(
		"pool_connections_max",
		"Maximum number of connections in the pool",
	)
	// ConnectionsOpen is the current number of open connections.
	ConnectionsOpen = metrics.NewGauge(
		"pool_connections_open",
		"Current number of open connections",
	)
	// ConnectionsIdle is the current number of idle connections.
	ConnectionsIdle = metrics.NewGauge(
		"pool_connections_idle",
		"Current number of idle connections in the pool",
	)
	// ConnectionsInUse is the number of connections currently borrowed.
	ConnectionsInUse = metrics.NewGauge(
		"pool_connections_in_use",
		"Number of connections currently in use",
	)
	// AcquireTotal counts borrows by outcome ("ok" or "failed").
	AcquireTotal = metrics.NewCounterVec(
		"pool_acquire_total",
		"Total number of connection borrows by outcome",
		"outcome",
	)
	// VerifyFailsTotal counts connections that failed verification.
	VerifyFailsTotal = metrics.NewCounter(
		"pool_verify_fails_total",
		"Total number of connections that failed verification",
	)
	// AcquireLatency tracks time spent borrowing connections.
	AcquireLatency = metrics.NewHistogram(
		"pool_acquire_duration_seconds",
		"Time spent borrowing a connection from the pool",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics updates the pool gauges from Stats.
func UpdateMetrics(stats Stats) {
	ConnectionsMax.Set(float64(stats.MaxActive))
	ConnectionsOpen.Set(float64(stats.NumOpen))
	ConnectionsIdle.Set(float64(stats.NumIdle))
	ConnectionsInUse.Set(float64(stats.NumInUse))
}
