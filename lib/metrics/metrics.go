// Package metrics provides Prometheus metrics collection for redistools.
// Collectors created here are registered in a package registry that Handler
// and Serve expose.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-i2p/redistools/version"
)

// Namespace prefixes every metric name.
const Namespace = "redistools"

// DefaultLatencyBuckets are histogram buckets in seconds, from 1ms to 60s.
// Acquisitions that go through a full reconnect can take minutes.
var DefaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}

var defaultRegistry = newRegistry()

func newRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry all package-level collectors live in.
func Registry() *prometheus.Registry {
	return defaultRegistry
}

// NewCounter creates and registers a counter.
func NewCounter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	})
	defaultRegistry.MustRegister(c)
	return c
}

// NewCounterVec creates and registers a counter partitioned by labels.
func NewCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
	defaultRegistry.MustRegister(c)
	return c
}

// NewGauge creates and registers a gauge.
func NewGauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	})
	defaultRegistry.MustRegister(g)
	return g
}

// NewGaugeVec creates and registers a gauge partitioned by labels.
func NewGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
	defaultRegistry.MustRegister(g)
	return g
}

// NewHistogram creates and registers a histogram.
func NewHistogram(name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	defaultRegistry.MustRegister(h)
	return h
}

// Handler returns an http.Handler that exposes metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(defaultRegistry, promhttp.HandlerOpts{Registry: defaultRegistry})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Process metrics
var (
	// StartTime is the Unix time the process started using the client.
	StartTime = NewGauge("start_time_seconds", "Unix timestamp when the client started")
	// BuildInfo is always 1, labelled with the running version.
	BuildInfo = NewGaugeVec("build_info", "Build information", "version")
)

// RecordStartTime records the current time as the start time, along with
// the build version.
func RecordStartTime() {
	StartTime.Set(float64(time.Now().Unix()))
	BuildInfo.WithLabelValues(version.Full()).Set(1)
}
