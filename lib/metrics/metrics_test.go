package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/go-i2p/redistools/version"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_counter_total", "A test counter")

	if got := testutil.ToFloat64(c); got != 0 {
		t.Errorf("initial value = %v, want 0", got)
	}

	c.Inc()
	c.Add(5)
	if got := testutil.ToFloat64(c); got != 6 {
		t.Errorf("after Inc()+Add(5) = %v, want 6", got)
	}
}

func TestCounterVec(t *testing.T) {
	c := NewCounterVec("test_outcomes_total", "A labelled counter", "outcome")

	c.WithLabelValues("ok").Inc()
	c.WithLabelValues("ok").Inc()
	c.WithLabelValues("failed").Inc()

	if got := testutil.ToFloat64(c.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "A test gauge")

	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(-5)
	if got := testutil.ToFloat64(g); got != 5 {
		t.Errorf("gauge = %v, want 5", got)
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_duration_seconds", "A test histogram", []float64{0.1, 0.5, 1.0, 5.0})

	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(10.0)

	if got := testutil.CollectAndCount(h); got != 1 {
		t.Errorf("expected one histogram series, got %d", got)
	}
}

func TestHandler(t *testing.T) {
	c := NewCounter("handler_test_total", "Test counter")
	c.Add(100)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if !strings.Contains(body, "redistools_handler_test_total 100") {
		t.Errorf("missing counter in body: %s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected runtime collectors in output")
	}
}

func TestRecordStartTime(t *testing.T) {
	RecordStartTime()

	if testutil.ToFloat64(StartTime) == 0 {
		t.Error("StartTime should be non-zero after RecordStartTime()")
	}
	if got := testutil.ToFloat64(BuildInfo.WithLabelValues(version.Full())); got != 1 {
		t.Errorf("build_info = %v, want 1", got)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
