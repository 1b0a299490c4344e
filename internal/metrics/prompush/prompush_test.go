package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"insuraflow/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("job", ""); err == nil {
		t.Fatal("NewBackend without gateway URL: want error")
	}
	b, err := NewBackend("", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if b.jobName != "insuraflow" {
		t.Fatalf("default job name = %q", b.jobName)
	}
}

/*
TestBackend_Collects verifies that the generic metric calls land in the
matching Prometheus collectors and that unknown names are ignored.
*/
func TestBackend_Collects(t *testing.T) {
	t.Parallel()
	b, err := NewBackend("insuraflow", "http://pushgateway:9091")
	if err != nil {
		t.Fatal(err)
	}

	b.IncCounter("etl_step_total", 1, metrics.Labels{"step": "cleaning", "status": "success"})
	b.IncCounter("etl_step_total", 1, metrics.Labels{"step": "cleaning", "status": "success"})
	b.IncCounter("etl_records_total", 5000, metrics.Labels{"kind": "inserted"})
	b.IncCounter("etl_batches_total", 5, nil)
	b.IncCounter("something_else", 1, nil)
	b.ObserveHistogram("etl_step_duration_seconds", 1.5, metrics.Labels{"step": "load", "status": "failure"})
	b.ObserveHistogram("etl_output_bytes", 4096, metrics.Labels{"step": "transforming"})

	if got := testutil.ToFloat64(b.steps.WithLabelValues("cleaning", "success")); got != 2 {
		t.Fatalf("etl_step_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(b.records.WithLabelValues("inserted")); got != 5000 {
		t.Fatalf("etl_records_total = %v, want 5000", got)
	}
	if got := testutil.ToFloat64(b.batches); got != 5 {
		t.Fatalf("etl_batches_total = %v, want 5", got)
	}
	if got := testutil.ToFloat64(b.output.WithLabelValues("transforming")); got != 4096 {
		t.Fatalf("etl_output_bytes = %v, want 4096", got)
	}
	if n := testutil.CollectAndCount(b.duration); n != 1 {
		t.Fatalf("summary series = %d, want 1", n)
	}
}

/*
TestFlush pushes to a fake Pushgateway and checks the grouping path and that
the body carries the metric families.
*/
func TestFlush(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("insuraflow", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter("etl_batches_total", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/metrics/job/insuraflow" {
		t.Fatalf("push path = %q", path)
	}
	if !strings.Contains(body, "etl_batches_total") {
		t.Fatal("pushed body does not contain etl_batches_total")
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("insuraflow", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err == nil {
		t.Fatal("Flush against failing gateway: want error")
	}
}
