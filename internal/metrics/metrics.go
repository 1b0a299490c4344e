// Package metrics records run-level counters and timings for InsuraFlow
// behind a pluggable Backend.
//
// The default backend discards everything, so instrumented code never has to
// check whether metrics are configured. Concrete systems live in subpackages
// (prompush for a Prometheus Pushgateway, datadog for DogStatsD) and are
// installed once at startup with SetBackend.
//
// Metric names:
//
//	etl_step_total{job,step,status}             stage and load executions
//	etl_step_duration_seconds{job,step,status}  their latency
//	etl_records_total{job,kind}                 rows read, inserted, ...
//	etl_batches_total{job}                      INSERT pages committed
//	etl_output_bytes{job,step}                  size of each stage output
package metrics

import (
	"sync"
	"time"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/size style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

// Nop returns the default backend, which discards everything.
func Nop() Backend { return nopBackend{} }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of step and observes its latency.
// Steps are the stage names plus "load".
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter("etl_step_total", 1, lbls)
	b.ObserveHistogram("etl_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRow increments the record counter for kind ("read", "inserted").
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter("etl_records_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the committed-batch counter.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter("etl_batches_total", float64(delta), Labels{
		"job": job,
	})
}

// RecordOutput observes the byte size of a stage's output file.
func RecordOutput(job, step string, bytes int64) {
	current().ObserveHistogram("etl_output_bytes", float64(bytes), Labels{
		"job":  job,
		"step": step,
	})
}
