// Package prompush pushes InsuraFlow run metrics to a Prometheus Pushgateway.
//
// A batch run is too short-lived to be scraped, so the collectors live in a
// private registry that is pushed once when the run ends (metrics.Flush).
// The pipeline job name is the Pushgateway grouping key; the remaining labels
// become Prometheus labels.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"insuraflow/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	steps    *prometheus.CounterVec // etl_step_total
	duration *prometheus.SummaryVec // etl_step_duration_seconds
	records  *prometheus.CounterVec // etl_records_total
	batches  prometheus.Counter     // etl_batches_total
	output   *prometheus.GaugeVec   // etl_output_bytes
}

// NewBackend builds a backend that pushes to gatewayURL under jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "insuraflow"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_step_total",
			Help: "Stage and load executions by step and status.",
		}, []string{"step", "status"}),
		duration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "etl_step_duration_seconds",
			Help:       "Stage and load duration in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_records_total",
			Help: "Records by kind (read, inserted).",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "etl_batches_total",
			Help: "INSERT pages executed by the bulk loader.",
		}),
		output: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "etl_output_bytes",
			Help: "Size of the last output file written by each stage.",
		}, []string{"step"}),
	}
	for name, c := range map[string]prometheus.Collector{
		"step counter":  b.steps,
		"step summary":  b.duration,
		"record count":  b.records,
		"batch counter": b.batches,
		"output gauge":  b.output,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "etl_step_total":
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case "etl_records_total":
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case "etl_batches_total":
		b.batches.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case "etl_step_duration_seconds":
		b.duration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case "etl_output_bytes":
		b.output.WithLabelValues(labels["step"]).Set(value)
	}
}

// Flush pushes the registry to the Pushgateway, replacing the job's group.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
