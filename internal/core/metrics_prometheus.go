package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation counts and latencies as
// labbook_operations_total{operation,status} and
// labbook_operation_duration_seconds{operation}.
type PrometheusMetricsRecorder struct {
	registry  *prometheus.Registry
	total     *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers its collectors on a fresh registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	rec := &PrometheusMetricsRecorder{
		registry: prometheus.NewRegistry(),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labbook",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labbook",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency, including the state flush.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
	}
	rec.registry.MustRegister(rec.total, rec.durations)
	return rec
}

// Registry exposes the registry for gathering or writing a textfile.
func (r *PrometheusMetricsRecorder) Registry() *prometheus.Registry { return r.registry }

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.total.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// WriteTextfile writes the current metrics in the text exposition format, for
// node_exporter's textfile collector. A CLI process is too short-lived to be
// scraped.
func (r *PrometheusMetricsRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
