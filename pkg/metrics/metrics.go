// Package metrics provides Prometheus metrics for marker generation and the
// integrity log. One-shot CLI invocations export them through the node
// exporter textfile format.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide metrics registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Registry holds all ttm metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	markersCreated  prometheus.Counter
	markerFailures  prometheus.Counter
	logRecords      *prometheus.CounterVec
	logVerifies     *prometheus.CounterVec
	corruptLogs     prometheus.Counter
	opDuration      *prometheus.HistogramVec
	lastTamperEpoch prometheus.Gauge
}

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		markersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ttm",
			Name:      "markers_created_total",
			Help:      "Marker files written.",
		}),
		markerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ttm",
			Name:      "marker_failures_total",
			Help:      "Marker creations that returned an error.",
		}),
		logRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ttm",
			Name:      "log_records_total",
			Help:      "Integrity log entries appended, by status.",
		}, []string{"status"}),
		logVerifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ttm",
			Name:      "log_verifications_total",
			Help:      "Integrity log verifications, by result.",
		}, []string{"result"}),
		corruptLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ttm",
			Name:      "log_corrupt_total",
			Help:      "Log files that failed to parse and were treated as empty.",
		}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ttm",
			Name:      "operation_duration_seconds",
			Help:      "Duration of core operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
		lastTamperEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ttm",
			Name:      "last_tamper_timestamp_seconds",
			Help:      "Unix time of the most recent tamper detection.",
		}),
	}
	r.reg.MustRegister(
		r.markersCreated,
		r.markerFailures,
		r.logRecords,
		r.logVerifies,
		r.corruptLogs,
		r.opDuration,
		r.lastTamperEpoch,
	)
	return r
}

// Verification results.
const (
	ResultClean    = "clean"
	ResultTampered = "tampered"
	ResultEmpty    = "empty"
)

// RecordMarker records a create_marker call.
func (r *Registry) RecordMarker(success bool, duration time.Duration) {
	if success {
		r.markersCreated.Inc()
	} else {
		r.markerFailures.Inc()
	}
	r.opDuration.WithLabelValues("create_marker").Observe(duration.Seconds())
}

// RecordLogEntry records an appended log entry.
func (r *Registry) RecordLogEntry(status string, duration time.Duration) {
	r.logRecords.WithLabelValues(status).Inc()
	r.opDuration.WithLabelValues("record").Observe(duration.Seconds())
	if status == ResultTampered {
		r.lastTamperEpoch.SetToCurrentTime()
	}
}

// RecordVerify records a verify call.
func (r *Registry) RecordVerify(result string, duration time.Duration) {
	r.logVerifies.WithLabelValues(result).Inc()
	r.opDuration.WithLabelValues("verify").Observe(duration.Seconds())
	if result == ResultTampered {
		r.lastTamperEpoch.SetToCurrentTime()
	}
}

// RecordCorruptLog counts a log file that was treated as empty.
func (r *Registry) RecordCorruptLog() {
	r.corruptLogs.Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
