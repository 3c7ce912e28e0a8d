package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics records session journal database operations. It
// implements Recorder.
type JournalMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	sessionsOpen      prometheus.Gauge

	collectors []prometheus.Collector
}

// NewJournalMetrics creates and registers journal metrics
func NewJournalMetrics(registry *prometheus.Registry) (*JournalMetrics, error) {
	m := &JournalMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *JournalMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_operations_total",
			Help: "Total number of session journal operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journal_operation_duration_seconds",
			Help:    "Time taken for session journal operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_operation_errors_total",
			Help: "Total number of failed session journal operations",
		},
		[]string{"operation", "error_type"},
	)

	m.sessionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "journal_sessions_open",
		Help: "Sessions recorded as opened and not yet closed",
	})

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.operationErrors,
		m.sessionsOpen,
	}
}

// Describe implements the Collector interface
func (m *JournalMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *JournalMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordOperation implements Recorder. Session opens and closes also move
// the open sessions gauge.
func (m *JournalMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	if status != StatusSuccess {
		return
	}
	switch operation {
	case OpSessionOpen:
		m.sessionsOpen.Inc()
	case OpSessionClose:
		m.sessionsOpen.Dec()
	}
}

// RecordDuration implements Recorder
func (m *JournalMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *JournalMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}
