// Package observability provides Prometheus metrics for the av host.
// Sentry error telemetry is handled in the telemetry package.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avhost/av/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Engine   *metrics.EngineMetrics
	MQTT     *metrics.MQTTMetrics
	HTTP     *metrics.HTTPMetrics
	Journal  *metrics.JournalMetrics
}

// NewMetrics creates a registry with the process and Go runtime collectors
// plus every application collector. engine is read on each scrape.
func NewMetrics(engine metrics.StatsSource) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	engineMetrics, err := metrics.NewEngineMetrics(registry, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	journalMetrics, err := metrics.NewJournalMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal metrics: %w", err)
	}

	log.Debug("metrics registry initialized")

	return &Metrics{
		registry: registry,
		Engine:   engineMetrics,
		MQTT:     mqttMetrics,
		HTTP:     httpMetrics,
		Journal:  journalMetrics,
	}, nil
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
