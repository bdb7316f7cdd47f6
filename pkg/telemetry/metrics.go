package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics provides the Prometheus counters for provisioning activity.
// A nil *Metrics, or one built with metrics disabled, is a safe no-op,
// so callers never have to guard their recording calls.
type Metrics struct {
	config MetricsConfig

	resourcesEnsured *prometheus.CounterVec
	queueAdoptions   prometheus.Counter
	appliesTotal     *prometheus.CounterVec
	applyDuration    *prometheus.HistogramVec
	lastApplyFailed  prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resourcesEnsured: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_ensured_total",
				Help:      "Total number of resource ensure operations by kind and status",
			},
			[]string{"kind", "status"},
		),
		queueAdoptions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_adoptions_total",
				Help:      "Total number of queues adopted after losing a creation race",
			},
		),
		appliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "applies_total",
				Help:      "Total number of reconciliation passes by status",
			},
			[]string{"status"},
		),
		applyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "apply_duration_seconds",
				Help:      "Duration of reconciliation passes in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		lastApplyFailed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_apply_failed_leaves",
				Help:      "Number of failed leaf operations in the most recent pass",
			},
		),
	}

	registry.MustRegister(
		m.resourcesEnsured,
		m.queueAdoptions,
		m.appliesTotal,
		m.applyDuration,
		m.lastApplyFailed,
	)

	return m, nil
}

// RecordEnsure records one resource ensure operation.
func (m *Metrics) RecordEnsure(kind string, success bool) {
	if m == nil || m.registry == nil {
		return
	}
	status := "succeeded"
	if !success {
		status = "failed"
	}
	m.resourcesEnsured.WithLabelValues(kind, status).Inc()
}

// RecordQueueAdoption records one queue adoption.
func (m *Metrics) RecordQueueAdoption() {
	if m == nil || m.registry == nil {
		return
	}
	m.queueAdoptions.Inc()
}

// RecordApply records the outcome of one reconciliation pass.
func (m *Metrics) RecordApply(status string, failures int, duration time.Duration) {
	if m == nil || m.registry == nil {
		return
	}
	m.appliesTotal.WithLabelValues(status).Inc()
	m.applyDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.lastApplyFailed.Set(float64(failures))
}

// Handler returns the HTTP handler serving the registry, or nil when
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer starts the metrics HTTP listener when one is
// configured. The server runs until the process exits.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	go func() {
		// Listener errors surface on scrape, not here.
		_ = http.ListenAndServe(m.config.ListenAddress, mux)
	}()

	return nil
}

// Gather exposes the raw metric families, used by tests.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	if m == nil || m.registry == nil {
		return nil, fmt.Errorf("metrics are disabled")
	}
	return m.registry.Gather()
}
