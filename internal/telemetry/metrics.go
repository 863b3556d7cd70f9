// Package telemetry exposes run and alert counters over a private Prometheus
// registry.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samijaber1/vigil-ml/internal/orchestrator"
)

const (
	namespace = "vigil"
	subsystem = "engine"
)

// Metrics holds the engine's instrumentation. All collectors live on a
// private registry so the handler never exposes unrelated process metrics
// registered elsewhere.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	evaluatorResults *prometheus.CounterVec
	alertsTotal      *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the engine collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Evaluation runs by suite and terminal status.",
		}, []string{"suite", "status"}),
		evaluatorResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluator_results_total",
			Help:      "Evaluator invocations by type and result status.",
		}, []string{"evaluator", "status"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_total",
			Help:      "Alerts derived from runs, by suite and severity.",
		}, []string{"suite", "severity"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of evaluation runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"suite"}),
	}

	m.registry.MustRegister(m.runsTotal, m.evaluatorResults, m.alertsTotal, m.runDuration)
	return m
}

// ObserveReport records one finished run.
func (m *Metrics) ObserveReport(report *orchestrator.Report) {
	m.runsTotal.WithLabelValues(report.SuiteID, string(report.Status)).Inc()
	m.runDuration.WithLabelValues(report.SuiteID).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	for _, result := range report.Results {
		if result == nil {
			continue
		}
		m.evaluatorResults.WithLabelValues(string(result.EvaluatorType), string(result.Status)).Inc()
	}
	for _, a := range report.Alerts {
		m.alertsTotal.WithLabelValues(report.SuiteID, string(a.Severity)).Inc()
	}
}

// Handler returns an HTTP handler serving the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
