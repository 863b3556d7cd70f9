package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/samijaber1/vigil-ml/internal/alert"
	"github.com/samijaber1/vigil-ml/internal/evaluator"
	"github.com/samijaber1/vigil-ml/internal/orchestrator"
)

func sampleReport() *orchestrator.Report {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	return &orchestrator.Report{
		RunID:       "run-1",
		SuiteID:     "checkout-llm",
		StartedAt:   now,
		FinishedAt:  now.Add(2 * time.Second),
		WindowStart: now.Add(-5 * time.Minute),
		WindowEnd:   now,
		Results: []*evaluator.Result{
			{EvaluatorType: evaluator.TypePerformance, Status: evaluator.StatusCompleted},
			{EvaluatorType: evaluator.TypeSafety, Status: evaluator.StatusFailed},
		},
		Alerts: []alert.Alert{
			{Name: "latency-page", Severity: alert.SeverityCritical},
		},
		Status: orchestrator.RunPartiallyFailed,
	}
}

func TestObserveReport(t *testing.T) {
	m := NewMetrics()
	m.ObserveReport(sampleReport())
	m.ObserveReport(sampleReport())

	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("checkout-llm", "partially_failed")); got != 2 {
		t.Errorf("expected 2 runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.evaluatorResults.WithLabelValues("performance", "completed")); got != 2 {
		t.Errorf("expected 2 completed performance results, got %v", got)
	}
	if got := testutil.ToFloat64(m.evaluatorResults.WithLabelValues("safety", "failed")); got != 2 {
		t.Errorf("expected 2 failed safety results, got %v", got)
	}
	if got := testutil.ToFloat64(m.alertsTotal.WithLabelValues("checkout-llm", "critical")); got != 2 {
		t.Errorf("expected 2 critical alerts, got %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveReport(sampleReport())

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "vigil_engine_runs_total") {
		t.Error("expected runs counter in exposition")
	}
	if !strings.Contains(body, "vigil_engine_run_duration_seconds") {
		t.Error("expected duration histogram in exposition")
	}
}
