package alert

import (
	"testing"
	"time"

	"github.com/samijaber1/vigil-ml/internal/evaluator"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

func failedResult(etype evaluator.Type, thresholds map[string]evaluator.ThresholdResult) *evaluator.Result {
	return &evaluator.Result{
		EvaluatorType: etype,
		Thresholds:    thresholds,
		Status:        evaluator.StatusCompleted,
	}
}

func TestRulesFromConfig(t *testing.T) {
	rules, err := RulesFromConfig([]suite.AlertRule{
		{Name: "latency-page", Evaluator: "performance", Metric: "latency_ms", Severity: "critical"},
		{Name: "catch-all", Severity: "info"},
	})
	if err != nil {
		t.Fatalf("RulesFromConfig: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Severity != SeverityCritical || rules[0].Evaluator != evaluator.TypePerformance {
		t.Errorf("unexpected first rule: %+v", rules[0])
	}

	if _, err := RulesFromConfig([]suite.AlertRule{{Name: "bad", Severity: "panic"}}); err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestDeriveFirstMatchWins(t *testing.T) {
	engine := NewEngine([]Rule{
		{Name: "latency-page", Evaluator: evaluator.TypePerformance, Metric: "latency_ms", Severity: SeverityCritical},
		{Name: "perf-generic", Evaluator: evaluator.TypePerformance, Severity: SeverityInfo},
	})

	now := time.Now()
	alerts := engine.Derive([]*evaluator.Result{
		failedResult(evaluator.TypePerformance, map[string]evaluator.ThresholdResult{
			"latency_ms:p99": {Status: evaluator.ThresholdFail, Observed: 300, Threshold: 250, Reason: "p99 over max"},
		}),
	}, now)

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Name != "latency-page" {
		t.Errorf("expected first matching rule to win, got %q", a.Name)
	}
	if a.Severity != SeverityCritical {
		t.Errorf("expected critical, got %s", a.Severity)
	}
	if a.Metric != "latency_ms" {
		t.Errorf("expected base metric latency_ms, got %q", a.Metric)
	}
	if a.Condition != "p99 over max" {
		t.Errorf("unexpected condition %q", a.Condition)
	}
	if !a.TriggeredAt.Equal(now) {
		t.Errorf("expected TriggeredAt %v, got %v", now, a.TriggeredAt)
	}
}

func TestDeriveDefaultSeverity(t *testing.T) {
	engine := NewEngine(nil)

	alerts := engine.Derive([]*evaluator.Result{
		failedResult(evaluator.TypePerformance, map[string]evaluator.ThresholdResult{
			"throughput_rps": {Status: evaluator.ThresholdFail, Observed: 80, Threshold: 100},
		}),
	}, time.Now())

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Severity != SeverityWarning {
		t.Errorf("expected default warning severity, got %s", alerts[0].Severity)
	}
	if alerts[0].Name != "performance/throughput_rps" {
		t.Errorf("unexpected generated name %q", alerts[0].Name)
	}
	if alerts[0].Condition == "" {
		t.Error("expected generated condition for empty reason")
	}
}

func TestDeriveDeduplicatesPerRun(t *testing.T) {
	// Two failed thresholds on the same metric mapping to the same
	// (evaluator, metric, severity) tuple must yield exactly one alert.
	engine := NewEngine([]Rule{
		{Name: "latency", Metric: "latency_ms", Severity: SeverityCritical},
	})

	alerts := engine.Derive([]*evaluator.Result{
		failedResult(evaluator.TypePerformance, map[string]evaluator.ThresholdResult{
			"latency_ms:p50": {Status: evaluator.ThresholdFail, Observed: 120, Threshold: 100, Reason: "p50 over max"},
			"latency_ms:p99": {Status: evaluator.ThresholdFail, Observed: 900, Threshold: 250, Reason: "p99 over max"},
		}),
	}, time.Now())

	if len(alerts) != 1 {
		t.Fatalf("expected 1 deduplicated alert, got %d", len(alerts))
	}
	// Sorted key order makes p50 the surviving entry.
	if alerts[0].Condition != "p50 over max" {
		t.Errorf("unexpected surviving condition %q", alerts[0].Condition)
	}
}

func TestDeriveDistinctSeveritiesNotDeduplicated(t *testing.T) {
	engine := NewEngine([]Rule{
		{Name: "p99-page", Metric: "latency_ms", Severity: SeverityCritical},
	})

	// Same metric from two evaluator types: tuples differ, both alert.
	alerts := engine.Derive([]*evaluator.Result{
		failedResult(evaluator.TypePerformance, map[string]evaluator.ThresholdResult{
			"latency_ms:p99": {Status: evaluator.ThresholdFail, Observed: 900, Threshold: 250},
		}),
		failedResult(evaluator.TypeCompliance, map[string]evaluator.ThresholdResult{
			"latency_ms:p99": {Status: evaluator.ThresholdFail, Observed: 900, Threshold: 250},
		}),
	}, time.Now())

	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts across evaluator types, got %d", len(alerts))
	}
}

func TestDeriveSafetyFloorsAtCritical(t *testing.T) {
	engine := NewEngine([]Rule{
		{Name: "toxicity-note", Evaluator: evaluator.TypeSafety, Metric: "toxicity_rate", Severity: SeverityInfo},
	})

	alerts := engine.Derive([]*evaluator.Result{
		failedResult(evaluator.TypeSafety, map[string]evaluator.ThresholdResult{
			"toxicity_rate": {Status: evaluator.ThresholdFail, Observed: 0.02, Threshold: 0.01},
		}),
	}, time.Now())

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Severity != SeverityCritical {
		t.Errorf("safety failure should floor at critical, got %s", alerts[0].Severity)
	}
}

func TestDeriveNonRecoverableSafetyEscalatesToEmergency(t *testing.T) {
	engine := NewEngine(nil)

	result := failedResult(evaluator.TypeSafety, map[string]evaluator.ThresholdResult{
		"harmful_output_rate": {Status: evaluator.ThresholdFail, Observed: 0.05, Threshold: 0.001, Critical: true},
	})
	result.NonRecoverable = true

	alerts := engine.Derive([]*evaluator.Result{result}, time.Now())
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Severity != SeverityEmergency {
		t.Errorf("non-recoverable safety failure should escalate to emergency, got %s", alerts[0].Severity)
	}
}

func TestDeriveIgnoresPassAndSkipped(t *testing.T) {
	engine := NewEngine(nil)

	alerts := engine.Derive([]*evaluator.Result{
		failedResult(evaluator.TypePerformance, map[string]evaluator.ThresholdResult{
			"latency_ms:p99":    {Status: evaluator.ThresholdPass, Observed: 100, Threshold: 250},
			"missing_metric":    {Status: evaluator.ThresholdSkipped, Reason: "metric absent"},
			"error_rate":        {Status: evaluator.ThresholdFail, Observed: 0.2, Threshold: 0.1},
		}),
		nil,
	}, time.Now())

	if len(alerts) != 1 {
		t.Fatalf("expected only the failed threshold to alert, got %d", len(alerts))
	}
	if alerts[0].Metric != "error_rate" {
		t.Errorf("unexpected alerting metric %q", alerts[0].Metric)
	}
}
