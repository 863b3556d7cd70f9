package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/samijaber1/vigil-ml/internal/alert"
	"github.com/samijaber1/vigil-ml/internal/collector"
	"github.com/samijaber1/vigil-ml/internal/evaluator"
	"github.com/samijaber1/vigil-ml/internal/metric"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// stallEvaluator blocks until its context is cancelled.
type stallEvaluator struct{}

func (stallEvaluator) Type() Type                { return "stall" }
func (stallEvaluator) RequiredMetrics() []string { return nil }
func (stallEvaluator) Evaluate(ctx context.Context, _ map[string]*metric.Window, _ time.Time) (*evaluator.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// panicEvaluator panics on every invocation.
type panicEvaluator struct{}

func (panicEvaluator) Type() Type                { return "panic" }
func (panicEvaluator) RequiredMetrics() []string { return nil }
func (panicEvaluator) Evaluate(context.Context, map[string]*metric.Window, time.Time) (*evaluator.Result, error) {
	panic("index out of range in custom evaluator")
}

// Type is an alias so the stubs read naturally.
type Type = evaluator.Type

func init() {
	evaluator.Register("stall", func(suite.EvaluatorConfig, evaluator.Options) (evaluator.Evaluator, error) {
		return stallEvaluator{}, nil
	})
	evaluator.Register("panic", func(suite.EvaluatorConfig, evaluator.Options) (evaluator.Evaluator, error) {
		return panicEvaluator{}, nil
	})
}

func floatPtr(v float64) *float64 { return &v }

func testSuite(evaluators []suite.EvaluatorConfig, rules []suite.AlertRule) *suite.Suite {
	return &suite.Suite{
		APIVersion: "vigil.dev/v1",
		Kind:       "EvaluationSuite",
		Metadata:   suite.Metadata{ID: "checkout-llm", Service: "checkout"},
		Spec: suite.Spec{
			Environment:        "production",
			EvaluationInterval: "5m",
			SnapshotWindow:     "5m",
			Evaluators:         evaluators,
			AlertRules:         rules,
		},
	}
}

func performanceConfig() suite.EvaluatorConfig {
	return suite.EvaluatorConfig{
		Type: "performance",
		Thresholds: []suite.Threshold{
			{Metric: "latency_ms", Aggregate: "p99", Max: floatPtr(250)},
		},
	}
}

func seededCollector(now time.Time, values map[string][]float64) *collector.Synthetic {
	c := collector.NewSynthetic()
	for name, vs := range values {
		samples := make([]metric.Sample, len(vs))
		for i, v := range vs {
			samples[i] = metric.Sample{Value: v, Timestamp: now.Add(-5 * time.Minute).Add(time.Duration(i) * time.Second)}
		}
		c.SetSeries(name, samples)
	}
	return c
}

func quietLogger() *log.Logger {
	return log.New(&strings.Builder{}, "", 0)
}

func TestRunCompleted(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	c := seededCollector(now, map[string][]float64{
		"latency_ms": {100, 120, 140, 110, 130},
	})

	o, err := New(Config{
		Suite:     testSuite([]suite.EvaluatorConfig{performanceConfig()}, nil),
		Collector: c,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := o.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Status != RunCompleted {
		t.Errorf("expected completed, got %s", report.Status)
	}
	if report.RunID == "" {
		t.Error("expected non-empty run ID")
	}
	if report.SuiteID != "checkout-llm" || report.Service != "checkout" || report.Environment != "production" {
		t.Errorf("unexpected report identity: %+v", report)
	}
	if !report.WindowStart.Equal(now.Add(-5 * time.Minute)) || !report.WindowEnd.Equal(now) {
		t.Errorf("unexpected window bounds [%v, %v)", report.WindowStart, report.WindowEnd)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if report.Results[0].Status != evaluator.StatusCompleted {
		t.Errorf("unexpected result status %s", report.Results[0].Status)
	}
	if len(report.Alerts) != 0 {
		t.Errorf("expected no alerts, got %d", len(report.Alerts))
	}
	if len(report.MissingMetrics) != 0 {
		t.Errorf("expected no missing metrics, got %v", report.MissingMetrics)
	}
}

func TestRunMissingMetricDegradesToPartiallyFailed(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	cfg := suite.EvaluatorConfig{
		Type: "performance",
		Thresholds: []suite.Threshold{
			{Metric: "latency_ms", Aggregate: "p99", Max: floatPtr(250)},
			{Metric: "throughput_rps", Aggregate: "rate", Min: floatPtr(0.5)},
		},
	}
	c := seededCollector(now, map[string][]float64{
		"latency_ms": {100, 120, 140},
		// throughput_rps absent from the source
	})

	o, err := New(Config{
		Suite:     testSuite([]suite.EvaluatorConfig{cfg}, nil),
		Collector: c,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := o.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Status != RunPartiallyFailed {
		t.Errorf("expected partially_failed, got %s", report.Status)
	}
	if len(report.MissingMetrics) != 1 || report.MissingMetrics[0] != "throughput_rps" {
		t.Errorf("unexpected missing metrics %v", report.MissingMetrics)
	}

	// The available threshold still produced a verdict.
	result := report.Results[0]
	if result.Status != evaluator.StatusCompleted {
		t.Errorf("partial data should not fail the evaluator, got %s", result.Status)
	}
	if tr := result.Thresholds["latency_ms:p99"]; tr.Status != evaluator.ThresholdPass {
		t.Errorf("expected latency verdict pass, got %+v", tr)
	}
	if tr := result.Thresholds["throughput_rps:rate"]; tr.Status != evaluator.ThresholdSkipped {
		t.Errorf("expected throughput verdict skipped, got %+v", tr)
	}
}

func TestRunDerivesAlerts(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	c := seededCollector(now, map[string][]float64{
		"latency_ms": {400, 420, 410, 390, 450},
	})

	o, err := New(Config{
		Suite: testSuite(
			[]suite.EvaluatorConfig{performanceConfig()},
			[]suite.AlertRule{{Name: "latency-page", Evaluator: "performance", Metric: "latency_ms", Severity: "critical"}},
		),
		Collector: c,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := o.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(report.Alerts))
	}
	a := report.Alerts[0]
	if a.Name != "latency-page" || a.Severity != alert.SeverityCritical || a.Metric != "latency_ms" {
		t.Errorf("unexpected alert %+v", a)
	}
	// A failed threshold alone does not degrade the run.
	if report.Status != RunCompleted {
		t.Errorf("expected completed despite failed threshold, got %s", report.Status)
	}
}

func TestRunDeterministicResultOrder(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	c := seededCollector(now, map[string][]float64{
		"latency_ms":    {100, 120},
		"toxicity_rate": {0.001, 0.002},
	})

	evaluators := []suite.EvaluatorConfig{
		{Type: "safety", Thresholds: []suite.Threshold{{Metric: "toxicity_rate", Max: floatPtr(0.01), Critical: true}}},
		performanceConfig(),
	}

	o, err := New(Config{
		Suite:     testSuite(evaluators, nil),
		Collector: c,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 5; i++ {
		report, err := o.Run(context.Background(), now)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if report.Results[0].EvaluatorType != evaluator.TypeSafety ||
			report.Results[1].EvaluatorType != evaluator.TypePerformance {
			t.Fatalf("results out of configured order: %s, %s",
				report.Results[0].EvaluatorType, report.Results[1].EvaluatorType)
		}
	}
}

func TestRunEvaluatorTimeout(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	c := seededCollector(now, map[string][]float64{
		"latency_ms": {100, 120},
	})

	s := testSuite([]suite.EvaluatorConfig{
		{Type: "stall"},
		performanceConfig(),
	}, nil)
	s.Spec.EvaluatorTimeout = "1s"

	o, err := New(Config{Suite: s, Collector: c, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := o.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Status != RunPartiallyFailed {
		t.Errorf("expected partially_failed, got %s", report.Status)
	}
	stalled := report.Results[0]
	if stalled.Status != evaluator.StatusFailed {
		t.Errorf("expected stalled evaluator to fail, got %s", stalled.Status)
	}
	if stalled.Error == "" {
		t.Error("expected error message on timed-out result")
	}
	// The well-behaved evaluator is unaffected.
	if report.Results[1].Status != evaluator.StatusCompleted {
		t.Errorf("expected performance result completed, got %s", report.Results[1].Status)
	}
}

func TestRunRecoversEvaluatorPanic(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	c := seededCollector(now, map[string][]float64{
		"latency_ms": {100, 120},
	})

	o, err := New(Config{
		Suite:     testSuite([]suite.EvaluatorConfig{{Type: "panic"}, performanceConfig()}, nil),
		Collector: c,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := o.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	panicked := report.Results[0]
	if panicked.Status != evaluator.StatusFailed {
		t.Errorf("expected failed result for panicking evaluator, got %s", panicked.Status)
	}
	if !strings.Contains(panicked.Error, "panic") {
		t.Errorf("expected panic message in error, got %q", panicked.Error)
	}
	if report.Results[1].Status != evaluator.StatusCompleted {
		t.Errorf("panic should not take down sibling evaluators, got %s", report.Results[1].Status)
	}
	if report.Status != RunPartiallyFailed {
		t.Errorf("expected partially_failed, got %s", report.Status)
	}
}

func TestRunCancelledBeforeCollection(t *testing.T) {
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, err := New(Config{
		Suite:     testSuite([]suite.EvaluatorConfig{performanceConfig()}, nil),
		Collector: collector.NewSynthetic(),
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := o.Run(ctx, now); err == nil {
		t.Error("expected error for cancelled context, report must be discarded")
	}
}

func TestRunCollectorFailureDegradesRun(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	o, err := New(Config{
		Suite:     testSuite([]suite.EvaluatorConfig{performanceConfig()}, nil),
		Collector: failingCollector{},
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := o.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("collection failure must not abort the run: %v", err)
	}

	if report.Status != RunPartiallyFailed {
		t.Errorf("expected partially_failed, got %s", report.Status)
	}
	if len(report.MissingMetrics) != 1 || report.MissingMetrics[0] != "latency_ms" {
		t.Errorf("expected latency_ms recorded as a gap, got %v", report.MissingMetrics)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if report.Results[0].Status != evaluator.StatusSkipped {
		t.Errorf("expected starved evaluator skipped, got %s", report.Results[0].Status)
	}
}

// partialCollector delivers one window and reports a failure for the rest.
type partialCollector struct {
	now time.Time
}

func (c partialCollector) Collect(_ context.Context, metrics []string, _, _ time.Time) (map[string]*metric.Window, error) {
	windows, err := seededCollector(c.now, map[string][]float64{
		"latency_ms": {100, 120, 140},
	}).Collect(context.Background(), metrics, c.now.Add(-5*time.Minute), c.now)
	if err != nil {
		return nil, err
	}
	return windows, fmt.Errorf("metric toxicity_rate: query failed")
}

func TestRunKeepsPartialWindowsOnCollectorError(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	evaluators := []suite.EvaluatorConfig{
		performanceConfig(),
		{Type: "safety", Thresholds: []suite.Threshold{{Metric: "toxicity_rate", Max: floatPtr(0.01)}}},
	}

	o, err := New(Config{
		Suite:     testSuite(evaluators, nil),
		Collector: partialCollector{now: now},
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := o.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Status != RunPartiallyFailed {
		t.Errorf("expected partially_failed, got %s", report.Status)
	}
	if len(report.MissingMetrics) != 1 || report.MissingMetrics[0] != "toxicity_rate" {
		t.Errorf("expected only toxicity_rate as a gap, got %v", report.MissingMetrics)
	}
	// The evaluator backed by the delivered window still produced a verdict.
	if report.Results[0].Status != evaluator.StatusCompleted {
		t.Errorf("expected performance completed on delivered window, got %s", report.Results[0].Status)
	}
	if tr := report.Results[0].Thresholds["latency_ms:p99"]; tr.Status != evaluator.ThresholdPass {
		t.Errorf("expected latency verdict pass, got %+v", tr)
	}
}

type failingCollector struct{}

func (failingCollector) Collect(context.Context, []string, time.Time, time.Time) (map[string]*metric.Window, error) {
	return nil, fmt.Errorf("backend unreachable")
}

func TestNewRejectsBadConfig(t *testing.T) {
	c := collector.NewSynthetic()

	// Unknown evaluator type.
	s := testSuite([]suite.EvaluatorConfig{{Type: "quantum"}}, nil)
	_, err := New(Config{Suite: s, Collector: c, Logger: quietLogger()})
	var ute evaluator.UnknownTypeError
	if !errors.As(err, &ute) {
		t.Errorf("expected UnknownTypeError, got %v", err)
	}

	// Malformed evaluator section.
	s = testSuite([]suite.EvaluatorConfig{{Type: "performance"}}, nil)
	_, err = New(Config{Suite: s, Collector: c, Logger: quietLogger()})
	var ce evaluator.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigError for missing thresholds, got %v", err)
	}

	// Bad snapshot window.
	s = testSuite([]suite.EvaluatorConfig{performanceConfig()}, nil)
	s.Spec.SnapshotWindow = "five minutes"
	if _, err := New(Config{Suite: s, Collector: c, Logger: quietLogger()}); err == nil {
		t.Error("expected error for malformed snapshot window")
	}

	// Bad alert severity.
	s = testSuite([]suite.EvaluatorConfig{performanceConfig()},
		[]suite.AlertRule{{Name: "r", Severity: "shout"}})
	if _, err := New(Config{Suite: s, Collector: c, Logger: quietLogger()}); err == nil {
		t.Error("expected error for unknown alert severity")
	}

	// No evaluators at all.
	s = testSuite(nil, nil)
	if _, err := New(Config{Suite: s, Collector: c, Logger: quietLogger()}); err == nil {
		t.Error("expected error for empty evaluator list")
	}
}
