package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
)

// Type identifies an evaluator variant. The set is closed: the orchestrator
// dispatches exhaustively over these five tags.
type Type string

const (
	TypeReliability Type = "reliability"
	TypePerformance Type = "performance"
	TypeSafety      Type = "safety"
	TypeDrift       Type = "drift"
	TypeCompliance  Type = "compliance"
)

// ResultStatus classifies the outcome of one evaluator invocation.
type ResultStatus string

const (
	StatusCompleted ResultStatus = "completed"
	StatusFailed    ResultStatus = "failed"
	StatusSkipped   ResultStatus = "skipped"
)

// ThresholdStatus classifies one threshold verdict. Skipped means the backing
// metric had no usable data; it is never silently defaulted to pass.
type ThresholdStatus string

const (
	ThresholdPass    ThresholdStatus = "pass"
	ThresholdFail    ThresholdStatus = "fail"
	ThresholdSkipped ThresholdStatus = "skipped"
)

// ThresholdResult is the verdict for a single configured threshold.
type ThresholdResult struct {
	Status    ThresholdStatus `json:"status"`
	Observed  float64         `json:"observed"`
	Threshold float64         `json:"threshold"`
	Critical  bool            `json:"critical,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Result is the output of one evaluator for one run. Exactly one entry
// appears in Thresholds per configured threshold, regardless of execution
// order.
type Result struct {
	EvaluatorType  Type                       `json:"evaluatorType"`
	Standard       string                     `json:"standard,omitempty"`
	Metrics        map[string]float64         `json:"metrics"`
	Thresholds     map[string]ThresholdResult `json:"thresholds"`
	Status         ResultStatus               `json:"status"`
	NonRecoverable bool                       `json:"nonRecoverable,omitempty"`
	Error          string                     `json:"error,omitempty"`
	Timestamp      time.Time                  `json:"timestamp"`
}

// HasFailures reports whether any threshold verdict failed.
func (r *Result) HasFailures() bool {
	for _, tr := range r.Thresholds {
		if tr.Status == ThresholdFail {
			return true
		}
	}
	return false
}

// HasSkipped reports whether any threshold verdict was skipped for lack of
// data.
func (r *Result) HasSkipped() bool {
	for _, tr := range r.Thresholds {
		if tr.Status == ThresholdSkipped {
			return true
		}
	}
	return false
}

// Evaluator is the common contract over the five variants. Implementations
// must not retain windows beyond the Evaluate call.
type Evaluator interface {
	Type() Type
	// RequiredMetrics lists the metric names the evaluator reads from the
	// snapshot, including drift baseline keys.
	RequiredMetrics() []string
	Evaluate(ctx context.Context, windows map[string]*metric.Window, now time.Time) (*Result, error)
}

// newResult initializes an empty result for the given variant.
func newResult(t Type, now time.Time) *Result {
	return &Result{
		EvaluatorType: t,
		Metrics:       make(map[string]float64),
		Thresholds:    make(map[string]ThresholdResult),
		Status:        StatusCompleted,
		Timestamp:     now,
	}
}

// finalizeStatus downgrades a result to skipped when no threshold produced a
// verdict.
func finalizeStatus(r *Result) {
	if len(r.Thresholds) == 0 {
		r.Status = StatusSkipped
		return
	}
	allSkipped := true
	for _, tr := range r.Thresholds {
		if tr.Status != ThresholdSkipped {
			allSkipped = false
			break
		}
	}
	if allSkipped {
		r.Status = StatusSkipped
	}
}

// aggregateWindow computes the configured aggregate over a window.
func aggregateWindow(w *metric.Window, aggregate string) (float64, error) {
	switch aggregate {
	case "", "mean":
		return w.Mean()
	case "p50":
		return w.Percentile(50)
	case "p90":
		return w.Percentile(90)
	case "p95":
		return w.Percentile(95)
	case "p99":
		return w.Percentile(99)
	case "rate":
		return w.Rate()
	default:
		return 0, fmt.Errorf("unknown aggregate: %s", aggregate)
	}
}
