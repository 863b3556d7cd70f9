package evaluator

import (
	"context"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// Compliance checks regulatory metrics against standard-specific thresholds.
// Functionally the same as Performance but tagged with the standard
// identifier for audit trails.
type Compliance struct {
	standard   string
	thresholds []suite.Threshold
}

func newCompliance(cfg suite.EvaluatorConfig, _ Options) (Evaluator, error) {
	if cfg.Standard == "" {
		return nil, ConfigError{Type: cfg.Type, Field: "standard", Message: "a standard identifier is required"}
	}
	if err := validateThresholds(cfg); err != nil {
		return nil, err
	}
	return &Compliance{standard: cfg.Standard, thresholds: cfg.Thresholds}, nil
}

// Type implements Evaluator.
func (e *Compliance) Type() Type { return TypeCompliance }

// RequiredMetrics implements Evaluator.
func (e *Compliance) RequiredMetrics() []string { return thresholdMetrics(e.thresholds) }

// Evaluate implements Evaluator.
func (e *Compliance) Evaluate(ctx context.Context, windows map[string]*metric.Window, now time.Time) (*Result, error) {
	result := newResult(TypeCompliance, now)
	result.Standard = e.standard
	if err := evaluateThresholds(ctx, windows, e.thresholds, result); err != nil {
		return nil, err
	}
	finalizeStatus(result)
	return result, nil
}
