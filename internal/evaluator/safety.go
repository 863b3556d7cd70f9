package evaluator

import (
	"context"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// Safety is threshold evaluation with escalation semantics: every crossing is
// critical severity downstream regardless of magnitude, and a failed
// critical-flagged threshold marks the whole result non-recoverable.
type Safety struct {
	thresholds []suite.Threshold
}

func newSafety(cfg suite.EvaluatorConfig, _ Options) (Evaluator, error) {
	if err := validateThresholds(cfg); err != nil {
		return nil, err
	}
	return &Safety{thresholds: cfg.Thresholds}, nil
}

// Type implements Evaluator.
func (e *Safety) Type() Type { return TypeSafety }

// RequiredMetrics implements Evaluator.
func (e *Safety) RequiredMetrics() []string { return thresholdMetrics(e.thresholds) }

// Evaluate implements Evaluator.
func (e *Safety) Evaluate(ctx context.Context, windows map[string]*metric.Window, now time.Time) (*Result, error) {
	result := newResult(TypeSafety, now)
	if err := evaluateThresholds(ctx, windows, e.thresholds, result); err != nil {
		return nil, err
	}

	for _, tr := range result.Thresholds {
		if tr.Status == ThresholdFail && tr.Critical {
			result.NonRecoverable = true
			break
		}
	}

	finalizeStatus(result)
	return result, nil
}
