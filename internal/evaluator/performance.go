package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// Performance compares aggregate metric values against static thresholds.
// Purely functional, no error-budget semantics.
type Performance struct {
	thresholds []suite.Threshold
}

func newPerformance(cfg suite.EvaluatorConfig, _ Options) (Evaluator, error) {
	if err := validateThresholds(cfg); err != nil {
		return nil, err
	}
	return &Performance{thresholds: cfg.Thresholds}, nil
}

// Type implements Evaluator.
func (e *Performance) Type() Type { return TypePerformance }

// RequiredMetrics implements Evaluator.
func (e *Performance) RequiredMetrics() []string { return thresholdMetrics(e.thresholds) }

// Evaluate implements Evaluator.
func (e *Performance) Evaluate(ctx context.Context, windows map[string]*metric.Window, now time.Time) (*Result, error) {
	result := newResult(TypePerformance, now)
	if err := evaluateThresholds(ctx, windows, e.thresholds, result); err != nil {
		return nil, err
	}
	finalizeStatus(result)
	return result, nil
}

// validateThresholds is shared config validation for the threshold-driven
// variants.
func validateThresholds(cfg suite.EvaluatorConfig) error {
	if len(cfg.Thresholds) == 0 {
		return ConfigError{Type: cfg.Type, Field: "thresholds", Message: "at least one threshold is required"}
	}
	for _, th := range cfg.Thresholds {
		if th.Metric == "" {
			return ConfigError{Type: cfg.Type, Field: "thresholds", Message: "threshold with empty metric name"}
		}
		if th.Min == nil && th.Max == nil {
			return ConfigError{Type: cfg.Type, Field: "thresholds", Message: fmt.Sprintf("threshold %s has neither min nor max", th.Metric)}
		}
	}
	return nil
}

// thresholdMetrics lists the distinct metric names referenced by thresholds.
func thresholdMetrics(thresholds []suite.Threshold) []string {
	seen := make(map[string]struct{}, len(thresholds))
	names := make([]string, 0, len(thresholds))
	for _, th := range thresholds {
		if _, ok := seen[th.Metric]; ok {
			continue
		}
		seen[th.Metric] = struct{}{}
		names = append(names, th.Metric)
	}
	return names
}

// thresholdKey names a threshold entry in the result. The aggregate suffix
// keeps two thresholds on the same metric from colliding.
func thresholdKey(th suite.Threshold) string {
	if th.Aggregate == "" || th.Aggregate == "mean" {
		return th.Metric
	}
	return th.Metric + ":" + th.Aggregate
}

// evaluateThresholds applies each threshold against the snapshot, degrading
// missing or empty metrics to skipped entries.
func evaluateThresholds(ctx context.Context, windows map[string]*metric.Window, thresholds []suite.Threshold, result *Result) error {
	for _, th := range thresholds {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := thresholdKey(th)

		w, ok := windows[th.Metric]
		if !ok {
			result.Thresholds[key] = ThresholdResult{
				Status:   ThresholdSkipped,
				Critical: th.Critical,
				Reason:   fmt.Sprintf("metric %s absent from snapshot", th.Metric),
			}
			continue
		}

		observed, err := aggregateWindow(w, th.Aggregate)
		if err != nil {
			var ewe metric.EmptyWindowError
			if errors.As(err, &ewe) {
				result.Thresholds[key] = ThresholdResult{
					Status:   ThresholdSkipped,
					Critical: th.Critical,
					Reason:   err.Error(),
				}
				continue
			}
			return fmt.Errorf("threshold %s: %w", key, err)
		}

		result.Metrics[key] = observed

		tr := ThresholdResult{Status: ThresholdPass, Observed: observed, Critical: th.Critical}
		switch {
		case th.Max != nil && observed > *th.Max:
			tr.Status = ThresholdFail
			tr.Threshold = *th.Max
			tr.Reason = fmt.Sprintf("observed %.4f exceeds max %.4f", observed, *th.Max)
		case th.Min != nil && observed < *th.Min:
			tr.Status = ThresholdFail
			tr.Threshold = *th.Min
			tr.Reason = fmt.Sprintf("observed %.4f below min %.4f", observed, *th.Min)
		case th.Max != nil:
			tr.Threshold = *th.Max
		default:
			tr.Threshold = *th.Min
		}
		result.Thresholds[key] = tr
	}
	return nil
}
