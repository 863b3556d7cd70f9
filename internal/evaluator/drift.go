package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samijaber1/vigil-ml/internal/drift"
	"github.com/samijaber1/vigil-ml/internal/metric"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// BaselineSuffix is appended to a metric name to address its baseline window
// in the snapshot. Collectors populate both keys; baseline refresh stays a
// caller decision.
const BaselineSuffix = ":baseline"

// Drift runs the drift detector for each configured metric/method pair.
type Drift struct {
	spec     suite.DriftSpec
	detector *drift.Detector
}

func newDrift(cfg suite.EvaluatorConfig, opts Options) (Evaluator, error) {
	if cfg.Drift == nil {
		return nil, ConfigError{Type: cfg.Type, Field: "drift", Message: "drift section is required"}
	}
	if len(cfg.Drift.Metrics) == 0 {
		return nil, ConfigError{Type: cfg.Type, Field: "drift.metrics", Message: "at least one metric is required"}
	}
	if len(cfg.Drift.DetectionMethods) == 0 {
		return nil, ConfigError{Type: cfg.Type, Field: "drift.detectionMethods", Message: "at least one detection method is required"}
	}
	if cfg.Drift.AdaptationThreshold <= 0 {
		return nil, ConfigError{Type: cfg.Type, Field: "drift.adaptationThreshold", Message: "must be > 0"}
	}
	for _, m := range cfg.Drift.DetectionMethods {
		switch drift.Method(m) {
		case drift.MethodStatistical:
		case drift.MethodMLModel:
			if opts.DriftScorer == nil {
				return nil, ConfigError{Type: cfg.Type, Field: "drift.detectionMethods", Message: "ml_model method requires a configured scorer"}
			}
		default:
			return nil, ConfigError{Type: cfg.Type, Field: "drift.detectionMethods", Message: fmt.Sprintf("unknown method %q", m)}
		}
	}

	detector := drift.NewDetector()
	detector.SetMinSamples(cfg.Drift.MinSamples)
	detector.SetScoreFunc(opts.DriftScorer)

	return &Drift{spec: *cfg.Drift, detector: detector}, nil
}

// Type implements Evaluator.
func (e *Drift) Type() Type { return TypeDrift }

// RequiredMetrics implements Evaluator. Each metric needs its current window
// and its baseline window.
func (e *Drift) RequiredMetrics() []string {
	names := make([]string, 0, 2*len(e.spec.Metrics))
	for _, m := range e.spec.Metrics {
		names = append(names, m, m+BaselineSuffix)
	}
	return names
}

// Evaluate implements Evaluator. One threshold entry is produced per
// metric/method pair; insufficient data degrades the pair to skipped.
func (e *Drift) Evaluate(ctx context.Context, windows map[string]*metric.Window, now time.Time) (*Result, error) {
	result := newResult(TypeDrift, now)

	for _, m := range e.spec.Metrics {
		current, haveCurrent := windows[m]
		baseline, haveBaseline := windows[m+BaselineSuffix]

		for _, method := range e.spec.DetectionMethods {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			key := m + ":" + method

			if !haveCurrent || !haveBaseline {
				missing := m
				if haveCurrent {
					missing = m + BaselineSuffix
				}
				result.Thresholds[key] = ThresholdResult{
					Status: ThresholdSkipped,
					Reason: fmt.Sprintf("metric %s absent from snapshot", missing),
				}
				continue
			}

			dr, err := e.detector.Detect(baseline, current, drift.Method(method), e.spec.AdaptationThreshold)
			if err != nil {
				var ide metric.InsufficientDataError
				if errors.As(err, &ide) {
					result.Thresholds[key] = ThresholdResult{
						Status: ThresholdSkipped,
						Reason: err.Error(),
					}
					continue
				}
				return nil, fmt.Errorf("drift %s: %w", key, err)
			}

			result.Metrics[key] = dr.Score

			tr := ThresholdResult{
				Status:    ThresholdPass,
				Observed:  dr.Score,
				Threshold: dr.Threshold,
			}
			if dr.Drifted {
				tr.Status = ThresholdFail
				tr.Reason = fmt.Sprintf("drift score %.4f exceeds threshold %.4f (%s)", dr.Score, dr.Threshold, method)
			}
			result.Thresholds[key] = tr
		}
	}

	finalizeStatus(result)
	return result, nil
}
