package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samijaber1/vigil-ml/internal/budget"
	"github.com/samijaber1/vigil-ml/internal/metric"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// Reliability evaluates configured SLOs through the error-budget tracker. A
// threshold verdict fails when the budget state is anything but ok.
type Reliability struct {
	slos    []suite.SLO
	tracker *budget.Tracker
}

func newReliability(cfg suite.EvaluatorConfig, _ Options) (Evaluator, error) {
	if len(cfg.SLOs) == 0 {
		return nil, ConfigError{Type: cfg.Type, Field: "slos", Message: "at least one SLO is required"}
	}
	for _, slo := range cfg.SLOs {
		if slo.Metric == "" {
			return nil, ConfigError{Type: cfg.Type, Field: "slos", Message: fmt.Sprintf("SLO %s has no metric", slo.Name)}
		}
		if _, err := suite.ParseDuration(slo.Window); err != nil {
			return nil, ConfigError{Type: cfg.Type, Field: "slos", Message: fmt.Sprintf("SLO %s: %v", slo.Name, err)}
		}
		if slo.IsRatio() && (slo.Target <= 0 || slo.Target > 1) {
			return nil, ConfigError{Type: cfg.Type, Field: "slos", Message: fmt.Sprintf("SLO %s: target %f not in (0, 1]", slo.Name, slo.Target)}
		}
		if !slo.IsRatio() && (slo.BudgetFraction <= 0 || slo.BudgetFraction > 1) {
			return nil, ConfigError{Type: cfg.Type, Field: "slos", Message: fmt.Sprintf("SLO %s: budgetFraction %f not in (0, 1]", slo.Name, slo.BudgetFraction)}
		}
	}

	return &Reliability{
		slos:    cfg.SLOs,
		tracker: budget.NewTracker(cfg.MinSamples),
	}, nil
}

// Type implements Evaluator.
func (e *Reliability) Type() Type { return TypeReliability }

// RequiredMetrics implements Evaluator.
func (e *Reliability) RequiredMetrics() []string {
	names := make([]string, 0, len(e.slos))
	for _, slo := range e.slos {
		names = append(names, slo.Metric)
	}
	return names
}

// Evaluate computes budget state per SLO. Missing metrics and insufficient
// data degrade that SLO's entry to skipped without failing the whole result.
func (e *Reliability) Evaluate(ctx context.Context, windows map[string]*metric.Window, now time.Time) (*Result, error) {
	result := newResult(TypeReliability, now)

	for _, slo := range e.slos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w, ok := windows[slo.Metric]
		if !ok {
			result.Thresholds[slo.Name] = ThresholdResult{
				Status: ThresholdSkipped,
				Reason: fmt.Sprintf("metric %s absent from snapshot", slo.Metric),
			}
			continue
		}

		state, err := e.tracker.Compute(w, slo)
		if err != nil {
			var ide metric.InsufficientDataError
			var ewe metric.EmptyWindowError
			if errors.As(err, &ide) || errors.As(err, &ewe) {
				result.Thresholds[slo.Name] = ThresholdResult{
					Status: ThresholdSkipped,
					Reason: err.Error(),
				}
				continue
			}
			return nil, fmt.Errorf("slo %s: %w", slo.Name, err)
		}

		result.Metrics[slo.Name+"_consumed_fraction"] = state.ConsumedFraction
		result.Metrics[slo.Name+"_burn_rate"] = state.BurnRate
		result.Metrics[slo.Name+"_remaining_fraction"] = state.RemainingFraction

		tr := ThresholdResult{
			Observed:  state.ConsumedFraction,
			Threshold: 1.0,
			Status:    ThresholdPass,
		}
		if state.Status != budget.StatusOK {
			tr.Status = ThresholdFail
			tr.Reason = fmt.Sprintf("budget %s: consumed=%s burn=%.2fx",
				state.Status, formatFraction(state.ConsumedFraction), state.BurnRate)
		}
		result.Thresholds[slo.Name] = tr
	}

	finalizeStatus(result)
	return result, nil
}

func formatFraction(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.3f", v)
}
