package budget

import (
	"fmt"
	"math"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// Status classifies the error-budget state of an SLO over one window.
type Status string

const (
	StatusOK        Status = "ok"
	StatusAtRisk    Status = "at_risk"
	StatusExhausted Status = "exhausted"
)

// State is the computed error-budget state for one SLO over one evaluation
// run. It is superseded on the next run; history belongs to the audit store.
type State struct {
	SLOName           string
	WindowStart       time.Time
	WindowEnd         time.Time
	ObservedRate      float64
	ConsumedFraction  float64
	BurnRate          float64
	RemainingFraction float64
	Status            Status
}

// Tracker computes error-budget consumption for SLO definitions.
type Tracker struct {
	minSamples int
}

// NewTracker creates a tracker requiring at least minSamples observations per
// window. Values below 1 fall back to the default of 1.
func NewTracker(minSamples int) *Tracker {
	if minSamples < 1 {
		minSamples = 1
	}
	return &Tracker{minSamples: minSamples}
}

// Compute derives the error-budget state of slo from the window's samples.
//
// observed_rate is the fraction of violating samples: 1 - mean for ratio SLOs
// over success indicators, the fraction of samples above max for max-type
// SLOs. consumed = observed / budget, burn rate normalizes consumption
// against the nominal SLO window so 1.0 means "on track to exhaust exactly at
// window end".
func (t *Tracker) Compute(w *metric.Window, slo suite.SLO) (*State, error) {
	if w.Len() < t.minSamples {
		return nil, metric.InsufficientDataError{Metric: w.Name(), Samples: w.Len(), Required: t.minSamples}
	}

	observed, err := observedViolationRate(w, slo)
	if err != nil {
		return nil, err
	}

	state := &State{
		SLOName:      slo.Name,
		WindowStart:  w.Start(),
		WindowEnd:    w.End(),
		ObservedRate: observed,
	}

	errorBudget := slo.ErrorBudgetFraction()
	switch {
	case errorBudget > 0:
		state.ConsumedFraction = observed / errorBudget
	case observed > 0:
		// Zero-tolerance SLO (target = 1.0): any violation exhausts the
		// budget immediately.
		state.ConsumedFraction = math.Inf(1)
	default:
		state.ConsumedFraction = 0
	}

	nominalWindow, err := suite.ParseDuration(slo.Window)
	if err != nil {
		return nil, fmt.Errorf("slo %s: invalid window: %w", slo.Name, err)
	}
	elapsed := w.Span()
	if elapsed > 0 && nominalWindow > 0 {
		state.BurnRate = state.ConsumedFraction / (elapsed.Seconds() / nominalWindow.Seconds())
	}

	state.RemainingFraction = 1 - state.ConsumedFraction
	if state.RemainingFraction < 0 || math.IsInf(state.ConsumedFraction, 1) {
		state.RemainingFraction = 0
	}

	switch {
	case state.ConsumedFraction >= 1:
		state.Status = StatusExhausted
	case state.BurnRate > 1:
		state.Status = StatusAtRisk
	default:
		state.Status = StatusOK
	}

	return state, nil
}

// observedViolationRate computes the fraction of SLO-violating samples.
func observedViolationRate(w *metric.Window, slo suite.SLO) (float64, error) {
	if slo.IsRatio() {
		successRate, err := w.Mean()
		if err != nil {
			return 0, err
		}
		violation := 1 - successRate
		if violation < 0 {
			violation = 0
		}
		if violation > 1 {
			violation = 1
		}
		return violation, nil
	}

	return w.ViolationRate(func(v float64) bool { return v > *slo.Max })
}
