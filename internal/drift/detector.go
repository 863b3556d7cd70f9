package drift

import (
	"fmt"

	"github.com/samijaber1/vigil-ml/internal/metric"
)

// Method selects how drift is scored.
type Method string

const (
	// MethodStatistical scores drift with a population stability index over
	// baseline deciles.
	MethodStatistical Method = "statistical"
	// MethodMLModel delegates scoring to an injected model; the detector
	// only applies the threshold.
	MethodMLModel Method = "ml_model"
)

// DefaultMinSamples is the minimum window size for statistical methods; below
// this a distance statistic is noise, not signal.
const DefaultMinSamples = 30

// Result is the outcome of one drift detection. Immutable.
type Result struct {
	MetricName string
	Method     Method
	Score      float64
	Threshold  float64
	Drifted    bool
}

// ScoreFunc scores drift between two value distributions in [0, 1]. Supplied
// by an external model integration for MethodMLModel.
type ScoreFunc func(baseline, current []float64) (float64, error)

// Detector compares a baseline window against a current window. It is
// stateless per call; baseline refresh is the caller's decision.
type Detector struct {
	minSamples int
	score      ScoreFunc
}

// NewDetector creates a detector with the default statistical minimum sample
// count and no model scorer.
func NewDetector() *Detector {
	return &Detector{minSamples: DefaultMinSamples}
}

// SetMinSamples overrides the statistical minimum sample count. Values below
// 1 are ignored.
func (d *Detector) SetMinSamples(n int) {
	if n >= 1 {
		d.minSamples = n
	}
}

// SetScoreFunc injects the model scorer used by MethodMLModel.
func (d *Detector) SetScoreFunc(fn ScoreFunc) {
	d.score = fn
}

// Detect scores the drift of current against baseline and applies threshold.
func (d *Detector) Detect(baseline, current *metric.Window, method Method, threshold float64) (*Result, error) {
	switch method {
	case MethodStatistical:
		return d.detectStatistical(baseline, current, threshold)
	case MethodMLModel:
		return d.detectModel(baseline, current, threshold)
	default:
		return nil, fmt.Errorf("unknown drift method: %s", method)
	}
}

func (d *Detector) detectStatistical(baseline, current *metric.Window, threshold float64) (*Result, error) {
	if baseline.Len() < d.minSamples {
		return nil, metric.InsufficientDataError{Metric: baseline.Name(), Samples: baseline.Len(), Required: d.minSamples}
	}
	if current.Len() < d.minSamples {
		return nil, metric.InsufficientDataError{Metric: current.Name(), Samples: current.Len(), Required: d.minSamples}
	}

	score := populationStabilityIndex(baseline.Values(), current.Values())

	return &Result{
		MetricName: current.Name(),
		Method:     MethodStatistical,
		Score:      score,
		Threshold:  threshold,
		Drifted:    score > threshold,
	}, nil
}

func (d *Detector) detectModel(baseline, current *metric.Window, threshold float64) (*Result, error) {
	if d.score == nil {
		return nil, fmt.Errorf("metric %s: no model scorer configured", current.Name())
	}
	if baseline.Len() == 0 {
		return nil, metric.InsufficientDataError{Metric: baseline.Name(), Samples: 0, Required: 1}
	}
	if current.Len() == 0 {
		return nil, metric.InsufficientDataError{Metric: current.Name(), Samples: 0, Required: 1}
	}

	score, err := d.score(baseline.Values(), current.Values())
	if err != nil {
		return nil, fmt.Errorf("metric %s: model scoring: %w", current.Name(), err)
	}

	return &Result{
		MetricName: current.Name(),
		Method:     MethodMLModel,
		Score:      score,
		Threshold:  threshold,
		Drifted:    score > threshold,
	}, nil
}
