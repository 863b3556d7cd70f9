package drift

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
)

var windowStart = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

// valueWindow builds a window whose i-th sample value is fn(i).
func valueWindow(t *testing.T, name string, n int, fn func(i int) float64) *metric.Window {
	t.Helper()

	w, err := metric.NewWindow(name, windowStart, windowStart.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to create window: %v", err)
	}
	step := time.Hour / time.Duration(n+1)
	for i := 0; i < n; i++ {
		s := metric.Sample{Value: fn(i), Timestamp: windowStart.Add(time.Duration(i+1) * step)}
		if err := w.Add(s); err != nil {
			t.Fatalf("failed to add sample: %v", err)
		}
	}
	return w
}

func TestDetect_Statistical_NoDrift(t *testing.T) {
	// Identical distributions.
	fn := func(i int) float64 { return float64(i % 100) }
	baseline := valueWindow(t, "feature_mean", 500, fn)
	current := valueWindow(t, "feature_mean", 500, fn)

	result, err := NewDetector().Detect(baseline, current, MethodStatistical, 0.2)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	if result.Drifted {
		t.Errorf("expected no drift for identical distributions, score=%f", result.Score)
	}
	if result.Score > 0.01 {
		t.Errorf("expected near-zero PSI, got %f", result.Score)
	}
	if result.Method != MethodStatistical {
		t.Errorf("expected method=statistical, got %s", result.Method)
	}
}

func TestDetect_Statistical_ShiftedDistribution(t *testing.T) {
	baseline := valueWindow(t, "feature_mean", 500, func(i int) float64 { return float64(i % 100) })
	// Whole distribution shifted well past the baseline range.
	current := valueWindow(t, "feature_mean", 500, func(i int) float64 { return float64(i%100) + 200 })

	result, err := NewDetector().Detect(baseline, current, MethodStatistical, 0.2)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	if !result.Drifted {
		t.Errorf("expected drift for shifted distribution, score=%f", result.Score)
	}
}

func TestDetect_Statistical_MinimumSamples(t *testing.T) {
	// 29 baseline samples is one short of the default minimum.
	baseline := valueWindow(t, "feature_mean", 29, func(i int) float64 { return float64(i) })
	current := valueWindow(t, "feature_mean", 100, func(i int) float64 { return float64(i) })

	_, err := NewDetector().Detect(baseline, current, MethodStatistical, 0.2)

	var ide metric.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Samples != 29 || ide.Required != DefaultMinSamples {
		t.Errorf("expected samples=29 required=%d, got %+v", DefaultMinSamples, ide)
	}
}

func TestDetect_Idempotent(t *testing.T) {
	baseline := valueWindow(t, "feature_mean", 100, func(i int) float64 { return float64(i) })
	current := valueWindow(t, "feature_mean", 100, func(i int) float64 { return float64(i) * 1.5 })

	d := NewDetector()
	first, err := d.Detect(baseline, current, MethodStatistical, 0.1)
	if err != nil {
		t.Fatalf("first detect failed: %v", err)
	}
	second, err := d.Detect(baseline, current, MethodStatistical, 0.1)
	if err != nil {
		t.Fatalf("second detect failed: %v", err)
	}

	if *first != *second {
		t.Errorf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestDetect_MLModel(t *testing.T) {
	baseline := valueWindow(t, "embedding_norm", 50, func(i int) float64 { return float64(i) })
	current := valueWindow(t, "embedding_norm", 50, func(i int) float64 { return float64(i) })

	tests := []struct {
		name        string
		score       float64
		scoreErr    error
		threshold   float64
		wantDrifted bool
		wantErr     bool
	}{
		{"below threshold", 0.3, nil, 0.5, false, false},
		{"above threshold", 0.8, nil, 0.5, true, false},
		{"scorer failure", 0, fmt.Errorf("model unavailable"), 0.5, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			d.SetScoreFunc(func(baseline, current []float64) (float64, error) {
				return tt.score, tt.scoreErr
			})

			result, err := d.Detect(baseline, current, MethodMLModel, tt.threshold)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("detect failed: %v", err)
			}
			if result.Drifted != tt.wantDrifted {
				t.Errorf("expected drifted=%v, got %v (score=%f)", tt.wantDrifted, result.Drifted, result.Score)
			}
		})
	}
}

func TestDetect_MLModel_NoScorer(t *testing.T) {
	baseline := valueWindow(t, "m", 50, func(i int) float64 { return float64(i) })
	current := valueWindow(t, "m", 50, func(i int) float64 { return float64(i) })

	if _, err := NewDetector().Detect(baseline, current, MethodMLModel, 0.5); err == nil {
		t.Error("expected error when no scorer is configured")
	}
}
