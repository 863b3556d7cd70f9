package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
)

func TestSyntheticCollectFiltersToRange(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	c := NewSynthetic()
	c.SetSeries("latency_ms", []metric.Sample{
		{Value: 100, Timestamp: base.Add(-time.Minute)}, // before range
		{Value: 110, Timestamp: base},
		{Value: 120, Timestamp: base.Add(30 * time.Second)},
		{Value: 130, Timestamp: base.Add(5 * time.Minute)}, // at end, excluded
	})

	windows, err := c.Collect(context.Background(), []string{"latency_ms", "absent"}, base, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	w, ok := windows["latency_ms"]
	if !ok {
		t.Fatal("expected latency_ms window")
	}
	if w.Len() != 2 {
		t.Errorf("expected 2 in-range samples, got %d", w.Len())
	}
	if _, ok := windows["absent"]; ok {
		t.Error("absent metric should be omitted, not present")
	}
}

func TestSyntheticCollectSortsUnorderedSeries(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	c := NewSynthetic()
	c.SetSeries("error_rate", []metric.Sample{
		{Value: 0.2, Timestamp: base.Add(2 * time.Minute)},
		{Value: 0.1, Timestamp: base.Add(time.Minute)},
	})

	windows, err := c.Collect(context.Background(), []string{"error_rate"}, base, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	values := windows["error_rate"].Values()
	if len(values) != 2 || values[0] != 0.1 || values[1] != 0.2 {
		t.Errorf("expected chronological values [0.1 0.2], got %v", values)
	}
}

func TestSyntheticLoadFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.json")

	fixture := `{
	  "metrics": {
	    "availability": [
	      {"value": 1, "timestamp": "2026-08-28T10:00:00Z"},
	      {"value": 0, "timestamp": "2026-08-28T10:01:00Z"}
	    ],
	    "feature_mean:baseline": [
	      {"value": 42.5, "timestamp": "2026-08-28T10:00:30Z"}
	    ]
	  }
	}`
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	c := NewSynthetic()
	if err := c.LoadFixture(path); err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	start := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	windows, err := c.Collect(context.Background(), []string{"availability", "feature_mean:baseline"}, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := windows["availability"].Len(); got != 2 {
		t.Errorf("expected 2 availability samples, got %d", got)
	}
	if got := windows["feature_mean:baseline"].Len(); got != 1 {
		t.Errorf("expected 1 baseline sample, got %d", got)
	}
}

func TestSyntheticLoadFixtureErrors(t *testing.T) {
	c := NewSynthetic()
	if err := c.LoadFixture("/nonexistent/fixture.json"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := c.LoadFixture(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestSyntheticCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewSynthetic()
	if _, err := c.Collect(ctx, []string{"x"}, time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Error("expected context error")
	}
}
