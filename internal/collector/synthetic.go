package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
)

// FixtureSample is one observation in a fixture file.
type FixtureSample struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Fixture is the on-disk format for synthetic metric data. One file may carry
// series for any number of metrics, baseline series included under their
// suffixed names.
type Fixture struct {
	Metrics map[string][]FixtureSample `json:"metrics"`
}

// Synthetic serves metric windows from JSON fixtures. Used for tests and for
// running the engine without a live metrics backend.
type Synthetic struct {
	series map[string][]metric.Sample
}

// NewSynthetic creates an empty synthetic collector.
func NewSynthetic() *Synthetic {
	return &Synthetic{series: make(map[string][]metric.Sample)}
}

// LoadFixture reads a fixture file and merges its series into the collector.
// Series loaded for an already-present metric replace the previous one.
func (c *Synthetic) LoadFixture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("parse fixture %s: %w", path, err)
	}

	for name, samples := range fixture.Metrics {
		c.SetSeries(name, toSamples(samples))
	}
	return nil
}

// SetSeries registers a sample series for a metric, sorting it
// chronologically.
func (c *Synthetic) SetSeries(name string, samples []metric.Sample) {
	sorted := make([]metric.Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	c.series[name] = sorted
}

// Collect implements Collector. Samples outside [start, end) are filtered out;
// metrics without a registered series are omitted.
func (c *Synthetic) Collect(ctx context.Context, metrics []string, start, end time.Time) (map[string]*metric.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	windows := make(map[string]*metric.Window, len(metrics))
	for _, name := range metrics {
		series, ok := c.series[name]
		if !ok {
			continue
		}

		var inRange []metric.Sample
		for _, s := range series {
			if s.Timestamp.Before(start) || !s.Timestamp.Before(end) {
				continue
			}
			inRange = append(inRange, s)
		}

		w, err := metric.FromSamples(name, start, end, inRange)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", name, err)
		}
		windows[name] = w
	}

	return windows, nil
}

func toSamples(fs []FixtureSample) []metric.Sample {
	samples := make([]metric.Sample, len(fs))
	for i, s := range fs {
		samples[i] = metric.Sample{Value: s.Value, Timestamp: s.Timestamp}
	}
	return samples
}
