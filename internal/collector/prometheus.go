package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/samijaber1/vigil-ml/internal/metric"
)

// PrometheusConfig holds Prometheus collector configuration.
type PrometheusConfig struct {
	URL            string
	Timeout        time.Duration
	Step           time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
	// BaselineOffset is how far back a baseline window lies relative to the
	// current one. Metric names carrying the baseline suffix are fetched over
	// the shifted range.
	BaselineOffset time.Duration
	// Queries maps metric names to PromQL expressions. Metrics without an
	// entry are queried by name.
	Queries map[string]string
}

// DefaultPrometheusConfig returns defaults for the given endpoint.
func DefaultPrometheusConfig(prometheusURL string) PrometheusConfig {
	return PrometheusConfig{
		URL:            prometheusURL,
		Timeout:        10 * time.Second,
		Step:           15 * time.Second,
		MaxConcurrency: 10,
		RetryCount:     1,
		RetryDelay:     100 * time.Millisecond,
		BaselineOffset: 7 * 24 * time.Hour,
	}
}

// Prometheus collects metric windows through the Prometheus range-query API.
// Fetches run concurrently, bounded by a weighted semaphore.
type Prometheus struct {
	config PrometheusConfig
	client *http.Client
	sem    *semaphore.Weighted
}

// NewPrometheus creates a Prometheus collector.
func NewPrometheus(config PrometheusConfig) *Prometheus {
	if config.Step <= 0 {
		config.Step = 15 * time.Second
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	return &Prometheus{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		sem:    semaphore.NewWeighted(config.MaxConcurrency),
	}
}

const baselineSuffix = ":baseline"

// Collect implements Collector. Baseline-suffixed metrics are fetched over the
// configured offset range and keep their shifted bounds. Metrics the backend
// returns no series for are omitted from the result, and so are metrics whose
// query fails after retries: a broken query is a gap in the snapshot, not a
// failed collection. Only cancellation fails the call.
func (c *Prometheus) Collect(ctx context.Context, metrics []string, start, end time.Time) (map[string]*metric.Window, error) {
	windows := make(map[string]*metric.Window, len(metrics))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, name := range metrics {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			if err := c.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer c.sem.Release(1)

			w, err := c.fetch(ctx, name, start, end)
			if err != nil {
				log.Printf("prometheus collector: %v", err)
				return
			}
			if w == nil {
				return
			}
			mu.Lock()
			windows[name] = w
			mu.Unlock()
		}(name)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return windows, nil
}

// fetch retrieves one metric's window, retrying transient failures. A nil
// window with nil error means the backend had no series for the query.
func (c *Prometheus) fetch(ctx context.Context, name string, start, end time.Time) (*metric.Window, error) {
	queryName := name
	if strings.HasSuffix(name, baselineSuffix) {
		queryName = strings.TrimSuffix(name, baselineSuffix)
		start = start.Add(-c.config.BaselineOffset)
		end = end.Add(-c.config.BaselineOffset)
	}

	query, ok := c.config.Queries[queryName]
	if !ok {
		query = queryName
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		resp, err := c.queryRange(ctx, query, start, end)
		if err != nil {
			lastErr = err
			continue
		}

		samples := flattenMatrix(resp, start, end)
		if len(samples) == 0 {
			return nil, nil
		}
		w, err := metric.FromSamples(name, start, end, samples)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", name, err)
		}
		return w, nil
	}

	return nil, fmt.Errorf("metric %s: query failed after %d attempts: %w", name, c.config.RetryCount+1, lastErr)
}

func (c *Prometheus) queryRange(ctx context.Context, query string, start, end time.Time) (*rangeResponse, error) {
	endpoint := strings.TrimSuffix(c.config.URL, "/") + "/api/v1/query_range"

	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", strconv.FormatFloat(c.config.Step.Seconds(), 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var result rangeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("prometheus error: %s", result.Error)
	}
	return &result, nil
}

// flattenMatrix merges all series of a matrix response into one chronological
// sample list, clamped to [start, end).
func flattenMatrix(resp *rangeResponse, start, end time.Time) []metric.Sample {
	var samples []metric.Sample
	for _, series := range resp.Data.Result {
		for _, pair := range series.Values {
			ts := pair.Timestamp()
			if ts.Before(start) || !ts.Before(end) {
				continue
			}
			samples = append(samples, metric.Sample{Value: pair.Value(), Timestamp: ts})
		}
	}
	// Series arrive pre-sorted but interleaved across result entries.
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples
}
