// Package collector retrieves metric sample series from a backing source and
// materializes them as evaluation windows.
package collector

import (
	"context"
	"time"

	"github.com/samijaber1/vigil-ml/internal/metric"
)

// Collector fetches windows for the requested metric names covering
// [start, end). Metrics the source has no data for, or failed to deliver, are
// omitted from the returned map rather than reported as errors; callers decide
// whether a gap degrades the run. A non-nil error may still carry partial
// windows.
type Collector interface {
	Collect(ctx context.Context, metrics []string, start, end time.Time) (map[string]*metric.Window, error)
}
