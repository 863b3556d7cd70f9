package metric

import (
	"fmt"
	"time"
)

// OutOfWindowError indicates a sample was rejected at ingestion because its
// timestamp falls outside the window bounds or precedes the newest sample.
type OutOfWindowError struct {
	Metric    string
	Timestamp time.Time
	Start     time.Time
	End       time.Time
}

// Error implements the error interface
func (e OutOfWindowError) Error() string {
	return fmt.Sprintf("metric %s: sample at %s outside window [%s, %s)",
		e.Metric, e.Timestamp.Format(time.RFC3339), e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// EmptyWindowError indicates an aggregation was requested over a window with
// no samples. Callers must treat this as "no data", never as zero.
type EmptyWindowError struct {
	Metric string
}

// Error implements the error interface
func (e EmptyWindowError) Error() string {
	return fmt.Sprintf("metric %s: window contains no samples", e.Metric)
}

// InsufficientDataError indicates a statistic could not be computed because
// the window holds fewer samples than the required minimum.
type InsufficientDataError struct {
	Metric   string
	Samples  int
	Required int
}

// Error implements the error interface
func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("metric %s: %d samples, need at least %d", e.Metric, e.Samples, e.Required)
}
