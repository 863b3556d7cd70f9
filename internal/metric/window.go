package metric

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Sample is a single timestamped observation for a metric. Immutable once
// recorded.
type Sample struct {
	Value     float64
	Timestamp time.Time
}

// Window is a time-bounded, chronologically ordered collection of samples for
// one metric name. Bounds are [start, end). Windows produced by Slice are
// read-only views over the parent's samples.
type Window struct {
	name     string
	start    time.Time
	end      time.Time
	samples  []Sample
	readOnly bool
}

// NewWindow creates an empty window for the given metric covering [start, end).
func NewWindow(name string, start, end time.Time) (*Window, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("metric %s: window end %s not after start %s", name, end, start)
	}
	return &Window{name: name, start: start, end: end}, nil
}

// Name returns the metric name.
func (w *Window) Name() string { return w.name }

// Start returns the inclusive lower bound.
func (w *Window) Start() time.Time { return w.start }

// End returns the exclusive upper bound.
func (w *Window) End() time.Time { return w.end }

// Span returns the window duration.
func (w *Window) Span() time.Duration { return w.end.Sub(w.start) }

// Len returns the number of contained samples.
func (w *Window) Len() int { return len(w.samples) }

// Add appends a sample. The timestamp must fall within [start, end) and must
// not precede the newest sample already in the window.
func (w *Window) Add(s Sample) error {
	if w.readOnly {
		return fmt.Errorf("metric %s: window is read-only", w.name)
	}
	if s.Timestamp.Before(w.start) || !s.Timestamp.Before(w.end) {
		return OutOfWindowError{Metric: w.name, Timestamp: s.Timestamp, Start: w.start, End: w.end}
	}
	if n := len(w.samples); n > 0 && s.Timestamp.Before(w.samples[n-1].Timestamp) {
		return OutOfWindowError{Metric: w.name, Timestamp: s.Timestamp, Start: w.start, End: w.end}
	}
	w.samples = append(w.samples, s)
	return nil
}

// Values returns the sample values in chronological order. The slice is a
// copy; mutating it does not affect the window.
func (w *Window) Values() []float64 {
	values := make([]float64, len(w.samples))
	for i, s := range w.samples {
		values[i] = s.Value
	}
	return values
}

// Mean returns the arithmetic mean of all sample values.
func (w *Window) Mean() (float64, error) {
	if len(w.samples) == 0 {
		return 0, EmptyWindowError{Metric: w.name}
	}
	var sum float64
	for _, s := range w.samples {
		sum += s.Value
	}
	return sum / float64(len(w.samples)), nil
}

// Percentile returns the p-th percentile (0 < p <= 100) of sample values
// using nearest-rank interpolation.
func (w *Window) Percentile(p float64) (float64, error) {
	if len(w.samples) == 0 {
		return 0, EmptyWindowError{Metric: w.name}
	}
	if p <= 0 || p > 100 {
		return 0, fmt.Errorf("metric %s: percentile %f out of range (0, 100]", w.name, p)
	}
	values := w.Values()
	sort.Float64s(values)
	rank := int(math.Ceil(p/100*float64(len(values)))) - 1
	if rank < 0 {
		rank = 0
	}
	return values[rank], nil
}

// Rate returns samples per second over the window span.
func (w *Window) Rate() (float64, error) {
	if len(w.samples) == 0 {
		return 0, EmptyWindowError{Metric: w.name}
	}
	return float64(len(w.samples)) / w.Span().Seconds(), nil
}

// CountAbove returns the number of samples strictly exceeding threshold.
func (w *Window) CountAbove(threshold float64) (int, error) {
	if len(w.samples) == 0 {
		return 0, EmptyWindowError{Metric: w.name}
	}
	count := 0
	for _, s := range w.samples {
		if s.Value > threshold {
			count++
		}
	}
	return count, nil
}

// ViolationRate returns the fraction of samples for which violates returns
// true.
func (w *Window) ViolationRate(violates func(float64) bool) (float64, error) {
	if len(w.samples) == 0 {
		return 0, EmptyWindowError{Metric: w.name}
	}
	count := 0
	for _, s := range w.samples {
		if violates(s.Value) {
			count++
		}
	}
	return float64(count) / float64(len(w.samples)), nil
}

// Slice returns a read-only view covering the intersection of [start, end)
// with the window bounds. The view shares the parent's sample storage. When
// the intersection is empty the view has no samples and keeps the requested
// bounds.
func (w *Window) Slice(start, end time.Time) *Window {
	from, to := start, end
	if from.Before(w.start) {
		from = w.start
	}
	if to.After(w.end) {
		to = w.end
	}
	if !to.After(from) {
		if end.Before(start) {
			end = start
		}
		return &Window{name: w.name, start: start, end: end, readOnly: true}
	}

	// Samples are chronological, so the slice bounds can be found by binary
	// search.
	lo := sort.Search(len(w.samples), func(i int) bool {
		return !w.samples[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(w.samples), func(i int) bool {
		return !w.samples[i].Timestamp.Before(to)
	})

	return &Window{
		name:     w.name,
		start:    from,
		end:      to,
		samples:  w.samples[lo:hi],
		readOnly: true,
	}
}

// FromSamples builds a window from an already-ordered sample series, as handed
// over by collectors. Samples outside [start, end) are rejected.
func FromSamples(name string, start, end time.Time, samples []Sample) (*Window, error) {
	w, err := NewWindow(name, start, end)
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		if err := w.Add(s); err != nil {
			return nil, err
		}
	}
	return w, nil
}
