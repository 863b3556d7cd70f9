// Package orchestrator drives evaluation runs: it snapshots metric windows,
// executes the configured evaluators, and aggregates results and alerts into
// a run report.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/samijaber1/vigil-ml/internal/alert"
	"github.com/samijaber1/vigil-ml/internal/collector"
	"github.com/samijaber1/vigil-ml/internal/drift"
	"github.com/samijaber1/vigil-ml/internal/evaluator"
	"github.com/samijaber1/vigil-ml/internal/metric"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// RunStatus is the terminal state of one evaluation run.
type RunStatus string

const (
	// RunCompleted means every evaluator completed and no threshold was
	// skipped for lack of data.
	RunCompleted RunStatus = "completed"
	// RunPartiallyFailed means the run finished but at least one evaluator
	// failed or was starved of data. Partial results are preserved.
	RunPartiallyFailed RunStatus = "partially_failed"
)

// DefaultEvaluatorTimeout bounds a single evaluator invocation when the suite
// does not configure one.
const DefaultEvaluatorTimeout = 30 * time.Second

// ExecutionError reports an evaluator that panicked or failed internally
// during a run. The run itself continues.
type ExecutionError struct {
	EvaluatorType evaluator.Type
	Message       string
}

// Error implements the error interface
func (e ExecutionError) Error() string {
	return fmt.Sprintf("evaluator %s: %s", e.EvaluatorType, e.Message)
}

// Report is the aggregate outcome of one evaluation run.
type Report struct {
	RunID          string              `json:"runId"`
	SuiteID        string              `json:"suiteId"`
	Service        string              `json:"service"`
	Environment    string              `json:"environment"`
	StartedAt      time.Time           `json:"startedAt"`
	FinishedAt     time.Time           `json:"finishedAt"`
	WindowStart    time.Time           `json:"windowStart"`
	WindowEnd      time.Time           `json:"windowEnd"`
	Results        []*evaluator.Result `json:"results"`
	Alerts         []alert.Alert       `json:"alerts"`
	Status         RunStatus           `json:"status"`
	MissingMetrics []string            `json:"missingMetrics,omitempty"`
}

// Config assembles an orchestrator for one suite.
type Config struct {
	Suite     *suite.Suite
	Collector collector.Collector
	// DriftScorer backs the ml_model drift method when configured.
	DriftScorer drift.ScoreFunc
	// MaxConcurrency bounds simultaneously running evaluators. Zero means
	// the number of configured evaluators.
	MaxConcurrency int64
	Logger         *log.Logger
}

// Orchestrator executes evaluation runs for a single suite. Safe for
// concurrent Run calls; all per-run state is local.
type Orchestrator struct {
	suite          *suite.Suite
	collector      collector.Collector
	evaluators     []evaluator.Evaluator
	alerts         *alert.Engine
	snapshotWindow time.Duration
	evalTimeout    time.Duration
	sem            *semaphore.Weighted
	logger         *log.Logger
}

// New builds an orchestrator from config. Evaluator construction happens here
// so that configuration errors surface before any run is scheduled.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Suite == nil {
		return nil, fmt.Errorf("suite is required")
	}
	if cfg.Collector == nil {
		return nil, fmt.Errorf("collector is required")
	}

	snapshotWindow, err := suite.ParseDuration(cfg.Suite.Spec.SnapshotWindow)
	if err != nil {
		return nil, fmt.Errorf("snapshotWindow: %w", err)
	}

	evalTimeout := DefaultEvaluatorTimeout
	if cfg.Suite.Spec.EvaluatorTimeout != "" {
		evalTimeout, err = suite.ParseDuration(cfg.Suite.Spec.EvaluatorTimeout)
		if err != nil {
			return nil, fmt.Errorf("evaluatorTimeout: %w", err)
		}
	}

	opts := evaluator.Options{DriftScorer: cfg.DriftScorer}
	evaluators := make([]evaluator.Evaluator, 0, len(cfg.Suite.Spec.Evaluators))
	for i, ec := range cfg.Suite.Spec.Evaluators {
		ev, err := evaluator.NewWithOptions(ec, opts)
		if err != nil {
			return nil, fmt.Errorf("evaluator %d: %w", i, err)
		}
		evaluators = append(evaluators, ev)
	}
	if len(evaluators) == 0 {
		return nil, fmt.Errorf("suite %s configures no evaluators", cfg.Suite.Metadata.ID)
	}

	rules, err := alert.RulesFromConfig(cfg.Suite.Spec.AlertRules)
	if err != nil {
		return nil, err
	}

	bound := cfg.MaxConcurrency
	if bound <= 0 {
		bound = int64(len(evaluators))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Orchestrator{
		suite:          cfg.Suite,
		collector:      cfg.Collector,
		evaluators:     evaluators,
		alerts:         alert.NewEngine(rules),
		snapshotWindow: snapshotWindow,
		evalTimeout:    evalTimeout,
		sem:            semaphore.NewWeighted(bound),
		logger:         logger,
	}, nil
}

// SuiteID returns the identifier of the orchestrated suite.
func (o *Orchestrator) SuiteID() string { return o.suite.Metadata.ID }

// Run executes one evaluation at the given reference time. Collection and
// evaluator failures degrade the run to partially failed; a run always
// produces a report from whatever windows arrived. Cancellation between
// phases discards the run entirely.
func (o *Orchestrator) Run(ctx context.Context, now time.Time) (*Report, error) {
	runID := uuid.NewString()
	startedAt := time.Now()
	windowStart := now.Add(-o.snapshotWindow)

	o.logger.Printf("run %s: suite=%s collecting window [%s, %s)",
		runID, o.suite.Metadata.ID, windowStart.Format(time.RFC3339), now.Format(time.RFC3339))

	required := o.requiredMetrics()
	windows, err := o.collector.Collect(ctx, required, windowStart, now)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("run %s: collect: %w", runID, err)
		}
		// The absent metrics surface as gaps and degrade the run.
		o.logger.Printf("run %s: collect: %v, continuing with partial snapshot", runID, err)
	}
	if windows == nil {
		windows = map[string]*metric.Window{}
	}

	missing := missingMetrics(required, windows)
	if len(missing) > 0 {
		o.logger.Printf("run %s: %d metrics absent from snapshot: %v", runID, len(missing), missing)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := o.evaluate(ctx, windows, now)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	alerts := o.alerts.Derive(results, now)
	status := runStatus(results, missing)

	report := &Report{
		RunID:          runID,
		SuiteID:        o.suite.Metadata.ID,
		Service:        o.suite.Metadata.Service,
		Environment:    o.suite.Spec.Environment,
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
		WindowStart:    windowStart,
		WindowEnd:      now,
		Results:        results,
		Alerts:         alerts,
		Status:         status,
		MissingMetrics: missing,
	}

	o.logger.Printf("run %s: status=%s results=%d alerts=%d", runID, status, len(results), len(alerts))
	return report, nil
}

// evaluate runs all evaluators concurrently, bounded by the semaphore.
// Results land at their evaluator's configured index so report ordering is
// deterministic.
func (o *Orchestrator) evaluate(ctx context.Context, windows map[string]*metric.Window, now time.Time) []*evaluator.Result {
	results := make([]*evaluator.Result, len(o.evaluators))

	var wg sync.WaitGroup
	for i, ev := range o.evaluators {
		wg.Add(1)
		go func(i int, ev evaluator.Evaluator) {
			defer wg.Done()
			if err := o.sem.Acquire(ctx, 1); err != nil {
				results[i] = failedResult(ev.Type(), now, err)
				return
			}
			defer o.sem.Release(1)
			results[i] = o.runOne(ctx, ev, windows, now)
		}(i, ev)
	}
	wg.Wait()

	return results
}

// runOne invokes a single evaluator under the per-evaluator timeout,
// converting panics and errors into failed results. On timeout the evaluator
// goroutine is abandoned; windows are never mutated during a run, so the
// stray goroutine cannot corrupt shared state.
func (o *Orchestrator) runOne(ctx context.Context, ev evaluator.Evaluator, windows map[string]*metric.Window, now time.Time) *evaluator.Result {
	evalCtx, cancel := context.WithTimeout(ctx, o.evalTimeout)
	defer cancel()

	type outcome struct {
		result *evaluator.Result
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: ExecutionError{EvaluatorType: ev.Type(), Message: fmt.Sprintf("panic: %v", r)}}
			}
		}()
		res, err := ev.Evaluate(evalCtx, windows, now)
		ch <- outcome{result: res, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			o.logger.Printf("evaluator %s failed: %v", ev.Type(), out.err)
			return failedResult(ev.Type(), now, out.err)
		}
		return out.result
	case <-evalCtx.Done():
		o.logger.Printf("evaluator %s: %v after %s", ev.Type(), evalCtx.Err(), o.evalTimeout)
		return failedResult(ev.Type(), now, fmt.Errorf("evaluation aborted: %w", evalCtx.Err()))
	}
}

// requiredMetrics returns the deduplicated, sorted union of every evaluator's
// metric requirements.
func (o *Orchestrator) requiredMetrics() []string {
	set := make(map[string]struct{})
	for _, ev := range o.evaluators {
		for _, m := range ev.RequiredMetrics() {
			set[m] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for m := range set {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

func missingMetrics(required []string, windows map[string]*metric.Window) []string {
	var missing []string
	for _, m := range required {
		if _, ok := windows[m]; !ok {
			missing = append(missing, m)
		}
	}
	return missing
}

// runStatus degrades the run when any evaluator failed or skipped, any
// threshold verdict was skipped, or any required metric was absent.
func runStatus(results []*evaluator.Result, missing []string) RunStatus {
	if len(missing) > 0 {
		return RunPartiallyFailed
	}
	for _, r := range results {
		if r == nil || r.Status != evaluator.StatusCompleted || r.HasSkipped() {
			return RunPartiallyFailed
		}
	}
	return RunCompleted
}

func failedResult(t evaluator.Type, now time.Time, err error) *evaluator.Result {
	return &evaluator.Result{
		EvaluatorType: t,
		Metrics:       map[string]float64{},
		Thresholds:    map[string]evaluator.ThresholdResult{},
		Status:        evaluator.StatusFailed,
		Error:         err.Error(),
		Timestamp:     now,
	}
}
