// Package scheduler runs periodic evaluations for every loaded suite and
// keeps the latest report per suite in memory.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/samijaber1/vigil-ml/internal/collector"
	"github.com/samijaber1/vigil-ml/internal/drift"
	"github.com/samijaber1/vigil-ml/internal/orchestrator"
	"github.com/samijaber1/vigil-ml/internal/storage"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// reloadDebounce coalesces bursts of file events into one reload.
const reloadDebounce = 500 * time.Millisecond

// Scheduler manages periodic suite evaluations
type Scheduler struct {
	collector      collector.Collector
	driftScorer    drift.ScoreFunc
	cache          *StateCache
	suiteDirectory string
	schemaPath     string
	suites         []suite.SuiteWithFile
	orchestrators  map[string]*orchestrator.Orchestrator
	audit          storage.AuditStorage
	onReport       func(*orchestrator.Report)
	watcher        *fsnotify.Watcher
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	mu             sync.RWMutex
	running        bool
}

// NewScheduler creates a new scheduler
func NewScheduler(c collector.Collector, suiteDirectory, schemaPath string) *Scheduler {
	return &Scheduler{
		collector:      c,
		cache:          NewStateCache(),
		suiteDirectory: suiteDirectory,
		schemaPath:     schemaPath,
		orchestrators:  make(map[string]*orchestrator.Orchestrator),
	}
}

// SetAuditStorage sets the audit storage backend (optional)
func (s *Scheduler) SetAuditStorage(audit storage.AuditStorage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = audit
}

// SetDriftScorer sets the scorer backing the ml_model drift method (optional)
func (s *Scheduler) SetDriftScorer(scorer drift.ScoreFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driftScorer = scorer
}

// SetReportHook registers a callback invoked after every stored report
// (optional, used for telemetry)
func (s *Scheduler) SetReportHook(hook func(*orchestrator.Report)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReport = hook
}

// LoadSuites loads suites from the configured directory
func (s *Scheduler) LoadSuites() error {
	suiteFiles, loadErrors := suite.LoadFromDirectory(s.suiteDirectory)
	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load suites: %d errors, first: %s", len(loadErrors), loadErrors[0].Error())
	}

	if len(suiteFiles) == 0 {
		return fmt.Errorf("no suites found in %s", s.suiteDirectory)
	}

	// Validate all suites
	validator, err := suite.NewValidator(s.schemaPath)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	validationErrors := validator.ValidateDirectory(s.suiteDirectory)
	if len(validationErrors) > 0 {
		return fmt.Errorf("suite validation failed: %d errors, first: %s", len(validationErrors), validationErrors[0].Error())
	}

	return s.SetSuites(suiteFiles)
}

// SetSuites installs a suite set directly, building one orchestrator per
// suite. Configuration errors fail the whole set before anything is replaced.
func (s *Scheduler) SetSuites(suiteFiles []suite.SuiteWithFile) error {
	s.mu.Lock()
	scorer := s.driftScorer
	audit := s.audit
	s.mu.Unlock()

	orchestrators := make(map[string]*orchestrator.Orchestrator, len(suiteFiles))
	for _, sw := range suiteFiles {
		o, err := orchestrator.New(orchestrator.Config{
			Suite:       sw.Suite,
			Collector:   s.collector,
			DriftScorer: scorer,
		})
		if err != nil {
			return fmt.Errorf("suite %s: %w", sw.Suite.Metadata.ID, err)
		}
		orchestrators[sw.Suite.Metadata.ID] = o
	}

	s.mu.Lock()
	s.suites = suiteFiles
	s.orchestrators = orchestrators
	s.mu.Unlock()

	// Persist suite definitions to audit storage if available
	if audit != nil {
		for _, sw := range suiteFiles {
			if err := audit.StoreSuite(sw.Suite); err != nil {
				log.Printf("Warning: failed to store suite %s: %v", sw.Suite.Metadata.ID, err)
			}
		}
	}

	log.Printf("Loaded %d suites", len(suiteFiles))
	return nil
}

// Start begins the evaluation scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if len(s.suites) == 0 {
		return fmt.Errorf("no suites loaded, call LoadSuites() first")
	}

	s.startLoopsLocked()
	s.running = true

	log.Printf("Started scheduler for %d suites", len(s.suites))
	return nil
}

// startLoopsLocked starts one evaluation goroutine per suite. Caller holds mu.
func (s *Scheduler) startLoopsLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, sw := range s.suites {
		o := s.orchestrators[sw.Suite.Metadata.ID]
		s.wg.Add(1)
		go s.evaluateLoop(ctx, o, sw.Suite)
	}
}

// Stop stops the scheduler and waits for in-flight evaluations to complete
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.cancel()
	s.running = false
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}

	log.Println("Stopping scheduler...")
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// evaluateLoop runs periodic evaluations for a single suite
func (s *Scheduler) evaluateLoop(ctx context.Context, o *orchestrator.Orchestrator, su *suite.Suite) {
	defer s.wg.Done()

	interval, err := suite.ParseDuration(su.Spec.EvaluationInterval)
	if err != nil {
		log.Printf("Error parsing evaluation interval for suite %s: %v", su.Metadata.ID, err)
		return
	}

	// Initial evaluation
	s.evaluateOnce(ctx, o, su, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluateOnce(ctx, o, su, interval)
		}
	}
}

// evaluateOnce performs a single evaluation run for a suite
func (s *Scheduler) evaluateOnce(ctx context.Context, o *orchestrator.Orchestrator, su *suite.Suite, interval time.Duration) {
	report, err := o.Run(ctx, time.Now())
	if err != nil {
		log.Printf("Error evaluating suite %s: %v", su.Metadata.ID, err)
		return
	}

	s.cache.Set(su.Metadata.ID, &ReportState{
		Report:    report,
		UpdatedAt: time.Now(),
		TTL:       interval,
	})

	s.mu.RLock()
	audit := s.audit
	hook := s.onReport
	s.mu.RUnlock()

	if audit != nil {
		if err := audit.StoreReport(report); err != nil {
			log.Printf("Warning: failed to store report for suite %s: %v", su.Metadata.ID, err)
		}
	}
	if hook != nil {
		hook(report)
	}
}

// EvaluateNow forces immediate evaluation of a specific suite
func (s *Scheduler) EvaluateNow(ctx context.Context, suiteID string) (*orchestrator.Report, error) {
	s.mu.RLock()
	o := s.orchestrators[suiteID]
	var target *suite.Suite
	for _, sw := range s.suites {
		if sw.Suite.Metadata.ID == suiteID {
			target = sw.Suite
			break
		}
	}
	s.mu.RUnlock()

	if o == nil || target == nil {
		return nil, fmt.Errorf("suite not found: %s", suiteID)
	}

	interval, err := suite.ParseDuration(target.Spec.EvaluationInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid evaluation interval: %w", err)
	}

	s.evaluateOnce(ctx, o, target, interval)

	state, ok := s.cache.Get(suiteID)
	if !ok {
		return nil, fmt.Errorf("evaluation produced no report for suite %s", suiteID)
	}
	return state.Report, nil
}

// Watch starts watching the suite directory and reloads on changes
func (s *Scheduler) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.suiteDirectory); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.suiteDirectory, err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go s.watchLoop(watcher)
	log.Printf("Watching %s for suite changes", s.suiteDirectory)
	return nil
}

func (s *Scheduler) watchLoop(watcher *fsnotify.Watcher) {
	var debounce *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.Reload(); err != nil {
					log.Printf("Warning: suite reload failed, keeping previous set: %v", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// Reload stops evaluation loops, reloads suites from disk, and restarts. On
// load failure the previous suite set keeps running.
func (s *Scheduler) Reload() error {
	s.mu.Lock()
	wasRunning := s.running
	if wasRunning {
		s.cancel()
		s.running = false
	}
	s.mu.Unlock()

	if wasRunning {
		s.wg.Wait()
	}

	loadErr := s.LoadSuites()

	s.mu.Lock()
	if wasRunning {
		s.startLoopsLocked()
		s.running = true
	}
	s.mu.Unlock()

	if loadErr != nil {
		return loadErr
	}
	log.Println("Suites reloaded")
	return nil
}

// GetCache returns the state cache
func (s *Scheduler) GetCache() *StateCache {
	return s.cache
}

// GetAuditStorage returns the audit storage backend
func (s *Scheduler) GetAuditStorage() storage.AuditStorage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

// GetSuites returns the loaded suites
func (s *Scheduler) GetSuites() []suite.SuiteWithFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy
	result := make([]suite.SuiteWithFile, len(s.suites))
	copy(result, s.suites)
	return result
}
