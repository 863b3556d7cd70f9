package scheduler

import (
	"sync"
	"time"

	"github.com/samijaber1/vigil-ml/internal/orchestrator"
)

// ReportState represents the cached latest report for a suite
type ReportState struct {
	Report    *orchestrator.Report
	UpdatedAt time.Time
	TTL       time.Duration
}

// IsStale returns true if the cached state is older than its TTL
func (s *ReportState) IsStale(now time.Time) bool {
	return now.Sub(s.UpdatedAt) > s.TTL
}

// StateCache is a thread-safe cache for the latest report per suite
type StateCache struct {
	mu     sync.RWMutex
	states map[string]*ReportState
}

// NewStateCache creates a new state cache
func NewStateCache() *StateCache {
	return &StateCache{
		states: make(map[string]*ReportState),
	}
}

// Get retrieves cached state for a suite
func (c *StateCache) Get(suiteID string) (*ReportState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, exists := c.states[suiteID]
	return state, exists
}

// Set stores report state for a suite
func (c *StateCache) Set(suiteID string, state *ReportState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[suiteID] = state
}

// GetAll returns all cached states
func (c *StateCache) GetAll() map[string]*ReportState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Create a copy to avoid external modifications
	snapshot := make(map[string]*ReportState, len(c.states))
	for k, v := range c.states {
		snapshot[k] = v
	}

	return snapshot
}

// Delete removes a cached state
func (c *StateCache) Delete(suiteID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.states, suiteID)
}

// Clear removes all cached states
func (c *StateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states = make(map[string]*ReportState)
}

// Size returns the number of cached states
func (c *StateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.states)
}
