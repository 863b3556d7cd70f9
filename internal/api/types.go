package api

import (
	"time"

	"github.com/samijaber1/vigil-ml/internal/orchestrator"
	"github.com/samijaber1/vigil-ml/internal/storage"
)

// SuiteListResponse represents a list of suites
type SuiteListResponse struct {
	Suites []SuiteSummary `json:"suites"`
}

// SuiteSummary contains summary information about a suite
type SuiteSummary struct {
	ID                 string   `json:"id"`
	Service            string   `json:"service"`
	Environment        string   `json:"environment"`
	EvaluationInterval string   `json:"evaluationInterval"`
	Evaluators         []string `json:"evaluators"`
}

// ReportResponse wraps the latest report for a suite with cache metadata
type ReportResponse struct {
	Report    *orchestrator.Report `json:"report"`
	UpdatedAt time.Time            `json:"updatedAt"`
	TTL       string               `json:"ttl,omitempty"` // duration string, e.g. "5m"
	IsStale   bool                 `json:"isStale"`
}

// EvaluateRequest represents a forced evaluation request
type EvaluateRequest struct {
	SuiteID string `json:"suiteID"`
}

// RunsResponse represents a run audit query result
type RunsResponse struct {
	Records []storage.RunRecord `json:"records"`
	Total   int                 `json:"total"`
}

// AlertsResponse represents an alert audit query result
type AlertsResponse struct {
	Records []storage.AlertRecord `json:"records"`
	Total   int                   `json:"total"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Ready        bool     `json:"ready"`
	SuitesLoaded int      `json:"suitesLoaded"`
	Reasons      []string `json:"reasons,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
