package storage

import (
	"time"

	"github.com/samijaber1/vigil-ml/internal/orchestrator"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// AuditStorage defines the interface for persisting suites and run reports
type AuditStorage interface {
	// StoreSuite persists a suite definition
	StoreSuite(s *suite.Suite) error

	// StoreReport persists a run report with its alerts and updates the
	// latest-report row for the suite
	StoreReport(report *orchestrator.Report) error

	// QueryRuns retrieves run records with optional filtering
	QueryRuns(filter RunFilter) ([]RunRecord, error)

	// QueryAlerts retrieves alert records with optional filtering
	QueryAlerts(filter AlertFilter) ([]AlertRecord, error)

	// LatestReport retrieves the most recent report for a suite, or nil when
	// the suite has never run
	LatestReport(suiteID string) (*orchestrator.Report, error)

	// Close closes the storage connection
	Close() error
}

// RunFilter defines filtering options for run queries
type RunFilter struct {
	SuiteID     string
	Service     string
	Environment string
	Status      string // completed, partially_failed
	StartTime   *time.Time
	EndTime     *time.Time
	Limit       int
	Offset      int
}

// AlertFilter defines filtering options for alert queries
type AlertFilter struct {
	SuiteID       string
	Severity      string
	Metric        string
	EvaluatorType string
	StartTime     *time.Time
	EndTime       *time.Time
	Limit         int
	Offset        int
}

// RunRecord is one persisted evaluation run
type RunRecord struct {
	ID             int64
	RunID          string
	SuiteID        string
	Service        string
	Environment    string
	Status         string
	WindowStart    time.Time
	WindowEnd      time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
	AlertCount     int
	MissingMetrics []string
	CreatedAt      time.Time
}

// AlertRecord is one persisted alert
type AlertRecord struct {
	ID            int64
	RunID         string
	SuiteID       string
	Name          string
	Severity      string
	Condition     string
	Metric        string
	EvaluatorType string
	TriggeredAt   time.Time
	CreatedAt     time.Time
}
