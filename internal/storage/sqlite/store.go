package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/samijaber1/vigil-ml/internal/orchestrator"
	"github.com/samijaber1/vigil-ml/internal/storage"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// Store implements AuditStorage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// StoreSuite persists a suite definition
func (s *Store) StoreSuite(sd *suite.Suite) error {
	specJSON, err := json.Marshal(sd.Spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}

	query := `
		INSERT INTO suites (id, service, environment, evaluation_interval, snapshot_window, spec_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			service = excluded.service,
			environment = excluded.environment,
			evaluation_interval = excluded.evaluation_interval,
			snapshot_window = excluded.snapshot_window,
			spec_json = excluded.spec_json,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = s.db.Exec(query,
		sd.Metadata.ID,
		sd.Metadata.Service,
		sd.Spec.Environment,
		sd.Spec.EvaluationInterval,
		sd.Spec.SnapshotWindow,
		string(specJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store suite: %w", err)
	}

	return nil
}

// StoreReport persists a run report, its alerts, and the latest-report row in
// one transaction.
func (s *Store) StoreReport(report *orchestrator.Report) error {
	resultsJSON, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	missingJSON, err := json.Marshal(report.MissingMetrics)
	if err != nil {
		return fmt.Errorf("failed to marshal missing metrics: %w", err)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			run_id, suite_id, service, environment, status, window_start, window_end,
			started_at, finished_at, alert_count, missing_metrics_json, results_json
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.SuiteID,
		report.Service,
		report.Environment,
		string(report.Status),
		report.WindowStart,
		report.WindowEnd,
		report.StartedAt,
		report.FinishedAt,
		len(report.Alerts),
		string(missingJSON),
		string(resultsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	for _, a := range report.Alerts {
		_, err = tx.Exec(`
			INSERT INTO alerts (run_id, suite_id, name, severity, condition, metric, evaluator_type, triggered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.RunID,
			report.SuiteID,
			a.Name,
			string(a.Severity),
			a.Condition,
			a.Metric,
			string(a.EvaluatorType),
			a.TriggeredAt,
		)
		if err != nil {
			return fmt.Errorf("failed to store alert: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO latest_reports (suite_id, report_json)
		VALUES (?, ?)
		ON CONFLICT(suite_id) DO UPDATE SET
			report_json = excluded.report_json,
			updated_at = CURRENT_TIMESTAMP
	`, report.SuiteID, string(reportJSON))
	if err != nil {
		return fmt.Errorf("failed to update latest report: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// QueryRuns retrieves run records with optional filtering
func (s *Store) QueryRuns(filter storage.RunFilter) ([]storage.RunRecord, error) {
	query := `
		SELECT id, run_id, suite_id, service, environment, status, window_start, window_end,
		       started_at, finished_at, alert_count, missing_metrics_json, created_at
		FROM runs
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SuiteID != "" {
		query += " AND suite_id = ?"
		args = append(args, filter.SuiteID)
	}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}

	if filter.Environment != "" {
		query += " AND environment = ?"
		args = append(args, filter.Environment)
	}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	if filter.StartTime != nil {
		query += " AND window_end >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND window_end <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY window_end DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []storage.RunRecord
	for rows.Next() {
		var record storage.RunRecord
		var missingJSON string

		err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.SuiteID,
			&record.Service,
			&record.Environment,
			&record.Status,
			&record.WindowStart,
			&record.WindowEnd,
			&record.StartedAt,
			&record.FinishedAt,
			&record.AlertCount,
			&missingJSON,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(missingJSON), &record.MissingMetrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing metrics: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// QueryAlerts retrieves alert records with optional filtering
func (s *Store) QueryAlerts(filter storage.AlertFilter) ([]storage.AlertRecord, error) {
	query := `
		SELECT id, run_id, suite_id, name, severity, condition, metric, evaluator_type, triggered_at, created_at
		FROM alerts
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SuiteID != "" {
		query += " AND suite_id = ?"
		args = append(args, filter.SuiteID)
	}

	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, filter.Severity)
	}

	if filter.Metric != "" {
		query += " AND metric = ?"
		args = append(args, filter.Metric)
	}

	if filter.EvaluatorType != "" {
		query += " AND evaluator_type = ?"
		args = append(args, filter.EvaluatorType)
	}

	if filter.StartTime != nil {
		query += " AND triggered_at >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND triggered_at <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY triggered_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var records []storage.AlertRecord
	for rows.Next() {
		var record storage.AlertRecord

		err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.SuiteID,
			&record.Name,
			&record.Severity,
			&record.Condition,
			&record.Metric,
			&record.EvaluatorType,
			&record.TriggeredAt,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// LatestReport retrieves the most recent report for a suite
func (s *Store) LatestReport(suiteID string) (*orchestrator.Report, error) {
	var reportJSON string
	err := s.db.QueryRow("SELECT report_json FROM latest_reports WHERE suite_id = ?", suiteID).
		Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}

	var report orchestrator.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
