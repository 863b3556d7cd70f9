package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- Suite definitions table
CREATE TABLE IF NOT EXISTS suites (
	id TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	environment TEXT NOT NULL,
	evaluation_interval TEXT NOT NULL,
	snapshot_window TEXT NOT NULL,
	spec_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_suites_service_env ON suites(service, environment);

-- Run audit table
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	suite_id TEXT NOT NULL,
	service TEXT NOT NULL,
	environment TEXT NOT NULL,
	status TEXT NOT NULL,
	window_start TIMESTAMP NOT NULL,
	window_end TIMESTAMP NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	alert_count INTEGER NOT NULL DEFAULT 0,
	missing_metrics_json TEXT NOT NULL,
	results_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (suite_id) REFERENCES suites(id)
);

CREATE INDEX IF NOT EXISTS idx_runs_suite_id ON runs(suite_id);
CREATE INDEX IF NOT EXISTS idx_runs_service_env ON runs(service, environment);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_window_end ON runs(window_end DESC);

-- Alerts audit table
CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	suite_id TEXT NOT NULL,
	name TEXT NOT NULL,
	severity TEXT NOT NULL,
	condition TEXT NOT NULL,
	metric TEXT NOT NULL,
	evaluator_type TEXT NOT NULL,
	triggered_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_alerts_suite_id ON alerts(suite_id);
CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
CREATE INDEX IF NOT EXISTS idx_alerts_triggered_at ON alerts(triggered_at DESC);

-- Latest report table (one row per suite)
CREATE TABLE IF NOT EXISTS latest_reports (
	suite_id TEXT PRIMARY KEY,
	report_json TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (suite_id) REFERENCES suites(id)
);
`
