package repository

// Schema definitions for the Sentinel results store.
// Compatible with both SQLite and PostgreSQL.

const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    pipeline_run TIMESTAMP NOT NULL,
    mode TEXT NOT NULL,
    threshold REAL NOT NULL,
    total_transactions INTEGER NOT NULL,
    anomalies_detected INTEGER NOT NULL,
    anomaly_rate REAL NOT NULL,
    alerts_created INTEGER NOT NULL,
    cases_built INTEGER NOT NULL,
    report TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_pipeline_run ON runs(pipeline_run);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    run_id TEXT NOT NULL,
    alert_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    txn_id INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    account_id TEXT NOT NULL,
    fraud_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    confidence REAL NOT NULL,
    event_time TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (run_id, alert_id)
);

CREATE INDEX IF NOT EXISTS idx_alerts_run ON alerts(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(run_id, user_id);
CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(run_id, severity);
`

const schemaCases = `
CREATE TABLE IF NOT EXISTS cases (
    run_id TEXT NOT NULL,
    case_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    fraud_type TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    case_score INTEGER NOT NULL,
    alert_count INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (run_id, case_id)
);

CREATE INDEX IF NOT EXISTS idx_cases_run ON cases(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_cases_risk ON cases(run_id, risk_level);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRuns,
		schemaAlerts,
		schemaCases,
	}
}
