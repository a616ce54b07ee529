// Package repository mirrors finished pipeline runs into a SQL results
// store. The JSON collections on disk remain the canonical output; the
// store exists so downstream tools can query runs without re-parsing
// them. Full records are kept as JSON documents alongside the indexed
// columns.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensource-finance/sentinel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLStore implements domain.ResultsStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New opens a results store based on configuration.
func New(cfg domain.StoreConfig) (domain.ResultsStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a run report, replacing any earlier mirror of the same
// run.
func (s *SQLStore) SaveRun(ctx context.Context, report *domain.RunReport) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}

	query := `
		INSERT INTO runs (
			run_id, pipeline_run, mode, threshold,
			total_transactions, anomalies_detected, anomaly_rate,
			alerts_created, cases_built, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			pipeline_run = excluded.pipeline_run,
			mode = excluded.mode,
			threshold = excluded.threshold,
			total_transactions = excluded.total_transactions,
			anomalies_detected = excluded.anomalies_detected,
			anomaly_rate = excluded.anomaly_rate,
			alerts_created = excluded.alerts_created,
			cases_built = excluded.cases_built,
			report = excluded.report
	`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		report.RunID, report.PipelineRun, report.Mode, report.Threshold,
		report.Statistics.TotalTransactions, report.Statistics.AnomaliesDetected,
		report.Statistics.AnomalyRate, report.Statistics.AlertsCreated,
		report.Statistics.CasesBuilt, string(doc),
	)
	return err
}

// GetRun retrieves a run report by id.
func (s *SQLStore) GetRun(ctx context.Context, runID string) (*domain.RunReport, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	var doc string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT report FROM runs WHERE run_id = ?`), runID,
	).Scan(&doc)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var report domain.RunReport
	if err := json.Unmarshal([]byte(doc), &report); err != nil {
		return nil, fmt.Errorf("decode run report: %w", err)
	}
	return &report, nil
}

// SaveAlerts stores a run's alerts in output order, atomically.
func (s *SQLStore) SaveAlerts(ctx context.Context, runID string, alerts []*domain.Alert) error {
	if runID == "" {
		return fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO alerts (
			run_id, alert_id, seq, txn_id, user_id, account_id,
			fraud_type, severity, confidence, event_time, created_at, record
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, alert_id) DO UPDATE SET
			seq = excluded.seq,
			record = excluded.record
	`)

	for i, alert := range alerts {
		doc, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("encode alert %s: %w", alert.AlertID, err)
		}
		if _, err := tx.ExecContext(ctx, query,
			runID, alert.AlertID, i, alert.TxnID, alert.UserID, alert.AccountID,
			alert.FraudTypeInferred, string(alert.Severity), alert.Confidence,
			alert.EventTime.Time, alert.CreatedAt, string(doc),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListAlertsByRun retrieves a run's alerts in their original output
// order.
func (s *SQLStore) ListAlertsByRun(ctx context.Context, runID string) ([]*domain.Alert, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT record FROM alerts WHERE run_id = ? ORDER BY seq`), runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var alert domain.Alert
		if err := json.Unmarshal([]byte(doc), &alert); err != nil {
			return nil, fmt.Errorf("decode alert record: %w", err)
		}
		alerts = append(alerts, &alert)
	}

	return alerts, rows.Err()
}

// SaveCases stores a run's cases in output order, atomically.
func (s *SQLStore) SaveCases(ctx context.Context, runID string, cases []*domain.Case) error {
	if runID == "" {
		return fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO cases (
			run_id, case_id, seq, fraud_type, risk_level,
			case_score, alert_count, created_at, record
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, case_id) DO UPDATE SET
			seq = excluded.seq,
			record = excluded.record
	`)

	for i, c := range cases {
		doc, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode case %s: %w", c.CaseID, err)
		}
		if _, err := tx.ExecContext(ctx, query,
			runID, c.CaseID, i, c.FraudType, string(c.RiskLevel),
			c.CaseScore, c.AlertCount, c.CreatedAt, string(doc),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListCasesByRun retrieves a run's cases in their original output order.
func (s *SQLStore) ListCasesByRun(ctx context.Context, runID string) ([]*domain.Case, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT record FROM cases WHERE run_id = ? ORDER BY seq`), runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var c domain.Case
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, fmt.Errorf("decode case record: %w", err)
		}
		cases = append(cases, &c)
	}

	return cases, rows.Err()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
