// Package domain defines the core interfaces and types for Sentinel.
package domain

import (
	"context"
	"time"
)

// ResultsStore mirrors finished run output for downstream consumers.
// The store is an optional sink: the JSON collections written by the
// pipeline remain the canonical output.
type ResultsStore interface {
	// Run operations
	SaveRun(ctx context.Context, report *RunReport) error
	GetRun(ctx context.Context, runID string) (*RunReport, error)

	// Alert operations
	SaveAlerts(ctx context.Context, runID string, alerts []*Alert) error
	ListAlertsByRun(ctx context.Context, runID string) ([]*Alert, error)

	// Case operations
	SaveCases(ctx context.Context, runID string, cases []*Case) error
	ListCasesByRun(ctx context.Context, runID string) ([]*Case, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// StoreConfig holds configuration for results store initialization.
type StoreConfig struct {
	// Driver is the database driver: "sqlite", "postgres", or empty
	// to disable the sink.
	Driver string `env:"DRIVER"`

	// SQLite specific
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./sentinel.db"`

	// PostgreSQL specific
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"sentinel"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Connection pool settings
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"`
}

// Enabled reports whether a results store should be opened.
func (c StoreConfig) Enabled() bool {
	return c.Driver != ""
}
