package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSchemaMissing is returned when the database is reachable but the KPI
// tables have not been migrated.
var ErrSchemaMissing = errors.New("provider_metrics table not found")

// DBChecker implements health checking for the KPI database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database and confirms the provider_metrics table
// exists, so a freshly provisioned but unmigrated database reports unready.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	var present bool
	if err := d.db.QueryRowContext(ctx,
		`SELECT to_regclass('provider_metrics') IS NOT NULL`,
	).Scan(&present); err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	if !present {
		return ErrSchemaMissing
	}
	return nil
}
