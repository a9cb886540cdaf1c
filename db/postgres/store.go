// Package postgres keeps launch records in a Postgres table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/lib/pq"

	"launch-dashboard/decision/dataset"
)

const schema = `
CREATE TABLE IF NOT EXISTS launch_records (
	id                       BIGSERIAL PRIMARY KEY,
	launch_site              TEXT NOT NULL,
	payload_mass_kg          DOUBLE PRECISION NOT NULL CHECK (payload_mass_kg >= 0),
	outcome                  SMALLINT NOT NULL CHECK (outcome IN (0, 1)),
	booster_version_category TEXT NOT NULL
)`

// Store reads and writes the launch_records table.
type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens a connection pool for dsn.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open Postgres: %w", err)
	}
	return &Store{db: db, dsn: dsn}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates launch_records if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// LoadRecords returns every record in insertion order.
func (s *Store) LoadRecords(ctx context.Context) ([]dataset.LaunchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT launch_site, payload_mass_kg, outcome, booster_version_category
		FROM launch_records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	var records []dataset.LaunchRecord
	for rows.Next() {
		var r dataset.LaunchRecord
		var outcome int
		if err := rows.Scan(&r.LaunchSite, &r.PayloadMassKg, &outcome, &r.BoosterVersionCategory); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Outcome = dataset.Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ReplaceRecords swaps the table contents for records in one transaction.
func (s *Store) ReplaceRecords(ctx context.Context, records []dataset.LaunchRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `TRUNCATE launch_records RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to truncate records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("launch_records",
		"launch_site", "payload_mass_kg", "outcome", "booster_version_category"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	for _, r := range records {
		if _, err = stmt.ExecContext(ctx, r.LaunchSite, r.PayloadMassKg, int(r.Outcome), r.BoosterVersionCategory); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy record: %w", err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	return tx.Commit()
}

// Load implements dataset.Source.
func (s *Store) Load(ctx context.Context) ([]dataset.LaunchRecord, error) {
	return s.LoadRecords(ctx)
}

// String names the store without its credentials.
func (s *Store) String() string {
	return RedactDSN(s.dsn)
}

// RedactDSN strips the password from a postgres:// URL. Key/value DSNs are
// reduced to a fixed label.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return "postgres"
	}
	return "postgres://" + u.Host + u.Path
}
