// Package clickhouse stores launch dataset snapshots in ClickHouse.
// Every import is an immutable, content-hashed snapshot; exactly one is active
// and that one is what the dashboard loads at startup.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"launch-dashboard/decision/dataset"
)

// DatasetSnapshot is one import of a launch dataset.
type DatasetSnapshot struct {
	ID          uuid.UUID `ch:"id" json:"id"`
	Source      string    `ch:"source" json:"source"`
	Hash        string    `ch:"hash" json:"hash"`
	RecordCount int       `ch:"record_count" json:"record_count"`
	IsActive    bool      `ch:"is_active" json:"is_active"`
	CreatedAt   time.Time `ch:"created_at" json:"created_at"`
}

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "launches",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store keeps snapshots and their records in ClickHouse.
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore creates a new ClickHouse store
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// schema is applied by EnsureSchema. Snapshots are versioned rows in a
// ReplacingMergeTree so activation is an append, never an update.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS launch_snapshots (
		id           UUID,
		source       String,
		hash         String,
		record_count UInt32,
		is_active    UInt8,
		created_at   DateTime64(3),
		_version     UInt64 DEFAULT 1,
		_deleted     UInt8 DEFAULT 0
	) ENGINE = ReplacingMergeTree(_version)
	ORDER BY id`,
	`CREATE TABLE IF NOT EXISTS launch_records (
		snapshot_id              UUID,
		seq                      UInt32,
		launch_site              LowCardinality(String),
		payload_mass_kg          Float64,
		outcome                  UInt8,
		booster_version_category LowCardinality(String)
	) ENGINE = MergeTree
	ORDER BY (snapshot_id, seq)`,
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if err := s.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// =============================================================================
// SNAPSHOT OPERATIONS
// =============================================================================

const snapshotColumns = `id, source, hash, record_count, is_active, created_at`

// CreateSnapshot inserts a new dataset snapshot
func (s *Store) CreateSnapshot(ctx context.Context, snapshot *DatasetSnapshot) error {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO launch_snapshots (` + snapshotColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	return s.conn.Exec(ctx, query,
		snapshot.ID,
		snapshot.Source,
		snapshot.Hash,
		uint32(snapshot.RecordCount),
		boolToUInt8(snapshot.IsActive),
		snapshot.CreatedAt,
	)
}

// GetSnapshot retrieves a snapshot by ID
func (s *Store) GetSnapshot(ctx context.Context, id uuid.UUID) (*DatasetSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM launch_snapshots FINAL
		WHERE id = ? AND _deleted = 0
	`
	snapshot, err := scanSnapshot(s.conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snapshot, nil
}

// GetActiveSnapshot retrieves the active snapshot, or nil if none is active
func (s *Store) GetActiveSnapshot(ctx context.Context) (*DatasetSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM launch_snapshots FINAL
		WHERE is_active = 1 AND _deleted = 0
		ORDER BY created_at DESC
		LIMIT 1
	`
	snapshot, err := scanSnapshot(s.conn.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to get active snapshot: %w", err)
	}
	return snapshot, nil
}

// FindSnapshotByHash finds a snapshot by its content hash
func (s *Store) FindSnapshotByHash(ctx context.Context, hash string) (*DatasetSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM launch_snapshots FINAL
		WHERE hash = ? AND _deleted = 0
		ORDER BY created_at DESC
		LIMIT 1
	`
	snapshot, err := scanSnapshot(s.conn.QueryRow(ctx, query, hash))
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot by hash: %w", err)
	}
	return snapshot, nil
}

// ActivateSnapshot marks a snapshot active and deactivates all others
func (s *Store) ActivateSnapshot(ctx context.Context, id uuid.UUID) error {
	snapshot, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return fmt.Errorf("snapshot not found: %s", id)
	}

	deactivateQuery := `
		INSERT INTO launch_snapshots
		SELECT id, source, hash, record_count, 0 AS is_active, created_at,
			   _version + 1 AS _version, _deleted
		FROM launch_snapshots FINAL
		WHERE is_active = 1 AND _deleted = 0 AND id != ?
	`
	if err := s.conn.Exec(ctx, deactivateQuery, id); err != nil {
		return fmt.Errorf("failed to deactivate snapshots: %w", err)
	}

	activateQuery := `
		INSERT INTO launch_snapshots
		SELECT id, source, hash, record_count, 1 AS is_active, created_at,
			   _version + 1 AS _version, _deleted
		FROM launch_snapshots FINAL
		WHERE id = ?
	`
	if err := s.conn.Exec(ctx, activateQuery, id); err != nil {
		return fmt.Errorf("failed to activate snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshot marks a snapshot deleted and drops its records
func (s *Store) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	deleteQuery := `
		INSERT INTO launch_snapshots
		SELECT id, source, hash, record_count, 0 AS is_active, created_at,
			   _version + 1 AS _version, 1 AS _deleted
		FROM launch_snapshots FINAL
		WHERE id = ?
	`
	if err := s.conn.Exec(ctx, deleteQuery, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if err := s.conn.Exec(ctx, `ALTER TABLE launch_records DELETE WHERE snapshot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot records: %w", err)
	}
	return nil
}

// ListSnapshots lists snapshots, newest first
func (s *Store) ListSnapshots(ctx context.Context) ([]*DatasetSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM launch_snapshots FINAL
		WHERE _deleted = 0
		ORDER BY created_at DESC
	`
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*DatasetSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// =============================================================================
// RECORD OPERATIONS
// =============================================================================

// BulkInsertRecords appends records to a snapshot using a batch insert.
// offset is the sequence number of the first record.
func (s *Store) BulkInsertRecords(ctx context.Context, snapshotID uuid.UUID, offset int, records []dataset.LaunchRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO launch_records (
			snapshot_id, seq, launch_site, payload_mass_kg, outcome, booster_version_category
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for i, r := range records {
		if err := batch.Append(
			snapshotID,
			uint32(offset+i),
			r.LaunchSite,
			r.PayloadMassKg,
			uint8(r.Outcome),
			r.BoosterVersionCategory,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// LoadRecords returns a snapshot's records in import order
func (s *Store) LoadRecords(ctx context.Context, snapshotID uuid.UUID) ([]dataset.LaunchRecord, error) {
	query := `
		SELECT launch_site, payload_mass_kg, outcome, booster_version_category
		FROM launch_records
		WHERE snapshot_id = ?
		ORDER BY seq
	`
	rows, err := s.conn.Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	var records []dataset.LaunchRecord
	for rows.Next() {
		var r dataset.LaunchRecord
		var outcome uint8
		if err := rows.Scan(&r.LaunchSite, &r.PayloadMassKg, &outcome, &r.BoosterVersionCategory); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Outcome = dataset.Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountRecords returns the number of records stored for a snapshot
func (s *Store) CountRecords(ctx context.Context, snapshotID uuid.UUID) (int, error) {
	query := `SELECT count() FROM launch_records WHERE snapshot_id = ?`
	row := s.conn.QueryRow(ctx, query, snapshotID)
	var count uint64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(count), nil
}

// =============================================================================
// DATASET SOURCE
// =============================================================================

// SnapshotSource loads a dataset from a stored snapshot. A nil SnapshotID
// means the active snapshot.
type SnapshotSource struct {
	Store      *Store
	SnapshotID uuid.UUID
}

func (src *SnapshotSource) Load(ctx context.Context) ([]dataset.LaunchRecord, error) {
	id := src.SnapshotID
	if id == uuid.Nil {
		active, err := src.Store.GetActiveSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return nil, errors.New("no active dataset snapshot; run import first")
		}
		id = active.ID
		src.SnapshotID = id
	}
	return src.Store.LoadRecords(ctx, id)
}

func (src *SnapshotSource) String() string {
	if src.SnapshotID == uuid.Nil {
		return "clickhouse://active"
	}
	return "clickhouse://" + src.SnapshotID.String()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

// scanSnapshot reads one snapshot row. A missing row yields nil, nil.
func scanSnapshot(row scanner) (*DatasetSnapshot, error) {
	var snapshot DatasetSnapshot
	var recordCount uint32
	var isActive uint8
	err := row.Scan(
		&snapshot.ID, &snapshot.Source, &snapshot.Hash,
		&recordCount, &isActive, &snapshot.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snapshot.RecordCount = int(recordCount)
	snapshot.IsActive = isActive == 1
	return &snapshot, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
