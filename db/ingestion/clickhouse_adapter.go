// Package ingestion imports launch datasets into ClickHouse as snapshots.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"launch-dashboard/db/clickhouse"
	"launch-dashboard/decision/dataset"
)

// batchSize is the number of records sent per ClickHouse batch.
const batchSize = 1000

// SnapshotStore is the part of clickhouse.Store the adapter needs.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snapshot *clickhouse.DatasetSnapshot) error
	GetActiveSnapshot(ctx context.Context) (*clickhouse.DatasetSnapshot, error)
	FindSnapshotByHash(ctx context.Context, hash string) (*clickhouse.DatasetSnapshot, error)
	ActivateSnapshot(ctx context.Context, id uuid.UUID) error
	DeleteSnapshot(ctx context.Context, id uuid.UUID) error
	BulkInsertRecords(ctx context.Context, snapshotID uuid.UUID, offset int, records []dataset.LaunchRecord) error
	CountRecords(ctx context.Context, snapshotID uuid.UUID) (int, error)
}

// ClickHouseAdapter writes validated datasets to a SnapshotStore
type ClickHouseAdapter struct {
	store SnapshotStore
}

// NewClickHouseAdapter creates a new ClickHouse adapter
func NewClickHouseAdapter(store SnapshotStore) *ClickHouseAdapter {
	return &ClickHouseAdapter{store: store}
}

// IngestionResult tracks the result of a dataset import
type IngestionResult struct {
	SnapshotID   uuid.UUID     `json:"snapshot_id"`
	Source       string        `json:"source"`
	Hash         string        `json:"hash"`
	RecordCount  int           `json:"record_count"`
	Batches      int           `json:"batches"`
	Reused       bool          `json:"reused"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// IngestDataset stores ds as a new snapshot and activates it. A dataset
// whose hash matches a complete existing snapshot re-activates that snapshot
// instead of writing the records again. An incomplete snapshot left by an
// earlier failed import is deleted and the dataset is written afresh.
func (a *ClickHouseAdapter) IngestDataset(ctx context.Context, source string, ds *dataset.Dataset) (*IngestionResult, error) {
	startTime := time.Now()
	result := &IngestionResult{
		Source: source,
		Hash:   ds.Hash(),
	}

	existing, err := a.reusableSnapshot(ctx, ds)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}
	if existing != nil {
		log.Info().
			Str("snapshot", existing.ID.String()).
			Str("hash", existing.Hash).
			Msg("Dataset already imported, re-activating snapshot")
		if !existing.IsActive {
			if err := a.store.ActivateSnapshot(ctx, existing.ID); err != nil {
				result.ErrorMessage = fmt.Sprintf("failed to activate snapshot: %v", err)
				return result, err
			}
		}
		result.SnapshotID = existing.ID
		result.RecordCount = existing.RecordCount
		result.Reused = true
		result.Success = true
		result.Duration = time.Since(startTime)
		return result, nil
	}

	snapshot := &clickhouse.DatasetSnapshot{
		ID:          uuid.New(),
		Source:      source,
		Hash:        ds.Hash(),
		RecordCount: ds.Len(),
		IsActive:    false, // activated after all records are written
		CreatedAt:   startTime.UTC(),
	}
	if err := a.store.CreateSnapshot(ctx, snapshot); err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to create snapshot: %v", err)
		return result, err
	}
	result.SnapshotID = snapshot.ID

	records := ds.Records()
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		if err := a.store.BulkInsertRecords(ctx, snapshot.ID, i, records[i:end]); err != nil {
			result.ErrorMessage = fmt.Sprintf("failed to insert records at batch %d: %v", i/batchSize, err)
			a.discard(ctx, snapshot.ID)
			return result, err
		}
		result.RecordCount += end - i
		result.Batches++
	}

	if err := a.store.ActivateSnapshot(ctx, snapshot.ID); err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to activate snapshot: %v", err)
		a.discard(ctx, snapshot.ID)
		return result, err
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	log.Info().
		Str("snapshot", snapshot.ID.String()).
		Int("records", result.RecordCount).
		Int("batches", result.Batches).
		Dur("duration", result.Duration).
		Msg("Dataset imported")

	return result, nil
}

// reusableSnapshot returns the stored snapshot with ds's hash if it holds
// every record it claims. A partial one is deleted and nil is returned.
func (a *ClickHouseAdapter) reusableSnapshot(ctx context.Context, ds *dataset.Dataset) (*clickhouse.DatasetSnapshot, error) {
	existing, err := a.store.FindSnapshotByHash(ctx, ds.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to look up snapshot: %w", err)
	}
	if existing == nil {
		return nil, nil
	}

	count, err := a.store.CountRecords(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count snapshot records: %w", err)
	}
	if count == existing.RecordCount && count == ds.Len() {
		return existing, nil
	}

	log.Warn().
		Str("snapshot", existing.ID.String()).
		Int("stored", count).
		Int("expected", existing.RecordCount).
		Msg("Discarding incomplete snapshot")
	if err := a.store.DeleteSnapshot(ctx, existing.ID); err != nil {
		return nil, fmt.Errorf("failed to delete incomplete snapshot: %w", err)
	}
	return nil, nil
}

// discard removes a snapshot whose import did not finish. The import error
// is what the caller reports, so a failed delete is only logged.
func (a *ClickHouseAdapter) discard(ctx context.Context, id uuid.UUID) {
	if err := a.store.DeleteSnapshot(ctx, id); err != nil {
		log.Error().Err(err).Str("snapshot", id.String()).Msg("Failed to discard partial snapshot")
	}
}

// VerifyIngestion checks that a snapshot holds the number of records it claims
func (a *ClickHouseAdapter) VerifyIngestion(ctx context.Context, result *IngestionResult) error {
	count, err := a.store.CountRecords(ctx, result.SnapshotID)
	if err != nil {
		return err
	}
	if count != result.RecordCount {
		return fmt.Errorf("snapshot %s has %d records, expected %d", result.SnapshotID, count, result.RecordCount)
	}
	return nil
}

// IngestionStats describes the active snapshot
type IngestionStats struct {
	ActiveSnapshotID uuid.UUID `json:"active_snapshot_id"`
	Source           string    `json:"source"`
	RecordCount      int       `json:"record_count"`
	LastUpdated      time.Time `json:"last_updated"`
	IsActive         bool      `json:"is_active"`
}

// GetIngestionStats returns statistics about the active snapshot
func (a *ClickHouseAdapter) GetIngestionStats(ctx context.Context) (*IngestionStats, error) {
	stats := &IngestionStats{}

	snapshot, err := a.store.GetActiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		stats.ActiveSnapshotID = snapshot.ID
		stats.Source = snapshot.Source
		stats.RecordCount = snapshot.RecordCount
		stats.LastUpdated = snapshot.CreatedAt
		stats.IsActive = true
	}

	return stats, nil
}
