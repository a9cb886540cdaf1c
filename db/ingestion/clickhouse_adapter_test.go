package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launch-dashboard/db/clickhouse"
	"launch-dashboard/decision/dataset"
)

type fakeStore struct {
	snapshots  map[uuid.UUID]*clickhouse.DatasetSnapshot
	records    map[uuid.UUID][]dataset.LaunchRecord
	deleted    map[uuid.UUID]bool
	batches    []int
	failBatch  int
	failDelete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[uuid.UUID]*clickhouse.DatasetSnapshot),
		records:   make(map[uuid.UUID][]dataset.LaunchRecord),
		deleted:   make(map[uuid.UUID]bool),
		failBatch: -1,
	}
}

func (f *fakeStore) CreateSnapshot(_ context.Context, s *clickhouse.DatasetSnapshot) error {
	cp := *s
	f.snapshots[s.ID] = &cp
	return nil
}

func (f *fakeStore) GetActiveSnapshot(context.Context) (*clickhouse.DatasetSnapshot, error) {
	for id, s := range f.snapshots {
		if s.IsActive && !f.deleted[id] {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindSnapshotByHash(_ context.Context, hash string) (*clickhouse.DatasetSnapshot, error) {
	for id, s := range f.snapshots {
		if s.Hash == hash && !f.deleted[id] {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ActivateSnapshot(_ context.Context, id uuid.UUID) error {
	if _, ok := f.snapshots[id]; !ok {
		return fmt.Errorf("snapshot not found: %s", id)
	}
	for sid, s := range f.snapshots {
		s.IsActive = sid == id
	}
	return nil
}

func (f *fakeStore) DeleteSnapshot(_ context.Context, id uuid.UUID) error {
	if f.failDelete {
		return errors.New("connection reset")
	}
	f.deleted[id] = true
	f.snapshots[id].IsActive = false
	delete(f.records, id)
	return nil
}

func (f *fakeStore) BulkInsertRecords(_ context.Context, id uuid.UUID, offset int, records []dataset.LaunchRecord) error {
	if len(f.batches) == f.failBatch {
		return errors.New("connection reset")
	}
	if offset != len(f.records[id]) {
		return fmt.Errorf("offset %d out of sequence", offset)
	}
	f.batches = append(f.batches, len(records))
	f.records[id] = append(f.records[id], records...)
	return nil
}

func (f *fakeStore) CountRecords(_ context.Context, id uuid.UUID) (int, error) {
	return len(f.records[id]), nil
}

func makeDataset(t *testing.T, n int, site string) *dataset.Dataset {
	t.Helper()
	records := make([]dataset.LaunchRecord, n)
	for i := range records {
		records[i] = dataset.LaunchRecord{
			LaunchSite:             site,
			PayloadMassKg:          float64(i),
			Outcome:                dataset.Outcome(i % 2),
			BoosterVersionCategory: "FT",
		}
	}
	ds, err := dataset.New(records, nil)
	require.NoError(t, err)
	return ds
}

func TestIngestDataset_BatchesAndActivates(t *testing.T) {
	store := newFakeStore()
	adapter := NewClickHouseAdapter(store)
	ds := makeDataset(t, 2500, "CCAFS LC-40")

	result, err := adapter.IngestDataset(context.Background(), "launches.csv", ds)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Reused)
	assert.Equal(t, 2500, result.RecordCount)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, []int{1000, 1000, 500}, store.batches)
	assert.Equal(t, ds.Records(), store.records[result.SnapshotID])

	snap := store.snapshots[result.SnapshotID]
	require.NotNil(t, snap)
	assert.True(t, snap.IsActive)
	assert.Equal(t, ds.Hash(), snap.Hash)
	assert.Equal(t, "launches.csv", snap.Source)

	require.NoError(t, adapter.VerifyIngestion(context.Background(), result))
}

func TestIngestDataset_ReusesMatchingHash(t *testing.T) {
	store := newFakeStore()
	adapter := NewClickHouseAdapter(store)
	ctx := context.Background()

	first, err := adapter.IngestDataset(ctx, "a.csv", makeDataset(t, 10, "KSC LC-39A"))
	require.NoError(t, err)
	second, err := adapter.IngestDataset(ctx, "b.csv", makeDataset(t, 10, "VAFB SLC-4E"))
	require.NoError(t, err)
	assert.False(t, store.snapshots[first.SnapshotID].IsActive)

	again, err := adapter.IngestDataset(ctx, "a-copy.csv", makeDataset(t, 10, "KSC LC-39A"))
	require.NoError(t, err)

	assert.True(t, again.Reused)
	assert.Equal(t, first.SnapshotID, again.SnapshotID)
	assert.Len(t, store.snapshots, 2)
	assert.True(t, store.snapshots[first.SnapshotID].IsActive)
	assert.False(t, store.snapshots[second.SnapshotID].IsActive)

	stats, err := adapter.GetIngestionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.SnapshotID, stats.ActiveSnapshotID)
	assert.Equal(t, 10, stats.RecordCount)
}

func TestIngestDataset_BatchFailureLeavesSnapshotInactive(t *testing.T) {
	store := newFakeStore()
	store.failBatch = 1
	adapter := NewClickHouseAdapter(store)

	result, err := adapter.IngestDataset(context.Background(), "launches.csv", makeDataset(t, 1500, "CCAFS LC-40"))
	require.Error(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "batch 1")
	assert.False(t, store.snapshots[result.SnapshotID].IsActive)
	assert.True(t, store.deleted[result.SnapshotID])
	assert.Empty(t, store.records[result.SnapshotID])

	stats, err := adapter.GetIngestionStats(context.Background())
	require.NoError(t, err)
	assert.False(t, stats.IsActive)
}

func TestIngestDataset_RetryAfterBatchFailureWritesFreshSnapshot(t *testing.T) {
	store := newFakeStore()
	store.failBatch = 1
	adapter := NewClickHouseAdapter(store)
	ctx := context.Background()
	ds := makeDataset(t, 1500, "CCAFS LC-40")

	failed, err := adapter.IngestDataset(ctx, "launches.csv", ds)
	require.Error(t, err)

	store.failBatch = -1
	store.batches = nil
	retry, err := adapter.IngestDataset(ctx, "launches.csv", ds)
	require.NoError(t, err)

	assert.False(t, retry.Reused)
	assert.NotEqual(t, failed.SnapshotID, retry.SnapshotID)
	assert.Equal(t, []int{1000, 500}, store.batches)
	assert.True(t, store.snapshots[retry.SnapshotID].IsActive)
	assert.False(t, store.snapshots[failed.SnapshotID].IsActive)
	require.NoError(t, adapter.VerifyIngestion(ctx, retry))
}

func TestIngestDataset_DiscardsIncompleteSnapshotOnRetry(t *testing.T) {
	store := newFakeStore()
	store.failBatch = 1
	store.failDelete = true
	adapter := NewClickHouseAdapter(store)
	ctx := context.Background()
	ds := makeDataset(t, 1500, "CCAFS LC-40")

	failed, err := adapter.IngestDataset(ctx, "launches.csv", ds)
	require.Error(t, err)
	require.False(t, store.deleted[failed.SnapshotID])
	require.Len(t, store.records[failed.SnapshotID], 1000)

	store.failBatch = -1
	store.failDelete = false
	store.batches = nil
	retry, err := adapter.IngestDataset(ctx, "launches.csv", ds)
	require.NoError(t, err)

	assert.False(t, retry.Reused)
	assert.NotEqual(t, failed.SnapshotID, retry.SnapshotID)
	assert.True(t, store.deleted[failed.SnapshotID])
	assert.False(t, store.snapshots[failed.SnapshotID].IsActive)
	assert.True(t, store.snapshots[retry.SnapshotID].IsActive)
	assert.Equal(t, 1500, retry.RecordCount)
	require.NoError(t, adapter.VerifyIngestion(ctx, retry))

	stats, err := adapter.GetIngestionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, retry.SnapshotID, stats.ActiveSnapshotID)
}

func TestVerifyIngestion_CountMismatch(t *testing.T) {
	store := newFakeStore()
	adapter := NewClickHouseAdapter(store)
	err := adapter.VerifyIngestion(context.Background(), &IngestionResult{SnapshotID: uuid.New(), RecordCount: 3})
	assert.Error(t, err)
}
