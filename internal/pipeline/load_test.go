package pipeline_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salespipe/internal/logging"
	"salespipe/internal/pipeline"
)

// memStore is an in-memory Store with transactional semantics:
// writes land in a staging buffer and only reach committed on Commit.
type memStore struct {
	committed map[string]pipeline.CleanRecord
	begins    int
	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{committed: make(map[string]pipeline.CleanRecord)}
}

func (s *memStore) Begin() (pipeline.BatchTx, error) {
	s.begins++
	return &memTx{store: s, staged: make(map[string]pipeline.CleanRecord)}, nil
}

type memTx struct {
	store  *memStore
	staged map[string]pipeline.CleanRecord
}

func (t *memTx) InsertOrIgnore(rec pipeline.CleanRecord) (int64, error) {
	if _, ok := t.store.committed[rec.OrderID]; ok {
		return 0, nil
	}
	if _, ok := t.staged[rec.OrderID]; ok {
		return 0, nil
	}
	t.staged[rec.OrderID] = rec
	return 1, nil
}

func (t *memTx) Commit() error {
	for k, v := range t.staged {
		t.store.committed[k] = v
	}
	t.store.commits++
	return nil
}

func (t *memTx) Rollback() error {
	t.store.rollbacks++
	return nil
}

func makeRecords(n int) []pipeline.CleanRecord {
	records := make([]pipeline.CleanRecord, n)
	for i := range records {
		records[i] = pipeline.CleanRecord{OrderID: fmt.Sprintf("ORD-%03d", i+1)}
	}
	return records
}

func TestLoader_BatchPartitioning(t *testing.T) {
	store := newMemStore()
	loader := pipeline.NewLoader(store, 10, nil, logging.Nop{})

	summary, err := loader.Run(makeRecords(25))
	require.NoError(t, err)

	assert.Equal(t, 25, summary.Inserted)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 3, summary.Batches) // 10 + 10 + 5
	assert.Equal(t, 3, store.begins)
	assert.Equal(t, 3, store.commits)
	assert.Len(t, store.committed, 25)
}

func TestLoader_RerunSkipsExisting(t *testing.T) {
	store := newMemStore()
	loader := pipeline.NewLoader(store, 10, nil, logging.Nop{})

	records := makeRecords(12)
	_, err := loader.Run(records)
	require.NoError(t, err)

	summary, err := loader.Run(records)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 12, summary.Skipped)
	assert.Len(t, store.committed, 12)
}

func TestLoader_FaultRollsBackOnlyFailedBatch(t *testing.T) {
	sink := &logging.MemorySink{}
	store := newMemStore()
	loader := pipeline.NewLoader(store, 10, pipeline.FailOnBatch{Batch: 2}, sink)

	summary, err := loader.Run(makeRecords(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrBatchFailed)

	// Batch 1 durable, batch 2 rolled back, batch 3 never attempted.
	assert.Equal(t, 10, summary.Inserted)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 2, summary.FailedBatch)
	assert.Equal(t, 1, store.commits)
	assert.Equal(t, 1, store.rollbacks)
	assert.Len(t, store.committed, 10)
	assert.Equal(t, 2, store.begins)
}

func TestLoader_DefaultsApplied(t *testing.T) {
	store := newMemStore()
	loader := pipeline.NewLoader(store, 0, nil, logging.Nop{})

	summary, err := loader.Run(makeRecords(10))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Batches)
}

func TestLoader_EmptyInput(t *testing.T) {
	store := newMemStore()
	loader := pipeline.NewLoader(store, 10, nil, logging.Nop{})

	summary, err := loader.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 0, summary.Batches)
	assert.Equal(t, 0, store.begins)
}

// failBeginStore fails to open a transaction at all.
type failBeginStore struct{}

func (failBeginStore) Begin() (pipeline.BatchTx, error) {
	return nil, errors.New("disk full")
}

func TestLoader_BeginFailure(t *testing.T) {
	loader := pipeline.NewLoader(failBeginStore{}, 10, nil, logging.Nop{})

	summary, err := loader.Run(makeRecords(5))
	require.Error(t, err)
	assert.Equal(t, 1, summary.FailedBatch)
	assert.Equal(t, 0, summary.Inserted)
}
