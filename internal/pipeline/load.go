package pipeline

import (
	"errors"
	"fmt"

	"salespipe/internal/logging"
)

// ── Loader ─────────────────────────────────────────────────
// Writes clean records in fixed-size batches, one transaction
// per batch. A batch either commits whole or rolls back whole;
// batches committed before a failure stay durable.

// DefaultBatchSize is used when the configured size is not positive.
const DefaultBatchSize = 10

// ErrBatchFailed wraps any mid-batch write failure.
var ErrBatchFailed = errors.New("batch write failed")

// Store opens write transactions against the destination.
type Store interface {
	Begin() (BatchTx, error)
}

// BatchTx is one batch-scoped transaction. InsertOrIgnore returns
// the number of rows written (0 when the key already exists).
type BatchTx interface {
	InsertOrIgnore(rec CleanRecord) (int64, error)
	Commit() error
	Rollback() error
}

// FaultInjector decides whether a batch should fail mid-write.
// The production pipeline runs with NoFaults; tests and chaos
// runs swap in a failing policy.
type FaultInjector interface {
	FailBatch(batchNum, totalBatches int) bool
}

// NoFaults never fails a batch.
type NoFaults struct{}

func (NoFaults) FailBatch(int, int) bool { return false }

// FailOnBatch fails exactly one batch number (1-based).
type FailOnBatch struct {
	Batch int
}

func (f FailOnBatch) FailBatch(batchNum, _ int) bool { return batchNum == f.Batch }

// LoadSummary aggregates the outcome of one load stage.
type LoadSummary struct {
	Inserted    int
	Skipped     int
	Batches     int
	FailedBatch int // 0 when no batch failed
}

// Loader writes records to a Store in batches.
type Loader struct {
	store     Store
	batchSize int
	faults    FaultInjector
	sink      logging.Sink
}

// NewLoader builds a Loader. A non-positive batchSize falls back
// to DefaultBatchSize and a nil injector to NoFaults.
func NewLoader(store Store, batchSize int, faults FaultInjector, sink logging.Sink) *Loader {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if faults == nil {
		faults = NoFaults{}
	}
	return &Loader{store: store, batchSize: batchSize, faults: faults, sink: sink}
}

// Run loads records batch by batch. On a batch failure the failed
// batch is rolled back, remaining batches are not attempted, and
// the summary reflects only committed work.
func (l *Loader) Run(records []CleanRecord) (*LoadSummary, error) {
	total := len(records)
	totalBatches := (total + l.batchSize - 1) / l.batchSize

	l.sink.Emit(logging.Info, "loading phase started", logging.Fields{
		"records":    total,
		"batch_size": l.batchSize,
		"batches":    totalBatches,
	})

	summary := &LoadSummary{}
	for start := 0; start < total; start += l.batchSize {
		end := start + l.batchSize
		if end > total {
			end = total
		}
		batchNum := start/l.batchSize + 1
		batch := records[start:end]

		inserted, skipped, err := l.loadBatch(batch, batchNum, totalBatches)
		if err != nil {
			summary.FailedBatch = batchNum
			l.sink.Emit(logging.Error, "batch failed, halting load", logging.Fields{
				"batch":             batchNum,
				"committed_batches": summary.Batches,
				"error":             err.Error(),
			})
			return summary, fmt.Errorf("%w: batch %d/%d: %v", ErrBatchFailed, batchNum, totalBatches, err)
		}

		summary.Inserted += inserted
		summary.Skipped += skipped
		summary.Batches++
		l.sink.Emit(logging.Debug, "batch committed", logging.Fields{
			"batch":    batchNum,
			"of":       totalBatches,
			"inserted": inserted,
			"skipped":  skipped,
		})
	}

	l.sink.Emit(logging.Info, "loading phase complete", logging.Fields{
		"inserted": summary.Inserted,
		"skipped":  summary.Skipped,
		"batches":  summary.Batches,
	})
	return summary, nil
}

func (l *Loader) loadBatch(batch []CleanRecord, batchNum, totalBatches int) (inserted, skipped int, err error) {
	tx, err := l.store.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}

	midpoint := len(batch) / 2
	for i, rec := range batch {
		if l.faults.FailBatch(batchNum, totalBatches) && i == midpoint {
			tx.Rollback()
			return 0, 0, fmt.Errorf("injected fault at record %d", i+1)
		}

		n, err := tx.InsertOrIgnore(rec)
		if err != nil {
			tx.Rollback()
			return 0, 0, fmt.Errorf("insert %s: %w", rec.OrderID, err)
		}
		if n == 0 {
			skipped++
			l.sink.Emit(logging.Debug, "record already loaded, skipping",
				logging.Fields{"order_id": rec.OrderID})
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, skipped, nil
}
