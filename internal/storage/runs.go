package storage

import (
	"time"

	"salespipe/internal/pipeline"

	"github.com/google/uuid"
)

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	PhaseFailed string
	Stats       pipeline.RunStats
	Error       string
}

// RunStore persists the run history in pipeline_runs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// CreateRun records a finished run and returns its generated id.
func (s *RunStore) CreateRun(rec *RunRecord) error {
	rec.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO pipeline_runs (id, started_at, finished_at, status, phase_failed,
		 extracted, transformed, loaded, skipped, rejected, duplicates, anomalies, errors, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt, rec.FinishedAt, rec.Status, rec.PhaseFailed,
		rec.Stats.Extracted, rec.Stats.Transformed, rec.Stats.Loaded,
		rec.Stats.Skipped, rec.Stats.Rejected, rec.Stats.Duplicates, rec.Stats.Anomalies,
		rec.Stats.Errors, rec.Stats.Duration.Milliseconds(), rec.Error,
	)
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, started_at, finished_at, status, phase_failed,
		 extracted, transformed, loaded, skipped, rejected, duplicates, anomalies, errors, duration_ms, error
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var durationMS int64
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.PhaseFailed,
			&r.Stats.Extracted, &r.Stats.Transformed, &r.Stats.Loaded,
			&r.Stats.Skipped, &r.Stats.Rejected, &r.Stats.Duplicates, &r.Stats.Anomalies,
			&r.Stats.Errors, &durationMS, &r.Error,
		); err != nil {
			return nil, err
		}
		r.Stats.Duration = time.Duration(durationMS) * time.Millisecond
		r.Stats.PhaseFailed = r.PhaseFailed
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
