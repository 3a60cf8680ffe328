package pipeline

import (
	"context"
	"fmt"
	"time"

	"salespipe/internal/logging"
)

// ── Runner ─────────────────────────────────────────────────
// Drives one run through the fixed extract → transform → load
// sequence. The state only moves forward; a stage failure jumps
// straight to failed and records which phase gave up.

// State is the run's position in the stage sequence.
type State string

const (
	StateInit         State = "initialized"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateLoading      State = "loading"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Phase names used in stats and run records.
const (
	PhaseExtract   = "extract"
	PhaseTransform = "transform"
	PhaseLoad      = "load"
)

// RunStats is the final accounting for one pipeline run.
// Rejected counts rows dropped by validation; those are data
// quality, not run errors. Errors counts fatal stage failures.
type RunStats struct {
	Extracted   int           `json:"extracted"`
	Transformed int           `json:"transformed"`
	Loaded      int           `json:"loaded"`
	Skipped     int           `json:"skipped"`
	Rejected    int           `json:"rejected"`
	Duplicates  int           `json:"duplicates"`
	Anomalies   int           `json:"anomalies"`
	Errors      int           `json:"errors"`
	PhaseFailed string        `json:"phase_failed,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Succeeded reports whether the run completed every stage.
func (s *RunStats) Succeeded() bool { return s.PhaseFailed == "" }

// Runner executes one full pipeline run.
type Runner struct {
	extractor   *Extractor
	transformer *Transformer
	loader      *Loader
	sink        logging.Sink
	now         func() time.Time

	state State
}

// NewRunner wires the three stages onto one sink.
func NewRunner(extractor *Extractor, transformer *Transformer, loader *Loader, sink logging.Sink) *Runner {
	return &Runner{
		extractor:   extractor,
		transformer: transformer,
		loader:      loader,
		sink:        sink,
		now:         time.Now,
		state:       StateInit,
	}
}

// State returns the runner's current stage.
func (r *Runner) State() State { return r.state }

// Run executes extract, transform and load in order. Stats are
// always returned, even on failure, reflecting the work done up
// to the failing stage.
func (r *Runner) Run(ctx context.Context) (*RunStats, error) {
	started := r.now()
	stats := &RunStats{}

	r.sink.Emit(logging.Info, "pipeline run started", nil)

	r.state = StateExtracting
	extracted, err := r.extractor.Run(ctx)
	if err != nil {
		return r.fail(stats, started, PhaseExtract, err)
	}
	stats.Extracted = len(extracted.Sales)

	r.state = StateTransforming
	clean, summary, err := r.transformer.Run(extracted)
	if err != nil {
		return r.fail(stats, started, PhaseTransform, err)
	}
	stats.Transformed = summary.RowsOut
	stats.Duplicates = summary.Duplicates
	stats.Anomalies = summary.Anomalies
	stats.Rejected = summary.Skipped

	r.state = StateLoading
	loaded, err := r.loader.Run(clean)
	if loaded != nil {
		stats.Loaded = loaded.Inserted
		stats.Skipped = loaded.Skipped
	}
	if err != nil {
		return r.fail(stats, started, PhaseLoad, err)
	}

	r.state = StateCompleted
	stats.Duration = r.now().Sub(started)
	r.sink.Emit(logging.Info, "pipeline run completed", logging.Fields{
		"extracted":   stats.Extracted,
		"transformed": stats.Transformed,
		"loaded":      stats.Loaded,
		"skipped":     stats.Skipped,
		"rejected":    stats.Rejected,
		"duplicates":  stats.Duplicates,
		"anomalies":   stats.Anomalies,
		"errors":      stats.Errors,
		"duration":    stats.Duration.String(),
	})
	return stats, nil
}

func (r *Runner) fail(stats *RunStats, started time.Time, phase string, err error) (*RunStats, error) {
	r.state = StateFailed
	stats.PhaseFailed = phase
	stats.Errors++
	stats.Duration = r.now().Sub(started)
	r.sink.Emit(logging.Critical, "pipeline run failed", logging.Fields{
		"phase":    phase,
		"error":    err.Error(),
		"duration": stats.Duration.String(),
	})
	return stats, fmt.Errorf("%s stage: %w", phase, err)
}
