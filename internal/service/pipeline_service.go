package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"salespipe/internal/config"
	"salespipe/internal/dbclient"
	"salespipe/internal/logging"
	"salespipe/internal/pipeline"
	"salespipe/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// PipelineService — runs the sales pipeline and manages triggers
// ─────────────────────────────────────────────────────────────

// ErrAlreadyRunning is returned when a run is requested while
// another one is still in flight.
var ErrAlreadyRunning = errors.New("a pipeline run is already in progress")

// PipelineService owns the pipeline wiring for one configured
// deployment: it builds a fresh Runner per run, persists the
// outcome, and optionally drives runs from a cron schedule or a
// watch on the sales file.
type PipelineService struct {
	cfg   *config.Config
	sink  logging.Sink
	sales *storage.SalesStore
	runs  *storage.RunStore

	catalogDB *dbclient.Client
	guard     runGuard

	// trigger lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// New creates a PipelineService. When the catalog is configured
// to come from an external database the connection is opened
// eagerly so misconfiguration surfaces at startup.
func New(cfg *config.Config, db *storage.DB, sink logging.Sink) (*PipelineService, error) {
	s := &PipelineService{
		cfg:   cfg,
		sink:  sink,
		sales: storage.NewSalesStore(db),
		runs:  storage.NewRunStore(db),
	}

	if cfg.Catalog.Source == "database" {
		client, err := dbclient.Open(cfg.Catalog.Driver, cfg.Catalog.DSN)
		if err != nil {
			return nil, fmt.Errorf("open catalog database: %w", err)
		}
		s.catalogDB = client
	}

	return s, nil
}

// RunOnce executes a single pipeline run synchronously. The
// trigger name ("manual", "schedule", "file_watch") is recorded
// in the run log.
func (s *PipelineService) RunOnce(ctx context.Context, trigger string) (*pipeline.RunStats, error) {
	if !s.guard.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.guard.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	s.sink.Emit(logging.Info, "run requested", logging.Fields{"trigger": trigger})

	runner := s.buildRunner()
	started := time.Now()
	stats, runErr := runner.Run(runCtx)

	rec := &storage.RunRecord{
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Status:      "success",
		PhaseFailed: stats.PhaseFailed,
		Stats:       *stats,
	}
	if runErr != nil {
		rec.Status = "failed"
		rec.Error = runErr.Error()
	}
	if err := s.runs.CreateRun(rec); err != nil {
		s.sink.Emit(logging.Error, "failed to persist run record", logging.Fields{"error": err.Error()})
	}

	return stats, runErr
}

func (s *PipelineService) buildRunner() *pipeline.Runner {
	p := s.cfg.Pipeline

	extractor := pipeline.NewExtractor(
		p.CSVPath, p.JSONPath, p.ProductKey, p.APIURL, p.MaxAPIRetries, s.sink)
	if s.catalogDB != nil {
		extractor.Catalog = pipeline.DBCatalog{Client: s.catalogDB, Query: s.cfg.Catalog.Query}
	}

	transformer := pipeline.NewTransformer(s.sink)
	loader := pipeline.NewLoader(s.sales, p.BatchSize, pipeline.NoFaults{}, s.sink)

	return pipeline.NewRunner(extractor, transformer, loader, s.sink)
}

// ListRuns returns the most recent persisted runs.
func (s *PipelineService) ListRuns(limit int) ([]storage.RunRecord, error) {
	return s.runs.ListRuns(limit)
}

// ── Triggers (cron + file watch) ───────────────────────────

// StartTriggers installs the configured cron schedule and sales
// file watcher. Calling it again rebuilds both from scratch.
func (s *PipelineService) StartTriggers(ctx context.Context) error {
	s.stopTriggers()

	if expr := s.cfg.Trigger.Cron; expr != "" {
		c := cron.New()
		_, err := c.AddFunc(expr, func() {
			s.sink.Emit(logging.Info, "cron trigger fired", logging.Fields{"schedule": expr})
			if _, err := s.RunOnce(ctx, "schedule"); err != nil {
				s.sink.Emit(logging.Error, "scheduled run failed", logging.Fields{"error": err.Error()})
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		c.Start()
		s.cronSched = c
		s.sink.Emit(logging.Info, "cron trigger installed", logging.Fields{"schedule": expr})
	}

	if s.cfg.Trigger.WatchSource {
		if err := s.startFileWatch(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *PipelineService) startFileWatch(ctx context.Context) error {
	absPath, err := filepath.Abs(s.cfg.Pipeline.CSVPath)
	if err != nil {
		return fmt.Errorf("resolve watch path %q: %w", s.cfg.Pipeline.CSVPath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace files rather than write in place.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(absPath), err)
	}
	s.watcher = watcher

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				eventPath, _ := filepath.Abs(event.Name)
				if eventPath != absPath {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					s.sink.Emit(logging.Info, "sales file changed, triggering run",
						logging.Fields{"path": absPath})
					if _, err := s.RunOnce(ctx, "file_watch"); err != nil {
						s.sink.Emit(logging.Error, "file-watch run failed",
							logging.Fields{"error": err.Error()})
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.sink.Emit(logging.Error, "file watcher error", logging.Fields{"error": err.Error()})
			}
		}
	}()

	s.sink.Emit(logging.Info, "file watch installed", logging.Fields{"path": absPath})
	return nil
}

// WaitRunning blocks until the in-flight run finishes or ctx is cancelled.
// Used for graceful shutdown.
func (s *PipelineService) WaitRunning(ctx context.Context) {
	s.guard.WaitAll(ctx)
}

// Stop tears down triggers and the catalog connection.
func (s *PipelineService) Stop() {
	s.stopTriggers()
	if s.catalogDB != nil {
		s.catalogDB.Close()
		s.catalogDB = nil
	}
}

func (s *PipelineService) stopTriggers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
