package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// runGuard — prevents overlapping pipeline runs
// ─────────────────────────────────────────────────────────────

// runGuard ensures at most one pipeline run is in flight at a
// time. Cron and file-watch triggers contend with manual runs, so
// a slow run suppresses the triggers that fire during it.
type runGuard struct {
	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// TryLock attempts to claim the run slot. Returns false if a run
// is already in flight.
func (g *runGuard) TryLock() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	g.done = make(chan struct{})
	return true
}

// Unlock releases the run slot. Must be called after TryLock returns true.
func (g *runGuard) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	close(g.done)
}

// WaitAll blocks until the in-flight run completes or ctx is cancelled.
// Returns immediately when nothing is running.
func (g *runGuard) WaitAll(ctx context.Context) {
	g.mu.Lock()
	done := g.done
	running := g.running
	g.mu.Unlock()

	if !running {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}
