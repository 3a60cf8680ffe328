package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunGuard_SecondLockRefused(t *testing.T) {
	var g runGuard

	assert.True(t, g.TryLock())
	assert.False(t, g.TryLock(), "overlapping run must be refused")

	g.Unlock()
	assert.True(t, g.TryLock(), "slot reusable after unlock")
	g.Unlock()
}

func TestRunGuard_WaitAllBlocksUntilUnlock(t *testing.T) {
	var g runGuard
	assert.True(t, g.TryLock())

	released := make(chan struct{})
	go func() {
		g.WaitAll(context.Background())
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("WaitAll returned while the run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	g.Unlock()
	select {
	case <-released:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitAll did not return after unlock")
	}
}

func TestRunGuard_WaitAllHonorsContext(t *testing.T) {
	var g runGuard
	assert.True(t, g.TryLock())
	defer g.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	g.WaitAll(ctx)
	assert.Less(t, time.Since(start), 2*time.Second)
}
