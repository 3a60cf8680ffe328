package pipeline

import (
	"context"
	"math/rand/v2"
	"sync"
)

// ── Remote source ──────────────────────────────────────────
// The retry wrapper in the Extractor only depends on this
// interface: status 200 is terminal success, anything else is a
// transient failure. The production implementation is a policy
// stub, not a real HTTP client.

// Fetcher performs one attempt against a remote source.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (status int, records []RawRecord, err error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (int, []RawRecord, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (int, []RawRecord, error) {
	return f(ctx, url)
}

// SimulatedFetcher mimics a flaky REST API. With Statuses set the
// outcomes are scripted in order (the last one repeats), which
// lets tests force e.g. "fail twice, then succeed". Without, each
// attempt draws randomly and fails roughly 40% of the time.
type SimulatedFetcher struct {
	Statuses []int

	mu    sync.Mutex
	calls int
}

var flakyStatuses = []int{200, 200, 503, 500, 200}

func (s *SimulatedFetcher) Fetch(_ context.Context, _ string) (int, []RawRecord, error) {
	s.mu.Lock()
	var status int
	if len(s.Statuses) > 0 {
		i := s.calls
		if i >= len(s.Statuses) {
			i = len(s.Statuses) - 1
		}
		status = s.Statuses[i]
	} else {
		status = flakyStatuses[rand.IntN(len(flakyStatuses))]
	}
	s.calls++
	s.mu.Unlock()

	if status != 200 {
		return status, nil, nil
	}
	return 200, []RawRecord{
		{"source": "api", "order_id": "API-001", "amount": 150.00},
		{"source": "api", "order_id": "API-002", "amount": 75.50},
	}, nil
}
