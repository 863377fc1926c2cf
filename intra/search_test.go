package intra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectResults gathers delivered results behind a mutex.
type collectResults struct {
	mu      sync.Mutex
	results []SearchResult
}

func (c *collectResults) deliver(r SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collectResults) snapshot() []SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SearchResult(nil), c.results...)
}

func TestDebouncer_RapidQueriesCollapse(t *testing.T) {
	var calls atomic.Int32
	var queries sync.Map
	search := func(ctx context.Context, query string) ([]User, error) {
		calls.Add(1)
		queries.Store(query, true)
		return []User{{Login: query}}, nil
	}

	sink := &collectResults{}
	d := NewDebouncer(search, sink.deliver)
	d.delay = 50 * time.Millisecond

	ctx := context.Background()
	d.Query(ctx, "jo")
	time.Sleep(10 * time.Millisecond) // well inside the quiet window
	d.Query(ctx, "joh")

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) > 0
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), calls.Load(), "only the latest query may fire")
	if _, fired := queries.Load("jo"); fired {
		t.Errorf("superseded query %q reached the network", "jo")
	}

	results := sink.snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, "joh", results[0].Query)
	require.Len(t, results[0].Users, 1)
	assert.Equal(t, "joh", results[0].Users[0].Login)
}

func TestDebouncer_StaleInFlightResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)
	search := func(ctx context.Context, query string) ([]User, error) {
		started <- query
		if query == "old" {
			<-release // hold the first request in flight
		}
		return []User{{Login: query}}, nil
	}

	sink := &collectResults{}
	d := NewDebouncer(search, sink.deliver)
	d.delay = 10 * time.Millisecond

	ctx := context.Background()
	d.Query(ctx, "old")
	require.Equal(t, "old", <-started, "first query should dispatch")

	// Supersede while "old" is still in flight.
	d.Query(ctx, "new")
	require.Equal(t, "new", <-started)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	// Let the stale response arrive; it must be a no-op.
	close(release)
	time.Sleep(50 * time.Millisecond)

	results := sink.snapshot()
	require.Len(t, results, 1, "stale response must never be delivered")
	assert.Equal(t, "new", results[0].Query)
}

func TestDebouncer_ResetCancelsPending(t *testing.T) {
	var calls atomic.Int32
	search := func(ctx context.Context, query string) ([]User, error) {
		calls.Add(1)
		return nil, nil
	}

	d := NewDebouncer(search, func(SearchResult) {})
	d.delay = 20 * time.Millisecond

	d.Query(context.Background(), "abc")
	d.Reset()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load(), "reset must cancel the pending timer")
}
