package intra

import (
	"context"
	"sync"
	"time"
)

// debounceDelay is the quiet window a query must survive before it is
// dispatched.
const debounceDelay = 300 * time.Millisecond

// SearchFunc performs the actual search once the debounce window closes.
type SearchFunc func(ctx context.Context, query string) ([]User, error)

// SearchResult is one delivered outcome, tagged with the query that
// produced it.
type SearchResult struct {
	Query string
	Users []User
	Err   error
}

// Debouncer is a single-slot search coordinator. At most one pending
// timer and one in-flight request exist at a time; a new query cancels
// the pending timer, and an in-flight response for a superseded query is
// discarded on arrival instead of overwriting newer state. Only the most
// recent query's result ever reaches deliver.
type Debouncer struct {
	search  SearchFunc
	deliver func(SearchResult)
	delay   time.Duration

	mu     sync.Mutex
	latest string
	timer  *time.Timer
}

// NewDebouncer creates a Debouncer that runs search after the quiet
// window and hands results to deliver. Deliver is never called
// concurrently with itself for the same query generation, but may run on
// a background goroutine.
func NewDebouncer(search SearchFunc, deliver func(SearchResult)) *Debouncer {
	return &Debouncer{
		search:  search,
		deliver: deliver,
		delay:   debounceDelay,
	}
}

// Query accepts a new query, superseding any pending or in-flight one.
func (d *Debouncer) Query(ctx context.Context, query string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest = query
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(ctx, query)
	})
}

// Reset cancels any pending query and marks in-flight responses stale.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest = ""
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// fire runs the search for query and delivers the result only if query
// is still the latest accepted one, both before dispatch and when the
// response arrives.
func (d *Debouncer) fire(ctx context.Context, query string) {
	d.mu.Lock()
	stale := query != d.latest
	d.mu.Unlock()
	if stale {
		return
	}

	users, err := d.search(ctx, query)

	d.mu.Lock()
	stale = query != d.latest
	d.mu.Unlock()
	if stale {
		return
	}

	d.deliver(SearchResult{Query: query, Users: users, Err: err})
}
