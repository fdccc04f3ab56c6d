// Package cache memoizes loaded documents for the lifetime of one batch.
//
// Concurrent requests for the same identity share a single load: the first
// caller runs it, everyone else waits for its result, success or failure.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/pdfcombine/loader"
	"github.com/wudi/pdfcombine/source"
)

// ErrLoadPanicked is reported to callers waiting on a load that panicked.
var ErrLoadPanicked = errors.New("load panicked")

// LoadFunc produces the document for an identity on a cache miss.
type LoadFunc func(ctx context.Context) (*loader.Loaded, error)

type entry struct {
	done   chan struct{}
	loaded *loader.Loaded
	err    error
}

// Stats counts cache activity.
type Stats struct {
	Loads int
	Hits  int
}

// Cache is a batch-scoped, concurrency-safe memo of loaded documents.
type Cache struct {
	mu      sync.Mutex
	entries map[source.Identity]*entry
	stats   Stats
}

func New() *Cache {
	return &Cache{entries: make(map[source.Identity]*entry)}
}

// GetOrLoad returns the document cached under id, waiting for an in-flight
// load if needed. On a miss load is called once and its result, including
// an error, is stored for every later caller.
func (c *Cache) GetOrLoad(ctx context.Context, id source.Identity, load LoadFunc) (*loader.Loaded, error) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		c.stats.Hits++
		c.mu.Unlock()
		CacheHits.Inc()
		return e.wait(ctx)
	}
	e := &entry{done: make(chan struct{})}
	c.entries[id] = e
	c.stats.Loads++
	c.mu.Unlock()
	CacheLoads.Inc()

	defer func() {
		if r := recover(); r != nil {
			e.err = fmt.Errorf("%w: %s: %v", ErrLoadPanicked, id, r)
			close(e.done)
			panic(r)
		}
	}()
	e.loaded, e.err = load(ctx)
	close(e.done)
	return e.loaded, e.err
}

func (e *entry) wait(ctx context.Context) (*loader.Loaded, error) {
	select {
	case <-e.done:
		return e.loaded, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len is the number of identities seen since the last Purge.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Purge drops every entry. Loads still in flight complete for their waiters
// but are no longer reachable through the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[source.Identity]*entry)
}
