// Package cache provides the shared feature cache used across concurrent
// backtest runs. It is content-addressable by feature.Key, guarantees at most
// one in-flight computation per key (singleflight), and bounds memory with
// LRU eviction over ready entries.
//
// The memory budget and eviction unit are policy, not constants: the budget
// is configured in bytes (zero or negative disables eviction) and the unit of
// estimation is one cached vector slice, costed per vector plus a fixed
// per-entry overhead. Eviction runs inline when an entry is inserted.
package cache

import (
	"container/list"
	"context"
	"sync"

	"kepler/internal/domain"
	"kepler/internal/feature"
)

// ComputeFunc produces the feature vectors for a key. It must be a pure
// function of the key's identity; the cache invokes it at most once per
// absent key regardless of how many requesters race.
type ComputeFunc func() ([]feature.Vector, error)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

// Size estimation. A Vector is ten float64-sized fields plus a symbol
// header; the entry overhead covers map, list, and channel bookkeeping.
const (
	vectorBytes   = 104
	entryOverhead = 256
)

type entry struct {
	key  string
	done chan struct{} // closed when the computation finishes

	// Written once before done is closed, read-only after.
	vecs []feature.Vector
	err  error
	size int64

	elem   *list.Element // non-nil once the entry is ready and resident
	doomed bool          // invalidated while in flight; do not store on completion
}

// Cache is safe for concurrent use. Create one per sweep and pass it by
// reference into each run; tests instantiate isolated caches the same way.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently used; ready entries only
	budget  int64
	bytes   int64

	hits      int64
	misses    int64
	evictions int64
}

// New creates a Cache with the given memory budget in bytes. A budget <= 0
// disables eviction.
func New(budgetBytes int64) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		lru:     list.New(),
		budget:  budgetBytes,
	}
}

// GetOrCompute returns the cached vectors for key, computing them with fn if
// absent. Concurrent requesters for the same absent key share a single
// invocation of fn: the first caller computes, the rest wait on the same
// in-flight entry and receive its result or its error. A failed computation
// is delivered to every waiter as the same *domain.CacheComputationError and
// leaves the key absent for retry.
//
// A waiter whose ctx is cancelled stops waiting and returns ctx.Err(); the
// computation it was waiting on is unaffected and still populates the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key feature.Key, fn ComputeFunc) ([]feature.Vector, error) {
	ks := key.String()

	c.mu.Lock()
	if e, ok := c.entries[ks]; ok {
		if e.elem != nil {
			c.lru.MoveToFront(e.elem)
			c.hits++
			vecs := e.vecs
			c.mu.Unlock()
			return vecs, nil
		}
		// In flight: wait for the initiating caller.
		c.hits++
		c.mu.Unlock()
		select {
		case <-e.done:
			return e.vecs, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.misses++
	e := &entry{key: ks, done: make(chan struct{})}
	c.entries[ks] = e
	c.mu.Unlock()

	// Compute outside the lock so unrelated keys are never blocked. The
	// initiator runs to completion even if its own ctx is cancelled: other
	// waiters may be attached, and the result must reach them.
	vecs, err := fn()

	c.mu.Lock()
	if err != nil {
		e.err = &domain.CacheComputationError{Key: ks, Err: err}
		if c.entries[ks] == e {
			delete(c.entries, ks)
		}
		close(e.done)
		c.mu.Unlock()
		return nil, e.err
	}

	e.vecs = vecs
	e.size = int64(len(vecs))*vectorBytes + entryOverhead
	if e.doomed || c.entries[ks] != e {
		// Invalidated mid-flight: waiters still get the result below, but
		// the entry is not retained.
		close(e.done)
		c.mu.Unlock()
		return vecs, nil
	}
	e.elem = c.lru.PushFront(e)
	c.bytes += e.size
	c.evictLocked()
	close(e.done)
	c.mu.Unlock()
	return vecs, nil
}

// Invalidate removes the entry for key regardless of state. An in-flight
// entry is marked doomed: its waiters still receive the in-progress result,
// but the entry is dropped as soon as the computation completes.
func (c *Cache) Invalidate(key feature.Key) {
	ks := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ks]
	if !ok {
		return
	}
	if e.elem == nil {
		e.doomed = true
		delete(c.entries, ks)
		return
	}
	c.removeLocked(e)
}

// Len returns the number of resident entries, in-flight included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
		Bytes:     c.bytes,
	}
}

// evictLocked drops least-recently-used ready entries until the cache is
// within budget. In-flight entries are never on the LRU list and therefore
// never evicted.
func (c *Cache) evictLocked() {
	if c.budget <= 0 {
		return
	}
	for c.bytes > c.budget {
		back := c.lru.Back()
		if back == nil {
			return
		}
		c.removeLocked(back.Value.(*entry))
		c.evictions++
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.lru.Remove(e.elem)
	c.bytes -= e.size
	delete(c.entries, e.key)
}
