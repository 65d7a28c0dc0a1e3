package cache

import (
	"context"
	"sync"
	"time"

	"tabwarden/internal/domain"
	"tabwarden/internal/store"
)

// Snapshot is the parsed union of every goal row's domain lists plus the
// raw rows backing it (kept so per-row writes can reuse them).
type Snapshot struct {
	Allowed  []string
	Rejected []string
	Rows     []store.GoalRow
}

// FetchFunc loads the goal rows for the current session.
type FetchFunc func(ctx context.Context) ([]store.GoalRow, error)

// DomainCache bounds backend reads under rapid tab switching: a snapshot
// younger than the TTL is served without touching the network. Failed or
// empty fetches are never cached: the timestamp only advances on a
// successful non-empty fetch, so the next caller retries immediately
// instead of pinning an empty result for a whole TTL window.
type DomainCache struct {
	ttl   time.Duration
	fetch FetchFunc
	now   func() time.Time

	mu   sync.Mutex
	ts   time.Time
	snap Snapshot
}

func New(ttl time.Duration, fetch FetchFunc) *DomainCache {
	return &DomainCache{ttl: ttl, fetch: fetch, now: time.Now}
}

// Get returns the current snapshot, refreshing it when stale. On fetch
// failure it returns an empty snapshot and the error; the cached state is
// left untouched.
func (c *DomainCache) Get(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if len(c.snap.Rows) > 0 && c.now().Sub(c.ts) < c.ttl {
		snap := c.snap
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	rows, err := c.fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	var allowed, rejected []string
	for i := range rows {
		allowed = append(allowed, rows[i].Allowed()...)
		rejected = append(rejected, rows[i].Rejected()...)
	}
	snap := Snapshot{
		Allowed:  domain.Dedupe(allowed),
		Rejected: domain.Dedupe(rejected),
		Rows:     rows,
	}

	if len(rows) > 0 {
		c.mu.Lock()
		c.snap = snap
		c.ts = c.now()
		c.mu.Unlock()
	}
	return snap, nil
}

// Invalidate forces the next Get to refetch. Called on session change and
// on explicit refresh requests from the UI.
func (c *DomainCache) Invalidate() {
	c.mu.Lock()
	c.ts = time.Time{}
	c.snap = Snapshot{}
	c.mu.Unlock()
}
