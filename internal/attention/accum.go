package attention

import "sync"

// Accumulator buckets observed attention seconds by goal id, then by
// domain. It is filled by the 1 Hz sampler and emptied by the flush.
type Accumulator struct {
	mu   sync.Mutex
	secs map[string]map[string]int64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{secs: make(map[string]map[string]int64)}
}

// Credit adds one second of attention on domain to every listed goal.
// Attention is domain-specific, not goal-specific: each goal is credited
// uniformly for whatever domain is active.
func (a *Accumulator) Credit(goalIDs []string, domain string) {
	if domain == "" || len(goalIDs) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, gid := range goalIDs {
		per := a.secs[gid]
		if per == nil {
			per = make(map[string]int64)
			a.secs[gid] = per
		}
		per[domain]++
	}
}

// ClearDomain drops the accumulated seconds for one domain under every
// goal. Called when a domain gets blocked so the time spent on it before
// enforcement is never flushed upstream.
func (a *Accumulator) ClearDomain(domain string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for gid, per := range a.secs {
		delete(per, domain)
		if len(per) == 0 {
			delete(a.secs, gid)
		}
	}
}

// Snapshot returns a deep copy of the current buckets.
func (a *Accumulator) Snapshot() map[string]map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]map[string]int64, len(a.secs))
	for gid, per := range a.secs {
		cp := make(map[string]int64, len(per))
		for d, s := range per {
			cp[d] = s
		}
		out[gid] = cp
	}
	return out
}

// Clear empties every bucket.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.secs = make(map[string]map[string]int64)
}

// Empty reports whether nothing has been accumulated.
func (a *Accumulator) Empty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.secs) == 0
}
