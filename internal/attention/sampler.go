package attention

import (
	"context"
	"log"
	"sync"
	"time"

	"tabwarden/internal/browser"
	"tabwarden/internal/domain"
	"tabwarden/internal/session"
	"tabwarden/internal/store"
)

// TabSource exposes the currently focused tab.
type TabSource interface {
	ActiveTab() (browser.Tab, bool)
}

// FlushRecorder receives a local record of every per-goal flush. Best
// effort; implementations must not block.
type FlushRecorder interface {
	RecordFlush(goalID string, focusedSecs, distractedSecs int64)
}

// Sampler drives the attention pipeline: every second it credits the
// active tab's domain to every known goal row (the row set itself is
// refreshed on a coarser interval), and on the flush interval it converts
// the buckets into focused/distracted deltas per row and patches them
// upstream. The accumulator is cleared once a flush pass has rows to work
// with, even when individual row updates failed; a retry would double-count
// the rows that did succeed. A pass that cannot fetch rows at all keeps the
// buckets for the next window.
type Sampler struct {
	store    *store.Client
	sessions *session.Manager
	tabs     TabSource
	accum    *Accumulator
	recorder FlushRecorder

	rowsRefresh time.Duration
	flushEvery  time.Duration
	now         func() time.Time

	mu          sync.Mutex
	rows        []store.GoalRow
	lastRowsAt  time.Time
	lastFlushAt time.Time
}

func NewSampler(st *store.Client, sessions *session.Manager, tabs TabSource, accum *Accumulator, recorder FlushRecorder, rowsRefresh, flushEvery time.Duration) *Sampler {
	s := &Sampler{
		store:       st,
		sessions:    sessions,
		tabs:        tabs,
		accum:       accum,
		recorder:    recorder,
		rowsRefresh: rowsRefresh,
		flushEvery:  flushEvery,
		now:         time.Now,
	}
	s.lastFlushAt = s.now()
	return s
}

// Tick is invoked at 1 Hz by the engine.
func (s *Sampler) Tick(ctx context.Context) {
	if !s.sessions.Authenticated() {
		return
	}

	now := s.now()
	s.refreshRows(ctx, now)

	tab, ok := s.tabs.ActiveTab()
	if !ok {
		return
	}
	dom, ok := domain.NormalizeHost(tab.URL)
	if !ok {
		return
	}

	s.mu.Lock()
	goalIDs := make([]string, 0, len(s.rows))
	for i := range s.rows {
		goalIDs = append(goalIDs, s.rows[i].GoalID)
	}
	due := now.Sub(s.lastFlushAt) >= s.flushEvery
	if due {
		s.lastFlushAt = now
	}
	s.mu.Unlock()

	s.accum.Credit(goalIDs, dom)

	if due {
		if err := s.Flush(ctx); err != nil {
			log.Printf("attention: flush failed: %v", err)
		}
	}
}

func (s *Sampler) refreshRows(ctx context.Context, now time.Time) {
	s.mu.Lock()
	stale := now.Sub(s.lastRowsAt) >= s.rowsRefresh || s.lastRowsAt.IsZero()
	s.mu.Unlock()
	if !stale {
		return
	}

	sess := s.sessions.Current()
	pid, err := s.sessions.ResolveProfileID(ctx)
	if err != nil || pid == "" {
		return
	}
	rows, err := s.store.GoalRows(ctx, sess.AccessToken, pid)
	if err != nil {
		log.Printf("attention: goal row refresh failed: %v", err)
		return
	}

	s.mu.Lock()
	s.rows = rows
	s.lastRowsAt = now
	s.mu.Unlock()
}

// Flush converts the accumulated buckets into per-row deltas and patches
// them upstream. When the row fetch itself fails (or no session or rows
// exist) the buckets are kept for the next flush window; once rows are in
// hand the accumulator is cleared all-or-nothing, even if individual row
// patches fail below.
func (s *Sampler) Flush(ctx context.Context) error {
	sess := s.sessions.Current()
	if sess.AccessToken == "" {
		return nil
	}
	pid, err := s.sessions.ResolveProfileID(ctx)
	if err != nil || pid == "" {
		return err
	}

	rows, err := s.store.GoalRows(ctx, sess.AccessToken, pid)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	// Cleared past this point no matter what: a retry would double-count
	// the rows that did get patched.
	defer s.accum.Clear()

	buckets := s.accum.Snapshot()
	for i := range rows {
		row := &rows[i]
		allowed := row.Allowed()
		rejected := row.Rejected()

		var focused, distracted int64
		for dom, secs := range buckets[row.GoalID] {
			if domain.MatchAny(dom, allowed) {
				focused += secs
			}
			if domain.MatchAny(dom, rejected) {
				distracted += secs
			}
		}

		patch := map[string]any{
			"focused_time":    row.FocusedTime + focused,
			"distracted_time": row.DistractedTime + distracted,
		}
		if err := s.store.PatchGoalRow(ctx, sess.AccessToken, row.ID, row.GoalID, patch); err != nil {
			log.Printf("attention: patch row %s failed: %v", row.ID, err)
			continue
		}
		if s.recorder != nil && (focused > 0 || distracted > 0) {
			s.recorder.RecordFlush(row.GoalID, focused, distracted)
		}
	}
	return nil
}
