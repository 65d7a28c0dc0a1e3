// Package rollover zeroes per-day counters when the local calendar date
// moves past a goal row's stored date. Counters only mean anything for the
// current day, so a stale row must be reset before anything accumulates
// into it.
package rollover

import (
	"context"
	"fmt"
	"log"
	"time"

	"tabwarden/internal/session"
	"tabwarden/internal/store"
)

// LocalToday formats now as YYYY-MM-DD in the given location (the viewer's
// timezone, not UTC; a row rolls over at local midnight).
func LocalToday(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format("2006-01-02")
}

type Resetter struct {
	store    *store.Client
	sessions *session.Manager
	loc      *time.Location
	now      func() time.Time
}

func NewResetter(st *store.Client, sessions *session.Manager) *Resetter {
	return &Resetter{store: st, sessions: sessions, loc: time.Local, now: time.Now}
}

// Run fetches every goal row and resets the stale ones. Per-row failures
// are logged and skipped; the pass continues.
func (r *Resetter) Run(ctx context.Context) error {
	sess := r.sessions.Current()
	if sess.AccessToken == "" {
		return nil
	}
	pid, err := r.sessions.ResolveProfileID(ctx)
	if err != nil || pid == "" {
		return err
	}

	rows, err := r.store.GoalRows(ctx, sess.AccessToken, pid)
	if err != nil {
		return fmt.Errorf("rollover: %w", err)
	}

	today := LocalToday(r.now(), r.loc)
	for i := range rows {
		if err := r.resetIfStale(ctx, sess.AccessToken, &rows[i], today); err != nil {
			log.Printf("rollover: reset row %s failed: %v", rows[i].ID, err)
		}
	}
	return nil
}

func (r *Resetter) resetIfStale(ctx context.Context, token string, row *store.GoalRow, today string) error {
	if row.Day() == today {
		return nil
	}
	log.Printf("rollover: resetting row %s (stored date %q -> %s)", row.ID, row.Day(), today)
	return r.store.PatchGoalRow(ctx, token, row.ID, row.GoalID, map[string]any{
		"focused_time":      0,
		"distracted_time":   0,
		"deviation_warning": 0,
		"date":              today,
	})
}
