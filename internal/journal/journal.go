// Package journal keeps a local SQLite record of enforcement and flush
// activity so `twctl history` can answer "what did the warden do today"
// without a round trip to the backend. Everything here is best effort:
// enforcement never waits on, or fails because of, the journal.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Journal struct {
	db *sql.DB
}

// Event is one journal row.
type Event struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Domain string    `json:"domain,omitempty"`
	GoalID string    `json:"goal_id,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Event kinds.
const (
	KindHardBlock    = "hard_block"
	KindSoftBlock    = "soft_block"
	KindOverlayBlock = "overlay_block"
	KindExpiry       = "soft_block_expired"
	KindFlush        = "flush"
	KindRollover     = "rollover"
)

func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: db}
	if err := j.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at TEXT NOT NULL,
  kind TEXT NOT NULL,
  domain TEXT,
  goal_id TEXT,
  detail TEXT
);
CREATE INDEX IF NOT EXISTS events_at ON events(at);
`
	if _, err := j.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) record(kind, domain, goalID, detail string) error {
	_, err := j.db.Exec(
		`INSERT INTO events (at, kind, domain, goal_id, detail) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), kind, domain, goalID, detail,
	)
	return err
}

// RecordBlock notes an enforcement action against a domain.
func (j *Journal) RecordBlock(kind, domain string) error {
	return j.record(kind, domain, "", "")
}

// RecordFlush notes the deltas pushed upstream for one goal.
func (j *Journal) RecordFlush(goalID string, focusedSecs, distractedSecs int64) {
	// Fire and forget; the flush loop logs its own failures.
	_ = j.record(KindFlush, "", goalID, fmt.Sprintf("focused=%ds distracted=%ds", focusedSecs, distractedSecs))
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT at, kind, COALESCE(domain,''), COALESCE(goal_id,''), COALESCE(detail,'')
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&at, &e.Kind, &e.Domain, &e.GoalID, &e.Detail); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, e)
	}
	return out, rows.Err()
}
