package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRecordAndRecent(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	if err := j.RecordBlock(KindHardBlock, "youtube.com"); err != nil {
		t.Fatalf("RecordBlock failed: %v", err)
	}
	j.RecordFlush("goal-1", 30, 10)

	events, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	// Newest first.
	if events[0].Kind != KindFlush || events[0].GoalID != "goal-1" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Kind != KindHardBlock || events[1].Domain != "youtube.com" {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[0].At.IsZero() {
		t.Error("timestamp not recorded")
	}
}

func TestRecent_Empty(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	events, err := j.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}
}
