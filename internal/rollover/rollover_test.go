package rollover

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabwarden/internal/session"
	"tabwarden/internal/store"
)

func TestLocalToday(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 03:00 UTC on the 28th is still the 27th in New York.
	now := time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-27", LocalToday(now, loc))
	assert.Equal(t, "2026-08-28", LocalToday(now, time.UTC))
}

func TestRun_ResetsOnlyStaleRows(t *testing.T) {
	var mu sync.Mutex
	patches := map[string]map[string]any{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `[
				{"id":"stale","goal_id":"g1","focused_time":500,"distracted_time":80,"deviation_warning":4,"date":"2026-08-27"},
				{"id":"fresh","goal_id":"g2","focused_time":10,"distracted_time":0,"deviation_warning":0,"date":"2026-08-28"}
			]`)
		case http.MethodPatch:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			patches[r.URL.Query().Get("id")] = body
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	st := store.NewClient(srv.URL, "k")
	sessions, err := session.NewManager(filepath.Join(t.TempDir(), "session.json"), st)
	require.NoError(t, err)
	require.NoError(t, sessions.Save("tok", "p1"))

	r := NewResetter(st, sessions)
	r.loc = time.UTC
	r.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, r.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, patches, "eq.stale")
	body := patches["eq.stale"]
	assert.Equal(t, float64(0), body["focused_time"])
	assert.Equal(t, float64(0), body["distracted_time"])
	assert.Equal(t, float64(0), body["deviation_warning"])
	assert.Equal(t, "2026-08-28", body["date"])
	assert.NotContains(t, patches, "eq.fresh", "current rows must be untouched")
}

func TestRun_RowFailureDoesNotAbortPass(t *testing.T) {
	var mu sync.Mutex
	patched := []string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `[
				{"id":"bad","goal_id":"g1","date":"2026-08-01"},
				{"id":"good","goal_id":"g2","date":"2026-08-01"}
			]`)
		case http.MethodPatch:
			id := r.URL.Query().Get("id")
			if id == "eq.bad" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			mu.Lock()
			patched = append(patched, id)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	st := store.NewClient(srv.URL, "k")
	sessions, err := session.NewManager(filepath.Join(t.TempDir(), "session.json"), st)
	require.NoError(t, err)
	require.NoError(t, sessions.Save("tok", "p1"))

	r := NewResetter(st, sessions)
	r.loc = time.UTC
	r.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, r.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"eq.good"}, patched)
}

func TestRun_NoSessionIsNoop(t *testing.T) {
	st := store.NewClient("http://127.0.0.1:0", "k")
	sessions, err := session.NewManager(filepath.Join(t.TempDir(), "session.json"), st)
	require.NoError(t, err)

	r := NewResetter(st, sessions)
	assert.NoError(t, r.Run(context.Background()))
}
