package attention

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

	"tabwarden/internal/browser"
	"tabwarden/internal/session"
	"tabwarden/internal/store"
)

type fakeTabs struct {
	tab browser.Tab
	ok  bool
}

func (f *fakeTabs) ActiveTab() (browser.Tab, bool) { return f.tab, f.ok }

func TestAccumulator_CreditAndClearDomain(t *testing.T) {
	a := NewAccumulator()
	for i := 0; i < 3; i++ {
		a.Credit([]string{"g1", "g2"}, "youtube.com")
	}
	a.Credit([]string{"g1"}, "go.dev")

	snap := a.Snapshot()
	assert.Equal(t, int64(3), snap["g1"]["youtube.com"])
	assert.Equal(t, int64(3), snap["g2"]["youtube.com"])
	assert.Equal(t, int64(1), snap["g1"]["go.dev"])

	a.ClearDomain("youtube.com")
	snap = a.Snapshot()
	assert.NotContains(t, snap, "g2")
	assert.Equal(t, int64(1), snap["g1"]["go.dev"])

	a.Clear()
	assert.True(t, a.Empty())
}

func newTestSession(t *testing.T, baseURL, apiKey string) (*session.Manager, *store.Client) {
	t.Helper()
	st := store.NewClient(baseURL, apiKey)
	m, err := session.NewManager(filepath.Join(t.TempDir(), "session.json"), st)
	require.NoError(t, err)
	require.NoError(t, m.Save("tok", "profile-1"))
	return m, st
}

func TestFlush_AppliesExactDeltasAndClears(t *testing.T) {
	var mu sync.Mutex
	patches := map[string]map[string]any{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `[{"id":"row-1","goal_id":"g1","allowed_domains":["go.dev"],"rejected_domains":["youtube.com"],"focused_time":100,"distracted_time":40,"deviation_warning":0,"date":"2026-08-28"}]`)
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

	sessions, st := newTestSession(t, srv.URL, "k")
	accum := NewAccumulator()
	s := NewSampler(st, sessions, &fakeTabs{}, accum, nil, 30*time.Second, 2*time.Minute)

	for i := 0; i < 30; i++ {
		accum.Credit([]string{"g1"}, "go.dev")
	}
	for i := 0; i < 10; i++ {
		accum.Credit([]string{"g1"}, "youtube.com")
	}
	// Neither allowed nor rejected: counted toward neither.
	for i := 0; i < 7; i++ {
		accum.Credit([]string{"g1"}, "example.org")
	}

	require.NoError(t, s.Flush(context.Background()))

	mu.Lock()
	body := patches["eq.row-1"]
	mu.Unlock()
	require.NotNil(t, body)
	assert.Equal(t, float64(130), body["focused_time"])
	assert.Equal(t, float64(50), body["distracted_time"])
	assert.True(t, accum.Empty(), "accumulator must be empty after flush")
}

func TestFlush_ClearsEvenWhenPatchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			io.WriteString(w, `[{"id":"row-1","goal_id":"g1","allowed_domains":["go.dev"],"rejected_domains":[],"focused_time":0,"distracted_time":0}]`)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sessions, st := newTestSession(t, srv.URL, "k")
	accum := NewAccumulator()
	s := NewSampler(st, sessions, &fakeTabs{}, accum, nil, 30*time.Second, 2*time.Minute)

	accum.Credit([]string{"g1"}, "go.dev")
	require.NoError(t, s.Flush(context.Background()))
	assert.True(t, accum.Empty(), "accumulator resets all-or-nothing")
}

func TestFlush_KeepsBucketsWhenRowFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sessions, st := newTestSession(t, srv.URL, "k")
	accum := NewAccumulator()
	s := NewSampler(st, sessions, &fakeTabs{}, accum, nil, 30*time.Second, 2*time.Minute)

	for i := 0; i < 90; i++ {
		accum.Credit([]string{"g1"}, "go.dev")
	}

	require.Error(t, s.Flush(context.Background()))
	snap := accum.Snapshot()
	assert.Equal(t, int64(90), snap["g1"]["go.dev"],
		"a failed row fetch must not discard accumulated attention")
}

func TestFlush_KeepsBucketsWithoutSession(t *testing.T) {
	st := store.NewClient("http://127.0.0.1:0", "k")
	m, err := session.NewManager(filepath.Join(t.TempDir(), "session.json"), st)
	require.NoError(t, err)

	accum := NewAccumulator()
	s := NewSampler(st, m, &fakeTabs{}, accum, nil, 30*time.Second, 2*time.Minute)

	accum.Credit([]string{"g1"}, "go.dev")
	require.NoError(t, s.Flush(context.Background()))
	assert.False(t, accum.Empty(), "no session means nothing to flush, buckets stay")
}

func TestTick_CreditsActiveDomainToEveryGoal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"r1","goal_id":"g1","allowed_domains":[],"rejected_domains":[]},{"id":"r2","goal_id":"g2","allowed_domains":[],"rejected_domains":[]}]`)
	}))
	defer srv.Close()

	sessions, st := newTestSession(t, srv.URL, "k")
	accum := NewAccumulator()
	tabs := &fakeTabs{tab: browser.Tab{ID: 1, URL: "https://www.YouTube.com/watch"}, ok: true}
	s := NewSampler(st, sessions, tabs, accum, nil, 30*time.Second, 2*time.Minute)

	for i := 0; i < 5; i++ {
		s.Tick(context.Background())
	}

	snap := accum.Snapshot()
	assert.Equal(t, int64(5), snap["g1"]["youtube.com"])
	assert.Equal(t, int64(5), snap["g2"]["youtube.com"])
}

func TestTick_NoSessionIsNoop(t *testing.T) {
	st := store.NewClient("http://127.0.0.1:0", "k")
	m, err := session.NewManager(filepath.Join(t.TempDir(), "session.json"), st)
	require.NoError(t, err)

	accum := NewAccumulator()
	s := NewSampler(st, m, &fakeTabs{tab: browser.Tab{URL: "https://go.dev"}, ok: true}, accum, nil, time.Second, time.Minute)
	s.Tick(context.Background())
	assert.True(t, accum.Empty())
}
