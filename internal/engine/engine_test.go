package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabwarden/internal/attention"
	"tabwarden/internal/browser"
	"tabwarden/internal/cache"
	"tabwarden/internal/enforcer"
	"tabwarden/internal/rollover"
	"tabwarden/internal/session"
	"tabwarden/internal/softblock"
	"tabwarden/internal/store"
)

// newEngine wires a full stack against a fake backend: one goal row that
// rejects youtube.com, soft block enabled with a 1 minute timeout.
func newEngine(t *testing.T) (*Engine, *browser.Registry, *softblock.Timer, *attention.Accumulator) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/Extensions":
			if r.Method == http.MethodPatch {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			io.WriteString(w, `[{
				"id":"p1","goal_id":"g1",
				"allowed_domains":["docs.google.com"],
				"rejected_domains":["youtube.com"],
				"focused_time":0,"distracted_time":0,"deviation_warning":0,
				"date":"2026-08-28"
			}]`)
		case "/rest/v1/Settings":
			io.WriteString(w, `[{"hard_block":false,"soft_block":true,"timeout":1,"overlay":true}]`)
		default:
			io.WriteString(w, `[]`)
		}
	}))
	t.Cleanup(srv.Close)

	st := store.NewClient(srv.URL, "k")
	sessions, err := session.NewManager(filepath.Join(t.TempDir(), "session.json"), st)
	require.NoError(t, err)
	require.NoError(t, sessions.Save("tok", "p1"))

	dc := cache.New(time.Minute, func(ctx context.Context) ([]store.GoalRow, error) {
		return st.GoalRows(ctx, "tok", "p1")
	})

	tabs := browser.NewRegistry()
	timer := softblock.NewTimer()
	accum := attention.NewAccumulator()
	enf := enforcer.New(sessions, st, dc, timer, tabs, accum,
		"http://app.example", "http://app.example/supervisor", softblock.DefaultTimeoutMinutes)
	sampler := attention.NewSampler(st, sessions, tabs, accum, nil, 30*time.Second, 2*time.Minute)
	resetter := rollover.NewResetter(st, sessions)

	return NewEngine(enf, timer, sampler, resetter, time.Minute), tabs, timer, accum
}

func hasOp(cmds []browser.Command, op string) bool {
	for _, c := range cmds {
		if c.Op == op {
			return true
		}
	}
	return false
}

func TestTickCountdown_ExpiryClosesRejectedTabs(t *testing.T) {
	e, tabs, timer, _ := newEngine(t)
	tabs.UpsertTab(browser.Tab{ID: 1, URL: "https://youtube.com/watch", Active: true, Injectable: true})

	timer.Start(1, false)
	for i := 0; i < 60; i++ {
		e.tickCountdown(context.Background())
	}

	st := timer.Status()
	assert.False(t, st.Running, "timer must be idle after expiry")
	assert.Equal(t, 0, st.RemainingSecs)

	// EnforceExpiry runs async; wait for the close command to land.
	require.Eventually(t, func() bool {
		_, open := tabs.ActiveTab()
		return !open
	}, 2*time.Second, 10*time.Millisecond, "rejected tab should be closed after expiry")
}

func TestTickCountdown_PausedTimerHoldsValue(t *testing.T) {
	e, tabs, timer, _ := newEngine(t)
	tabs.UpsertTab(browser.Tab{ID: 1, URL: "https://youtube.com", Active: true, Injectable: true})

	timer.Start(1, false)
	timer.Pause()
	for i := 0; i < 10; i++ {
		e.tickCountdown(context.Background())
	}
	assert.Equal(t, 60, timer.Status().RemainingSecs)
}

func TestTickCountdown_BroadcastsRemaining(t *testing.T) {
	e, tabs, timer, _ := newEngine(t)
	tabs.UpsertTab(browser.Tab{ID: 1, URL: "https://youtube.com", Active: true, Injectable: true})

	timer.Start(1, false)
	e.tickCountdown(context.Background())

	cmds := tabs.DrainCommands()
	require.True(t, hasOp(cmds, browser.OpMessage))
	for _, c := range cmds {
		if c.Op == browser.OpMessage {
			assert.Equal(t, "softBlockTick", c.Payload["type"])
		}
	}
}

func TestTickSecond_CreditsActiveTab(t *testing.T) {
	e, tabs, _, accum := newEngine(t)
	tabs.UpsertTab(browser.Tab{ID: 1, URL: "https://docs.google.com/doc", Active: true, Injectable: true})

	e.tickSecond(context.Background())

	require.Eventually(t, func() bool {
		return !accum.Empty()
	}, 2*time.Second, 10*time.Millisecond)
	snap := accum.Snapshot()
	assert.Equal(t, int64(1), snap["g1"]["docs.google.com"])
}

func TestRun_StopsOnCancel(t *testing.T) {
	e, _, _, _ := newEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on cancel")
	}
}
