package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalRows(t *testing.T) {
	var gotPath, gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"row-1","goal_id":"goal-1","allowed_domains":"{go.dev,github.com}","rejected_domains":["youtube.com"],"focused_time":120,"distracted_time":30,"deviation_warning":2,"date":"2026-08-28"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key")
	rows, err := c.GoalRows(context.Background(), "tok", "profile-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "/rest/v1/Extensions?id=eq.profile-1&select=*", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "anon-key", gotKey)

	row := rows[0]
	assert.Equal(t, "row-1", row.ID)
	assert.Equal(t, []string{"go.dev", "github.com"}, row.Allowed())
	assert.Equal(t, []string{"youtube.com"}, row.Rejected())
	assert.Equal(t, int64(120), row.FocusedTime)
	assert.Equal(t, "2026-08-28", row.Day())
}

func TestGoalRows_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.GoalRows(context.Background(), "tok", "p")
	assert.Error(t, err)
}

func TestPatchGoalRow(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.RequestURI()
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	err := c.PatchGoalRow(context.Background(), "tok", "row-1", "goal-1", map[string]any{
		"deviation_warning": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/rest/v1/Extensions?id=eq.row-1&goal_id=eq.goal-1", gotPath)
	assert.Equal(t, float64(3), gotBody["deviation_warning"])
}

func TestSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/Settings?id=eq.p1&select=hard_block,soft_block,timeout,overlay", r.URL.RequestURI())
		io.WriteString(w, `[{"hard_block":false,"soft_block":true,"timeout":1,"overlay":true}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	s, err := c.Settings(context.Background(), "tok", "p1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.SoftBlock)
	assert.False(t, s.HardBlock)
	assert.Equal(t, 1, s.Timeout(5))
}

func TestSettings_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	s, err := c.Settings(context.Background(), "tok", "p1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSettings_TimeoutDefault(t *testing.T) {
	s := &Settings{}
	assert.Equal(t, 5, s.Timeout(5))
}

func TestProfileLookups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.RequestURI() {
		case "/rest/v1/Profiles?id=eq.sub-1&select=id":
			io.WriteString(w, `[{"id":"sub-1"}]`)
		case "/rest/v1/Profiles?id=eq.missing&select=id":
			io.WriteString(w, `[]`)
		case "/rest/v1/Profiles?select=id":
			io.WriteString(w, `[{"id":"p-first"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")

	id, err := c.ProfileByID(context.Background(), "tok", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)

	id, err = c.ProfileByID(context.Background(), "tok", "missing")
	require.NoError(t, err)
	assert.Equal(t, "", id)

	id, err = c.FirstProfile(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "p-first", id)
}
