// Package bridge is the loopback HTTP surface the browser extension talks
// to. The extension pushes tab state in (full syncs and per-tab events) and
// picks up queued commands on every round trip; it also proxies the login
// handoff from the web app, since the browser cannot speak D-Bus.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tabwarden/internal/browser"
	"tabwarden/internal/cache"
	"tabwarden/internal/enforcer"
	"tabwarden/internal/session"
)

type Server struct {
	addr     string
	sessions *session.Manager
	cache    *cache.DomainCache
	enforcer *enforcer.Enforcer
	tabs     *browser.Registry
}

func NewServer(addr string, sessions *session.Manager, dc *cache.DomainCache, enf *enforcer.Enforcer, tabs *browser.Registry) *Server {
	return &Server{addr: addr, sessions: sessions, cache: dc, enforcer: enf, tabs: tabs}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Bridge listening on http://%s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler builds the route table. Split out so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /session", s.handleSaveSession)
	mux.HandleFunc("DELETE /session", s.handleClearSession)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /tabs/sync", s.handleTabSync)
	mux.HandleFunc("POST /tabs/event", s.handleTabEvent)
	mux.HandleFunc("GET /softblock", s.handleSoftBlock)
	mux.HandleFunc("POST /test", s.handleTest)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("bridge: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"authenticated": s.sessions.Authenticated(),
	})
}

type sessionRequest struct {
	AccessToken string `json:"access_token"`
	ProfileID   string `json:"profile_id"`
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "access_token is required")
		return
	}
	if err := s.sessions.Save(req.AccessToken, req.ProfileID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Println("Bridge: session saved")
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Println("Bridge: session cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.cache.Invalidate()
	snap, err := s.cache.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"allowed":  len(snap.Allowed),
		"rejected": len(snap.Rejected),
	})
}

type tabSyncRequest struct {
	Tabs []browser.Tab `json:"tabs"`
}

func (s *Server) handleTabSync(w http.ResponseWriter, r *http.Request) {
	var req tabSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	s.tabs.SyncTabs(req.Tabs)

	// Re-check the focused tab on every sync so a block missed while the
	// daemon was down is enforced on reconnect.
	if tab, ok := s.tabs.ActiveTab(); ok {
		s.enforcer.CheckTab(r.Context(), tab.ID, tab.URL, false)
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": s.tabs.DrainCommands()})
}

// Tab event names sent by the extension.
const (
	eventUpdated   = "updated"
	eventActivated = "activated"
	eventRemoved   = "removed"
)

type tabEventRequest struct {
	Event string      `json:"event"`
	Tab   browser.Tab `json:"tab"`
}

func (s *Server) handleTabEvent(w http.ResponseWriter, r *http.Request) {
	var req tabEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}

	switch req.Event {
	case eventRemoved:
		s.tabs.RemoveTab(req.Tab.ID)
	case eventUpdated, eventActivated:
		s.tabs.UpsertTab(req.Tab)
		s.enforcer.CheckTab(r.Context(), req.Tab.ID, req.Tab.URL, false)
	default:
		writeError(w, http.StatusBadRequest, "unknown event "+req.Event)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": s.tabs.DrainCommands()})
}

func (s *Server) handleSoftBlock(w http.ResponseWriter, r *http.Request) {
	remaining, timeout, paused := s.enforcer.SoftBlockTime(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"remaining_secs":  remaining,
		"timeout_minutes": timeout,
		"paused":          paused,
	})
}

type testRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	blocked, pattern := s.enforcer.TestURL(r.Context(), req.URL)
	writeJSON(w, http.StatusOK, map[string]any{"blocked": blocked, "pattern": pattern})
}
