package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"tabwarden/internal/store"
)

// Session is the persisted authentication state. ProfileID may be empty
// until lazily resolved from the token's subject claim.
type Session struct {
	AccessToken string `json:"access_token"`
	ProfileID   string `json:"profile_id"`
	InstallID   string `json:"install_id"`
}

// Manager owns the session file. All mutation goes through it; observers
// registered with OnChange are notified after every login/logout so caches
// keyed on the session can invalidate themselves.
type Manager struct {
	path  string
	store *store.Client

	mu       sync.Mutex
	sess     Session
	onChange []func()
}

// NewManager loads the session file or initializes a fresh one with a
// stable install id.
func NewManager(path string, st *store.Client) (*Manager, error) {
	m := &Manager{path: path, store: st}

	if err := m.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		m.sess = Session{InstallID: uuid.NewString()}
		if err := m.save(); err != nil {
			return nil, err
		}
	}
	if m.sess.InstallID == "" {
		m.sess.InstallID = uuid.NewString()
		if err := m.save(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse session file: %w", err)
	}
	m.sess = s
	return nil
}

// save atomically writes the session file. Callers hold m.mu (or run
// before the manager is shared).
func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.sess, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// OnChange registers a callback fired after every Save or Clear.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Save establishes a new session. profileID may be empty; it will be
// resolved on demand.
func (m *Manager) Save(accessToken, profileID string) error {
	m.mu.Lock()
	m.sess.AccessToken = accessToken
	m.sess.ProfileID = profileID
	err := m.save()
	hooks := append([]func(){}, m.onChange...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return err
}

// Clear drops the session (logout).
func (m *Manager) Clear() error {
	return m.Save("", "")
}

// Current returns a copy of the session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// Authenticated reports whether an access token is present.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.AccessToken != ""
}

// ResolveProfileID returns the profile id for the current session,
// resolving and persisting it on first use. Lookup chain: profile row
// keyed by the JWT subject, then the first profile visible to the token,
// then the remaining identity-ish claims. Returns "" (with no error) when
// every strategy comes up empty; callers fail open.
func (m *Manager) ResolveProfileID(ctx context.Context) (string, error) {
	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()

	if sess.ProfileID != "" {
		return sess.ProfileID, nil
	}
	if sess.AccessToken == "" {
		return "", fmt.Errorf("no session")
	}

	claims, err := DecodeClaims(sess.AccessToken)
	if err != nil {
		log.Printf("session: token claims undecodable: %v", err)
	}
	candidates := subjectCandidates(claims)

	if len(candidates) > 0 {
		id, err := m.store.ProfileByID(ctx, sess.AccessToken, candidates[0])
		if err != nil {
			log.Printf("session: profile lookup by subject failed: %v", err)
		} else if id != "" {
			return id, m.persistProfileID(id)
		}
	}

	id, err := m.store.FirstProfile(ctx, sess.AccessToken)
	if err != nil {
		log.Printf("session: profile list lookup failed: %v", err)
	} else if id != "" {
		return id, m.persistProfileID(id)
	}

	for _, cand := range candidates[min(1, len(candidates)):] {
		id, err := m.store.ProfileByID(ctx, sess.AccessToken, cand)
		if err != nil {
			log.Printf("session: fallback profile lookup failed: %v", err)
			continue
		}
		if id != "" {
			return id, m.persistProfileID(id)
		}
	}

	log.Printf("session: could not resolve profile id for current token")
	return "", nil
}

func (m *Manager) persistProfileID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.ProfileID = id
	return m.save()
}
