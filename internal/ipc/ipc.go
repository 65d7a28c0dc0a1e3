// Package ipc exposes the daemon's control surface on the session D-Bus so
// twctl (and anything else on the bus) can drive it without touching the
// HTTP bridge.
package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"tabwarden/internal/browser"
	"tabwarden/internal/cache"
	"tabwarden/internal/enforcer"
	"tabwarden/internal/session"
	"tabwarden/internal/softblock"
)

const (
	ObjectPath    = "/io/github/tabwarden"
	InterfaceName = "io.github.tabwarden.Manager"
	ServiceName   = "io.github.tabwarden"
)

// callTimeout bounds the backend round trips a bus method may trigger.
const callTimeout = 10 * time.Second

type Manager struct {
	Sessions *session.Manager
	Cache    *cache.DomainCache
	Enforcer *enforcer.Enforcer
	Timer    *softblock.Timer
	Tabs     *browser.Registry
}

// Status is the JSON payload GetStatus returns.
type Status struct {
	Authenticated bool             `json:"authenticated"`
	ProfileID     string           `json:"profile_id,omitempty"`
	InstallID     string           `json:"install_id"`
	TabCount      int              `json:"tab_count"`
	SoftBlock     softblock.Status `json:"soft_block"`
}

// GetStatus returns a JSON summary of the daemon's state.
func (m *Manager) GetStatus() (string, *dbus.Error) {
	sess := m.Sessions.Current()
	st := Status{
		Authenticated: m.Sessions.Authenticated(),
		ProfileID:     sess.ProfileID,
		InstallID:     sess.InstallID,
		TabCount:      len(m.Tabs.Tabs()),
		SoftBlock:     m.Timer.Status(),
	}
	data, err := json.Marshal(st)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// SaveSession stores a new access token (and optional profile id), then
// invalidates the domain cache so the next check runs against the new
// identity.
func (m *Manager) SaveSession(accessToken, profileID string) *dbus.Error {
	if accessToken == "" {
		return dbus.MakeFailedError(fmt.Errorf("access token must not be empty"))
	}
	if err := m.Sessions.Save(accessToken, profileID); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// ClearSession logs the daemon out.
func (m *Manager) ClearSession() *dbus.Error {
	if err := m.Sessions.Clear(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// RefreshDomainCache drops the cached goal rows and refetches immediately.
// Returns the refreshed allowed/rejected counts as "a/r".
func (m *Manager) RefreshDomainCache() (string, *dbus.Error) {
	m.Cache.Invalidate()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	snap, err := m.Cache.Get(ctx)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return fmt.Sprintf("%d/%d", len(snap.Allowed), len(snap.Rejected)), nil
}

// GetSoftBlockTime returns the countdown's remaining seconds, the
// configured timeout in minutes, and whether it is paused.
func (m *Manager) GetSoftBlockTime() (int32, int32, bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	remaining, timeout, paused := m.Enforcer.SoftBlockTime(ctx)
	return int32(remaining), int32(timeout), paused, nil
}

// TestDomain reports whether url would be blocked, and the matching
// pattern when it would.
func (m *Manager) TestDomain(url string) (bool, string, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	blocked, pattern := m.Enforcer.TestURL(ctx, url)
	return blocked, pattern, nil
}

// Serve claims the bus name, exports the manager and blocks until ctx is
// cancelled. The daemon runs per user, so the session bus is used.
func Serve(ctx context.Context, m *Manager) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken - is another daemon running?", ServiceName)
	}

	if err := conn.Export(m, dbus.ObjectPath(ObjectPath), InterfaceName); err != nil {
		return fmt.Errorf("export interface: %w", err)
	}

	<-ctx.Done()
	return nil
}
