// Package browser holds the daemon-side mirror of the browser's tab set and
// the outbound command queue. The extension keeps the registry current via
// the bridge (full syncs plus per-tab events) and drains the queue on every
// round trip. Delivery is at-most-once and best-effort: a command the
// extension never picks up is simply dropped.
package browser

import (
	"fmt"
	"strings"
	"sync"
)

// Tab is the daemon's view of one open browser tab. Injectable is reported
// by the extension: pages like the browser's own settings refuse script
// injection, so overlay commands for them are rejected up front.
type Tab struct {
	ID         int    `json:"id"`
	URL        string `json:"url"`
	Active     bool   `json:"active"`
	Injectable bool   `json:"injectable"`
}

// Command op codes understood by the extension.
const (
	OpCloseTab  = "closeTab"
	OpNavigate  = "navigate"
	OpCreateTab = "createTab"
	OpOverlay   = "overlay"
	OpMessage   = "message"
)

// Command is one queued instruction for the extension. TabID 0 addresses
// every tab (broadcast).
type Command struct {
	Op      string         `json:"op"`
	TabID   int            `json:"tab_id,omitempty"`
	URL     string         `json:"url,omitempty"`
	Focus   bool           `json:"focus,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// maxQueue bounds the command queue; when full the oldest command is
// dropped, keeping the best-effort contract instead of backpressuring the
// enforcement path.
const maxQueue = 256

type Registry struct {
	mu       sync.Mutex
	tabs     map[int]Tab
	activeID int
	queue    []Command
}

func NewRegistry() *Registry {
	return &Registry{tabs: make(map[int]Tab)}
}

// SyncTabs replaces the registry's view with a full snapshot.
func (r *Registry) SyncTabs(tabs []Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tabs = make(map[int]Tab, len(tabs))
	r.activeID = 0
	for _, t := range tabs {
		r.tabs[t.ID] = t
		if t.Active {
			r.activeID = t.ID
		}
	}
}

// UpsertTab records a single tab create/update/activate event.
func (r *Registry) UpsertTab(t Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Active {
		for id, old := range r.tabs {
			if old.Active {
				old.Active = false
				r.tabs[id] = old
			}
		}
		r.activeID = t.ID
	}
	r.tabs[t.ID] = t
}

// RemoveTab drops a closed tab from the view.
func (r *Registry) RemoveTab(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, id)
	if r.activeID == id {
		r.activeID = 0
	}
}

// ActiveTab returns the currently focused tab, if known.
func (r *Registry) ActiveTab() (Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tabs[r.activeID]
	return t, ok && r.activeID != 0
}

// Tabs returns a copy of every known tab.
func (r *Registry) Tabs() []Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		out = append(out, t)
	}
	return out
}

// FindByURLPrefix returns the first tab whose URL starts with prefix.
func (r *Registry) FindByURLPrefix(prefix string) (Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tabs {
		if strings.HasPrefix(t.URL, prefix) {
			return t, true
		}
	}
	return Tab{}, false
}

func (r *Registry) enqueue(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) >= maxQueue {
		r.queue = r.queue[1:]
	}
	r.queue = append(r.queue, cmd)
}

// CloseTab queues a close and removes the tab from the local view so the
// same tab is not re-enforced before the extension catches up.
func (r *Registry) CloseTab(id int) {
	r.RemoveTab(id)
	r.enqueue(Command{Op: OpCloseTab, TabID: id})
}

// NavigateTab queues a navigation, optionally focusing the tab's window.
func (r *Registry) NavigateTab(id int, url string, focus bool) {
	r.enqueue(Command{Op: OpNavigate, TabID: id, URL: url, Focus: focus})
}

// CreateTab queues opening a new tab.
func (r *Registry) CreateTab(url string) {
	r.enqueue(Command{Op: OpCreateTab, URL: url})
}

// InjectOverlay queues a one-shot full-page takeover into the tab. Fails
// when the tab is unknown or reported non-injectable, so the caller can
// fall back to the hard-close path.
func (r *Registry) InjectOverlay(id int) error {
	r.mu.Lock()
	t, ok := r.tabs[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("tab %d not known", id)
	}
	if !t.Injectable {
		return fmt.Errorf("tab %d refuses script injection", id)
	}
	r.enqueue(Command{Op: OpOverlay, TabID: id})
	return nil
}

// Broadcast queues a fire-and-forget message to every tab.
func (r *Registry) Broadcast(msgType string, payload map[string]any) {
	body := map[string]any{"type": msgType}
	for k, v := range payload {
		body[k] = v
	}
	r.enqueue(Command{Op: OpMessage, Payload: body})
}

// DrainCommands hands the queued commands to the extension and empties the
// queue.
func (r *Registry) DrainCommands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.queue
	r.queue = nil
	return out
}
