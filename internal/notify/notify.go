// Package notify raises desktop toasts via org.freedesktop.Notifications
// on the caller's session bus. The daemon runs per user session, so no
// cross-session bus discovery is needed.
package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

type Notifier struct {
	conn *dbus.Conn
}

func New() (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Notifier{conn: conn}, nil
}

func (n *Notifier) Close() error { return n.conn.Close() }

func (n *Notifier) send(summary, body string) error {
	obj := n.conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		"TabWarden",      // app_name
		uint32(0),        // replaces_id
		"dialog-warning", // app_icon
		summary,
		body,
		[]string{}, // actions
		map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(byte(1)),
		},
		int32(10000), // expire_timeout
	)
	if call.Err != nil {
		return fmt.Errorf("send notification: %w", call.Err)
	}
	return nil
}

// BlockEnforced announces that a tab on domain was hard blocked.
func (n *Notifier) BlockEnforced(domain string) error {
	return n.send("Distraction blocked", fmt.Sprintf("%s was closed. Back to the goal.", domain))
}

// CountdownExpired announces that a soft-block grace period ran out.
func (n *Notifier) CountdownExpired() error {
	return n.send("Time's up", "The grace period ended; distracting tabs were closed.")
}
