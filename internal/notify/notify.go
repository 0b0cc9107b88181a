// Package notify forwards balloon messages to the desktop notification
// daemon.
package notify

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	service = "org.freedesktop.Notifications"
	path    = dbus.ObjectPath("/org/freedesktop/Notifications")
	method  = service + ".Notify"
)

// BusObject is the part of dbus.BusObject the notifier calls.
type BusObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

type Notifier struct {
	conn    *dbus.Conn
	obj     BusObject
	appName string
	icon    string
}

// Connect opens the session bus.
func Connect(appName, icon string) (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	n := New(conn.Object(service, path), appName, icon)
	n.conn = conn
	return n, nil
}

func New(obj BusObject, appName, icon string) *Notifier {
	return &Notifier{obj: obj, appName: appName, icon: icon}
}

// Notify shows a notification and returns its server id. A zero timeout
// leaves expiry to the server.
func (n *Notifier) Notify(summary, body string, timeout time.Duration) (uint32, error) {
	expire := int32(-1)
	if timeout > 0 {
		expire = int32(timeout.Milliseconds())
	}
	call := n.obj.Call(method, 0,
		n.appName,
		uint32(0),
		n.icon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		expire,
	)
	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return id, nil
}

func (n *Notifier) Close() {
	if n.conn == nil {
		return
	}
	n.conn.Close()
	n.conn = nil
}
