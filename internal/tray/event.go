package tray

import "github.com/jezek/xgb/xproto"

// Event is what the manager reports after digesting an X event.
type Event interface {
	trayEvent()
}

// IconAdded fires once an icon has landed inside the container.
type IconAdded struct{ Icon Icon }

// IconUpdated fires when an embedded icon's title or contents changed.
type IconUpdated struct{ Icon Icon }

// IconRemoved fires when an icon left the container, was destroyed or asked
// to be hidden.
type IconRemoved struct{ Icon Icon }

// MessageReceived carries a fully reassembled balloon message.
type MessageReceived struct {
	Window  xproto.Window
	Message *BalloonMessage
}

// SelectionCleared means another tray took the selection from us.
type SelectionCleared struct{}

func (IconAdded) trayEvent()        {}
func (IconUpdated) trayEvent()      {}
func (IconRemoved) trayEvent()      {}
func (MessageReceived) trayEvent()  {}
func (SelectionCleared) trayEvent() {}
