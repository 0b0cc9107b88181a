package ui

import (
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/x11"
)

// Action is a windowing request carried by an Effect. Actions are plain data
// so they can be compared and logged; Window.perform is the only place that
// executes them. A zero Window field means the ui window itself.
type Action interface {
	isAction()
}

// ConfigureWindow moves, resizes or restacks a window.
type ConfigureWindow struct {
	Window  xproto.Window
	Changes x11.Changes
}

// MapWindow shows a window.
type MapWindow struct {
	Window xproto.Window
}

// SetSizeHints pins the window size for the window manager.
type SetSizeHints struct {
	Min, Max geom.PhysicalSize
}

// Click sends a synthetic button click to a foreign window.
type Click struct {
	Window xproto.Window
	At     geom.PhysicalPoint
	Button xproto.Button
	State  uint16
}

func (ConfigureWindow) isAction() {}
func (MapWindow) isAction()       {}
func (SetSizeHints) isAction()    {}
func (Click) isAction()           {}
