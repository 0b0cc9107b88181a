// Package x11 is the windowing connection capability shared by the tray
// manager, the window and the event loop.
package x11

import (
	"errors"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/geom"
)

// ErrConnectionClosed is returned by WaitForEvent once the X connection is gone.
var ErrConnectionClosed = errors.New("x11 connection closed")

// Screen describes the screen the connection was opened on.
type Screen struct {
	Num        int
	Root       xproto.Window
	RootVisual xproto.Visualid
	RootDepth  byte
	Width      uint16
	Height     uint16
	BlackPixel uint32
}

// Size returns the screen size in physical units.
func (s Screen) Size() geom.PhysicalSize {
	return geom.PhysicalSize{Width: uint32(s.Width), Height: uint32(s.Height)}
}

// WindowOptions are the creation parameters of a new window.
type WindowOptions struct {
	Rect             geom.PhysicalRect
	Class            uint16
	EventMask        uint32
	BackPixel        uint32
	OverrideRedirect bool
}

// Changes is a ConfigureWindow value mask with its values in protocol order.
type Changes struct {
	Mask   uint16
	Values []uint32
}

// Geometry moves and resizes a window.
func Geometry(r geom.PhysicalRect) Changes {
	return Changes{
		Mask: xproto.ConfigWindowX | xproto.ConfigWindowY |
			xproto.ConfigWindowWidth | xproto.ConfigWindowHeight,
		Values: []uint32{uint32(r.X), uint32(r.Y), r.Width, r.Height},
	}
}

// Position moves a window without resizing it.
func Position(p geom.PhysicalPoint) Changes {
	return Changes{
		Mask:   xproto.ConfigWindowX | xproto.ConfigWindowY,
		Values: []uint32{uint32(p.X), uint32(p.Y)},
	}
}

// StackAbove raises a window above its siblings.
func StackAbove() Changes {
	return Changes{
		Mask:   xproto.ConfigWindowStackMode,
		Values: []uint32{xproto.StackModeAbove},
	}
}

// Metadata is the window-manager facing description of a top-level window.
type Metadata struct {
	Name        string
	Class       string
	Pid         uint
	Protocols   []string
	WindowTypes []string
	States      []string
	Desktop     uint
}

// Event is anything that can be sent with SendEvent.
type Event interface {
	Bytes() []byte
}

// Conn is the set of windowing requests the tray needs. Errors are reported
// per call; replies that only confirm absence (no property, no owner) are
// not errors.
type Conn interface {
	Screen() Screen
	Atom(name string) (xproto.Atom, error)

	CreateWindow(parent xproto.Window, opts WindowOptions) (xproto.Window, error)
	DestroyWindow(win xproto.Window) error
	MapWindow(win xproto.Window) error
	UnmapWindow(win xproto.Window) error
	ReparentWindow(win, parent xproto.Window, x, y int16) error
	ConfigureWindow(win xproto.Window, changes Changes) error
	SelectInput(win xproto.Window, mask uint32) error
	ChangeSaveSet(win xproto.Window, mode byte) error
	ClearArea(win xproto.Window) error

	ChangeProperty(win xproto.Window, property, typ xproto.Atom, format byte, data []byte) error
	GetProperty(win xproto.Window, property, typ xproto.Atom, length uint32) (*xproto.GetPropertyReply, error)
	WindowTitle(win xproto.Window) (string, error)
	SetNormalHints(win xproto.Window, min, max geom.PhysicalSize) error
	SetMetadata(win xproto.Window, meta Metadata) error

	SelectionOwner(selection xproto.Atom) (xproto.Window, error)
	SetSelectionOwner(owner xproto.Window, selection xproto.Atom) error
	SendEvent(dest xproto.Window, propagate bool, mask uint32, ev Event) error

	CreateDamage(win xproto.Window) (damage.Damage, error)
	DestroyDamage(d damage.Damage) error
	SubtractDamage(d damage.Damage) error

	QueryPointer() (x, y int16, err error)
	TranslateCoordinates(src, dst xproto.Window, x, y int16) (int16, int16, error)
	WarpPointer(x, y int16) error
	GrabKeyboard(win xproto.Window) error
	UngrabKeyboard() error

	Flush() error
	WaitForEvent() (xgb.Event, error)
	Close()
}

// Keyboard resolves and grabs key combinations such as "Mod4-grave".
type Keyboard interface {
	ParseKey(s string) (mods uint16, codes []xproto.Keycode, err error)
	GrabKey(win xproto.Window, mods uint16, code xproto.Keycode) error
	LockMasks() []uint16
}

// Uint32s encodes values as a format-32 property payload.
func Uint32s(values ...uint32) []byte {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		xgb.Put32(data[i*4:], v)
	}
	return data
}

// ReadUint32s decodes a format-32 property payload.
func ReadUint32s(data []byte) []uint32 {
	values := make([]uint32, len(data)/4)
	for i := range values {
		values[i] = xgb.Get32(data[i*4:])
	}
	return values
}
