// Package x11test provides a recording in-memory x11.Conn.
package x11test

import (
	"fmt"
	"sort"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/x11"
)

const (
	RootWindow xproto.Window = 1
	firstID    uint32        = 0x200000
)

// Call is one recorded request.
type Call struct {
	Op     string
	Window xproto.Window
	Arg    any
}

type propKey struct {
	win  xproto.Window
	atom xproto.Atom
}

// Property is a stored property value.
type Property struct {
	Type   xproto.Atom
	Format byte
	Data   []byte
}

// Conn records every request and answers queries from in-memory state.
type Conn struct {
	Calls []Call
	// Events is drained by WaitForEvent; closing it ends the stream.
	Events chan xgb.Event
	// Fail makes the named op return the given error once.
	Fail map[string]error

	screen     x11.Screen
	nextID     uint32
	atoms      map[string]xproto.Atom
	props      map[propKey]Property
	titles     map[xproto.Window]string
	owners     map[xproto.Atom]xproto.Window
	destroyed  map[xproto.Window]bool
	pointer    [2]int16
	keys       map[string]Key
	grabbedKey []GrabbedKey
}

// Key is a keyboard binding known to the fake keymap.
type Key struct {
	Mods  uint16
	Codes []xproto.Keycode
}

type GrabbedKey struct {
	Window xproto.Window
	Mods   uint16
	Code   xproto.Keycode
}

var (
	_ x11.Conn     = (*Conn)(nil)
	_ x11.Keyboard = (*Conn)(nil)
)

func New() *Conn {
	return &Conn{
		Events: make(chan xgb.Event, 64),
		Fail:   make(map[string]error),
		screen: x11.Screen{
			Num:        0,
			Root:       RootWindow,
			RootVisual: 0x21,
			RootDepth:  24,
			Width:      1920,
			Height:     1080,
		},
		nextID:    firstID,
		atoms:     make(map[string]xproto.Atom),
		props:     make(map[propKey]Property),
		titles:    make(map[xproto.Window]string),
		owners:    make(map[xproto.Atom]xproto.Window),
		destroyed: make(map[xproto.Window]bool),
		keys:      make(map[string]Key),
	}
}

// MustAtom returns the atom for name, interning it if needed.
func (c *Conn) MustAtom(name string) xproto.Atom {
	atom, _ := c.Atom(name)
	return atom
}

// SetProperty32 stores a format-32 property without recording a call.
func (c *Conn) SetProperty32(win xproto.Window, atom, typ xproto.Atom, values ...uint32) {
	c.props[propKey{win, atom}] = Property{Type: typ, Format: 32, Data: x11.Uint32s(values...)}
}

// DeleteProperty removes a stored property.
func (c *Conn) DeleteProperty(win xproto.Window, atom xproto.Atom) {
	delete(c.props, propKey{win, atom})
}

// Property returns a stored property.
func (c *Conn) Property(win xproto.Window, atom xproto.Atom) (Property, bool) {
	p, ok := c.props[propKey{win, atom}]
	return p, ok
}

func (c *Conn) SetTitle(win xproto.Window, title string) {
	c.titles[win] = title
}

// SetOwner makes win the current owner of selection.
func (c *Conn) SetOwner(selection xproto.Atom, win xproto.Window) {
	c.owners[selection] = win
}

// Destroy marks win as gone; later requests on it fail with BadWindow.
func (c *Conn) Destroy(win xproto.Window) {
	c.destroyed[win] = true
}

func (c *Conn) SetPointer(x, y int16) {
	c.pointer = [2]int16{x, y}
}

func (c *Conn) BindKey(s string, mods uint16, codes ...xproto.Keycode) {
	c.keys[s] = Key{Mods: mods, Codes: codes}
}

func (c *Conn) GrabbedKeys() []GrabbedKey {
	return c.grabbedKey
}

// Ops lists the recorded operation names in order.
func (c *Conn) Ops() []string {
	ops := make([]string, len(c.Calls))
	for i, call := range c.Calls {
		ops[i] = call.Op
	}
	return ops
}

// OpsOn lists the operations recorded against win.
func (c *Conn) OpsOn(win xproto.Window) []string {
	var ops []string
	for _, call := range c.Calls {
		if call.Window == win {
			ops = append(ops, call.Op)
		}
	}
	return ops
}

// Find returns every call with the given op.
func (c *Conn) Find(op string) []Call {
	var calls []Call
	for _, call := range c.Calls {
		if call.Op == op {
			calls = append(calls, call)
		}
	}
	return calls
}

// Count returns how many times op was recorded.
func (c *Conn) Count(op string) int {
	return len(c.Find(op))
}

// Reset forgets recorded calls.
func (c *Conn) Reset() {
	c.Calls = nil
}

func (c *Conn) record(op string, win xproto.Window, arg any) error {
	c.Calls = append(c.Calls, Call{Op: op, Window: win, Arg: arg})
	if err, ok := c.Fail[op]; ok {
		delete(c.Fail, op)
		return err
	}
	if win != 0 && c.destroyed[win] {
		return xproto.WindowError{NiceName: "Window", BadValue: uint32(win)}
	}
	return nil
}

func (c *Conn) Screen() x11.Screen {
	return c.screen
}

func (c *Conn) Atom(name string) (xproto.Atom, error) {
	if atom, ok := c.atoms[name]; ok {
		return atom, nil
	}
	atom := xproto.Atom(100 + len(c.atoms))
	c.atoms[name] = atom
	return atom, nil
}

// AtomName is the reverse of Atom, for readable test failures.
func (c *Conn) AtomName(atom xproto.Atom) string {
	names := make([]string, 0, len(c.atoms))
	for name, a := range c.atoms {
		if a == atom {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Sprintf("atom(%d)", atom)
	}
	return names[0]
}

func (c *Conn) CreateWindow(parent xproto.Window, opts x11.WindowOptions) (xproto.Window, error) {
	c.nextID++
	win := xproto.Window(c.nextID)
	if err := c.record("CreateWindow", win, opts); err != nil {
		return 0, err
	}
	return win, nil
}

func (c *Conn) DestroyWindow(win xproto.Window) error {
	err := c.record("DestroyWindow", win, nil)
	c.destroyed[win] = true
	return err
}

func (c *Conn) MapWindow(win xproto.Window) error {
	return c.record("MapWindow", win, nil)
}

func (c *Conn) UnmapWindow(win xproto.Window) error {
	return c.record("UnmapWindow", win, nil)
}

func (c *Conn) ReparentWindow(win, parent xproto.Window, x, y int16) error {
	return c.record("ReparentWindow", win, parent)
}

func (c *Conn) ConfigureWindow(win xproto.Window, changes x11.Changes) error {
	return c.record("ConfigureWindow", win, changes)
}

func (c *Conn) SelectInput(win xproto.Window, mask uint32) error {
	return c.record("SelectInput", win, mask)
}

func (c *Conn) ChangeSaveSet(win xproto.Window, mode byte) error {
	return c.record("ChangeSaveSet", win, mode)
}

func (c *Conn) ClearArea(win xproto.Window) error {
	return c.record("ClearArea", win, nil)
}

func (c *Conn) ChangeProperty(win xproto.Window, property, typ xproto.Atom, format byte, data []byte) error {
	if err := c.record("ChangeProperty", win, property); err != nil {
		return err
	}
	c.props[propKey{win, property}] = Property{Type: typ, Format: format, Data: data}
	return nil
}

func (c *Conn) GetProperty(win xproto.Window, property, typ xproto.Atom, length uint32) (*xproto.GetPropertyReply, error) {
	if c.destroyed[win] {
		return nil, xproto.WindowError{NiceName: "Window", BadValue: uint32(win)}
	}
	p, ok := c.props[propKey{win, property}]
	if !ok {
		return &xproto.GetPropertyReply{}, nil
	}
	data := p.Data
	if limit := int(length) * 4; len(data) > limit {
		data = data[:limit]
	}
	return &xproto.GetPropertyReply{
		Format:   p.Format,
		Type:     p.Type,
		ValueLen: uint32(len(data)) / uint32(max(p.Format/8, 1)),
		Value:    data,
	}, nil
}

func (c *Conn) WindowTitle(win xproto.Window) (string, error) {
	if c.destroyed[win] {
		return "", xproto.WindowError{NiceName: "Window", BadValue: uint32(win)}
	}
	return c.titles[win], nil
}

func (c *Conn) SetNormalHints(win xproto.Window, min, max geom.PhysicalSize) error {
	return c.record("SetNormalHints", win, [2]geom.PhysicalSize{min, max})
}

func (c *Conn) SetMetadata(win xproto.Window, meta x11.Metadata) error {
	return c.record("SetMetadata", win, meta)
}

func (c *Conn) SelectionOwner(selection xproto.Atom) (xproto.Window, error) {
	return c.owners[selection], nil
}

func (c *Conn) SetSelectionOwner(owner xproto.Window, selection xproto.Atom) error {
	if err := c.record("SetSelectionOwner", owner, selection); err != nil {
		return err
	}
	c.owners[selection] = owner
	return nil
}

func (c *Conn) SendEvent(dest xproto.Window, propagate bool, mask uint32, ev x11.Event) error {
	return c.record("SendEvent", dest, ev)
}

func (c *Conn) CreateDamage(win xproto.Window) (damage.Damage, error) {
	c.nextID++
	d := damage.Damage(c.nextID)
	if err := c.record("CreateDamage", win, d); err != nil {
		return 0, err
	}
	return d, nil
}

func (c *Conn) DestroyDamage(d damage.Damage) error {
	return c.record("DestroyDamage", 0, d)
}

func (c *Conn) SubtractDamage(d damage.Damage) error {
	return c.record("SubtractDamage", 0, d)
}

func (c *Conn) QueryPointer() (int16, int16, error) {
	return c.pointer[0], c.pointer[1], nil
}

func (c *Conn) TranslateCoordinates(src, dst xproto.Window, x, y int16) (int16, int16, error) {
	if c.destroyed[src] {
		return 0, 0, xproto.WindowError{NiceName: "Window", BadValue: uint32(src)}
	}
	return x + 100, y + 200, nil
}

func (c *Conn) WarpPointer(x, y int16) error {
	return c.record("WarpPointer", 0, [2]int16{x, y})
}

func (c *Conn) GrabKeyboard(win xproto.Window) error {
	return c.record("GrabKeyboard", win, nil)
}

func (c *Conn) UngrabKeyboard() error {
	return c.record("UngrabKeyboard", 0, nil)
}

func (c *Conn) Flush() error {
	return nil
}

func (c *Conn) WaitForEvent() (xgb.Event, error) {
	ev, ok := <-c.Events
	if !ok {
		return nil, x11.ErrConnectionClosed
	}
	return ev, nil
}

func (c *Conn) Close() {}

func (c *Conn) ParseKey(s string) (uint16, []xproto.Keycode, error) {
	key, ok := c.keys[s]
	if !ok {
		return 0, nil, fmt.Errorf("parse key %q: unknown key", s)
	}
	return key.Mods, key.Codes, nil
}

func (c *Conn) GrabKey(win xproto.Window, mods uint16, code xproto.Keycode) error {
	c.grabbedKey = append(c.grabbedKey, GrabbedKey{Window: win, Mods: mods, Code: code})
	return nil
}

func (c *Conn) LockMasks() []uint16 {
	return []uint16{xproto.ModMaskLock, xproto.ModMask2}
}
