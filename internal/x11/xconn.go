package x11

import (
	"fmt"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/ewmh"
	"github.com/jezek/xgbutil/icccm"
	"github.com/jezek/xgbutil/keybind"
	"github.com/rs/zerolog/log"

	"github.com/bnema/keytray/internal/geom"
)

// XConn is the xgb-backed Conn and Keyboard.
type XConn struct {
	conn      *xgb.Conn
	xu        *xgbutil.XUtil
	screen    Screen
	atoms     map[string]xproto.Atom
	hasDamage bool
}

var (
	_ Conn     = (*XConn)(nil)
	_ Keyboard = (*XConn)(nil)
)

// Connect opens display (empty means $DISPLAY) and initializes the
// extensions and keyboard mapping the tray relies on.
func Connect(display string) (*XConn, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect X11: %w", err)
	}

	xu, err := xgbutil.NewConnXgb(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("wrap X11 connection: %w", err)
	}
	keybind.Initialize(xu)

	setup := xproto.Setup(conn)
	info := setup.DefaultScreen(conn)
	c := &XConn{
		conn: conn,
		xu:   xu,
		screen: Screen{
			Num:        conn.DefaultScreen,
			Root:       info.Root,
			RootVisual: info.RootVisual,
			RootDepth:  info.RootDepth,
			Width:      info.WidthInPixels,
			Height:     info.HeightInPixels,
			BlackPixel: info.BlackPixel,
		},
		atoms: make(map[string]xproto.Atom),
	}

	if err := damage.Init(conn); err != nil {
		log.Warn().Err(err).Msg("damage extension unavailable, icons will not report repaints")
	} else if _, err := damage.QueryVersion(conn, 1, 1).Reply(); err != nil {
		log.Warn().Err(err).Msg("damage version query failed")
	} else {
		c.hasDamage = true
	}

	return c, nil
}

// XUtil exposes the xgbutil handle for the render context.
func (c *XConn) XUtil() *xgbutil.XUtil {
	return c.xu
}

func (c *XConn) Screen() Screen {
	return c.screen
}

func (c *XConn) Atom(name string) (xproto.Atom, error) {
	if atom, ok := c.atoms[name]; ok {
		return atom, nil
	}
	reply, err := xproto.InternAtom(c.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern atom %s: %w", name, err)
	}
	c.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (c *XConn) CreateWindow(parent xproto.Window, opts WindowOptions) (xproto.Window, error) {
	win, err := xproto.NewWindowId(c.conn)
	if err != nil {
		return 0, fmt.Errorf("new window id: %w", err)
	}

	class := opts.Class
	if class == 0 {
		class = xproto.WindowClassInputOutput
	}

	// Value list order follows the CW bit order.
	var mask uint32
	var values []uint32
	if class == xproto.WindowClassInputOutput {
		mask |= xproto.CwBackPixel
		values = append(values, opts.BackPixel)
	}
	if opts.OverrideRedirect {
		mask |= xproto.CwOverrideRedirect
		values = append(values, 1)
	}
	mask |= xproto.CwEventMask
	values = append(values, opts.EventMask)

	var depth byte
	if class == xproto.WindowClassInputOutput {
		depth = c.screen.RootDepth
	}

	err = xproto.CreateWindowChecked(
		c.conn,
		depth,
		win,
		parent,
		int16(opts.Rect.X), int16(opts.Rect.Y),
		uint16(max(opts.Rect.Width, 1)), uint16(max(opts.Rect.Height, 1)),
		0,
		class,
		c.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return 0, fmt.Errorf("create window: %w", err)
	}
	return win, nil
}

func (c *XConn) DestroyWindow(win xproto.Window) error {
	return xproto.DestroyWindowChecked(c.conn, win).Check()
}

func (c *XConn) MapWindow(win xproto.Window) error {
	return xproto.MapWindowChecked(c.conn, win).Check()
}

func (c *XConn) UnmapWindow(win xproto.Window) error {
	return xproto.UnmapWindowChecked(c.conn, win).Check()
}

func (c *XConn) ReparentWindow(win, parent xproto.Window, x, y int16) error {
	return xproto.ReparentWindowChecked(c.conn, win, parent, x, y).Check()
}

func (c *XConn) ConfigureWindow(win xproto.Window, changes Changes) error {
	return xproto.ConfigureWindowChecked(c.conn, win, changes.Mask, changes.Values).Check()
}

func (c *XConn) SelectInput(win xproto.Window, mask uint32) error {
	return xproto.ChangeWindowAttributesChecked(c.conn, win, xproto.CwEventMask, []uint32{mask}).Check()
}

func (c *XConn) ChangeSaveSet(win xproto.Window, mode byte) error {
	return xproto.ChangeSaveSetChecked(c.conn, mode, win).Check()
}

func (c *XConn) ClearArea(win xproto.Window) error {
	return xproto.ClearAreaChecked(c.conn, true, win, 0, 0, 0, 0).Check()
}

func (c *XConn) ChangeProperty(win xproto.Window, property, typ xproto.Atom, format byte, data []byte) error {
	length := uint32(len(data)) / uint32(format/8)
	return xproto.ChangePropertyChecked(c.conn, xproto.PropModeReplace, win, property, typ, format, length, data).Check()
}

func (c *XConn) GetProperty(win xproto.Window, property, typ xproto.Atom, length uint32) (*xproto.GetPropertyReply, error) {
	return xproto.GetProperty(c.conn, false, win, property, typ, 0, length).Reply()
}

// WindowTitle prefers the EWMH UTF-8 name and falls back to WM_NAME.
func (c *XConn) WindowTitle(win xproto.Window) (string, error) {
	if title, err := ewmh.WmNameGet(c.xu, win); err == nil && title != "" {
		return title, nil
	}
	reply, err := c.GetProperty(win, xproto.AtomWmName, xproto.GetPropertyTypeAny, maxTitleWords)
	if err != nil {
		return "", err
	}
	return propertyText(reply), nil
}

// maxTitleWords is the WM_NAME read limit in 32-bit units.
const maxTitleWords = 1024

// propertyText decodes an 8-bit text property. A missing property comes back
// with format 0 and reads as empty.
func propertyText(reply *xproto.GetPropertyReply) string {
	if reply == nil || reply.Format != 8 {
		return ""
	}
	return strings.TrimRight(string(reply.Value), "\x00")
}

func (c *XConn) SetNormalHints(win xproto.Window, min, max geom.PhysicalSize) error {
	hints := &icccm.NormalHints{
		Flags:     icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize,
		MinWidth:  uint(min.Width),
		MinHeight: uint(min.Height),
		MaxWidth:  uint(max.Width),
		MaxHeight: uint(max.Height),
	}
	return icccm.WmNormalHintsSet(c.xu, win, hints)
}

func (c *XConn) SetMetadata(win xproto.Window, meta Metadata) error {
	if err := icccm.WmNameSet(c.xu, win, meta.Name); err != nil {
		return fmt.Errorf("set WM_NAME: %w", err)
	}
	if err := ewmh.WmNameSet(c.xu, win, meta.Name); err != nil {
		return fmt.Errorf("set _NET_WM_NAME: %w", err)
	}
	if err := icccm.WmClassSet(c.xu, win, &icccm.WmClass{Instance: meta.Class, Class: meta.Class}); err != nil {
		return fmt.Errorf("set WM_CLASS: %w", err)
	}
	if err := ewmh.WmPidSet(c.xu, win, meta.Pid); err != nil {
		return fmt.Errorf("set _NET_WM_PID: %w", err)
	}
	if len(meta.Protocols) > 0 {
		if err := icccm.WmProtocolsSet(c.xu, win, meta.Protocols); err != nil {
			return fmt.Errorf("set WM_PROTOCOLS: %w", err)
		}
	}
	if len(meta.WindowTypes) > 0 {
		if err := ewmh.WmWindowTypeSet(c.xu, win, meta.WindowTypes); err != nil {
			return fmt.Errorf("set _NET_WM_WINDOW_TYPE: %w", err)
		}
	}
	if len(meta.States) > 0 {
		if err := ewmh.WmStateSet(c.xu, win, meta.States); err != nil {
			return fmt.Errorf("set _NET_WM_STATE: %w", err)
		}
	}
	if err := ewmh.WmDesktopSet(c.xu, win, meta.Desktop); err != nil {
		return fmt.Errorf("set _NET_WM_DESKTOP: %w", err)
	}
	return nil
}

func (c *XConn) SelectionOwner(selection xproto.Atom) (xproto.Window, error) {
	reply, err := xproto.GetSelectionOwner(c.conn, selection).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Owner, nil
}

func (c *XConn) SetSelectionOwner(owner xproto.Window, selection xproto.Atom) error {
	return xproto.SetSelectionOwnerChecked(c.conn, owner, selection, xproto.TimeCurrentTime).Check()
}

func (c *XConn) SendEvent(dest xproto.Window, propagate bool, mask uint32, ev Event) error {
	return xproto.SendEventChecked(c.conn, propagate, dest, mask, string(ev.Bytes())).Check()
}

func (c *XConn) CreateDamage(win xproto.Window) (damage.Damage, error) {
	if !c.hasDamage {
		return 0, nil
	}
	d, err := damage.NewDamageId(c.conn)
	if err != nil {
		return 0, fmt.Errorf("new damage id: %w", err)
	}
	if err := damage.CreateChecked(c.conn, d, xproto.Drawable(win), damage.ReportLevelNonEmpty).Check(); err != nil {
		return 0, err
	}
	return d, nil
}

func (c *XConn) DestroyDamage(d damage.Damage) error {
	if d == 0 {
		return nil
	}
	return damage.DestroyChecked(c.conn, d).Check()
}

func (c *XConn) SubtractDamage(d damage.Damage) error {
	if d == 0 {
		return nil
	}
	return damage.SubtractChecked(c.conn, d, 0, 0).Check()
}

func (c *XConn) QueryPointer() (int16, int16, error) {
	reply, err := xproto.QueryPointer(c.conn, c.screen.Root).Reply()
	if err != nil {
		return 0, 0, err
	}
	return reply.RootX, reply.RootY, nil
}

func (c *XConn) TranslateCoordinates(src, dst xproto.Window, x, y int16) (int16, int16, error) {
	reply, err := xproto.TranslateCoordinates(c.conn, src, dst, x, y).Reply()
	if err != nil {
		return 0, 0, err
	}
	return reply.DstX, reply.DstY, nil
}

func (c *XConn) WarpPointer(x, y int16) error {
	return xproto.WarpPointerChecked(c.conn, xproto.WindowNone, c.screen.Root, 0, 0, 0, 0, x, y).Check()
}

func (c *XConn) GrabKeyboard(win xproto.Window) error {
	reply, err := xproto.GrabKeyboard(c.conn, true, win, xproto.TimeCurrentTime,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
	if err != nil {
		return err
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("grab keyboard: status %d", reply.Status)
	}
	return nil
}

func (c *XConn) UngrabKeyboard() error {
	return xproto.UngrabKeyboardChecked(c.conn, xproto.TimeCurrentTime).Check()
}

// Flush forces queued requests out; jezek/xgb writes asynchronously.
func (c *XConn) Flush() error {
	c.conn.Sync()
	return nil
}

func (c *XConn) WaitForEvent() (xgb.Event, error) {
	ev, xerr := c.conn.WaitForEvent()
	if ev == nil && xerr == nil {
		return nil, ErrConnectionClosed
	}
	if xerr != nil {
		return nil, xerr
	}
	return ev, nil
}

func (c *XConn) Close() {
	c.conn.Close()
}

func (c *XConn) ParseKey(s string) (uint16, []xproto.Keycode, error) {
	mods, codes, err := keybind.ParseString(c.xu, s)
	if err != nil {
		return 0, nil, fmt.Errorf("parse key %q: %w", s, err)
	}
	return mods, codes, nil
}

func (c *XConn) GrabKey(win xproto.Window, mods uint16, code xproto.Keycode) error {
	return keybind.GrabChecked(c.xu, win, mods, code)
}

// LockMasks returns the modifier masks of Caps Lock and Num Lock, which
// must be ignored when matching and grabbing hotkeys.
func (c *XConn) LockMasks() []uint16 {
	masks := []uint16{xproto.ModMaskLock}
	for _, code := range keybind.StrToKeycodes(c.xu, "Num_Lock") {
		if mask := keybind.ModGet(c.xu, code); mask != 0 && mask != xproto.ModMaskLock {
			masks = append(masks, mask)
			break
		}
	}
	return masks
}
