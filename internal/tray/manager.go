// Package tray implements the system tray selection protocol and the XEmbed
// lifecycle of docked icons.
package tray

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog/log"

	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/x11"
)

const (
	systemTrayRequestDock   = 0
	systemTrayBeginMessage  = 1
	systemTrayCancelMessage = 2
)

// Status is where the manager stands in the selection handshake.
type Status int

const (
	Unmanaged Status = iota
	Pending
	Managed
)

func (s Status) String() string {
	switch s {
	case Unmanaged:
		return "unmanaged"
	case Pending:
		return "pending"
	case Managed:
		return "managed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Options are the capabilities advertised to tray clients.
type Options struct {
	Orientation Orientation
	Colors      Colors
	IconSize    geom.PhysicalSize
}

// Manager owns the _NET_SYSTEM_TRAY_Sn selection and the set of docked icons.
// It is driven entirely by ProcessEvent and must be used from one goroutine.
type Manager struct {
	conn      x11.Conn
	screen    x11.Screen
	atoms     *x11.Atoms
	window    xproto.Window
	container xproto.Window
	iconSize  geom.PhysicalSize

	status        Status
	previousOwner xproto.Window

	icons    map[xproto.Window]*Icon
	messages map[xproto.Window]*BalloonMessage
	closed   bool
}

// New creates the selection owner window and advertises the tray
// properties on it. Icons will be reparented into container.
func New(conn x11.Conn, container xproto.Window, opts Options) (*Manager, error) {
	atoms, err := x11.InternAtoms(conn)
	if err != nil {
		return nil, fmt.Errorf("intern atoms: %w", err)
	}
	screen := conn.Screen()

	win, err := conn.CreateWindow(screen.Root, x11.WindowOptions{
		Rect:      geom.PhysicalRect{X: -1, Y: -1, Width: 1, Height: 1},
		Class:     xproto.WindowClassInputOnly,
		EventMask: xproto.EventMaskStructureNotify | xproto.EventMaskPropertyChange,
	})
	if err != nil {
		return nil, fmt.Errorf("create manager window: %w", err)
	}

	props := []struct {
		name  string
		prop  xproto.Atom
		typ   xproto.Atom
		value []byte
	}{
		{"orientation", atoms.TrayOrientation, xproto.AtomCardinal, x11.Uint32s(uint32(opts.Orientation))},
		{"visual", atoms.TrayVisual, xproto.AtomVisualid, x11.Uint32s(uint32(screen.RootVisual))},
		{"colors", atoms.TrayColors, xproto.AtomCardinal, opts.Colors.property()},
	}
	for _, p := range props {
		if err := conn.ChangeProperty(win, p.prop, p.typ, 32, p.value); err != nil {
			_ = conn.DestroyWindow(win)
			return nil, fmt.Errorf("set tray %s: %w", p.name, err)
		}
	}

	iconSize := opts.IconSize
	if iconSize.Width == 0 || iconSize.Height == 0 {
		iconSize = geom.PhysicalSize{Width: 24, Height: 24}
	}

	return &Manager{
		conn:      conn,
		screen:    screen,
		atoms:     atoms,
		window:    win,
		container: container,
		iconSize:  iconSize,
		status:    Unmanaged,
		icons:     make(map[xproto.Window]*Icon),
		messages:  make(map[xproto.Window]*BalloonMessage),
	}, nil
}

// Window is the selection owner window.
func (m *Manager) Window() xproto.Window {
	return m.window
}

// Status reports the handshake state and, while Pending, the previous owner
// being waited on.
func (m *Manager) Status() (Status, xproto.Window) {
	return m.status, m.previousOwner
}

// Icon returns a snapshot of a tracked icon.
func (m *Manager) Icon(win xproto.Window) (Icon, bool) {
	icon, ok := m.icons[win]
	if !ok {
		return Icon{}, false
	}
	return *icon, true
}

// Len is the number of tracked icons, embedded or waiting.
func (m *Manager) Len() int {
	return len(m.icons)
}

// PendingMessage returns the balloon message being reassembled for win.
func (m *Manager) PendingMessage(win xproto.Window) (*BalloonMessage, bool) {
	msg, ok := m.messages[win]
	return msg, ok
}

// AcquireSelection claims the tray selection. It returns false without
// doing anything when the selection is already held or being waited for.
func (m *Manager) AcquireSelection() (bool, error) {
	if m.status != Unmanaged {
		return false, nil
	}

	previous, err := m.conn.SelectionOwner(m.atoms.TraySelection)
	if err != nil {
		return false, fmt.Errorf("get selection owner: %w", err)
	}
	if err := m.conn.SetSelectionOwner(m.window, m.atoms.TraySelection); err != nil {
		return false, fmt.Errorf("set selection owner: %w", err)
	}

	if previous != xproto.WindowNone && previous != m.window {
		err := m.conn.SelectInput(previous, xproto.EventMaskStructureNotify)
		switch {
		case err == nil:
			log.Info().Uint32("owner", uint32(previous)).Msg("waiting for previous tray to exit")
			m.status = Pending
			m.previousOwner = previous
			return true, nil
		case !x11.IsBadWindow(err):
			return false, fmt.Errorf("watch previous owner: %w", err)
		}
		// The previous owner is already gone.
	}

	if err := m.broadcastManager(); err != nil {
		return false, err
	}
	m.status = Managed
	return true, nil
}

// ProcessEvent feeds one X event through the protocol state machine. It
// returns nil when the event was not ours or produced nothing to report.
func (m *Manager) ProcessEvent(ev xgb.Event) (Event, error) {
	switch e := ev.(type) {
	case damage.NotifyEvent:
		return m.handleDamage(e)
	case xproto.ClientMessageEvent:
		switch e.Type {
		case m.atoms.TrayOpcode:
			return m.handleOpcode(e)
		case m.atoms.TrayMessageData:
			return m.handleMessageData(e), nil
		}
	case xproto.SelectionClearEvent:
		if e.Selection == m.atoms.TraySelection && e.Owner == m.window {
			return m.handleSelectionClear()
		}
	case xproto.PropertyNotifyEvent:
		switch e.Atom {
		case m.atoms.XEmbedInfo:
			return m.handleXEmbedInfo(e.Window)
		case m.atoms.WMName, m.atoms.NetWMName:
			return m.handleTitle(e.Window)
		}
	case xproto.ReparentNotifyEvent:
		// Only the copy delivered through the icon's own StructureNotify.
		if e.Event == e.Window {
			return m.handleReparent(e)
		}
	case xproto.DestroyNotifyEvent:
		return m.handleDestroy(e.Window)
	}
	return nil, nil
}

func (m *Manager) handleDamage(e damage.NotifyEvent) (Event, error) {
	icon, ok := m.icons[xproto.Window(e.Drawable)]
	if !ok || !icon.embedded {
		return nil, nil
	}
	if err := x11.IgnoreBadWindow(m.conn.SubtractDamage(e.Damage)); err != nil {
		return nil, fmt.Errorf("subtract damage: %w", err)
	}
	return IconUpdated{Icon: *icon}, nil
}

func (m *Manager) handleOpcode(e xproto.ClientMessageEvent) (Event, error) {
	if e.Format != 32 {
		return nil, nil
	}
	data := e.Data.Data32
	if len(data) < 5 {
		return nil, nil
	}
	switch data[1] {
	case systemTrayRequestDock:
		win := xproto.Window(data[2])
		if _, ok := m.icons[win]; ok {
			log.Debug().Uint32("window", uint32(win)).Msg("ignoring duplicate dock request")
			return nil, nil
		}
		return nil, m.registerIcon(win)
	case systemTrayBeginMessage:
		timeout, length, id := data[2], data[3], data[4]
		if length == 0 || length > maxBalloonLength {
			log.Debug().Uint32("window", uint32(e.Window)).Uint32("length", length).Msg("ignoring balloon message")
			return nil, nil
		}
		m.messages[e.Window] = newBalloonMessage(timeout, length, id)
	case systemTrayCancelMessage:
		id := data[2]
		if msg, ok := m.messages[e.Window]; ok && msg.id == id {
			delete(m.messages, e.Window)
		}
	}
	return nil, nil
}

func (m *Manager) handleMessageData(e xproto.ClientMessageEvent) Event {
	if e.Format != 8 {
		return nil
	}
	msg, ok := m.messages[e.Window]
	if !ok {
		log.Debug().Uint32("window", uint32(e.Window)).Msg("dropping balloon data without a message")
		return nil
	}
	msg.write(e.Data.Data8)
	if !msg.Complete() {
		return nil
	}
	delete(m.messages, e.Window)
	return MessageReceived{Window: e.Window, Message: msg}
}

func (m *Manager) handleSelectionClear() (Event, error) {
	log.Warn().Msg("lost the tray selection")
	err := m.releaseAll()
	m.status = Unmanaged
	m.previousOwner = xproto.WindowNone
	if err != nil {
		return nil, err
	}
	return SelectionCleared{}, nil
}

func (m *Manager) handleXEmbedInfo(win xproto.Window) (Event, error) {
	icon, ok := m.icons[win]
	if !ok {
		return nil, m.registerIcon(win)
	}

	info, ok, err := readXEmbedInfo(m.conn, m.atoms, win)
	if err != nil {
		if x11.IsBadWindow(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get xembed info: %w", err)
	}
	if !ok {
		// The client withdrew from the protocol.
		return m.unregisterIcon(win)
	}
	icon.Info = info

	switch {
	case info.Mapped() && !icon.embedded:
		return nil, m.embed(icon)
	case !info.Mapped() && icon.embedded:
		if err := icon.releaseEmbedding(m.conn, m.screen.Root); err != nil {
			return nil, err
		}
		// Keep listening so the icon can come back.
		err := m.conn.SelectInput(win, xproto.EventMaskPropertyChange|xproto.EventMaskStructureNotify)
		if err := x11.IgnoreBadWindow(err); err != nil {
			return nil, fmt.Errorf("select icon events: %w", err)
		}
		return IconRemoved{Icon: *icon}, nil
	case icon.embedded:
		return IconUpdated{Icon: *icon}, nil
	}
	return nil, nil
}

func (m *Manager) handleTitle(win xproto.Window) (Event, error) {
	icon, ok := m.icons[win]
	if !ok {
		return nil, nil
	}
	if err := icon.refreshTitle(m.conn); err != nil {
		if x11.IsBadWindow(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get icon title: %w", err)
	}
	if !icon.embedded {
		return nil, nil
	}
	return IconUpdated{Icon: *icon}, nil
}

func (m *Manager) handleReparent(e xproto.ReparentNotifyEvent) (Event, error) {
	icon, ok := m.icons[e.Window]
	if !ok {
		return nil, nil
	}
	if e.Parent == m.container {
		return IconAdded{Icon: *icon}, nil
	}
	// Someone else took the window; do not pull it back.
	icon.embedded = false
	return m.unregisterIcon(e.Window)
}

func (m *Manager) handleDestroy(win xproto.Window) (Event, error) {
	if m.status == Pending && win == m.previousOwner {
		if err := m.broadcastManager(); err != nil {
			return nil, err
		}
		log.Info().Msg("previous tray exited, now managing")
		m.status = Managed
		m.previousOwner = xproto.WindowNone
		return nil, nil
	}
	return m.unregisterIcon(win)
}

func (m *Manager) registerIcon(win xproto.Window) error {
	info, ok, err := readXEmbedInfo(m.conn, m.atoms, win)
	if err != nil {
		if x11.IsBadWindow(err) {
			log.Debug().Uint32("window", uint32(win)).Msg("dock request from a window that is gone")
			return nil
		}
		return fmt.Errorf("get xembed info: %w", err)
	}
	if !ok {
		log.Debug().Uint32("window", uint32(win)).Msg("ignoring window without xembed info")
		return nil
	}

	icon := &Icon{Window: win, Info: info}
	if err := icon.refreshTitle(m.conn); err != nil && !x11.IsBadWindow(err) {
		return fmt.Errorf("get icon title: %w", err)
	}
	m.icons[win] = icon
	log.Debug().
		Uint32("window", uint32(win)).
		Str("title", icon.Title).
		Bool("mapped", info.Mapped()).
		Msg("icon docked")

	if info.Mapped() {
		err = m.embed(icon)
	} else if err = icon.waitForEmbedding(m.conn); err != nil {
		err = m.forgetIfGone(win, err)
	}
	if err != nil {
		// Untrack it so the client can dock again.
		m.dropIcon(icon)
		return err
	}
	return nil
}

// dropIcon forgets an icon that failed to dock, undoing what was done so far.
func (m *Manager) dropIcon(icon *Icon) {
	delete(m.icons, icon.Window)
	delete(m.messages, icon.Window)
	var err error
	if icon.embedded {
		err = icon.releaseEmbedding(m.conn, m.screen.Root)
	} else {
		err = icon.destroyDamage(m.conn)
	}
	if err != nil {
		log.Debug().Err(err).Uint32("window", uint32(icon.Window)).Msg("failed to clean up icon")
	}
}

func (m *Manager) embed(icon *Icon) error {
	size := x11.Changes{
		Mask:   xproto.ConfigWindowWidth | xproto.ConfigWindowHeight,
		Values: []uint32{m.iconSize.Width, m.iconSize.Height},
	}
	if err := icon.beginEmbedding(m.conn, m.container, size); err != nil {
		return m.forgetIfGone(icon.Window, err)
	}
	if err := icon.sendEmbeddedNotify(m.conn, m.atoms, m.container); err != nil {
		return m.forgetIfGone(icon.Window, err)
	}
	return nil
}

// forgetIfGone drops an icon whose window vanished mid-request and reports
// any other error.
func (m *Manager) forgetIfGone(win xproto.Window, err error) error {
	if !x11.IsBadWindow(err) {
		return err
	}
	log.Debug().Uint32("window", uint32(win)).Msg("icon vanished while embedding")
	if _, uerr := m.unregisterIcon(win); uerr != nil {
		return uerr
	}
	return nil
}

func (m *Manager) unregisterIcon(win xproto.Window) (Event, error) {
	delete(m.messages, win)
	icon, ok := m.icons[win]
	if !ok {
		return nil, nil
	}
	delete(m.icons, win)
	if icon.embedded {
		if err := icon.releaseEmbedding(m.conn, m.screen.Root); err != nil {
			return nil, err
		}
	} else if err := icon.destroyDamage(m.conn); err != nil {
		return nil, err
	}
	log.Debug().Uint32("window", uint32(win)).Msg("icon removed")
	return IconRemoved{Icon: *icon}, nil
}

func (m *Manager) releaseAll() error {
	var errs []error
	for win, icon := range m.icons {
		if icon.embedded {
			if err := icon.releaseEmbedding(m.conn, m.screen.Root); err != nil {
				errs = append(errs, err)
			}
		}
		delete(m.icons, win)
	}
	clear(m.messages)
	return errors.Join(errs...)
}

// Close releases every icon, gives up the selection and destroys the owner
// window. Calling it again is a no-op.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	errs := []error{m.releaseAll()}
	if m.status != Unmanaged {
		if err := m.conn.SetSelectionOwner(xproto.WindowNone, m.atoms.TraySelection); err != nil {
			errs = append(errs, fmt.Errorf("release selection: %w", err))
		}
		m.status = Unmanaged
		m.previousOwner = xproto.WindowNone
	}
	if err := x11.IgnoreBadWindow(m.conn.DestroyWindow(m.window)); err != nil {
		errs = append(errs, fmt.Errorf("destroy manager window: %w", err))
	}
	if err := m.conn.Flush(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (m *Manager) broadcastManager() error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: m.screen.Root,
		Type:   m.atoms.Manager,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			uint32(m.atoms.TraySelection),
			uint32(m.window),
			0,
			0,
		}),
	}
	if err := m.conn.SendEvent(m.screen.Root, false, xproto.EventMaskStructureNotify, ev); err != nil {
		return fmt.Errorf("broadcast manager: %w", err)
	}
	return nil
}
