// Package app is keytray itself: a keyboard-driven list of the docked tray
// icons in a top-level window.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog/log"

	"github.com/bnema/keytray/internal/config"
	"github.com/bnema/keytray/internal/event"
	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/tray"
	"github.com/bnema/keytray/internal/ui"
	"github.com/bnema/keytray/internal/x11"
)

// Notifier shows balloon messages on the desktop.
type Notifier interface {
	Notify(summary, body string, timeout time.Duration) (uint32, error)
}

type Options struct {
	Conn     x11.Conn
	Keyboard x11.Keyboard
	Config   *config.Config
	// NewContext draws frames. Without it the window is never painted.
	NewContext ui.ContextFactory
	// Notifier is optional.
	Notifier    Notifier
	LoopOptions []event.Option
}

type App struct {
	conn     x11.Conn
	cfg      *config.Config
	atoms    *x11.Atoms
	loop     *event.Loop
	window   *ui.Window[*TrayContainer]
	tray     *tray.Manager
	hotkeys  *Hotkeys
	notifier Notifier
}

func New(opts Options) (*App, error) {
	conn, cfg := opts.Conn, opts.Config
	screen := conn.Screen()

	atoms, err := x11.InternAtoms(conn)
	if err != nil {
		return nil, fmt.Errorf("intern atoms: %w", err)
	}

	hotkeys, err := NewHotkeys(opts.Keyboard, cfg.Hotkeys, cfg.GlobalHotkeys)
	if err != nil {
		return nil, err
	}

	loop := event.New(conn, opts.LoopOptions...)

	window, err := ui.NewWindow(conn, NewTrayContainer(&cfg.UI), loop, opts.NewContext, ui.WindowOptions{
		InitialSize:      geom.Size{Width: cfg.Window.Width},
		OverrideRedirect: cfg.Window.OverrideRedirect,
		Background:       pixel(cfg.UI.WindowBackground),
	})
	if err != nil {
		return nil, err
	}

	if err := conn.SetMetadata(window.ID(), x11.Metadata{
		Name:      cfg.Window.Name,
		Class:     cfg.Window.Class,
		Pid:       uint(os.Getpid()),
		Protocols: []string{"_NET_WM_PING", "_NET_WM_SYNC_REQUEST", "WM_DELETE_WINDOW"},
		WindowTypes: []string{
			"_NET_WM_WINDOW_TYPE_NORMAL",
			"_NET_WM_WINDOW_TYPE_UTILITY",
		},
		States: []string{
			"_NET_WM_STATE_ABOVE",
			"_NET_WM_STATE_STAYS_ON_TOP",
			"_NET_WM_STATE_STICKY",
		},
		Desktop: 0xFFFFFFFF,
	}); err != nil {
		window.Close()
		return nil, fmt.Errorf("set window metadata: %w", err)
	}

	if err := GrabGlobal(opts.Keyboard, screen.Root, cfg.GlobalHotkeys); err != nil {
		window.Close()
		return nil, err
	}

	iconSize := geom.Size{Width: cfg.UI.IconSize, Height: cfg.UI.IconSize}.Snap()
	manager, err := tray.New(conn, window.ID(), tray.Options{
		Orientation: tray.Vertical,
		Colors:      tray.UniformColors(cfg.UI.NormalItemForeground),
		IconSize:    iconSize,
	})
	if err != nil {
		window.Close()
		return nil, err
	}

	return &App{
		conn:     conn,
		cfg:      cfg,
		atoms:    atoms,
		loop:     loop,
		window:   window,
		tray:     manager,
		hotkeys:  hotkeys,
		notifier: opts.Notifier,
	}, nil
}

// pixel packs c for a 24-bit TrueColor visual.
func pixel(c config.Color) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func (a *App) Window() *ui.Window[*TrayContainer] { return a.window }
func (a *App) Tray() *tray.Manager                 { return a.tray }

// Start claims the tray selection. With override_redirect it also watches
// other windows being mapped so the list can stay on top.
func (a *App) Start() error {
	if a.cfg.Window.OverrideRedirect {
		root := a.conn.Screen().Root
		if err := a.conn.SelectInput(root, xproto.EventMaskSubstructureNotify); err != nil {
			return fmt.Errorf("watch root window: %w", err)
		}
	}
	if _, err := a.tray.AcquireSelection(); err != nil {
		return fmt.Errorf("acquire tray selection: %w", err)
	}
	return a.conn.Flush()
}

// Run starts the app and dispatches events until the selection is lost, a
// signal arrives, the window is destroyed or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	return a.loop.Run(ctx, a.handle)
}

// Close gives every icon back to the root window and destroys our windows.
func (a *App) Close() error {
	err := a.tray.Close()
	a.window.Close()
	return err
}

func (a *App) handle(ev event.Event) (event.ControlFlow, error) {
	switch e := ev.(type) {
	case event.X11:
		return a.handleX11(e.Event)
	case event.Timer:
		return event.Continue, a.window.OnTimer(e.ID)
	case event.Signal:
		log.Info().Stringer("signal", e.Signal).Msg("exiting")
		return event.Break, nil
	}
	return event.Continue, nil
}

func (a *App) handleX11(ev xgb.Event) (event.ControlFlow, error) {
	flow, err := a.window.ProcessEvent(ev)
	if err != nil || flow == event.Break {
		return flow, err
	}

	trayEvent, err := a.tray.ProcessEvent(ev)
	if err != nil {
		log.Warn().Err(err).Msg("failed to process tray event")
	}
	if trayEvent != nil {
		flow, err := a.handleTray(trayEvent)
		if err != nil || flow == event.Break {
			return flow, err
		}
	}

	return event.Continue, a.handleWindowEvent(ev)
}

func (a *App) handleTray(ev tray.Event) (event.ControlFlow, error) {
	var effect ui.Effect
	container := a.window.Widget()

	switch e := ev.(type) {
	case tray.IconAdded:
		log.Debug().Uint32("window", uint32(e.Icon.Window)).Str("title", e.Icon.Title).Msg("icon added")
		effect = container.AddItem(e.Icon)
	case tray.IconUpdated:
		effect = container.UpdateItem(e.Icon)
	case tray.IconRemoved:
		log.Debug().Uint32("window", uint32(e.Icon.Window)).Msg("icon removed")
		effect = container.RemoveItem(e.Icon.Window)
	case tray.MessageReceived:
		a.showMessage(e)
		return event.Continue, nil
	case tray.SelectionCleared:
		log.Info().Msg("tray selection taken by another tray, exiting")
		return event.Break, nil
	}

	_, err := a.window.ApplyEffect(effect)
	return event.Continue, err
}

func (a *App) showMessage(e tray.MessageReceived) {
	text := e.Message.Text()
	log.Info().Uint32("window", uint32(e.Window)).Str("message", text).Msg("tray message")

	if a.notifier == nil || !a.cfg.Notifications.Enabled {
		return
	}
	summary := a.cfg.Window.Name
	if icon, ok := a.tray.Icon(e.Window); ok && icon.Title != "" {
		summary = icon.Title
	}
	if _, err := a.notifier.Notify(summary, text, e.Message.Timeout()); err != nil {
		log.Warn().Err(err).Msg("failed to send notification")
	}
}

func (a *App) handleWindowEvent(ev xgb.Event) error {
	id := a.window.ID()

	switch e := ev.(type) {
	case xproto.FocusOutEvent:
		if a.cfg.Window.AutoClose && e.Mode == xproto.NotifyModeNormal && e.Event == id {
			return a.window.Hide()
		}
	case xproto.LeaveNotifyEvent:
		if a.cfg.Window.AutoClose && e.Event == id &&
			(e.Detail == xproto.NotifyDetailAncestor || e.Detail == xproto.NotifyDetailNonlinear) {
			return a.window.Hide()
		}
	case xproto.KeyReleaseEvent:
		return a.runHotkey(e.State, e.Detail)
	case xproto.MapNotifyEvent:
		// Maps reported through the root's substructure mask; our own
		// StructureNotify has Window == Event.
		if e.Window != e.Event && a.window.OverrideRedirect() && e.Window != id && !e.OverrideRedirect {
			return a.window.Raise()
		}
	case xproto.ClientMessageEvent:
		if e.Type == a.atoms.WMProtocols && e.Format == 32 {
			return a.handleProtocol(e)
		}
	}
	return nil
}

func (a *App) handleProtocol(e xproto.ClientMessageEvent) error {
	if len(e.Data.Data32) == 0 {
		return nil
	}
	switch xproto.Atom(e.Data.Data32[0]) {
	case a.atoms.NetWMPing:
		root := a.conn.Screen().Root
		reply := e
		reply.Window = root
		if err := a.conn.SendEvent(root, false,
			xproto.EventMaskSubstructureNotify|xproto.EventMaskSubstructureRedirect, reply); err != nil {
			return fmt.Errorf("reply to ping: %w", err)
		}
		return a.conn.Flush()
	case a.atoms.NetWMSyncReq:
		return a.window.RequestRedraw()
	case a.atoms.WMDeleteWindow:
		return a.window.Hide()
	}
	return nil
}

func (a *App) runHotkey(state uint16, code xproto.Keycode) error {
	for _, cmd := range a.hotkeys.Lookup(state, code) {
		ok, err := a.Execute(cmd)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return nil
}
