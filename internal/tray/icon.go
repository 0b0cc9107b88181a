package tray

import (
	"fmt"

	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/x11"
)

// Icon is one foreign window that asked to be docked. The window belongs to
// another client and may disappear at any time.
type Icon struct {
	Window xproto.Window
	Title  string
	Info   XEmbedInfo

	damage   damage.Damage
	embedded bool
}

// Embedded reports whether the window currently lives inside the container.
func (i Icon) Embedded() bool {
	return i.embedded
}

func (i *Icon) beginEmbedding(conn x11.Conn, container xproto.Window, size x11.Changes) error {
	if err := conn.SelectInput(i.Window, xproto.EventMaskPropertyChange|xproto.EventMaskStructureNotify); err != nil {
		return fmt.Errorf("select icon events: %w", err)
	}
	d, err := conn.CreateDamage(i.Window)
	if err != nil {
		return fmt.Errorf("create damage: %w", err)
	}
	i.damage = d
	if err := conn.ChangeSaveSet(i.Window, xproto.SetModeInsert); err != nil {
		return fmt.Errorf("change save set: %w", err)
	}
	if err := conn.ReparentWindow(i.Window, container, 0, 0); err != nil {
		return fmt.Errorf("reparent icon: %w", err)
	}
	if err := conn.ConfigureWindow(i.Window, size); err != nil {
		return fmt.Errorf("resize icon: %w", err)
	}
	if err := conn.MapWindow(i.Window); err != nil {
		return fmt.Errorf("map icon: %w", err)
	}
	i.embedded = true
	return nil
}

// waitForEmbedding watches for the mapped flag and for the window going away
// without touching the window.
func (i *Icon) waitForEmbedding(conn x11.Conn) error {
	if err := conn.SelectInput(i.Window, xproto.EventMaskPropertyChange|xproto.EventMaskStructureNotify); err != nil {
		return fmt.Errorf("select icon events: %w", err)
	}
	return nil
}

// releaseEmbedding hands the window back to the root. The event mask is
// cleared first so the reparent does not come back to us as a removal.
// A window that is already gone is not an error here.
func (i *Icon) releaseEmbedding(conn x11.Conn, root xproto.Window) error {
	i.embedded = false
	steps := []struct {
		what string
		run  func() error
	}{
		{"clear icon events", func() error { return conn.SelectInput(i.Window, xproto.EventMaskNoEvent) }},
		{"reparent icon to root", func() error { return conn.ReparentWindow(i.Window, root, 0, 0) }},
		{"unmap icon", func() error { return conn.UnmapWindow(i.Window) }},
	}
	for _, step := range steps {
		if err := x11.IgnoreBadWindow(step.run()); err != nil {
			return fmt.Errorf("%s: %w", step.what, err)
		}
	}
	return i.destroyDamage(conn)
}

func (i *Icon) destroyDamage(conn x11.Conn) error {
	if i.damage == 0 {
		return nil
	}
	d := i.damage
	i.damage = 0
	if err := x11.IgnoreBadWindow(conn.DestroyDamage(d)); err != nil {
		return fmt.Errorf("destroy damage: %w", err)
	}
	return nil
}

func (i *Icon) sendEmbeddedNotify(conn x11.Conn, atoms *x11.Atoms, container xproto.Window) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: i.Window,
		Type:   atoms.XEmbed,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			xembedEmbeddedNotify,
			0,
			uint32(container),
			i.Info.Version,
		}),
	}
	if err := conn.SendEvent(i.Window, false, xproto.EventMaskNoEvent, ev); err != nil {
		return fmt.Errorf("send embedded notify: %w", err)
	}
	return nil
}

func (i *Icon) refreshTitle(conn x11.Conn) error {
	title, err := conn.WindowTitle(i.Window)
	if err != nil {
		return err
	}
	i.Title = title
	return nil
}
