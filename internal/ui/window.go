package ui

import (
	"errors"
	"fmt"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog/log"

	"github.com/bnema/keytray/internal/event"
	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/x11"
)

// EventMask is what a Window selects on itself.
const EventMask = xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease |
	xproto.EventMaskEnterWindow |
	xproto.EventMaskExposure |
	xproto.EventMaskFocusChange |
	xproto.EventMaskKeyPress |
	xproto.EventMaskKeyRelease |
	xproto.EventMaskLeaveWindow |
	xproto.EventMaskPropertyChange |
	xproto.EventMaskStructureNotify

// Scheduler hands out timer ids for delayed effects.
type Scheduler interface {
	RequestTimeout(d time.Duration) event.TimerID
}

type WindowOptions struct {
	// InitialSize is the container size the first layout is computed for.
	InitialSize      geom.Size
	OverrideRedirect bool
	Background       uint32
}

// Window owns one top-level X window and the widget drawn into it.
type Window[W Widget] struct {
	conn       x11.Conn
	widget     W
	sched      Scheduler
	newContext ContextFactory

	id               xproto.Window
	overrideRedirect bool
	position         geom.PhysicalPoint
	size             geom.PhysicalSize
	layout           Layout
	mapped           bool
	closed           bool

	delayed map[event.TimerID]Effect
}

func NewWindow[W Widget](conn x11.Conn, widget W, sched Scheduler, newContext ContextFactory, opts WindowOptions) (*Window[W], error) {
	screen := conn.Screen()
	layout := widget.Layout(opts.InitialSize)
	size := layout.Size.Snap()
	position := place(widget, screen, size)

	id, err := conn.CreateWindow(screen.Root, x11.WindowOptions{
		Rect: geom.PhysicalRect{
			X: position.X, Y: position.Y,
			Width: size.Width, Height: size.Height,
		},
		Class:            xproto.WindowClassInputOutput,
		EventMask:        EventMask,
		BackPixel:        opts.Background,
		OverrideRedirect: opts.OverrideRedirect,
	})
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}

	w := &Window[W]{
		conn:             conn,
		widget:           widget,
		sched:            sched,
		newContext:       newContext,
		id:               id,
		overrideRedirect: opts.OverrideRedirect,
		position:         position,
		size:             size,
		layout:           layout,
		delayed:          make(map[event.TimerID]Effect),
	}

	if _, err := w.ApplyEffect(w.resized(size, size)); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// place centers the window unless the widget has a placement policy.
func place(widget Widget, screen x11.Screen, size geom.PhysicalSize) geom.PhysicalPoint {
	if p, ok := widget.(Placer); ok {
		return p.Place(screen, size)
	}
	return geom.PhysicalPoint{
		X: (int32(screen.Width) - int32(size.Width)) / 2,
		Y: (int32(screen.Height) - int32(size.Height)) / 2,
	}
}

func (w *Window[W]) resized(oldSize, newSize geom.PhysicalSize) Effect {
	if r, ok := any(w.widget).(Resizer); ok {
		return r.OnResize(w.position, oldSize, newSize)
	}
	return RequestRedraw()
}

func (w *Window[W]) ID() xproto.Window            { return w.id }
func (w *Window[W]) Widget() W                    { return w.widget }
func (w *Window[W]) Size() geom.PhysicalSize      { return w.size }
func (w *Window[W]) Position() geom.PhysicalPoint { return w.position }
func (w *Window[W]) Layout() Layout               { return w.layout }
func (w *Window[W]) IsMapped() bool               { return w.mapped }
func (w *Window[W]) OverrideRedirect() bool       { return w.overrideRedirect }

// ApplyEffect runs effect breadth first. Redraw and layout requests are
// collected and performed once at the end, layout winning over redraw. The
// result reports whether an action, redraw or layout was applied; delayed
// effects count when they fire.
func (w *Window[W]) ApplyEffect(effect Effect) (bool, error) {
	var applied, redraw, relayout bool

	queue := []Effect{effect}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		switch e.kind {
		case KindNone:
			continue
		case KindBatch:
			queue = append(queue, e.batch...)
		case KindDelay:
			if w.sched == nil {
				log.Warn().Stringer("effect", e).Msg("no scheduler, dropping delayed effect")
				continue
			}
			inner, d := e.Delayed()
			w.delayed[w.sched.RequestTimeout(d)] = inner
		case KindAction:
			next, err := w.perform(e.action)
			if err != nil {
				return applied, err
			}
			// Follow-up effects run before the rest of the queue.
			queue = append([]Effect{next}, queue...)
			applied = true
		case KindRedraw:
			redraw = true
			applied = true
		case KindLayout:
			relayout = true
			applied = true
		}
	}

	switch {
	case relayout:
		return applied, w.RecalculateLayout()
	case redraw:
		return applied, w.RequestRedraw()
	}
	return applied, nil
}

// RecalculateLayout lays the widget out for the current size. A size change
// goes through the resize hook and the ConfigureNotify it causes brings the
// redraw; otherwise a redraw is requested directly.
func (w *Window[W]) RecalculateLayout() error {
	w.layout = w.widget.Layout(w.size.Unsnap())
	size := w.layout.Size.Snap()
	if size != w.size {
		_, err := w.ApplyEffect(w.resized(w.size, size))
		return err
	}
	return w.RequestRedraw()
}

// RequestRedraw clears the window so the server sends an Expose.
func (w *Window[W]) RequestRedraw() error {
	if err := w.conn.ClearArea(w.id); err != nil {
		return fmt.Errorf("clear window: %w", err)
	}
	return w.conn.Flush()
}

func (w *Window[W]) redraw() error {
	if w.size.Width == 0 || w.size.Height == 0 || w.newContext == nil {
		return nil
	}
	ctx, err := w.newContext(w.id, w.size)
	if err != nil {
		return fmt.Errorf("open render context: %w", err)
	}
	w.widget.Render(geom.ZeroPoint, w.layout, 0, ctx)
	effect, err := ctx.Commit()
	if err != nil {
		return fmt.Errorf("commit frame: %w", err)
	}
	_, err = w.ApplyEffect(effect)
	return err
}

// ProcessEvent gives the widget events addressed to this window, then
// tracks the window's own structure.
func (w *Window[W]) ProcessEvent(ev xgb.Event) (event.ControlFlow, error) {
	if win, ok := EventWindow(ev); ok && win == w.id {
		effect := w.widget.OnEvent(ev, geom.ZeroPoint, w.layout)
		if _, err := w.ApplyEffect(effect); err != nil {
			return event.Continue, err
		}
	}

	switch e := ev.(type) {
	case xproto.ExposeEvent:
		if e.Window == w.id && e.Count == 0 {
			return event.Continue, w.redraw()
		}
	case xproto.ConfigureNotifyEvent:
		// The root's substructure mask reports our configures a second time.
		if e.Window != w.id || e.Event != w.id {
			break
		}
		w.position = geom.PhysicalPoint{X: int32(e.X), Y: int32(e.Y)}
		size := geom.PhysicalSize{Width: uint32(e.Width), Height: uint32(e.Height)}
		if size != w.size {
			w.size = size
			return event.Continue, w.RecalculateLayout()
		}
	case xproto.DestroyNotifyEvent:
		if e.Window == w.id {
			w.closed = true
			return event.Break, nil
		}
	case xproto.MapNotifyEvent:
		if e.Window == w.id && e.Event == w.id {
			w.mapped = true
			if w.overrideRedirect {
				if err := w.conn.GrabKeyboard(w.id); err != nil {
					log.Warn().Err(err).Msg("failed to grab keyboard")
				}
			}
		}
	case xproto.UnmapNotifyEvent:
		if e.Window == w.id && e.Event == w.id {
			w.mapped = false
			if w.overrideRedirect {
				if err := w.conn.UngrabKeyboard(); err != nil {
					log.Warn().Err(err).Msg("failed to ungrab keyboard")
				}
			}
		}
	}
	return event.Continue, nil
}

// OnTimer applies the effect delayed to id, once.
func (w *Window[W]) OnTimer(id event.TimerID) error {
	effect, ok := w.delayed[id]
	if !ok {
		return nil
	}
	delete(w.delayed, id)
	_, err := w.ApplyEffect(effect)
	return err
}

func (w *Window[W]) Show() error {
	if err := w.conn.MapWindow(w.id); err != nil {
		return fmt.Errorf("map window: %w", err)
	}
	return w.conn.Flush()
}

func (w *Window[W]) Hide() error {
	if err := w.conn.UnmapWindow(w.id); err != nil {
		return fmt.Errorf("unmap window: %w", err)
	}
	return w.conn.Flush()
}

func (w *Window[W]) Raise() error {
	if err := w.conn.ConfigureWindow(w.id, x11.StackAbove()); err != nil {
		return fmt.Errorf("raise window: %w", err)
	}
	return w.conn.Flush()
}

func (w *Window[W]) Move(p geom.PhysicalPoint) error {
	if err := w.conn.ConfigureWindow(w.id, x11.Position(p)); err != nil {
		return fmt.Errorf("move window: %w", err)
	}
	return w.conn.Flush()
}

// Close destroys the window. Errors are logged only since the connection
// may already be going away.
func (w *Window[W]) Close() {
	if w.closed {
		return
	}
	w.closed = true
	clear(w.delayed)
	if err := x11.IgnoreBadWindow(w.conn.DestroyWindow(w.id)); err != nil {
		log.Debug().Err(err).Uint32("window", uint32(w.id)).Msg("failed to destroy window")
	}
	_ = w.conn.Flush()
}

func (w *Window[W]) perform(action Action) (Effect, error) {
	var err error
	switch a := action.(type) {
	case ConfigureWindow:
		win := w.target(a.Window)
		err = w.conn.ConfigureWindow(win, a.Changes)
		if win != w.id {
			err = x11.IgnoreBadWindow(err)
		}
	case MapWindow:
		win := w.target(a.Window)
		err = w.conn.MapWindow(win)
		if win != w.id {
			err = x11.IgnoreBadWindow(err)
		}
	case SetSizeHints:
		err = w.conn.SetNormalHints(w.id, a.Min, a.Max)
	case Click:
		err = x11.SendClick(w.conn, a.Window, a.At, a.Button, a.State)
		if x11.IsBadWindow(err) {
			log.Debug().Uint32("window", uint32(a.Window)).Msg("click target is gone")
			err = nil
		}
	default:
		err = errors.New("unknown action")
	}
	if err != nil {
		return None(), fmt.Errorf("perform %T: %w", action, err)
	}
	return None(), nil
}

func (w *Window[W]) target(win xproto.Window) xproto.Window {
	if win == 0 {
		return w.id
	}
	return win
}

// EventWindow returns the window an event is reported on.
func EventWindow(ev xgb.Event) (xproto.Window, bool) {
	switch e := ev.(type) {
	case xproto.ButtonPressEvent:
		return e.Event, true
	case xproto.ButtonReleaseEvent:
		return e.Event, true
	case xproto.MotionNotifyEvent:
		return e.Event, true
	case xproto.KeyPressEvent:
		return e.Event, true
	case xproto.KeyReleaseEvent:
		return e.Event, true
	case xproto.EnterNotifyEvent:
		return e.Event, true
	case xproto.LeaveNotifyEvent:
		return e.Event, true
	case xproto.FocusInEvent:
		return e.Event, true
	case xproto.FocusOutEvent:
		return e.Event, true
	case xproto.ExposeEvent:
		return e.Window, true
	case xproto.ConfigureNotifyEvent:
		return e.Event, true
	case xproto.MapNotifyEvent:
		return e.Event, true
	case xproto.UnmapNotifyEvent:
		return e.Event, true
	case xproto.DestroyNotifyEvent:
		return e.Event, true
	case xproto.ReparentNotifyEvent:
		return e.Event, true
	case xproto.PropertyNotifyEvent:
		return e.Window, true
	case xproto.ClientMessageEvent:
		return e.Window, true
	}
	return 0, false
}
