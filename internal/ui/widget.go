package ui

import (
	"image"
	"image/color"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/x11"
)

// Layout is a widget's size plus the positioned layouts of its children.
type Layout struct {
	Size     geom.Size
	Children []Child
}

type Child struct {
	Position geom.Point
	Layout   Layout
}

// Equal compares two layout trees structurally.
func (l Layout) Equal(other Layout) bool {
	if l.Size != other.Size || len(l.Children) != len(other.Children) {
		return false
	}
	for i, c := range l.Children {
		o := other.Children[i]
		if c.Position != o.Position || !c.Layout.Equal(o.Layout) {
			return false
		}
	}
	return true
}

// Widget is a node of the tree a Window drives.
//
// Layout must be pure: the same state and container size give an equal
// Layout. Render draws at position and may schedule actions that run after
// the frame is committed. OnEvent sees every event addressed to the window.
type Widget interface {
	Layout(container geom.Size) Layout
	Render(position geom.Point, layout Layout, index int, ctx RenderContext)
	OnEvent(ev xgb.Event, position geom.Point, layout Layout) Effect
}

// Placer picks where a new top-level window goes.
type Placer interface {
	Place(screen x11.Screen, size geom.PhysicalSize) geom.PhysicalPoint
}

// Resizer reacts to the laid-out size changing. Widgets without it only
// get a redraw.
type Resizer interface {
	OnResize(position geom.PhysicalPoint, oldSize, newSize geom.PhysicalSize) Effect
}

type HorizontalAlign int

const (
	AlignLeft HorizontalAlign = iota
	AlignCenter
	AlignRight
)

type VerticalAlign int

const (
	AlignTop VerticalAlign = iota
	AlignMiddle
	AlignBottom
)

// FontDescription names a font the way core X font patterns do.
type FontDescription struct {
	Family  string
	Weight  string
	Style   string
	Stretch string
}

type Text struct {
	Content string
	Font    FontDescription
	Size    float64
	HAlign  HorizontalAlign
	VAlign  VerticalAlign
}

// RenderContext draws one frame into an off-screen buffer. Commit copies it
// to the window and returns the actions scheduled during the frame.
type RenderContext interface {
	FillRect(c color.Color, r geom.Rect)
	FillRoundedRect(c color.Color, r geom.Rect, radius geom.Size)
	StrokeRect(c color.Color, r geom.Rect, width float64)
	Text(c color.Color, r geom.Rect, text Text)
	Image(r geom.Rect, img image.Image)
	Composite(src xproto.Window, r geom.Rect)
	Schedule(action Action)
	Commit() (Effect, error)
}

// ContextFactory opens a RenderContext for one frame of win.
type ContextFactory func(win xproto.Window, size geom.PhysicalSize) (RenderContext, error)
