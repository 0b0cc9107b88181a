package app

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/config"
	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/tray"
	"github.com/bnema/keytray/internal/ui"
	"github.com/bnema/keytray/internal/x11"
)

// TrayItem is one row of the list: the docked icon followed by its title.
type TrayItem struct {
	icon     tray.Icon
	selected bool
	pressed  bool
	style    *config.UI
}

func NewTrayItem(icon tray.Icon, style *config.UI) *TrayItem {
	return &TrayItem{icon: icon, style: style}
}

func (t *TrayItem) Window() xproto.Window { return t.icon.Window }
func (t *TrayItem) Icon() tray.Icon       { return t.icon }
func (t *TrayItem) Selected() bool        { return t.selected }

func (t *TrayItem) Update(icon tray.Icon) ui.Effect {
	t.icon = icon
	return ui.RequestRedraw()
}

func (t *TrayItem) Select() ui.Effect {
	t.selected = true
	return ui.RequestRedraw()
}

func (t *TrayItem) Deselect() ui.Effect {
	t.selected = false
	return ui.RequestRedraw()
}

// Click sends button to the icon as if the user clicked its top-left corner.
func (t *TrayItem) Click(button config.MouseButton) ui.Effect {
	index, mask := buttonCodes(button)
	return ui.Act(ui.Click{
		Window: t.icon.Window,
		Button: index,
		State:  mask,
	})
}

func buttonCodes(button config.MouseButton) (xproto.Button, uint16) {
	switch button {
	case config.ButtonMiddle:
		return xproto.ButtonIndex2, xproto.ButtonMask2
	case config.ButtonRight:
		return xproto.ButtonIndex3, xproto.ButtonMask3
	case config.ButtonX1:
		return xproto.ButtonIndex4, xproto.ButtonMask4
	case config.ButtonX2:
		return xproto.ButtonIndex5, xproto.ButtonMask5
	default:
		return xproto.ButtonIndex1, xproto.ButtonMask1
	}
}

func (t *TrayItem) title(index int) string {
	if t.style.ShowIndex {
		return fmt.Sprintf("%d. %s", index+1, t.icon.Title)
	}
	return t.icon.Title
}

func (t *TrayItem) Layout(container geom.Size) ui.Layout {
	return ui.Layout{Size: geom.Size{Width: container.Width, Height: t.style.ItemHeight()}}
}

func (t *TrayItem) Render(position geom.Point, layout ui.Layout, index int, ctx ui.RenderContext) {
	s := t.style
	bg, fg := s.NormalItemBackground, s.NormalItemForeground
	if t.selected {
		bg, fg = s.SelectedItemBackground, s.SelectedItemForeground
	}

	bounds := geom.NewRect(position, layout.Size)
	if s.ItemCornerRadius > 0 {
		ctx.FillRoundedRect(bg, bounds, geom.Size{Width: s.ItemCornerRadius, Height: s.ItemCornerRadius})
	} else {
		ctx.FillRect(bg, bounds)
	}

	ctx.Text(fg, geom.Rect{
		X:      position.X + s.IconSize + s.ItemPadding*2,
		Y:      position.Y,
		Width:  layout.Size.Width - (s.IconSize + s.ItemPadding*3),
		Height: layout.Size.Height,
	}, ui.Text{
		Content: t.title(index),
		Font:    fontDescription(s.Font),
		Size:    s.Font.Size,
		HAlign:  ui.AlignLeft,
		VAlign:  ui.AlignMiddle,
	})

	if !t.icon.Embedded() {
		return
	}
	iconBounds := geom.Rect{
		X:      position.X + s.ItemPadding,
		Y:      position.Y + s.ItemPadding,
		Width:  s.IconSize,
		Height: s.IconSize,
	}
	ctx.Composite(t.icon.Window, iconBounds)
	ctx.Schedule(ui.ConfigureWindow{Window: t.icon.Window, Changes: x11.Geometry(iconBounds.Snap())})
	ctx.Schedule(ui.MapWindow{Window: t.icon.Window})
}

// OnEvent turns a press and release inside the row into a click on the icon
// with the same button and modifier state.
func (t *TrayItem) OnEvent(ev xgb.Event, position geom.Point, layout ui.Layout) ui.Effect {
	bounds := geom.NewRect(position, layout.Size).Snap()

	switch e := ev.(type) {
	case xproto.ButtonPressEvent:
		if bounds.Contains(geom.PhysicalPoint{X: int32(e.EventX), Y: int32(e.EventY)}) {
			t.pressed = true
		}
	case xproto.ButtonReleaseEvent:
		if !t.pressed {
			break
		}
		t.pressed = false
		if bounds.Contains(geom.PhysicalPoint{X: int32(e.EventX), Y: int32(e.EventY)}) {
			return ui.Act(ui.Click{
				Window: t.icon.Window,
				Button: e.Detail,
				State:  e.State,
			})
		}
	case xproto.LeaveNotifyEvent:
		t.pressed = false
	}
	return ui.None()
}

func fontDescription(f config.Font) ui.FontDescription {
	return ui.FontDescription{
		Family:  f.Family,
		Weight:  f.Weight,
		Style:   f.Style,
		Stretch: f.Stretch,
	}
}
