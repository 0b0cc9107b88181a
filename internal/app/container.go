package app

import (
	"slices"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/config"
	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/tray"
	"github.com/bnema/keytray/internal/ui"
	"github.com/bnema/keytray/internal/x11"
)

const placeholder = "No tray items found"

// TrayContainer is the root widget: a vertical list of tray items with at
// most one selected.
type TrayContainer struct {
	items    []*TrayItem
	selected int
	style    *config.UI
}

func NewTrayContainer(style *config.UI) *TrayContainer {
	return &TrayContainer{selected: -1, style: style}
}

func (c *TrayContainer) Items() []*TrayItem { return c.items }

// Selected returns the selected index, or -1.
func (c *TrayContainer) Selected() int { return c.selected }

func (c *TrayContainer) indexOf(win xproto.Window) int {
	return slices.IndexFunc(c.items, func(item *TrayItem) bool {
		return item.Window() == win
	})
}

// AddItem appends icon unless its window is already listed.
func (c *TrayContainer) AddItem(icon tray.Icon) ui.Effect {
	if c.indexOf(icon.Window) >= 0 {
		return ui.None()
	}
	c.items = append(c.items, NewTrayItem(icon, c.style))
	return ui.RequestLayout()
}

// UpdateItem refreshes the item for icon, appending it if unknown.
func (c *TrayContainer) UpdateItem(icon tray.Icon) ui.Effect {
	if i := c.indexOf(icon.Window); i >= 0 {
		return c.items[i].Update(icon)
	}
	c.items = append(c.items, NewTrayItem(icon, c.style))
	return ui.RequestLayout()
}

// RemoveItem drops the item for win and keeps the selection on the same
// item when it survives.
func (c *TrayContainer) RemoveItem(win xproto.Window) ui.Effect {
	i := c.indexOf(win)
	if i < 0 {
		return ui.None()
	}
	switch {
	case c.selected > i:
		c.selected--
	case c.selected == i:
		c.selected = -1
	}
	c.items = slices.Delete(c.items, i, i+1)
	return ui.RequestLayout()
}

// SelectItem moves the selection to index. An out-of-range index, including
// -1, clears it.
func (c *TrayContainer) SelectItem(index int) ui.Effect {
	effect := ui.None()
	if c.selected >= 0 {
		effect = effect.Add(c.items[c.selected].Deselect())
	}
	if index >= 0 && index < len(c.items) {
		effect = effect.Add(c.items[index].Select())
		c.selected = index
	} else {
		c.selected = -1
	}
	return effect
}

// SelectNext selects the following item. Moving past the last item clears
// the selection.
func (c *TrayContainer) SelectNext() ui.Effect {
	if len(c.items) == 0 {
		return ui.None()
	}
	switch {
	case c.selected < 0:
		return c.SelectItem(0)
	case c.selected == len(c.items)-1:
		return c.SelectItem(-1)
	default:
		return c.SelectItem(c.selected + 1)
	}
}

// SelectPrevious selects the preceding item. Moving before the first item
// clears the selection.
func (c *TrayContainer) SelectPrevious() ui.Effect {
	if len(c.items) == 0 {
		return ui.None()
	}
	switch {
	case c.selected < 0:
		return c.SelectItem(len(c.items) - 1)
	case c.selected == 0:
		return c.SelectItem(-1)
	default:
		return c.SelectItem(c.selected - 1)
	}
}

func (c *TrayContainer) ClickSelected(button config.MouseButton) ui.Effect {
	if c.selected < 0 {
		return ui.None()
	}
	return c.items[c.selected].Click(button)
}

func (c *TrayContainer) Layout(container geom.Size) ui.Layout {
	s := c.style
	inset := s.ContainerPadding*2 + s.BorderSize*2
	childContainer := geom.Size{
		Width:  container.Width - inset,
		Height: container.Height - inset,
	}

	total := s.ContainerPadding * 2
	position := geom.Point{X: s.ContainerPadding, Y: s.ContainerPadding}
	children := make([]ui.Child, 0, len(c.items))
	for i, item := range c.items {
		layout := item.Layout(childContainer)
		children = append(children, ui.Child{Position: position, Layout: layout})
		position.Y += layout.Size.Height + s.ItemGap
		total += layout.Size.Height
		if i > 0 {
			total += s.ItemGap
		}
	}

	return ui.Layout{
		Size:     geom.Size{Width: container.Width, Height: max(total, s.ItemHeight())},
		Children: children,
	}
}

func (c *TrayContainer) Render(position geom.Point, layout ui.Layout, _ int, ctx ui.RenderContext) {
	s := c.style
	bounds := geom.NewRect(position, layout.Size)
	ctx.FillRect(s.WindowBackground, bounds)
	if s.BorderSize > 0 {
		ctx.StrokeRect(s.BorderColor, bounds, s.BorderSize)
	}

	if len(c.items) == 0 {
		ctx.Text(s.WindowForeground, geom.Rect{
			X:      position.X + s.ContainerPadding,
			Y:      position.Y,
			Width:  layout.Size.Width - s.ContainerPadding*2,
			Height: layout.Size.Height,
		}, ui.Text{
			Content: placeholder,
			Font:    fontDescription(s.Font),
			Size:    s.Font.Size,
			HAlign:  ui.AlignCenter,
			VAlign:  ui.AlignMiddle,
		})
		return
	}

	for i, item := range c.items {
		if i >= len(layout.Children) {
			break
		}
		child := layout.Children[i]
		item.Render(child.Position, child.Layout, i, ctx)
	}
}

// OnResize pins the new size for the window manager and grows or shrinks
// the window around its center.
func (c *TrayContainer) OnResize(position geom.PhysicalPoint, oldSize, newSize geom.PhysicalSize) ui.Effect {
	rect := geom.PhysicalRect{
		X:      position.X + (int32(oldSize.Width)-int32(newSize.Width))/2,
		Y:      position.Y + (int32(oldSize.Height)-int32(newSize.Height))/2,
		Width:  newSize.Width,
		Height: newSize.Height,
	}
	return ui.Batch(
		ui.Act(ui.SetSizeHints{Min: newSize, Max: newSize}),
		ui.Act(ui.ConfigureWindow{Changes: x11.Geometry(rect)}),
	)
}

func (c *TrayContainer) OnEvent(ev xgb.Event, _ geom.Point, layout ui.Layout) ui.Effect {
	effect := ui.None()
	for i, item := range c.items {
		if i >= len(layout.Children) {
			break
		}
		child := layout.Children[i]
		effect = effect.Add(item.OnEvent(ev, child.Position, child.Layout))
	}
	return effect
}
