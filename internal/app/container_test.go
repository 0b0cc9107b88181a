package app

import (
	"image"
	"image/color"
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/keytray/internal/config"
	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/tray"
	"github.com/bnema/keytray/internal/ui"
	"github.com/bnema/keytray/internal/x11"
)

type drawOp struct {
	op    string
	color color.Color
	rect  geom.Rect
	text  string
}

type recordingContext struct {
	ops        []drawOp
	composites []xproto.Window
	actions    []ui.Action
}

func (r *recordingContext) FillRect(c color.Color, rect geom.Rect) {
	r.ops = append(r.ops, drawOp{op: "rect", color: c, rect: rect})
}

func (r *recordingContext) FillRoundedRect(c color.Color, rect geom.Rect, _ geom.Size) {
	r.ops = append(r.ops, drawOp{op: "rounded", color: c, rect: rect})
}

func (r *recordingContext) StrokeRect(c color.Color, rect geom.Rect, _ float64) {
	r.ops = append(r.ops, drawOp{op: "stroke", color: c, rect: rect})
}

func (r *recordingContext) Text(c color.Color, rect geom.Rect, text ui.Text) {
	r.ops = append(r.ops, drawOp{op: "text", color: c, rect: rect, text: text.Content})
}

func (r *recordingContext) Image(geom.Rect, image.Image) {}

func (r *recordingContext) Composite(src xproto.Window, _ geom.Rect) {
	r.composites = append(r.composites, src)
}

func (r *recordingContext) Schedule(action ui.Action) {
	r.actions = append(r.actions, action)
}

func (r *recordingContext) Commit() (ui.Effect, error) {
	return ui.None(), nil
}

func (r *recordingContext) texts() []string {
	var out []string
	for _, op := range r.ops {
		if op.op == "text" {
			out = append(out, op.text)
		}
	}
	return out
}

func testStyle() *config.UI {
	style := config.DefaultConfig().UI
	return &style
}

func icon(win xproto.Window, title string) tray.Icon {
	return tray.Icon{Window: win, Title: title}
}

func containerWith(titles ...string) *TrayContainer {
	c := NewTrayContainer(testStyle())
	for i, title := range titles {
		c.AddItem(icon(xproto.Window(0x500+i), title))
	}
	return c
}

func TestContainerAddItem(t *testing.T) {
	c := NewTrayContainer(testStyle())

	assert.Equal(t, ui.KindLayout, c.AddItem(icon(0x500, "a")).Kind())
	assert.True(t, c.AddItem(icon(0x500, "again")).IsNone(), "duplicate windows are ignored")
	require.Len(t, c.Items(), 1)
	assert.Equal(t, "a", c.Items()[0].Icon().Title)
}

func TestContainerUpdateItem(t *testing.T) {
	c := containerWith("a")

	assert.Equal(t, ui.KindRedraw, c.UpdateItem(icon(0x500, "renamed")).Kind())
	assert.Equal(t, "renamed", c.Items()[0].Icon().Title)

	assert.Equal(t, ui.KindLayout, c.UpdateItem(icon(0x600, "new")).Kind())
	assert.Len(t, c.Items(), 2)
}

func TestContainerRemoveItemKeepsSelection(t *testing.T) {
	tests := []struct {
		name     string
		selected int
		remove   xproto.Window
		want     int
	}{
		{"before selection", 2, 0x500, 1},
		{"selected item", 1, 0x501, -1},
		{"after selection", 0, 0x502, 0},
		{"no selection", -1, 0x501, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := containerWith("a", "b", "c")
			c.SelectItem(tt.selected)

			assert.Equal(t, ui.KindLayout, c.RemoveItem(tt.remove).Kind())
			assert.Equal(t, tt.want, c.Selected())
			assert.Len(t, c.Items(), 2)
			if tt.want >= 0 {
				assert.True(t, c.Items()[tt.want].Selected())
			}
		})
	}
}

func TestContainerRemoveUnknownItem(t *testing.T) {
	c := containerWith("a")
	assert.True(t, c.RemoveItem(0x999).IsNone())
	assert.Len(t, c.Items(), 1)
}

func TestContainerSelectItem(t *testing.T) {
	c := containerWith("a", "b")

	c.SelectItem(1)
	assert.Equal(t, 1, c.Selected())
	assert.True(t, c.Items()[1].Selected())

	c.SelectItem(0)
	assert.False(t, c.Items()[1].Selected())
	assert.True(t, c.Items()[0].Selected())

	c.SelectItem(5)
	assert.Equal(t, -1, c.Selected())
	assert.False(t, c.Items()[0].Selected())

	assert.True(t, c.SelectItem(-1).IsNone(), "nothing to deselect")
}

func TestContainerSelectionWrapsThroughNothing(t *testing.T) {
	c := containerWith("a", "b")

	var next []int
	for range 4 {
		c.SelectNext()
		next = append(next, c.Selected())
	}
	assert.Equal(t, []int{0, 1, -1, 0}, next)

	c.SelectItem(-1)
	var prev []int
	for range 4 {
		c.SelectPrevious()
		prev = append(prev, c.Selected())
	}
	assert.Equal(t, []int{1, 0, -1, 1}, prev)
}

func TestContainerSelectionOnEmptyList(t *testing.T) {
	c := NewTrayContainer(testStyle())
	assert.True(t, c.SelectNext().IsNone())
	assert.True(t, c.SelectPrevious().IsNone())
	assert.True(t, c.ClickSelected(config.ButtonLeft).IsNone())
}

func TestContainerClickSelected(t *testing.T) {
	c := containerWith("a", "b")
	assert.True(t, c.ClickSelected(config.ButtonLeft).IsNone(), "nothing selected")

	c.SelectItem(1)
	effect := c.ClickSelected(config.ButtonRight)
	require.Equal(t, ui.KindAction, effect.Kind())
	assert.Equal(t, ui.Click{
		Window: 0x501,
		Button: xproto.ButtonIndex3,
		State:  xproto.ButtonMask3,
	}, effect.Action())
}

func TestContainerLayout(t *testing.T) {
	style := testStyle()

	empty := NewTrayContainer(style).Layout(geom.Size{Width: 480})
	assert.Equal(t, geom.Size{Width: 480, Height: style.ItemHeight()}, empty.Size)
	assert.Empty(t, empty.Children)

	layout := containerWith("a", "b", "c").Layout(geom.Size{Width: 480})
	// 8 padding, three 40px items with two 8px gaps, 8 padding.
	assert.Equal(t, geom.Size{Width: 480, Height: 8 + 40*3 + 8*2 + 8}, layout.Size)
	require.Len(t, layout.Children, 3)
	for i, child := range layout.Children {
		assert.Equal(t, geom.Point{X: 8, Y: 8 + float64(i)*48}, child.Position)
		// Inset by padding and border on both sides.
		assert.Equal(t, geom.Size{Width: 480 - 20, Height: 40}, child.Layout.Size)
	}
}

func TestContainerLayoutIsPure(t *testing.T) {
	c := containerWith("a", "b")
	assert.True(t, c.Layout(geom.Size{Width: 300}).Equal(c.Layout(geom.Size{Width: 300})))
}

func TestContainerRenderPlaceholder(t *testing.T) {
	c := NewTrayContainer(testStyle())
	ctx := &recordingContext{}
	c.Render(geom.ZeroPoint, c.Layout(geom.Size{Width: 480}), 0, ctx)

	require.Len(t, ctx.ops, 3)
	assert.Equal(t, "rect", ctx.ops[0].op)
	assert.Equal(t, "stroke", ctx.ops[1].op)
	assert.Equal(t, []string{placeholder}, ctx.texts())
	assert.Equal(t, geom.Rect{X: 8, Width: 464, Height: 40}, ctx.ops[2].rect)
}

func TestContainerRenderItems(t *testing.T) {
	c := containerWith("Skype", "Dropbox")
	c.SelectItem(1)
	style := testStyle()

	ctx := &recordingContext{}
	c.Render(geom.ZeroPoint, c.Layout(geom.Size{Width: 480}), 0, ctx)

	assert.Equal(t, []string{"1. Skype", "2. Dropbox"}, ctx.texts())

	var backgrounds []color.Color
	for _, op := range ctx.ops {
		if op.op == "rounded" {
			backgrounds = append(backgrounds, op.color)
		}
	}
	assert.Equal(t, []color.Color{style.NormalItemBackground, style.SelectedItemBackground}, backgrounds)
	assert.Empty(t, ctx.actions, "icons not embedded yet are not placed")
}

func TestItemRenderWithoutIndexOrCorners(t *testing.T) {
	style := testStyle()
	style.ShowIndex = false
	style.ItemCornerRadius = 0
	item := NewTrayItem(icon(0x500, "Skype"), style)

	ctx := &recordingContext{}
	item.Render(geom.Point{X: 8, Y: 8}, item.Layout(geom.Size{Width: 460}), 3, ctx)

	require.Len(t, ctx.ops, 2)
	assert.Equal(t, "rect", ctx.ops[0].op)
	assert.Equal(t, "Skype", ctx.ops[1].text)
	// Text starts after the icon and two paddings.
	assert.Equal(t, geom.Rect{X: 8 + 24 + 16, Y: 8, Width: 460 - (24 + 24), Height: 40}, ctx.ops[1].rect)
}

func TestContainerOnResizeRecenters(t *testing.T) {
	c := NewTrayContainer(testStyle())
	effect := c.OnResize(
		geom.PhysicalPoint{X: 100, Y: 100},
		geom.PhysicalSize{Width: 480, Height: 40},
		geom.PhysicalSize{Width: 480, Height: 88},
	)

	children := effect.Children()
	require.Len(t, children, 2)
	size := geom.PhysicalSize{Width: 480, Height: 88}
	assert.Equal(t, ui.SetSizeHints{Min: size, Max: size}, children[0].Action())
	assert.Equal(t, ui.ConfigureWindow{
		Changes: x11.Geometry(geom.PhysicalRect{X: 100, Y: 76, Width: 480, Height: 88}),
	}, children[1].Action())
}

func TestItemClickOnPressAndRelease(t *testing.T) {
	c := containerWith("a", "b")
	layout := c.Layout(geom.Size{Width: 480})

	// Second row spans y 56..96.
	press := xproto.ButtonPressEvent{Detail: 3, EventX: 20, EventY: 60}
	release := xproto.ButtonReleaseEvent{Detail: 3, State: xproto.ButtonMask3, EventX: 30, EventY: 70}

	assert.True(t, c.OnEvent(press, geom.ZeroPoint, layout).IsNone())
	effect := c.OnEvent(release, geom.ZeroPoint, layout)
	require.Equal(t, ui.KindAction, effect.Kind())
	assert.Equal(t, ui.Click{Window: 0x501, Button: 3, State: xproto.ButtonMask3}, effect.Action())
}

func TestItemClickOnSharedEdgeHitsOneItem(t *testing.T) {
	c := NewTrayContainer(testStyle())
	c.style.ItemGap = 0
	c.AddItem(icon(0x500, "a"))
	c.AddItem(icon(0x501, "b"))
	layout := c.Layout(geom.Size{Width: 480})

	first, second := layout.Children[0], layout.Children[1]
	require.Equal(t, first.Position.Y+first.Layout.Size.Height, second.Position.Y)
	edge := int16(second.Position.Y)

	c.OnEvent(xproto.ButtonPressEvent{Detail: 1, EventX: 20, EventY: edge}, geom.ZeroPoint, layout)
	effect := c.OnEvent(xproto.ButtonReleaseEvent{Detail: 1, EventX: 20, EventY: edge}, geom.ZeroPoint, layout)
	require.Equal(t, ui.KindAction, effect.Kind())
	assert.Equal(t, xproto.Window(0x501), effect.Action().(ui.Click).Window)
}

func TestItemReleaseOutsideCancelsClick(t *testing.T) {
	c := containerWith("a")
	layout := c.Layout(geom.Size{Width: 480})

	c.OnEvent(xproto.ButtonPressEvent{Detail: 1, EventX: 20, EventY: 20}, geom.ZeroPoint, layout)
	effect := c.OnEvent(xproto.ButtonReleaseEvent{Detail: 1, EventX: 20, EventY: 200}, geom.ZeroPoint, layout)
	assert.True(t, effect.IsNone())

	// The press was consumed; a later release inside does nothing.
	effect = c.OnEvent(xproto.ButtonReleaseEvent{Detail: 1, EventX: 20, EventY: 20}, geom.ZeroPoint, layout)
	assert.True(t, effect.IsNone())
}

func TestItemLeaveCancelsPress(t *testing.T) {
	c := containerWith("a")
	layout := c.Layout(geom.Size{Width: 480})

	c.OnEvent(xproto.ButtonPressEvent{Detail: 1, EventX: 20, EventY: 20}, geom.ZeroPoint, layout)
	c.OnEvent(xproto.LeaveNotifyEvent{}, geom.ZeroPoint, layout)
	effect := c.OnEvent(xproto.ButtonReleaseEvent{Detail: 1, EventX: 20, EventY: 20}, geom.ZeroPoint, layout)
	assert.True(t, effect.IsNone())
}

func TestButtonCodes(t *testing.T) {
	tests := []struct {
		button config.MouseButton
		index  xproto.Button
		mask   uint16
	}{
		{config.ButtonLeft, 1, xproto.ButtonMask1},
		{config.ButtonMiddle, 2, xproto.ButtonMask2},
		{config.ButtonRight, 3, xproto.ButtonMask3},
		{config.ButtonX1, 4, xproto.ButtonMask4},
		{config.ButtonX2, 5, xproto.ButtonMask5},
	}
	for _, tt := range tests {
		t.Run(tt.button.String(), func(t *testing.T) {
			index, mask := buttonCodes(tt.button)
			assert.Equal(t, tt.index, index)
			assert.Equal(t, tt.mask, mask)
		})
	}
}
