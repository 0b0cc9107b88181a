// Package render draws widget frames into an off-screen xgraphics image and
// paints it as the window background on commit.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/xgraphics"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"

	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/ui"
)

const ellipsis = "..."

type composite struct {
	src  xproto.Window
	rect image.Rectangle
}

// Context is a ui.RenderContext for one frame.
type Context struct {
	xu    *xgbutil.XUtil
	win   xproto.Window
	img   *xgraphics.Image
	fonts *Fonts

	composites []composite
	actions    []ui.Action
}

var _ ui.RenderContext = (*Context)(nil)

func New(xu *xgbutil.XUtil, win xproto.Window, size geom.PhysicalSize, fonts *Fonts) *Context {
	return &Context{
		xu:    xu,
		win:   win,
		img:   xgraphics.New(xu, image.Rect(0, 0, int(size.Width), int(size.Height))),
		fonts: fonts,
	}
}

// NewFactory opens a Context per frame.
func NewFactory(xu *xgbutil.XUtil, fonts *Fonts) ui.ContextFactory {
	return func(win xproto.Window, size geom.PhysicalSize) (ui.RenderContext, error) {
		return New(xu, win, size, fonts), nil
	}
}

func (c *Context) FillRect(col color.Color, r geom.Rect) {
	draw.Draw(c.img, bounds(r), image.NewUniform(col), image.Point{}, draw.Over)
}

func (c *Context) FillRoundedRect(col color.Color, r geom.Rect, radius geom.Size) {
	rect := bounds(r)
	mask := newRoundedMask(rect, radius)
	draw.DrawMask(c.img, rect, image.NewUniform(col), image.Point{}, mask, rect.Min, draw.Over)
}

// StrokeRect draws a border of the given width inside r.
func (c *Context) StrokeRect(col color.Color, r geom.Rect, width float64) {
	rect := bounds(r)
	w := max(int(width+0.5), 1)
	src := image.NewUniform(col)
	for _, edge := range []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+w),
		image.Rect(rect.Min.X, rect.Max.Y-w, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y+w, rect.Min.X+w, rect.Max.Y-w),
		image.Rect(rect.Max.X-w, rect.Min.Y+w, rect.Max.X, rect.Max.Y-w),
	} {
		draw.Draw(c.img, edge.Intersect(rect), src, image.Point{}, draw.Over)
	}
}

func (c *Context) Text(col color.Color, r geom.Rect, text ui.Text) {
	if text.Content == "" {
		return
	}
	face, err := c.fonts.Face(text.Font)
	if err != nil {
		c.fonts.warn(text.Font, err)
		return
	}

	rect := bounds(r)
	measure := func(s string) int {
		w, _ := xgraphics.Extents(face, text.Size, s)
		return w
	}
	s := ellipsize(text.Content, rect.Dx(), measure)
	if s == "" {
		return
	}
	w, h := xgraphics.Extents(face, text.Size, s)
	x := alignX(text.HAlign, rect, w)
	y := alignY(text.VAlign, rect, h)
	if _, _, err := c.img.Text(x, y, col, text.Size, face, s); err != nil {
		c.fonts.warn(text.Font, err)
	}
}

// Image scales img into r.
func (c *Context) Image(r geom.Rect, img image.Image) {
	xdraw.ApproxBiLinear.Scale(c.img, bounds(r), img, img.Bounds(), xdraw.Over, nil)
}

// Composite copies the current contents of src into r once the pixel
// buffer has been uploaded.
func (c *Context) Composite(src xproto.Window, r geom.Rect) {
	c.composites = append(c.composites, composite{src: src, rect: bounds(r)})
}

func (c *Context) Schedule(action ui.Action) {
	c.actions = append(c.actions, action)
}

// Commit uploads the frame and returns the scheduled actions as one effect.
func (c *Context) Commit() (ui.Effect, error) {
	defer c.img.Destroy()

	if err := c.img.XSurfaceSet(c.win); err != nil {
		return ui.None(), fmt.Errorf("set surface: %w", err)
	}
	c.img.XDraw()
	// Icons of another depth fail with BadMatch and keep their own contents.
	if err := c.copyComposites(); err != nil {
		log.Debug().Err(err).Uint32("window", uint32(c.win)).Msg("failed to composite icons")
	}
	c.img.XPaint(c.win)

	var effect ui.Effect
	for _, a := range c.actions {
		effect = effect.Add(ui.Act(a))
	}
	return effect, nil
}

func (c *Context) copyComposites() error {
	if len(c.composites) == 0 {
		return nil
	}
	conn := c.xu.Conn()
	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		return fmt.Errorf("new gc id: %w", err)
	}
	dst := xproto.Drawable(c.img.Pixmap)
	if err := xproto.CreateGCChecked(conn, gc, dst, xproto.GcGraphicsExposures, []uint32{0}).Check(); err != nil {
		return fmt.Errorf("create gc: %w", err)
	}
	defer xproto.FreeGC(conn, gc)

	var errs []error
	for _, comp := range c.composites {
		err := xproto.CopyAreaChecked(conn, xproto.Drawable(comp.src), dst, gc,
			0, 0,
			int16(comp.rect.Min.X), int16(comp.rect.Min.Y),
			uint16(comp.rect.Dx()), uint16(comp.rect.Dy()),
		).Check()
		if err != nil {
			errs = append(errs, fmt.Errorf("composite window %d: %w", comp.src, err))
		}
	}
	return errors.Join(errs...)
}

func bounds(r geom.Rect) image.Rectangle {
	p := r.Snap()
	return image.Rect(int(p.X), int(p.Y), int(p.X)+int(p.Width), int(p.Y)+int(p.Height))
}

// ellipsize shortens s rune by rune until it fits in width with a trailing
// ellipsis. The result is empty when not even the ellipsis fits.
func ellipsize(s string, width int, measure func(string) int) string {
	if measure(s) <= width {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n >= 0; n-- {
		candidate := string(runes[:n]) + ellipsis
		if measure(candidate) <= width {
			return candidate
		}
	}
	return ""
}

func alignX(align ui.HorizontalAlign, r image.Rectangle, w int) int {
	switch align {
	case ui.AlignCenter:
		return r.Min.X + (r.Dx()-w)/2
	case ui.AlignRight:
		return r.Max.X - w
	}
	return r.Min.X
}

func alignY(align ui.VerticalAlign, r image.Rectangle, h int) int {
	switch align {
	case ui.AlignMiddle:
		return r.Min.Y + (r.Dy()-h)/2
	case ui.AlignBottom:
		return r.Max.Y - h
	}
	return r.Min.Y
}

// roundedMask is an alpha mask of a rectangle with elliptic corners.
type roundedMask struct {
	rect   image.Rectangle
	rx, ry float64
}

func newRoundedMask(rect image.Rectangle, radius geom.Size) roundedMask {
	return roundedMask{
		rect: rect,
		rx:   min(max(radius.Width, 0), float64(rect.Dx())/2),
		ry:   min(max(radius.Height, 0), float64(rect.Dy())/2),
	}
}

func (m roundedMask) ColorModel() color.Model { return color.AlphaModel }

func (m roundedMask) Bounds() image.Rectangle { return m.rect }

func (m roundedMask) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(m.rect) {
		return color.Transparent
	}
	if m.rx <= 0 || m.ry <= 0 {
		return color.Opaque
	}
	px, py := float64(x)+0.5, float64(y)+0.5
	cx := clamp(px, float64(m.rect.Min.X)+m.rx, float64(m.rect.Max.X)-m.rx)
	cy := clamp(py, float64(m.rect.Min.Y)+m.ry, float64(m.rect.Max.Y)-m.ry)
	dx, dy := (px-cx)/m.rx, (py-cy)/m.ry
	if dx*dx+dy*dy <= 1 {
		return color.Opaque
	}
	return color.Transparent
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
