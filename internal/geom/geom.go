// Package geom holds logical (floating) and physical (integer) geometry.
// Layout math uses the logical types; every X request uses the physical ones.
package geom

import "math"

type Point struct {
	X, Y float64
}

type Size struct {
	Width, Height float64
}

type Rect struct {
	X, Y          float64
	Width, Height float64
}

type PhysicalPoint struct {
	X, Y int32
}

type PhysicalSize struct {
	Width, Height uint32
}

type PhysicalRect struct {
	X, Y          int32
	Width, Height uint32
}

var ZeroPoint = Point{}

func NewRect(p Point, s Size) Rect {
	return Rect{X: p.X, Y: p.Y, Width: s.Width, Height: s.Height}
}

func (r Rect) Position() Point {
	return Point{X: r.X, Y: r.Y}
}

func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Inset shrinks the rect by d on every side. The size never goes negative.
func (r Rect) Inset(d float64) Rect {
	return Rect{
		X:      r.X + d,
		Y:      r.Y + d,
		Width:  math.Max(r.Width-d*2, 0),
		Height: math.Max(r.Height-d*2, 0),
	}
}

func (p Point) Snap() PhysicalPoint {
	return PhysicalPoint{X: int32(math.Round(p.X)), Y: int32(math.Round(p.Y))}
}

func (s Size) Snap() PhysicalSize {
	return PhysicalSize{Width: snapLength(s.Width), Height: snapLength(s.Height)}
}

func (r Rect) Snap() PhysicalRect {
	return PhysicalRect{
		X:      int32(math.Round(r.X)),
		Y:      int32(math.Round(r.Y)),
		Width:  snapLength(r.Width),
		Height: snapLength(r.Height),
	}
}

func (p PhysicalPoint) Unsnap() Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

func (s PhysicalSize) Unsnap() Size {
	return Size{Width: float64(s.Width), Height: float64(s.Height)}
}

func (r PhysicalRect) Unsnap() Rect {
	return Rect{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}

// Contains reports whether p lies inside r. The far edges belong to the
// next rect, so adjacent rects never share a pixel.
func (r PhysicalRect) Contains(p PhysicalPoint) bool {
	return r.X <= p.X && p.X < r.X+int32(r.Width) &&
		r.Y <= p.Y && p.Y < r.Y+int32(r.Height)
}

func snapLength(v float64) uint32 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return uint32(math.Round(v))
}
