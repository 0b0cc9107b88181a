package tray

import (
	"image/color"

	"github.com/bnema/keytray/internal/x11"
)

// Orientation is advertised in _NET_SYSTEM_TRAY_ORIENTATION.
type Orientation uint32

const (
	Horizontal Orientation = 0
	Vertical   Orientation = 1
)

// Colors is the symbolic icon palette advertised in _NET_SYSTEM_TRAY_COLORS.
type Colors struct {
	Normal  color.Color
	Error   color.Color
	Warning color.Color
	Success color.Color
}

// UniformColors uses c for every slot.
func UniformColors(c color.Color) Colors {
	return Colors{Normal: c, Error: c, Warning: c, Success: c}
}

// property encodes the palette as twelve CARDINALs, 16-bit channels in
// normal, error, warning, success order.
func (c Colors) property() []byte {
	values := make([]uint32, 0, 12)
	for _, col := range []color.Color{c.Normal, c.Error, c.Warning, c.Success} {
		if col == nil {
			col = color.Black
		}
		r, g, b, _ := col.RGBA()
		values = append(values, r, g, b)
	}
	return x11.Uint32s(values...)
}
