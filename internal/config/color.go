package config

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"

	"gopkg.in/yaml.v3"
)

// Color is a non-premultiplied color written as "#rrggbb" or "#rrggbbaa".
type Color color.NRGBA

// RGB builds an opaque color from 0xrrggbb.
func RGB(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA(c).RGBA()
}

func (c Color) String() string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func ParseColor(s string) (Color, error) {
	digits, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok || (len(digits) != 6 && len(digits) != 8) {
		return Color{}, fmt.Errorf("invalid color %q: want #rrggbb or #rrggbbaa", s)
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	c := Color{R: b[0], G: b[1], B: b[2], A: 0xff}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c, nil
}

func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = parsed
	return nil
}

func (c Color) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}
