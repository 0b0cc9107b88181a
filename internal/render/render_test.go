package render

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/keytray/internal/geom"
	"github.com/bnema/keytray/internal/ui"
)

// tenPerRune measures every rune as ten pixels wide.
func tenPerRune(s string) int {
	return len([]rune(s)) * 10
}

func TestEllipsize(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "firefox", 70, "firefox"},
		{"shortened", "firefox", 60, "fir..."},
		{"only ellipsis", "firefox", 30, "..."},
		{"nothing fits", "firefox", 20, ""},
		{"multibyte", "ÄÖÜäöü", 50, "ÄÖ..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ellipsize(tt.in, tt.width, tenPerRune))
		})
	}
}

func TestAlign(t *testing.T) {
	r := image.Rect(10, 20, 110, 60)

	assert.Equal(t, 10, alignX(ui.AlignLeft, r, 30))
	assert.Equal(t, 45, alignX(ui.AlignCenter, r, 30))
	assert.Equal(t, 80, alignX(ui.AlignRight, r, 30))

	assert.Equal(t, 20, alignY(ui.AlignTop, r, 10))
	assert.Equal(t, 35, alignY(ui.AlignMiddle, r, 10))
	assert.Equal(t, 50, alignY(ui.AlignBottom, r, 10))
}

func TestRoundedMask(t *testing.T) {
	mask := newRoundedMask(image.Rect(0, 0, 20, 10), geom.Size{Width: 4, Height: 4})

	opaque := func(x, y int) bool {
		return mask.At(x, y).(color.Alpha16).A == 0xffff
	}
	assert.False(t, opaque(0, 0), "corner pixel is cut")
	assert.False(t, opaque(19, 9))
	assert.True(t, opaque(10, 5), "center")
	assert.True(t, opaque(0, 5), "straight left edge")
	assert.True(t, opaque(10, 0), "straight top edge")
	assert.False(t, opaque(25, 5), "outside")
}

func TestRoundedMaskClampsRadius(t *testing.T) {
	mask := newRoundedMask(image.Rect(0, 0, 10, 6), geom.Size{Width: 100, Height: -1})
	assert.Equal(t, 5.0, mask.rx)
	assert.Equal(t, 0.0, mask.ry)
	assert.Equal(t, color.Opaque, mask.At(0, 0), "no vertical radius means square corners")
}

func TestBoundsSnaps(t *testing.T) {
	assert.Equal(t, image.Rect(2, 3, 12, 23), bounds(geom.Rect{X: 1.6, Y: 3.2, Width: 9.8, Height: 20}))
}

func writeFonts(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	sub := filepath.Join(dir, "truetype", "dejavu")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(sub, name), nil, 0o644))
	}
	return dir
}

func TestResolveFont(t *testing.T) {
	dir := writeFonts(t,
		"DejaVuSans.ttf",
		"DejaVuSans-Bold.ttf",
		"DejaVuSans-BoldOblique.ttf",
		"DejaVuSansCondensed.ttf",
		"NotoSerif-Regular.ttf",
		"readme.txt",
	)
	fonts := NewFonts("", dir, filepath.Join(dir, "missing"))

	tests := []struct {
		name string
		desc ui.FontDescription
		want string
	}{
		{"regular", ui.FontDescription{Family: "DejaVu Sans"}, "DejaVuSans.ttf"},
		{"normal weight", ui.FontDescription{Family: "DejaVu Sans", Weight: "normal"}, "DejaVuSans.ttf"},
		{"bold", ui.FontDescription{Family: "DejaVu Sans", Weight: "bold"}, "DejaVuSans-Bold.ttf"},
		{"bold oblique", ui.FontDescription{Family: "DejaVu Sans", Weight: "Bold", Style: "oblique"}, "DejaVuSans-BoldOblique.ttf"},
		{"condensed", ui.FontDescription{Family: "DejaVu Sans", Stretch: "condensed"}, "DejaVuSansCondensed.ttf"},
		{"regular suffix", ui.FontDescription{Family: "Noto Serif"}, "NotoSerif-Regular.ttf"},
		{"default family", ui.FontDescription{}, "DejaVuSans.ttf"},
		{"missing style falls back to family", ui.FontDescription{Family: "Noto Serif", Weight: "black"}, "NotoSerif-Regular.ttf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := fonts.Resolve(tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, filepath.Base(path))
		})
	}

	_, err := fonts.Resolve(ui.FontDescription{Family: "Comic Sans"})
	assert.Error(t, err)
}

func TestResolveExplicitPath(t *testing.T) {
	fonts := NewFonts("/opt/fonts/custom.ttf")
	path, err := fonts.Resolve(ui.FontDescription{Family: "anything", Weight: "bold"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/fonts/custom.ttf", path)
}

func TestFaceReportsBrokenFiles(t *testing.T) {
	dir := writeFonts(t, "Broken.ttf")
	fonts := NewFonts("", dir)

	_, err := fonts.Face(ui.FontDescription{Family: "Broken"})
	assert.Error(t, err)
}
