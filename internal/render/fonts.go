package render

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/BurntSushi/freetype-go/freetype/truetype"
	"github.com/jezek/xgbutil/xgraphics"
	"github.com/rs/zerolog/log"

	"github.com/bnema/keytray/internal/ui"
)

// DefaultFontDirs are scanned for TrueType files when no explicit font file
// is configured.
func DefaultFontDirs() []string {
	dirs := []string{"/usr/share/fonts", "/usr/local/share/fonts"}
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		dirs = append(dirs, filepath.Join(data, "fonts"))
	} else if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "fonts"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".fonts"))
	}
	return dirs
}

// Fonts resolves font descriptions to parsed TrueType faces.
type Fonts struct {
	path  string
	dirs  []string
	index map[string]string
	faces map[string]*truetype.Font
	bad   map[ui.FontDescription]bool
}

// NewFonts returns a resolver. A non-empty path is used for every
// description; otherwise files under dirs are matched by name.
func NewFonts(path string, dirs ...string) *Fonts {
	return &Fonts{
		path:  path,
		dirs:  dirs,
		faces: make(map[string]*truetype.Font),
		bad:   make(map[ui.FontDescription]bool),
	}
}

// warn logs a font failure once per description.
func (f *Fonts) warn(desc ui.FontDescription, err error) {
	if f.bad[desc] {
		return
	}
	f.bad[desc] = true
	log.Warn().Err(err).Str("family", desc.Family).Msg("text will not be drawn")
}

// Face returns the parsed face for desc.
func (f *Fonts) Face(desc ui.FontDescription) (*truetype.Font, error) {
	path, err := f.Resolve(desc)
	if err != nil {
		return nil, err
	}
	if face, ok := f.faces[path]; ok {
		return face, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open font: %w", err)
	}
	defer file.Close()

	face, err := xgraphics.ParseFont(file)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	f.faces[path] = face
	return face, nil
}

// Resolve finds the file for desc. Exact style matches win; otherwise the
// regular face of the family, then any face of it.
func (f *Fonts) Resolve(desc ui.FontDescription) (string, error) {
	if f.path != "" {
		return f.path, nil
	}
	if f.index == nil {
		f.index = scanFonts(f.dirs)
	}

	family := normalize(desc.Family)
	if family == "" {
		family = "dejavusans"
	}
	for _, key := range candidates(family, desc) {
		if path, ok := f.index[key]; ok {
			return path, nil
		}
	}
	keys := slices.Sorted(maps.Keys(f.index))
	for _, key := range keys {
		if strings.HasPrefix(key, family) {
			return f.index[key], nil
		}
	}
	return "", fmt.Errorf("no font file for family %q", desc.Family)
}

func candidates(family string, desc ui.FontDescription) []string {
	var suffix string
	switch w := normalize(desc.Weight); w {
	case "", "normal", "regular", "book":
	default:
		suffix += w
	}
	switch s := normalize(desc.Style); s {
	case "italic", "oblique":
		suffix += s
	}
	if st := normalize(desc.Stretch); st != "" && st != "normal" {
		family += st
	}

	if suffix == "" {
		return []string{family, family + "regular", family + "book", family + "roman"}
	}
	return []string{family + suffix}
}

func scanFonts(dirs []string) map[string]string {
	index := make(map[string]string)
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && path != dir {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".ttf") {
				return nil
			}
			key := normalize(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
			if _, dup := index[key]; !dup {
				index[key] = path
			}
			return nil
		})
		if err != nil {
			log.Debug().Err(err).Str("dir", dir).Msg("font scan failed")
		}
	}
	return index
}

// normalize lowercases s and drops everything but letters and digits, so
// "DejaVu Sans" and "DejaVuSans-Bold" compare by their letters only.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
