package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
	assert.Equal(t, 40.0, cfg.UI.ItemHeight())
	assert.Equal(t, []Hotkey{{Key: "Mod4-grave", Commands: []Command{{Kind: ToggleWindow}}}}, cfg.GlobalHotkeys)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# empty\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
log_level: debug
window:
  width: 320
  override_redirect: true
ui:
  show_index: false
  selected_item_background: "#ff000080"
  font:
    family: Noto Sans
    size: 10
hotkeys:
  - key: Control-j
    commands: [SelectNextItem, "ClickMouseButton Right", "SelectItem 3", HideWindow]
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 320.0, cfg.Window.Width)
	assert.True(t, cfg.Window.OverrideRedirect)
	assert.True(t, cfg.Window.AutoClose, "unset fields keep their defaults")
	assert.Equal(t, "KeyTray", cfg.Window.Name)
	assert.False(t, cfg.UI.ShowIndex)
	assert.Equal(t, Color{R: 0xff, A: 0x80}, cfg.UI.SelectedItemBackground)
	assert.Equal(t, "Noto Sans", cfg.UI.Font.Family)
	assert.Equal(t, "normal", cfg.UI.Font.Weight)

	require.Len(t, cfg.Hotkeys, 1, "a hotkey list replaces the defaults")
	assert.Equal(t, []Command{
		{Kind: SelectNextItem},
		{Kind: ClickMouseButton, Button: ButtonRight},
		{Kind: SelectItem, Index: 3},
		{Kind: HideWindow},
	}, cfg.Hotkeys[0].Commands)
	assert.Len(t, cfg.GlobalHotkeys, 1)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "window:\n  widht: 10\n"))
	assert.ErrorContains(t, err, "widht")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown command", "hotkeys:\n  - key: a\n    commands: [Explode]\n", `unknown command "Explode"`},
		{"bad button", "hotkeys:\n  - key: a\n    commands: [ClickMouseButton Wheel]\n", `unknown button "Wheel"`},
		{"bad color", "ui:\n  border_color: red\n", `invalid color "red"`},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"zero width", "window:\n  width: 0\n", "window.width"},
		{"negative gap", "ui:\n  item_gap: -1\n", "ui.item_gap"},
		{"empty key", "global_hotkeys:\n  - key: ''\n    commands: [ToggleWindow]\n", "global_hotkeys[0].key"},
		{"no commands", "hotkeys:\n  - key: a\n    commands: []\n", "hotkeys[0].commands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidationErrorUnwraps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UI.IconSize = 0

	err := cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "ui.icon_size", verr.Path)
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := DefaultConfig().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "#1c95e6")
	assert.Contains(t, string(data), "- ClickMouseButton Left")

	cfg, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    Command
		wantErr bool
	}{
		{in: "HideWindow", want: Command{Kind: HideWindow}},
		{in: "togglewindow", want: Command{Kind: ToggleWindow}},
		{in: "SelectItem 0", want: Command{Kind: SelectItem}},
		{in: "ClickMouseButton x2", want: Command{Kind: ClickMouseButton, Button: ButtonX2}},
		{in: "SelectItem", wantErr: true},
		{in: "SelectItem -1", wantErr: true},
		{in: "HideWindow now", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#1c95e6")
	require.NoError(t, err)
	assert.Equal(t, RGB(0x1c95e6), c)
	assert.Equal(t, "#1c95e6", c.String())

	c, err = ParseColor("#00000000")
	require.NoError(t, err)
	r, g, b, a := c.RGBA()
	assert.Equal(t, [4]uint32{0, 0, 0, 0}, [4]uint32{r, g, b, a})
	assert.Equal(t, "#00000000", c.String())

	_, err = ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("#gggggg")
	assert.Error(t, err)
}

func TestDefaultConfigPathHonoursXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/keytray/config.yaml", path)
}
