// Package config loads the keytray YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel      string        `yaml:"log_level"`
	Window        Window        `yaml:"window"`
	UI            UI            `yaml:"ui"`
	Notifications Notifications `yaml:"notifications"`
	Hotkeys       []Hotkey      `yaml:"hotkeys"`
	GlobalHotkeys []Hotkey      `yaml:"global_hotkeys"`
}

type Window struct {
	Name             string  `yaml:"name"`
	Class            string  `yaml:"class"`
	Width            float64 `yaml:"width"`
	OverrideRedirect bool    `yaml:"override_redirect"`
	AutoClose        bool    `yaml:"auto_close"`
}

type Font struct {
	Family  string  `yaml:"family"`
	Weight  string  `yaml:"weight"`
	Style   string  `yaml:"style"`
	Stretch string  `yaml:"stretch"`
	Size    float64 `yaml:"size"`
	// Path forces a TrueType file instead of searching the font directories.
	Path string `yaml:"path,omitempty"`
}

type UI struct {
	ContainerPadding       float64 `yaml:"container_padding"`
	ItemPadding            float64 `yaml:"item_padding"`
	ItemGap                float64 `yaml:"item_gap"`
	IconSize               float64 `yaml:"icon_size"`
	ItemCornerRadius       float64 `yaml:"item_corner_radius"`
	ShowIndex              bool    `yaml:"show_index"`
	BorderSize             float64 `yaml:"border_size"`
	BorderColor            Color   `yaml:"border_color"`
	Font                   Font    `yaml:"font"`
	WindowBackground       Color   `yaml:"window_background"`
	WindowForeground       Color   `yaml:"window_foreground"`
	NormalItemBackground   Color   `yaml:"normal_item_background"`
	NormalItemForeground   Color   `yaml:"normal_item_foreground"`
	SelectedItemBackground Color   `yaml:"selected_item_background"`
	SelectedItemForeground Color   `yaml:"selected_item_foreground"`
}

// ItemHeight is the height of one list entry.
func (u UI) ItemHeight() float64 {
	return u.IconSize + u.ItemPadding*2
}

// Notifications controls forwarding of balloon messages to the desktop
// notification daemon.
type Notifications struct {
	Enabled bool   `yaml:"enabled"`
	AppName string `yaml:"app_name"`
	Icon    string `yaml:"icon"`
}

// Hotkey binds a key such as "Control-n" or "Mod4-grave" to commands run
// in order.
type Hotkey struct {
	Key      string    `yaml:"key"`
	Commands []Command `yaml:"commands"`
}

type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func hotkey(key string, commands ...Command) Hotkey {
	return Hotkey{Key: key, Commands: commands}
}

func DefaultConfig() *Config {
	hotkeys := make([]Hotkey, 0, 24)
	for i := 0; i < 9; i++ {
		hotkeys = append(hotkeys, hotkey(fmt.Sprint(i+1), Command{Kind: SelectItem, Index: i}))
	}
	hotkeys = append(hotkeys,
		hotkey("0", Command{Kind: DeselectItem}),
		hotkey("j", Command{Kind: SelectNextItem}),
		hotkey("Down", Command{Kind: SelectNextItem}),
		hotkey("Control-n", Command{Kind: SelectNextItem}),
		hotkey("k", Command{Kind: SelectPreviousItem}),
		hotkey("Up", Command{Kind: SelectPreviousItem}),
		hotkey("Control-p", Command{Kind: SelectPreviousItem}),
		hotkey("l", Command{Kind: ClickMouseButton, Button: ButtonLeft}),
		hotkey("Return", Command{Kind: ClickMouseButton, Button: ButtonLeft}),
		hotkey("h", Command{Kind: ClickMouseButton, Button: ButtonRight}),
		hotkey("Shift-Return", Command{Kind: ClickMouseButton, Button: ButtonRight}),
		hotkey("q", Command{Kind: HideWindow}),
		hotkey("Escape", Command{Kind: HideWindow}),
	)

	return &Config{
		LogLevel: "info",
		Window: Window{
			Name:      "KeyTray",
			Class:     "KeyTray",
			Width:     480,
			AutoClose: true,
		},
		UI: UI{
			ContainerPadding:       8,
			ItemPadding:            8,
			ItemGap:                8,
			IconSize:               24,
			ItemCornerRadius:       4,
			ShowIndex:              true,
			BorderSize:             2,
			BorderColor:            RGB(0x1c95e6),
			Font:                   Font{Family: "DejaVu Sans", Weight: "normal", Style: "normal", Stretch: "normal", Size: 12},
			WindowBackground:       RGB(0x21272b),
			WindowForeground:       RGB(0xe8eaeb),
			NormalItemBackground:   RGB(0x363f45),
			NormalItemForeground:   RGB(0xe8eaeb),
			SelectedItemBackground: RGB(0x1c95e6),
			SelectedItemForeground: RGB(0xe8eaeb),
		},
		Notifications: Notifications{
			Enabled: true,
			AppName: "keytray",
		},
		Hotkeys: hotkeys,
		GlobalHotkeys: []Hotkey{
			hotkey("Mod4-grave", Command{Kind: ToggleWindow}),
		},
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/keytray/config.yaml, falling back
// to ~/.config.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "keytray", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "keytray", "config.yaml"), nil
}

// Load reads the configuration at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := decodeStrictYAML(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Level is the parsed log_level.
func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil || c.LogLevel == "" {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: trace, debug, info, warn, error, disabled")}
	}
	if c.Window.Width <= 0 {
		return &ValidationError{Path: "window.width", Err: fmt.Errorf("width must be > 0")}
	}
	if strings.TrimSpace(c.Window.Class) == "" {
		return &ValidationError{Path: "window.class", Err: fmt.Errorf("class must not be empty")}
	}

	ui := c.UI
	if ui.IconSize <= 0 {
		return &ValidationError{Path: "ui.icon_size", Err: fmt.Errorf("icon_size must be > 0")}
	}
	if ui.Font.Size <= 0 {
		return &ValidationError{Path: "ui.font.size", Err: fmt.Errorf("size must be > 0")}
	}
	for name, v := range map[string]float64{
		"container_padding":  ui.ContainerPadding,
		"item_padding":       ui.ItemPadding,
		"item_gap":           ui.ItemGap,
		"item_corner_radius": ui.ItemCornerRadius,
		"border_size":        ui.BorderSize,
	} {
		if v < 0 {
			return &ValidationError{Path: "ui." + name, Err: fmt.Errorf("%s must be >= 0", name)}
		}
	}

	if err := validateHotkeys("hotkeys", c.Hotkeys); err != nil {
		return err
	}
	return validateHotkeys("global_hotkeys", c.GlobalHotkeys)
}

func validateHotkeys(path string, hotkeys []Hotkey) error {
	for i, h := range hotkeys {
		p := fmt.Sprintf("%s[%d]", path, i)
		if strings.TrimSpace(h.Key) == "" {
			return &ValidationError{Path: p + ".key", Err: fmt.Errorf("key must not be empty")}
		}
		if len(h.Commands) == 0 {
			return &ValidationError{Path: p + ".commands", Err: fmt.Errorf("at least one command is required")}
		}
	}
	return nil
}
