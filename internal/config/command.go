package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type CommandKind int

const (
	HideWindow CommandKind = iota
	ShowWindow
	ToggleWindow
	DeselectItem
	SelectItem
	SelectNextItem
	SelectPreviousItem
	ClickMouseButton
)

var commandNames = map[CommandKind]string{
	HideWindow:         "HideWindow",
	ShowWindow:         "ShowWindow",
	ToggleWindow:       "ToggleWindow",
	DeselectItem:       "DeselectItem",
	SelectItem:         "SelectItem",
	SelectNextItem:     "SelectNextItem",
	SelectPreviousItem: "SelectPreviousItem",
	ClickMouseButton:   "ClickMouseButton",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

type MouseButton int

const (
	ButtonLeft MouseButton = iota + 1
	ButtonMiddle
	ButtonRight
	ButtonX1
	ButtonX2
)

var buttonNames = map[MouseButton]string{
	ButtonLeft:   "Left",
	ButtonMiddle: "Middle",
	ButtonRight:  "Right",
	ButtonX1:     "X1",
	ButtonX2:     "X2",
}

func (b MouseButton) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("MouseButton(%d)", int(b))
}

// Command is one step of a hotkey. Index is the zero-based item for
// SelectItem, Button the button for ClickMouseButton.
type Command struct {
	Kind   CommandKind
	Index  int
	Button MouseButton
}

func (c Command) String() string {
	switch c.Kind {
	case SelectItem:
		return fmt.Sprintf("%s %d", c.Kind, c.Index)
	case ClickMouseButton:
		return fmt.Sprintf("%s %s", c.Kind, c.Button)
	}
	return c.Kind.String()
}

// ParseCommand reads the textual form, e.g. "SelectItem 2" or
// "ClickMouseButton Right".
func ParseCommand(s string) (Command, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	kind, ok := lookup(commandNames, fields[0])
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	args := fields[1:]

	cmd := Command{Kind: kind}
	switch kind {
	case SelectItem:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%s takes an item index", kind)
		}
		index, err := strconv.Atoi(args[0])
		if err != nil || index < 0 {
			return Command{}, fmt.Errorf("%s: invalid index %q", kind, args[0])
		}
		cmd.Index = index
	case ClickMouseButton:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%s takes a button name", kind)
		}
		button, ok := lookup(buttonNames, args[0])
		if !ok {
			return Command{}, fmt.Errorf("%s: unknown button %q", kind, args[0])
		}
		cmd.Button = button
	default:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", kind)
		}
	}
	return cmd, nil
}

func lookup[K comparable](names map[K]string, s string) (K, bool) {
	for k, name := range names {
		if strings.EqualFold(name, s) {
			return k, true
		}
	}
	var zero K
	return zero, false
}

func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	cmd, err := ParseCommand(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = cmd
	return nil
}

func (c Command) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}
