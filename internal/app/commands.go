package app

import (
	"fmt"

	"github.com/bnema/keytray/internal/config"
)

// Execute runs one command. The result is false when the command had
// nothing to do, which stops the rest of a hotkey's command list.
func (a *App) Execute(cmd config.Command) (bool, error) {
	w := a.window
	container := w.Widget()

	switch cmd.Kind {
	case config.HideWindow:
		if !w.IsMapped() {
			return false, nil
		}
		return true, w.Hide()
	case config.ShowWindow:
		if w.IsMapped() {
			return false, nil
		}
		return true, w.Show()
	case config.ToggleWindow:
		if w.IsMapped() {
			return true, w.Hide()
		}
		return true, w.Show()
	case config.DeselectItem:
		return w.ApplyEffect(container.SelectItem(-1))
	case config.SelectItem:
		return w.ApplyEffect(container.SelectItem(cmd.Index))
	case config.SelectNextItem:
		return w.ApplyEffect(container.SelectNext())
	case config.SelectPreviousItem:
		return w.ApplyEffect(container.SelectPrevious())
	case config.ClickMouseButton:
		return w.ApplyEffect(container.ClickSelected(cmd.Button))
	}
	return false, fmt.Errorf("unknown command %s", cmd)
}
