package app

import (
	"fmt"

	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog/log"

	"github.com/bnema/keytray/internal/config"
	"github.com/bnema/keytray/internal/x11"
)

type hotkeyKey struct {
	mods uint16
	code xproto.Keycode
}

// Hotkeys maps key combinations to command lists. Caps Lock and Num Lock
// never take part in a match.
type Hotkeys struct {
	table map[hotkeyKey][]config.Command
	locks uint16
}

// NewHotkeys resolves every hotkey against the keyboard mapping. Later
// bindings of the same combination replace earlier ones.
func NewHotkeys(kb x11.Keyboard, hotkeys ...[]config.Hotkey) (*Hotkeys, error) {
	h := &Hotkeys{table: make(map[hotkeyKey][]config.Command)}
	for _, mask := range kb.LockMasks() {
		h.locks |= mask
	}
	for _, list := range hotkeys {
		for _, hk := range list {
			mods, codes, err := kb.ParseKey(hk.Key)
			if err != nil {
				return nil, fmt.Errorf("hotkey %q: %w", hk.Key, err)
			}
			for _, code := range codes {
				h.table[h.key(mods, code)] = hk.Commands
			}
		}
	}
	return h, nil
}

func (h *Hotkeys) key(state uint16, code xproto.Keycode) hotkeyKey {
	// Only the eight modifier bits; the rest of a key event's state is
	// pointer buttons.
	return hotkeyKey{mods: state &^ h.locks & 0xff, code: code}
}

// Lookup returns the commands bound to code with the modifier state of a
// key event.
func (h *Hotkeys) Lookup(state uint16, code xproto.Keycode) []config.Command {
	return h.table[h.key(state, code)]
}

func (h *Hotkeys) Len() int { return len(h.table) }

// GrabGlobal grabs every global hotkey on win under all lock combinations so
// it fires with Caps Lock or Num Lock on.
func GrabGlobal(kb x11.Keyboard, win xproto.Window, hotkeys []config.Hotkey) error {
	combos := lockCombinations(kb.LockMasks())
	for _, hk := range hotkeys {
		mods, codes, err := kb.ParseKey(hk.Key)
		if err != nil {
			return fmt.Errorf("global hotkey %q: %w", hk.Key, err)
		}
		for _, code := range codes {
			for _, locks := range combos {
				if err := kb.GrabKey(win, mods|locks, code); err != nil {
					return fmt.Errorf("grab global hotkey %q: %w", hk.Key, err)
				}
			}
		}
		log.Debug().Str("key", hk.Key).Msg("grabbed global hotkey")
	}
	return nil
}

// lockCombinations returns every subset of masks OR-ed together, starting
// with no locks.
func lockCombinations(masks []uint16) []uint16 {
	combos := []uint16{0}
	for _, mask := range masks {
		for _, c := range combos {
			combos = append(combos, c|mask)
		}
	}
	return combos
}
