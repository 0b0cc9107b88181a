package app

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/keytray/internal/config"
	"github.com/bnema/keytray/internal/x11/x11test"
)

func TestHotkeysLaterBindingWins(t *testing.T) {
	conn := x11test.New()
	conn.BindKey("q", 0, 24)
	conn.BindKey("Control-q", xproto.ModMaskControl, 24)

	hide := []config.Command{{Kind: config.HideWindow}}
	toggle := []config.Command{{Kind: config.ToggleWindow}}
	next := []config.Command{{Kind: config.SelectNextItem}}

	h, err := NewHotkeys(conn,
		[]config.Hotkey{{Key: "q", Commands: hide}, {Key: "Control-q", Commands: next}},
		[]config.Hotkey{{Key: "q", Commands: toggle}},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, toggle, h.Lookup(0, 24))
	assert.Equal(t, next, h.Lookup(xproto.ModMaskControl|xproto.ModMaskLock, 24))
	// Pointer button state is not a modifier.
	assert.Equal(t, toggle, h.Lookup(xproto.KeyButMaskButton1, 24))
	assert.Nil(t, h.Lookup(xproto.ModMaskShift, 24))
	assert.Nil(t, h.Lookup(0, 25))
}

func TestHotkeysBindEveryKeycode(t *testing.T) {
	conn := x11test.New()
	conn.BindKey("Return", 0, 36, 104)

	h, err := NewHotkeys(conn, []config.Hotkey{{Key: "Return", Commands: []config.Command{{Kind: config.ShowWindow}}}})
	require.NoError(t, err)
	assert.NotNil(t, h.Lookup(0, 36))
	assert.NotNil(t, h.Lookup(0, 104))
}

func TestGrabGlobalFailsOnUnknownKey(t *testing.T) {
	conn := x11test.New()
	err := GrabGlobal(conn, x11test.RootWindow, []config.Hotkey{{Key: "Hyper-x"}})
	assert.ErrorContains(t, err, `global hotkey "Hyper-x"`)
	assert.Empty(t, conn.GrabbedKeys())
}

func TestLockCombinations(t *testing.T) {
	assert.Equal(t, []uint16{0}, lockCombinations(nil))
	assert.Equal(t, []uint16{0, 2, 16, 18}, lockCombinations([]uint16{xproto.ModMaskLock, xproto.ModMask2}))
}
