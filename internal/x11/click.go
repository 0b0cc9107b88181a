package x11

import (
	"fmt"

	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/geom"
)

// SendClick delivers a synthetic press and release of button to win at the
// window-relative point at. The pointer is moved over the target for the
// duration of the click so toolkits that re-query it see a consistent
// position, then put back.
func SendClick(conn Conn, win xproto.Window, at geom.PhysicalPoint, button xproto.Button, state uint16) error {
	screen := conn.Screen()

	savedX, savedY, err := conn.QueryPointer()
	if err != nil {
		return fmt.Errorf("query pointer: %w", err)
	}
	rootX, rootY, err := conn.TranslateCoordinates(win, screen.Root, int16(at.X), int16(at.Y))
	if err != nil {
		return fmt.Errorf("translate coordinates: %w", err)
	}
	if err := conn.WarpPointer(rootX, rootY); err != nil {
		return fmt.Errorf("warp pointer: %w", err)
	}

	press := xproto.ButtonPressEvent{
		Detail:     button,
		Time:       xproto.TimeCurrentTime,
		Root:       screen.Root,
		Event:      win,
		Child:      0,
		RootX:      rootX,
		RootY:      rootY,
		EventX:     int16(at.X),
		EventY:     int16(at.Y),
		State:      state,
		SameScreen: true,
	}
	release := xproto.ButtonReleaseEvent(press)

	if err := conn.SendEvent(win, false, xproto.EventMaskButtonPress, press); err != nil {
		return fmt.Errorf("send button press: %w", err)
	}
	if err := conn.SendEvent(win, false, xproto.EventMaskButtonRelease, release); err != nil {
		return fmt.Errorf("send button release: %w", err)
	}

	if err := conn.WarpPointer(savedX, savedY); err != nil {
		return fmt.Errorf("restore pointer: %w", err)
	}
	return conn.Flush()
}
