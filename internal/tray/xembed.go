package tray

import (
	"github.com/jezek/xgb/xproto"

	"github.com/bnema/keytray/internal/x11"
)

const (
	xembedEmbeddedNotify = 0
	xembedFlagMapped     = 1 << 0
)

// XEmbedInfo is the _XEMBED_INFO property of an icon window.
type XEmbedInfo struct {
	Version uint32
	Flags   uint32
}

// Mapped reports whether the client wants its window to be shown.
func (i XEmbedInfo) Mapped() bool {
	return i.Flags&xembedFlagMapped != 0
}

// readXEmbedInfo returns ok=false when the window carries no well-formed
// _XEMBED_INFO, meaning it does not speak the embedding protocol.
func readXEmbedInfo(conn x11.Conn, atoms *x11.Atoms, win xproto.Window) (info XEmbedInfo, ok bool, err error) {
	reply, err := conn.GetProperty(win, atoms.XEmbedInfo, xproto.GetPropertyTypeAny, 2)
	if err != nil {
		return XEmbedInfo{}, false, err
	}
	if reply == nil || reply.Format != 32 {
		return XEmbedInfo{}, false, nil
	}
	values := x11.ReadUint32s(reply.Value)
	if len(values) != 2 {
		return XEmbedInfo{}, false, nil
	}
	return XEmbedInfo{Version: values[0], Flags: values[1]}, true, nil
}
