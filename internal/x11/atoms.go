package x11

import (
	"fmt"

	"github.com/jezek/xgb/xproto"
)

type Atoms struct {
	TraySelection   xproto.Atom
	TrayOpcode      xproto.Atom
	TrayMessageData xproto.Atom
	TrayOrientation xproto.Atom
	TrayVisual      xproto.Atom
	TrayColors      xproto.Atom
	Manager         xproto.Atom
	XEmbed          xproto.Atom
	XEmbedInfo      xproto.Atom
	WMName          xproto.Atom
	NetWMName       xproto.Atom
	UTF8String      xproto.Atom
	WMProtocols     xproto.Atom
	WMDeleteWindow  xproto.Atom
	NetWMPing       xproto.Atom
	NetWMSyncReq    xproto.Atom
}

// SelectionName is the per-screen tray selection, e.g. _NET_SYSTEM_TRAY_S0.
func SelectionName(screen int) string {
	return fmt.Sprintf("_NET_SYSTEM_TRAY_S%d", screen)
}

// InternAtoms resolves every atom the tray uses, creating missing ones.
func InternAtoms(conn Conn) (*Atoms, error) {
	atoms := &Atoms{WMName: xproto.AtomWmName}
	table := []struct {
		name string
		dst  *xproto.Atom
	}{
		{SelectionName(conn.Screen().Num), &atoms.TraySelection},
		{"_NET_SYSTEM_TRAY_OPCODE", &atoms.TrayOpcode},
		{"_NET_SYSTEM_TRAY_MESSAGE_DATA", &atoms.TrayMessageData},
		{"_NET_SYSTEM_TRAY_ORIENTATION", &atoms.TrayOrientation},
		{"_NET_SYSTEM_TRAY_VISUAL", &atoms.TrayVisual},
		{"_NET_SYSTEM_TRAY_COLORS", &atoms.TrayColors},
		{"MANAGER", &atoms.Manager},
		{"_XEMBED", &atoms.XEmbed},
		{"_XEMBED_INFO", &atoms.XEmbedInfo},
		{"_NET_WM_NAME", &atoms.NetWMName},
		{"UTF8_STRING", &atoms.UTF8String},
		{"WM_PROTOCOLS", &atoms.WMProtocols},
		{"WM_DELETE_WINDOW", &atoms.WMDeleteWindow},
		{"_NET_WM_PING", &atoms.NetWMPing},
		{"_NET_WM_SYNC_REQUEST", &atoms.NetWMSyncReq},
	}
	for _, entry := range table {
		atom, err := conn.Atom(entry.name)
		if err != nil {
			return nil, err
		}
		*entry.dst = atom
	}
	return atoms, nil
}
