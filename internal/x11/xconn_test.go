package x11

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
)

func TestPropertyText(t *testing.T) {
	tests := []struct {
		name  string
		reply *xproto.GetPropertyReply
		want  string
	}{
		{"missing property", &xproto.GetPropertyReply{Format: 0}, ""},
		{"no reply", nil, ""},
		{"latin1 name", &xproto.GetPropertyReply{Format: 8, Value: []byte("nm-applet")}, "nm-applet"},
		{"trailing nul", &xproto.GetPropertyReply{Format: 8, Value: []byte("volume\x00")}, "volume"},
		{"wrong format", &xproto.GetPropertyReply{Format: 32, Value: []byte{1, 0, 0, 0}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, propertyText(tt.reply))
		})
	}
}
