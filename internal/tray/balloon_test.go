package tray

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bnema/keytray/internal/x11"
)

func TestBalloonWriteClampsToRemaining(t *testing.T) {
	msg := newBalloonMessage(0, 25, 1)

	msg.write([]byte("0123456789abcdefghijKLMNOP"))
	assert.Equal(t, 20, len(msg.Bytes()), "one chunk carries at most 20 bytes")

	msg.write([]byte("vwxyz-trailing-padding"))
	assert.True(t, msg.Complete())
	assert.Equal(t, "0123456789abcdefghijvwxyz", msg.Text())

	msg.write([]byte("overflow"))
	assert.Equal(t, 25, len(msg.Bytes()))
	assert.Equal(t, 0, msg.Remaining())
}

func TestBalloonTextReplacesInvalidUTF8(t *testing.T) {
	msg := newBalloonMessage(0, 3, 1)
	msg.write([]byte{'o', 0xff, 'k'})
	assert.Equal(t, "o�k", msg.Text())
}

func TestColorsPropertyOrder(t *testing.T) {
	colors := Colors{
		Normal:  color.RGBA{R: 0xff, A: 0xff},
		Error:   color.RGBA{G: 0xff, A: 0xff},
		Warning: color.RGBA{B: 0xff, A: 0xff},
		Success: nil,
	}
	assert.Equal(t, []uint32{
		0xffff, 0, 0,
		0, 0xffff, 0,
		0, 0, 0xffff,
		0, 0, 0,
	}, x11.ReadUint32s(colors.property()))
}

func TestXEmbedInfoMapped(t *testing.T) {
	assert.True(t, XEmbedInfo{Flags: 1}.Mapped())
	assert.True(t, XEmbedInfo{Flags: 3}.Mapped())
	assert.False(t, XEmbedInfo{Flags: 2}.Mapped())
}
