package tray

import (
	"strings"
	"time"
)

const (
	// balloonChunkSize is the payload of one _NET_SYSTEM_TRAY_MESSAGE_DATA message.
	balloonChunkSize = 20
	// maxBalloonLength bounds the buffer a client can make us reserve.
	maxBalloonLength = 64 << 10
)

// BalloonMessage reassembles a notification an icon sends in 20-byte chunks.
type BalloonMessage struct {
	buf     []byte
	length  int
	timeout time.Duration
	id      uint32
}

func newBalloonMessage(timeoutMs, length, id uint32) *BalloonMessage {
	return &BalloonMessage{
		buf:     make([]byte, 0, length),
		length:  int(length),
		timeout: time.Duration(timeoutMs) * time.Millisecond,
		id:      id,
	}
}

// ID is the sender-chosen identifier used by cancel requests.
func (b *BalloonMessage) ID() uint32 {
	return b.id
}

// Timeout is how long the sender asked the message to be displayed. Zero
// means no timeout.
func (b *BalloonMessage) Timeout() time.Duration {
	return b.timeout
}

// Len is the declared total length.
func (b *BalloonMessage) Len() int {
	return b.length
}

// Remaining is the number of bytes still expected.
func (b *BalloonMessage) Remaining() int {
	return b.length - len(b.buf)
}

// Complete reports whether every declared byte has arrived.
func (b *BalloonMessage) Complete() bool {
	return b.Remaining() == 0
}

// Bytes returns the bytes received so far.
func (b *BalloonMessage) Bytes() []byte {
	return b.buf
}

// Text returns the payload as UTF-8, replacing invalid sequences.
func (b *BalloonMessage) Text() string {
	return strings.ToValidUTF8(string(b.buf), "\uFFFD")
}

// write appends one chunk, never past the declared length.
func (b *BalloonMessage) write(chunk []byte) {
	n := min(len(chunk), balloonChunkSize, b.Remaining())
	if n <= 0 {
		return
	}
	b.buf = append(b.buf, chunk[:n]...)
}
