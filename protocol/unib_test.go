package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16(t *testing.T) {
	assert.Equal(t, uint16(0x31C3), CRC16([]byte("123456789")))
	assert.Equal(t, uint16(0), CRC16(nil))
}

func TestEncodeHeaderBits(t *testing.T) {
	body := make([]byte, 34)
	frame := Encode(0x01020304, 0x5, TypeEstimate, body)
	require.Len(t, frame, UnibWrapLen+34)

	assert.Equal(t, []byte{0x57, 0x78, 0x04, 0x03, 0x02, 0x01}, frame[:6])
	assert.Equal(t, byte(0x5|26<<3), frame[6])
	assert.Equal(t, byte(3|2<<5), frame[7])
	assert.Equal(t, byte(4), frame[8])

	h, err := ParseHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, Header{Addr: 0x01020304, Flags: 5, Type: TypeEstimate, BodyLen: 34}, h)
}

func TestParseFrame(t *testing.T) {
	frame := Encode(42, 0, 0x3FF, []byte{1, 2, 3})
	f, err := ParseFrame(frame, true)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3FF), f.Type)
	assert.Equal(t, []byte{1, 2, 3}, f.Body)
	assert.Equal(t, len(frame), f.Len())
}

func TestParseFrameErrors(t *testing.T) {
	good := Encode(1, 0, TypeSpeed, []byte{0, 0, 0x80, 0x3F})

	_, err := ParseFrame(good[:5], true)
	assert.ErrorIs(t, err, ErrShortFrame)

	bad := append([]byte(nil), good...)
	bad[0] = 0
	_, err = ParseFrame(bad, true)
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = ParseFrame(good[:len(good)-1], true)
	assert.ErrorIs(t, err, ErrTruncated)

	corrupt := append([]byte(nil), good...)
	corrupt[UnibHdrLen] ^= 0xFF
	_, err = ParseFrame(corrupt, true)
	assert.ErrorIs(t, err, ErrCRC)
	_, err = ParseFrame(corrupt, false)
	assert.NoError(t, err)
}

func TestEncodePanicsOutOfRange(t *testing.T) {
	assert.Panics(t, func() { Encode(1, 0, MaxType+1, nil) })
	assert.Panics(t, func() { Encode(1, 0, 1, make([]byte, MaxBodyLen+1)) })
	assert.NotPanics(t, func() { Encode(1, 0, 1, make([]byte, MaxBodyLen)) })
}
