// Package protocol implements UNIB framing and the sensor and estimate
// messages carried in it.
//
// A frame is a 9-byte header, the body and a little-endian CRC16 over
// header and body:
//
//	0..1  magic 0x7857
//	2..5  addr (vehicle id)
//	6     flags:3 | typ_low:5
//	7     typ_high:5 | len_low:3
//	8     len_high
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	UnibMagic   = 0x7857 // 'W' 'x' little endian
	UnibHdrLen  = 9
	UnibWrapLen = 11 // header + crc

	MaxBodyLen = 1<<11 - 1
	MaxType    = 1<<10 - 1

	// FlagSeconds marks a body prefixed with one byte of seconds, set on
	// frames relayed by a gateway.
	FlagSeconds = 0x2
)

var (
	ErrShortFrame = errors.New("protocol: frame too short")
	ErrBadMagic   = errors.New("protocol: bad magic")
	ErrTruncated  = errors.New("protocol: body truncated")
	ErrCRC        = errors.New("protocol: crc mismatch")
)

type Header struct {
	Addr    uint32
	Flags   uint8
	Type    uint16
	BodyLen int
}

// Frame is one decoded UNIB frame. Body aliases the input buffer.
type Frame struct {
	Header
	Body []byte
}

// Len is the encoded size of the frame.
func (f Frame) Len() int { return UnibWrapLen + len(f.Body) }

// ParseHeader parses the UNIB header at the beginning of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < UnibHdrLen {
		return Header{}, ErrShortFrame
	}
	if magic := binary.LittleEndian.Uint16(data[0:2]); magic != UnibMagic {
		return Header{}, fmt.Errorf("%w: 0x%04x", ErrBadMagic, magic)
	}
	b6, b7, b8 := data[6], data[7], data[8]
	typLow := uint16(b6 >> 3)
	typHigh := uint16(b7 & 0x1F)
	lenLow := int(b7 >> 5)
	lenHigh := int(b8)
	return Header{
		Addr:    binary.LittleEndian.Uint32(data[2:6]),
		Flags:   b6 & 0x7,
		Type:    typLow | typHigh<<5,
		BodyLen: lenLow | lenHigh<<3,
	}, nil
}

// ParseFrame parses one complete frame at the beginning of data.
func ParseFrame(data []byte, verifyCRC bool) (Frame, error) {
	if len(data) < UnibWrapLen {
		return Frame{}, ErrShortFrame
	}
	h, err := ParseHeader(data)
	if err != nil {
		return Frame{}, err
	}
	end := UnibHdrLen + h.BodyLen
	if end+2 > len(data) {
		return Frame{}, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, end+2, len(data))
	}
	if verifyCRC {
		want := binary.LittleEndian.Uint16(data[end : end+2])
		if got := CRC16(data[:end]); got != want {
			return Frame{}, fmt.Errorf("%w: got 0x%04x want 0x%04x", ErrCRC, got, want)
		}
	}
	return Frame{Header: h, Body: data[UnibHdrLen:end]}, nil
}

// Encode builds a frame. It panics when typ or the body length do not fit
// the header bit fields.
func Encode(addr uint32, flags uint8, typ uint16, body []byte) []byte {
	return AppendFrame(nil, addr, flags, typ, body)
}

// AppendFrame appends an encoded frame to dst.
func AppendFrame(dst []byte, addr uint32, flags uint8, typ uint16, body []byte) []byte {
	if typ > MaxType {
		panic(fmt.Sprintf("protocol: type 0x%x out of range", typ))
	}
	if len(body) > MaxBodyLen {
		panic(fmt.Sprintf("protocol: body of %d bytes too long", len(body)))
	}
	start := len(dst)
	n := len(body)
	dst = binary.LittleEndian.AppendUint16(dst, UnibMagic)
	dst = binary.LittleEndian.AppendUint32(dst, addr)
	dst = append(dst,
		flags&0x7|uint8(typ&0x1F)<<3,
		uint8(typ>>5)&0x1F|uint8(n&0x7)<<5,
		uint8(n>>3),
	)
	dst = append(dst, body...)
	return binary.LittleEndian.AppendUint16(dst, CRC16(dst[start:]))
}

// CRC16 is CRC-16/XMODEM: polynomial 0x1021, initial value 0.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
