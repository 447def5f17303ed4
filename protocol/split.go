package protocol

import "encoding/binary"

// TypeGatewayUplink is a gateway envelope: a device id and RSSI prefix
// followed by inner UNIB frames.
const TypeGatewayUplink = 0x48

// Split returns every valid frame in a datagram. Bytes that do not start a
// valid frame are skipped one at a time, so garbage between frames and a
// torn trailing frame do not hide the frames around them. Gateway
// envelopes are unwrapped into their inner frames.
func Split(data []byte, verifyCRC bool) []Frame {
	var frames []Frame
	pos := 0
	for pos+UnibWrapLen <= len(data) {
		if binary.LittleEndian.Uint16(data[pos:pos+2]) != UnibMagic {
			pos++
			continue
		}
		f, err := ParseFrame(data[pos:], verifyCRC)
		if err != nil {
			pos++
			continue
		}
		pos += f.Len()
		if f.Type == TypeGatewayUplink {
			frames = append(frames, unwrapUplink(f, verifyCRC)...)
			continue
		}
		frames = append(frames, f)
	}
	return frames
}

func unwrapUplink(f Frame, verifyCRC bool) []Frame {
	var offset int
	switch {
	case len(f.Body) >= 6:
		offset = 6 // device id u32, rssi i16
	case len(f.Body) >= 4:
		offset = 4 // device id u16, rssi i16
	default:
		return nil
	}
	inner := Split(f.Body[offset:], verifyCRC)
	for i := range inner {
		if (inner[i].Flags|f.Flags)&FlagSeconds != 0 && len(inner[i].Body) > 0 {
			inner[i].Body = inner[i].Body[1:]
			inner[i].BodyLen--
		}
	}
	return inner
}

// WrapUplink builds a gateway envelope around already encoded frames.
func WrapUplink(gateway uint32, deviceID uint32, rssi int16, frames ...[]byte) []byte {
	body := binary.LittleEndian.AppendUint32(nil, deviceID)
	body = binary.LittleEndian.AppendUint16(body, uint16(rssi))
	for _, fr := range frames {
		body = append(body, fr...)
	}
	return Encode(gateway, 0, TypeGatewayUplink, body)
}

// Decoder reassembles frames from a byte stream such as a serial port.
// It is not safe for concurrent use.
type Decoder struct {
	VerifyCRC bool
	buf       []byte
	dropped   int
}

func NewDecoder(verifyCRC bool) *Decoder {
	return &Decoder{VerifyCRC: verifyCRC}
}

// Write appends stream bytes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Dropped is the number of bytes skipped while resynchronizing.
func (d *Decoder) Dropped() int { return d.dropped }

// Next returns the next complete frame, with its own copy of the body. It
// returns false when more bytes are needed.
func (d *Decoder) Next() (Frame, bool) {
	for {
		i := indexMagic(d.buf)
		if i < 0 {
			// Keep a trailing first magic byte, it may complete later.
			keep := 0
			if n := len(d.buf); n > 0 && d.buf[n-1] == byte(UnibMagic&0xFF) {
				keep = 1
			}
			d.discard(len(d.buf) - keep)
			return Frame{}, false
		}
		d.discard(i)
		if len(d.buf) < UnibHdrLen {
			return Frame{}, false
		}
		h, _ := ParseHeader(d.buf)
		if len(d.buf) < UnibWrapLen+h.BodyLen {
			return Frame{}, false
		}
		f, err := ParseFrame(d.buf, d.VerifyCRC)
		if err != nil {
			d.discard(1)
			continue
		}
		n := f.Len()
		out := make([]byte, len(f.Body))
		copy(out, f.Body)
		f.Body = out
		d.buf = d.buf[n:]
		return f, true
	}
}

func (d *Decoder) discard(n int) {
	if n <= 0 {
		return
	}
	d.dropped += n
	d.buf = d.buf[n:]
}

func indexMagic(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == byte(UnibMagic&0xFF) && b[i+1] == byte(UnibMagic>>8) {
			return i
		}
	}
	return -1
}
