package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"localizer-go/fusion"
)

// Message types.
const (
	TypeVelocity = 0x70
	TypeGNSS     = 0x71
	TypeSpeed    = 0x72
	TypeDistance = 0x73
	TypeHeading  = 0x74
	TypeEstimate = 0x7A
)

// Message is a typed frame body.
type Message interface {
	Type() uint16
	AppendBody(b []byte) []byte
}

// Velocity drives the estimator tick. Time is in seconds.
type Velocity struct {
	Time float64
	Vel  fusion.Vec3
}

type GNSS struct {
	Seq      uint32
	Position fusion.Vec3
}

type Speed struct{ MPS float64 }

type Distance struct{ Meters float64 }

type Heading struct{ Available bool }

const (
	estimateValid = 1 << 0
	estimateRaw   = 1 << 1
)

// Estimate is the published output of one tick.
type Estimate struct {
	Time     float64
	Position fusion.Vec3
	Valid    bool
	Raw      bool
	State    fusion.State
}

// EstimateFromOutput converts a tick output for the wire.
func EstimateFromOutput(out fusion.Output) Estimate {
	return Estimate{
		Time:     out.Timestamp,
		Position: out.Position,
		Valid:    out.EstimateValid,
		Raw:      out.RawEstimateValid,
		State:    out.State,
	}
}

func (Velocity) Type() uint16 { return TypeVelocity }
func (GNSS) Type() uint16     { return TypeGNSS }
func (Speed) Type() uint16    { return TypeSpeed }
func (Distance) Type() uint16 { return TypeDistance }
func (Heading) Type() uint16  { return TypeHeading }
func (Estimate) Type() uint16 { return TypeEstimate }

func (m Velocity) AppendBody(b []byte) []byte {
	b = appendF64(b, m.Time)
	b = appendF32(b, m.Vel.X)
	b = appendF32(b, m.Vel.Y)
	return appendF32(b, m.Vel.Z)
}

func (m GNSS) AppendBody(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, m.Seq)
	return appendVec(b, m.Position)
}

func (m Speed) AppendBody(b []byte) []byte    { return appendF32(b, m.MPS) }
func (m Distance) AppendBody(b []byte) []byte { return appendF64(b, m.Meters) }

func (m Heading) AppendBody(b []byte) []byte {
	if m.Available {
		return append(b, 1)
	}
	return append(b, 0)
}

func (m Estimate) AppendBody(b []byte) []byte {
	b = appendF64(b, m.Time)
	b = appendVec(b, m.Position)
	var flags uint8
	if m.Valid {
		flags |= estimateValid
	}
	if m.Raw {
		flags |= estimateRaw
	}
	return append(b, flags, uint8(m.State))
}

// EncodeMessage frames m for vehicle addr.
func EncodeMessage(addr uint32, m Message) []byte {
	return Encode(addr, 0, m.Type(), m.AppendBody(nil))
}

var bodyLens = map[uint16]int{
	TypeVelocity: 20,
	TypeGNSS:     28,
	TypeSpeed:    4,
	TypeDistance: 8,
	TypeHeading:  1,
	TypeEstimate: 34,
}

// Decode returns the typed message of a frame. Frames of types this
// package does not know return (nil, nil).
func Decode(f Frame) (Message, error) {
	want, ok := bodyLens[f.Type]
	if !ok {
		return nil, nil
	}
	b := f.Body
	if len(b) < want {
		return nil, fmt.Errorf("%w: type 0x%02x body %d bytes, need %d", ErrTruncated, f.Type, len(b), want)
	}
	switch f.Type {
	case TypeVelocity:
		return Velocity{
			Time: f64(b[0:]),
			Vel:  fusion.Vec3{X: f32(b[8:]), Y: f32(b[12:]), Z: f32(b[16:])},
		}, nil
	case TypeGNSS:
		return GNSS{Seq: binary.LittleEndian.Uint32(b[0:4]), Position: vec(b[4:])}, nil
	case TypeSpeed:
		return Speed{MPS: f32(b)}, nil
	case TypeDistance:
		return Distance{Meters: f64(b)}, nil
	case TypeHeading:
		return Heading{Available: b[0] != 0}, nil
	default: // TypeEstimate
		return Estimate{
			Time:     f64(b[0:]),
			Position: vec(b[8:]),
			Valid:    b[32]&estimateValid != 0,
			Raw:      b[32]&estimateRaw != 0,
			State:    fusion.State(b[33]),
		}, nil
	}
}

func appendF64(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

func appendF32(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(float32(v)))
}

func appendVec(b []byte, v fusion.Vec3) []byte {
	b = appendF64(b, v.X)
	b = appendF64(b, v.Y)
	return appendF64(b, v.Z)
}

func f64(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
func f32(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }

func vec(b []byte) fusion.Vec3 {
	return fusion.Vec3{X: f64(b[0:]), Y: f64(b[8:]), Z: f64(b[16:])}
}
