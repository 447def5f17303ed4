package sim

import "localizer-go/protocol"

// Message converts an event to its wire message.
func (e Event) Message() protocol.Message {
	switch e.Kind {
	case KindGNSS:
		return protocol.GNSS{Seq: e.Seq, Position: e.Vec}
	case KindSpeed:
		return protocol.Speed{MPS: e.Value}
	case KindDistance:
		return protocol.Distance{Meters: e.Value}
	case KindHeading:
		return protocol.Heading{Available: e.Flag}
	default:
		return protocol.Velocity{Time: e.Time, Vel: e.Vec}
	}
}

// Datagram is the frames of one generation step for one vehicle.
type Datagram struct {
	Time float64
	Data []byte
}

// Datagrams encodes events for vehicle addr, one datagram per time step.
func Datagrams(addr uint32, events []Event) []Datagram {
	var out []Datagram
	for _, e := range events {
		frame := protocol.EncodeMessage(addr, e.Message())
		if n := len(out); n > 0 && out[n-1].Time == e.Time {
			out[n-1].Data = append(out[n-1].Data, frame...)
			continue
		}
		out = append(out, Datagram{Time: e.Time, Data: frame})
	}
	return out
}
