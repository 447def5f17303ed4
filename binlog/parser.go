package binlog

import (
	"io"
	"math"
	"os"
	"sort"

	"localizer-go/protocol"
)

// InnerFrame is one decoded frame of a record.
type InnerFrame struct {
	Addr uint32
	Type uint16
	Msg  protocol.Message // nil for types the protocol package does not decode
}

type Event struct {
	Timestamp float64
	Flag      uint16
	Inner     []InnerFrame
}

// BinlogParser loads a recording into decoded events.
type BinlogParser struct {
	Path      string
	VerifyCRC bool

	Events []Event
	// Skipped counts frames that failed to decode.
	Skipped int
}

func NewBinlogParser(path string) *BinlogParser {
	return &BinlogParser{Path: path, VerifyCRC: true}
}

func (p *BinlogParser) Parse() error {
	f, err := os.Open(p.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.ParseFrom(f)
}

// ParseFrom parses a recording from r, appending to p.Events.
func (p *BinlogParser) ParseFrom(r io.Reader) error {
	rd, err := NewReader(r)
	if err != nil {
		return err
	}
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Flag == FlagStats {
			continue
		}
		var inner []InnerFrame
		for _, fr := range protocol.Split(rec.Payload, p.VerifyCRC) {
			msg, err := protocol.Decode(fr)
			if err != nil {
				p.Skipped++
				continue
			}
			inner = append(inner, InnerFrame{Addr: fr.Addr, Type: fr.Type, Msg: msg})
		}
		if len(inner) == 0 {
			continue
		}
		p.Events = append(p.Events, Event{Timestamp: rec.Seconds(), Flag: rec.Flag, Inner: inner})
	}
}

// ForVehicle returns the events carrying frames of vehicle addr, each
// reduced to that vehicle's frames.
func (p *BinlogParser) ForVehicle(addr uint32) []Event {
	var out []Event
	for _, e := range p.Events {
		var inner []InnerFrame
		for _, in := range e.Inner {
			if in.Addr == addr {
				inner = append(inner, in)
			}
		}
		if len(inner) > 0 {
			out = append(out, Event{Timestamp: e.Timestamp, Flag: e.Flag, Inner: inner})
		}
	}
	return out
}

// Vehicles returns the distinct vehicle addresses in ascending order.
func (p *BinlogParser) Vehicles() []uint32 {
	seen := map[uint32]bool{}
	for _, e := range p.Events {
		for _, in := range e.Inner {
			seen[in.Addr] = true
		}
	}
	out := make([]uint32, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EarliestEventTs returns the earliest timestamp.
func (p *BinlogParser) EarliestEventTs() float64 {
	if len(p.Events) == 0 {
		return 0
	}
	min := math.MaxFloat64
	for _, e := range p.Events {
		if e.Timestamp < min {
			min = e.Timestamp
		}
	}
	return min
}
