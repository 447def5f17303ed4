package server

import (
	"net"
	"sort"
	"sync"

	"localizer-go/binlog"
	"localizer-go/fusion"
	"localizer-go/monitoring"
	"localizer-go/protocol"
)

// Sink receives every tick result of every vehicle.
type Sink interface {
	Publish(vehicle uint32, res fusion.TickResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(vehicle uint32, res fusion.TickResult)

func (f SinkFunc) Publish(vehicle uint32, res fusion.TickResult) { f(vehicle, res) }

// VehicleState is the latest published output of a vehicle.
type VehicleState struct {
	ID        uint32  `json:"id"`
	Timestamp float64 `json:"ts"`
	E         float64 `json:"e"`
	N         float64 `json:"n"`
	U         float64 `json:"u"`
	Valid     bool    `json:"valid"`
	Raw       bool    `json:"raw"`
	State     string  `json:"state"`
	Reason    string  `json:"reason"`
	Ticks     int     `json:"ticks"`
	Source    string  `json:"source,omitempty"`

	phase string
}

// phase condenses a tick for transition logs. Only ticks with a fresh fix
// can change it once the estimate is valid; a decimated fix counts as
// aligning.
func phase(prev string, res fusion.TickResult) string {
	switch {
	case !res.EstimateValid:
		return fusion.StateUninitialized.String()
	case !res.FreshGNSS:
		return prev
	case res.Reason == fusion.ReasonNone || res.Reason == fusion.ReasonDecimated:
		return "aligning"
	default:
		return res.Reason.String()
	}
}

// Router decodes frames and feeds them to one fusion.Pipeline per vehicle
// address, created on first use.
type Router struct {
	params    fusion.Params
	VerifyCRC bool

	mu        sync.Mutex
	pipelines map[uint32]*fusion.Pipeline
	vehicles  map[uint32]*VehicleState
	lastSrc   map[uint32]*net.UDPAddr
	sinks     []Sink
	pcap      *binlog.PcapWriter
	echo      func(addr *net.UDPAddr, frame []byte)
}

func NewRouter(params fusion.Params) *Router {
	return &Router{
		params:    params,
		VerifyCRC: true,
		pipelines: make(map[uint32]*fusion.Pipeline),
		vehicles:  make(map[uint32]*VehicleState),
		lastSrc:   make(map[uint32]*net.UDPAddr),
	}
}

func (r *Router) AddSink(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

// SetPcapWriter records received datagrams (FlagRx) and published
// estimates (FlagTx).
func (r *Router) SetPcapWriter(pw *binlog.PcapWriter) {
	r.mu.Lock()
	r.pcap = pw
	r.mu.Unlock()
}

// Pipeline returns the pipeline of vehicle addr, creating it if needed.
func (r *Router) Pipeline(addr uint32) *fusion.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineLocked(addr)
}

func (r *Router) pipelineLocked(addr uint32) *fusion.Pipeline {
	p, ok := r.pipelines[addr]
	if !ok {
		p = fusion.NewPipeline(r.params)
		r.pipelines[addr] = p
		monitoring.Logf("server: new vehicle %08X", addr)
	}
	return p
}

// Reset drops the history of vehicle addr. It reports whether the vehicle
// was known.
func (r *Router) Reset(addr uint32) bool {
	r.mu.Lock()
	p, ok := r.pipelines[addr]
	r.mu.Unlock()
	if ok {
		p.Reset()
	}
	return ok
}

// HandleDatagram routes every frame of a datagram. src may be nil. It
// returns the number of frames handled.
func (r *Router) HandleDatagram(data []byte, src *net.UDPAddr) int {
	r.mu.Lock()
	pw := r.pcap
	r.mu.Unlock()
	if pw != nil {
		_ = pw.WritePacket(binlog.FlagRx, src, data)
	}

	frames := protocol.Split(data, r.VerifyCRC)
	for _, f := range frames {
		if src != nil {
			r.mu.Lock()
			r.lastSrc[f.Addr] = src
			r.mu.Unlock()
		}
		r.HandleFrame(f)
	}
	return len(frames)
}

// HandleFrame decodes one frame and applies it to its vehicle's pipeline.
// Unknown frame types are ignored.
func (r *Router) HandleFrame(f protocol.Frame) {
	msg, err := protocol.Decode(f)
	if err != nil {
		monitoring.Logf("server: vehicle %08X: %v", f.Addr, err)
		return
	}
	if msg == nil {
		return
	}
	r.HandleMessage(f.Addr, msg)
}

// HandleMessage applies a decoded message to vehicle addr.
func (r *Router) HandleMessage(addr uint32, msg protocol.Message) {
	p := r.Pipeline(addr)
	switch m := msg.(type) {
	case protocol.GNSS:
		p.SetGNSS(fusion.GNSSFix{Seq: m.Seq, Position: m.Position})
	case protocol.Speed:
		p.SetCorrectedSpeed(m.MPS)
	case protocol.Distance:
		p.SetDistance(m.Meters)
	case protocol.Heading:
		p.SetHeadingAvailable(m.Available)
	case protocol.Velocity:
		if res, ok := p.OnVelocity(m.Time, m.Vel); ok {
			r.publish(addr, res)
		}
	}
}

func (r *Router) publish(addr uint32, res fusion.TickResult) {
	r.mu.Lock()
	st, ok := r.vehicles[addr]
	if !ok {
		st = &VehicleState{ID: addr}
		r.vehicles[addr] = st
	}
	prev := st.phase
	st.phase = phase(prev, res)
	cur := st.phase
	st.Timestamp = res.Timestamp
	st.E, st.N, st.U = res.Position.X, res.Position.Y, res.Position.Z
	st.Valid = res.EstimateValid
	st.Raw = res.RawEstimateValid
	st.State = res.State.String()
	st.Reason = res.Reason.String()
	st.Ticks++
	src := r.lastSrc[addr]
	if src != nil {
		st.Source = src.String()
	}
	sinks := append([]Sink(nil), r.sinks...)
	pw, echo := r.pcap, r.echo
	r.mu.Unlock()

	if prev != cur && prev != "" {
		monitoring.Logf("server: vehicle %08X %s -> %s at t=%.3f", addr, prev, cur, res.Timestamp)
	}

	var frame []byte
	if pw != nil || (echo != nil && src != nil) {
		frame = protocol.EncodeMessage(addr, protocol.EstimateFromOutput(res.Output))
	}
	if pw != nil {
		_ = pw.WritePacket(binlog.FlagTx, nil, frame)
	}
	if echo != nil && src != nil {
		echo(src, frame)
	}
	for _, s := range sinks {
		s.Publish(addr, res)
	}
}

// GetVehicles returns the latest state of every vehicle, ordered by id.
func (r *Router) GetVehicles() []VehicleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]VehicleState, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LastSource returns the address vehicle addr last sent from.
func (r *Router) LastSource(addr uint32) (*net.UDPAddr, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.lastSrc[addr]
	return a, ok
}
