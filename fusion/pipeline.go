package fusion

import (
	"sync"

	"localizer-go/monitoring"
)

// GNSSFix is an absolute ENU fix with the receiver's sequence number. A tick
// treats the fix as fresh when Seq differs from the previous tick's.
type GNSSFix struct {
	Seq      uint32
	Position Vec3
}

// Reason explains why a tick did or did not produce a raw estimate.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoHeading
	ReasonWarmup
	ReasonShortHistory
	ReasonNoFreshGNSS
	ReasonLowSpeed
	ReasonSaturated
	ReasonDecimated
	ReasonTooFewAnchors
	ReasonGaveUp
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoHeading:
		return "no_heading"
	case ReasonWarmup:
		return "warmup"
	case ReasonShortHistory:
		return "short_history"
	case ReasonNoFreshGNSS:
		return "no_fresh_gnss"
	case ReasonLowSpeed:
		return "low_speed"
	case ReasonSaturated:
		return "saturated"
	case ReasonDecimated:
		return "decimated"
	case ReasonTooFewAnchors:
		return "too_few_anchors"
	case ReasonGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// TickResult is the published output of one tick plus diagnostics.
type TickResult struct {
	Output
	Reason         Reason
	FreshGNSS      bool
	WindowSize     int
	AnchorsInitial int
	AnchorsFinal   int
	Iterations     int
	Removed        int
}

// Pipeline runs the windowed alignment estimator. The GNSS, speed, distance
// and heading streams only overwrite their latest-value slot; a velocity
// event is the only thing that advances the pipeline.
type Pipeline struct {
	params  Params
	modulus int

	slotMu   sync.Mutex
	fix      GNSSFix
	haveFix  bool
	speed    float64
	distance float64
	heading  bool

	tickMu    sync.Mutex
	buf       *SampleBuffer
	est       *Estimator
	events    int
	lastEvent float64
	haveEvent bool
	stale     int
	ticks     int
	gnssTicks int
	lastSeq   uint32
	haveSeq   bool
}

func NewPipeline(params Params) *Pipeline {
	return &Pipeline{
		params:  params,
		modulus: params.Modulus(),
		buf:     NewSampleBuffer(params.BufferCapacity),
		est:     NewEstimator(),
	}
}

func (p *Pipeline) SetGNSS(fix GNSSFix) {
	p.slotMu.Lock()
	p.fix = fix
	p.haveFix = true
	p.slotMu.Unlock()
}

func (p *Pipeline) SetCorrectedSpeed(v float64) {
	p.slotMu.Lock()
	p.speed = v
	p.slotMu.Unlock()
}

func (p *Pipeline) SetDistance(d float64) {
	p.slotMu.Lock()
	p.distance = d
	p.slotMu.Unlock()
}

func (p *Pipeline) SetHeadingAvailable(ok bool) {
	p.slotMu.Lock()
	p.heading = ok
	p.slotMu.Unlock()
}

// OnVelocity consumes one velocity event at time ts (seconds). Only every
// Params.Modulus()-th event runs a tick; the bool reports whether this one did.
// Events not newer than the previous accepted one are dropped without
// counting towards the modulus.
func (p *Pipeline) OnVelocity(ts float64, vel Vec3) (TickResult, bool) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	if p.haveEvent && ts <= p.lastEvent {
		p.stale++
		monitoring.Logf("fusion: dropped velocity event t=%.3f, not after t=%.3f (%d dropped)", ts, p.lastEvent, p.stale)
		return TickResult{}, false
	}
	p.lastEvent, p.haveEvent = ts, true

	p.events++
	if p.events%p.modulus != 0 {
		return TickResult{}, false
	}
	return p.tick(ts, vel), true
}

func (p *Pipeline) tick(ts float64, vel Vec3) TickResult {
	p.slotMu.Lock()
	fix, haveFix := p.fix, p.haveFix
	s := Sample{
		Timestamp:        ts,
		Velocity:         vel,
		CorrectedSpeed:   p.speed,
		Distance:         p.distance,
		HeadingAvailable: p.heading,
	}
	p.slotMu.Unlock()

	p.ticks++
	if haveFix && (!p.haveSeq || fix.Seq != p.lastSeq) {
		s.GNSSValid = true
		s.GNSSPosition = fix.Position
		p.gnssTicks++
	}
	if haveFix {
		p.lastSeq, p.haveSeq = fix.Seq, true
	}
	p.buf.Append(s)

	w := SelectWindow(p.buf, p.params.EstimationSpan)
	res := TickResult{FreshGNSS: s.GNSSValid, WindowSize: w.Len()}

	var raw *Vec3
	res.Reason = p.gate(s, w)
	if res.Reason == ReasonNone {
		traj := Integrate(w.Samples)
		anchors, speedQualified := SelectAnchors(w.Samples, p.params.SpeedThreshold)
		res.AnchorsInitial = len(anchors)
		if float64(len(anchors)) <= float64(speedQualified)*p.params.MinAnchorFraction {
			res.Reason = ReasonTooFewAnchors
		} else {
			al, err := Align(w.Samples, traj, anchors, speedQualified, AlignParams{
				OutlierThreshold: p.params.PositionOutlierThreshold,
				GiveUpFraction:   p.params.GiveUpFraction,
			})
			res.Iterations = al.Iterations
			res.Removed = len(al.Removed)
			if err == nil {
				res.AnchorsFinal = len(al.Anchors)
				raw = &al.Position
			} else {
				res.Reason = ReasonGaveUp
				monitoring.Logf("fusion: alignment gave up at t=%.3f: %d of %d anchors rejected", ts, res.Removed, res.AnchorsInitial)
			}
		}
	}

	wasStarted := p.est.Started()
	res.Output = p.est.Update(ts, vel, raw)
	if !wasStarted && res.EstimateValid {
		monitoring.Logf("fusion: first aligned estimate at t=%.3f (window %d, anchors %d/%d)", ts, res.WindowSize, res.AnchorsFinal, res.AnchorsInitial)
	}
	return res
}

// gate checks the preconditions for attempting an alignment on this tick.
func (p *Pipeline) gate(s Sample, w Window) Reason {
	heading := p.buf.FirstIndex(func(x Sample) bool { return x.HeadingAvailable })
	switch {
	case heading < 0 || heading >= w.Start:
		return ReasonNoHeading
	case p.ticks < 2:
		return ReasonWarmup
	case s.Distance <= p.params.EstimationSpan:
		return ReasonShortHistory
	case !s.GNSSValid:
		return ReasonNoFreshGNSS
	case s.CorrectedSpeed <= p.params.SpeedThreshold:
		return ReasonLowSpeed
	case w.Saturated:
		return ReasonSaturated
	case p.params.GNSSDecimation > 1 && p.gnssTicks%p.params.GNSSDecimation != 0:
		return ReasonDecimated
	}
	return ReasonNone
}

// Reset drops all history and the accepted estimate. Input slots keep their
// latest values.
func (p *Pipeline) Reset() {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	p.buf = NewSampleBuffer(p.params.BufferCapacity)
	p.est.Reset()
	p.events, p.ticks, p.gnssTicks = 0, 0, 0
	p.haveSeq, p.haveEvent = false, false
}
