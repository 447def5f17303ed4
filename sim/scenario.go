// Package sim generates deterministic synthetic drives for exercising the
// estimator: a vehicle following a constant-speed course with configurable
// turn rate, GNSS rate, outages and multipath outliers.
package sim

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"localizer-go/fusion"
)

type Kind int

const (
	KindGNSS Kind = iota
	KindSpeed
	KindDistance
	KindHeading
	KindVelocity
)

func (k Kind) String() string {
	switch k {
	case KindGNSS:
		return "gnss"
	case KindSpeed:
		return "speed"
	case KindDistance:
		return "distance"
	case KindHeading:
		return "heading"
	case KindVelocity:
		return "velocity"
	default:
		return "unknown"
	}
}

// Event is one input update in time order.
type Event struct {
	Time  float64
	Kind  Kind
	Vec   fusion.Vec3 // velocity or GNSS position
	Value float64     // speed or distance
	Seq   uint32      // GNSS sequence
	Flag  bool        // heading availability
}

// Truth is the true vehicle position at a velocity event.
type Truth struct {
	Time     float64
	Position fusion.Vec3
}

// Scenario describes a drive. Zero rates fall back to the defaults below.
type Scenario struct {
	Duration          float64 // s
	VelocityRateHz    float64
	GNSSRateHz        float64 // negative disables GNSS
	Speed             float64 // m/s
	CourseDeg         float64 // 0 north, clockwise
	TurnRateDegPerSec float64
	StationaryUntil   float64 // vehicle stands still before this time
	Origin            fusion.Vec3
	StartTime         float64
	HeadingFrom       float64 // heading becomes available at this time; negative never

	// Outliers adds an offset to the fix with the given sequence number.
	Outliers map[uint32]fusion.Vec3
	// Outages lists [from, to) intervals without GNSS.
	Outages [][2]float64
}

const (
	defaultVelocityRateHz = 100.0
	defaultGNSSRateHz     = 5.0
)

func (s Scenario) rates() (vel float64, gnss float64) {
	vel, gnss = s.VelocityRateHz, s.GNSSRateHz
	if vel <= 0 {
		vel = defaultVelocityRateHz
	}
	if gnss == 0 {
		gnss = defaultGNSSRateHz
	}
	return vel, gnss
}

func (s Scenario) inOutage(t float64) bool {
	for _, o := range s.Outages {
		if t >= o[0] && t < o[1] {
			return true
		}
	}
	return false
}

// Generate produces the ordered input events and the true track sampled at
// every velocity event. Within one step the GNSS fix (if due) comes first
// and the velocity event, which drives the pipeline, comes last.
func (s Scenario) Generate() ([]Event, []Truth) {
	velRate, gnssRate := s.rates()
	dt := 1 / velRate
	steps := int(math.Round(s.Duration * velRate))
	gnssEvery := 0
	if gnssRate > 0 {
		gnssEvery = int(math.Max(1, math.Round(velRate/gnssRate)))
	}

	events := make([]Event, 0, steps*5)
	truth := make([]Truth, 0, steps)
	pos := s.Origin
	dist := 0.0
	var seq uint32
	for i := 1; i <= steps; i++ {
		t := s.StartTime + float64(i)*dt
		vel := s.velocityAt(t)
		pos = r3.Add(pos, r3.Scale(dt, vel))
		dist += r3.Norm(vel) * dt

		if gnssEvery > 0 && i%gnssEvery == 0 && !s.inOutage(t) {
			seq++
			fix := pos
			if off, ok := s.Outliers[seq]; ok {
				fix = r3.Add(fix, off)
			}
			events = append(events, Event{Time: t, Kind: KindGNSS, Vec: fix, Seq: seq})
		}
		events = append(events,
			Event{Time: t, Kind: KindSpeed, Value: r3.Norm(vel)},
			Event{Time: t, Kind: KindDistance, Value: dist},
			Event{Time: t, Kind: KindHeading, Flag: s.HeadingFrom >= 0 && t >= s.HeadingFrom},
			Event{Time: t, Kind: KindVelocity, Vec: vel},
		)
		truth = append(truth, Truth{Time: t, Position: pos})
	}
	return events, truth
}

func (s Scenario) velocityAt(t float64) fusion.Vec3 {
	if t < s.StartTime+s.StationaryUntil {
		return fusion.Vec3{}
	}
	moving := t - (s.StartTime + s.StationaryUntil)
	course := (s.CourseDeg + s.TurnRateDegPerSec*moving) * math.Pi / 180
	return fusion.Vec3{X: s.Speed * math.Sin(course), Y: s.Speed * math.Cos(course)}
}

// Feed drives p with events and returns the result of every tick.
func Feed(p *fusion.Pipeline, events []Event) []fusion.TickResult {
	var out []fusion.TickResult
	for _, e := range events {
		if res, ok := Apply(p, e); ok {
			out = append(out, res)
		}
	}
	return out
}

// Apply routes one event to the matching pipeline input.
func Apply(p *fusion.Pipeline, e Event) (fusion.TickResult, bool) {
	switch e.Kind {
	case KindGNSS:
		p.SetGNSS(fusion.GNSSFix{Seq: e.Seq, Position: e.Vec})
	case KindSpeed:
		p.SetCorrectedSpeed(e.Value)
	case KindDistance:
		p.SetDistance(e.Value)
	case KindHeading:
		p.SetHeadingAvailable(e.Flag)
	case KindVelocity:
		return p.OnVelocity(e.Time, e.Vec)
	}
	return fusion.TickResult{}, false
}

// TruthAt returns the true position nearest in time to t.
func TruthAt(truth []Truth, t float64) (fusion.Vec3, bool) {
	if len(truth) == 0 {
		return fusion.Vec3{}, false
	}
	i := sort.Search(len(truth), func(i int) bool { return truth[i].Time >= t })
	switch {
	case i == len(truth):
		i--
	case i > 0 && t-truth[i-1].Time < truth[i].Time-t:
		i--
	}
	return truth[i].Position, true
}
