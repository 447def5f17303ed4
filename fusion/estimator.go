package fusion

import "gonum.org/v1/gonum/spatial/r3"

// State is the externally visible estimator mode.
type State int

const (
	StateUninitialized State = iota
	StateDeadReckoning
	StateAligned
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateDeadReckoning:
		return "DEAD_RECKONING"
	case StateAligned:
		return "ALIGNED"
	default:
		return "UNKNOWN"
	}
}

// Output is what a tick publishes.
type Output struct {
	Timestamp        float64
	Position         Vec3
	EstimateValid    bool // an aligned estimate has been accepted at some point
	RawEstimateValid bool // this tick produced a fresh aligned estimate
	State            State
}

// Estimator owns the published position across ticks. Once an aligned
// estimate has been accepted it keeps producing positions, extrapolating
// with the current velocity on ticks without a fresh estimate.
type Estimator struct {
	started  bool
	last     Vec3
	lastTime float64
	state    State
}

func NewEstimator() *Estimator { return &Estimator{} }

func (e *Estimator) Started() bool { return e.started }
func (e *Estimator) State() State  { return e.state }

// Last returns the previously published position and its timestamp.
func (e *Estimator) Last() (Vec3, float64) { return e.last, e.lastTime }

// Update advances the estimator by one tick. raw is the aligned estimate for
// this tick, nil when none was produced. Extrapolation never runs backwards.
func (e *Estimator) Update(ts float64, vel Vec3, raw *Vec3) Output {
	out := Output{Timestamp: ts}
	switch {
	case raw != nil:
		e.started = true
		out.Position = *raw
		out.RawEstimateValid = true
		e.state = StateAligned
	case e.started:
		// A tick that is not after the previous one holds the position.
		out.Position = e.last
		if dt := ts - e.lastTime; dt > 0 {
			out.Position = r3.Add(e.last, r3.Scale(dt, vel))
		}
		e.state = StateDeadReckoning
	default:
		e.state = StateUninitialized
	}
	out.EstimateValid = e.started
	out.State = e.state

	e.last = out.Position
	e.lastTime = ts
	return out
}

// Reset forgets every accepted estimate.
func (e *Estimator) Reset() { *e = Estimator{} }
