package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestEstimatorUninitialized(t *testing.T) {
	e := NewEstimator()
	for i := 0; i < 10; i++ {
		out := e.Update(float64(i), Vec3{X: 5}, nil)
		assert.False(t, out.EstimateValid)
		assert.False(t, out.RawEstimateValid)
		assert.Equal(t, StateUninitialized, out.State)
		assert.Equal(t, Vec3{}, out.Position)
	}
	assert.False(t, e.Started())
}

func TestEstimatorDeadReckonsFromLastOutput(t *testing.T) {
	e := NewEstimator()
	raw := Vec3{X: 10, Y: 20, Z: 1}
	out := e.Update(1.0, Vec3{}, &raw)
	assert.True(t, out.RawEstimateValid)
	assert.Equal(t, StateAligned, out.State)
	assert.Equal(t, raw, out.Position)

	vel := Vec3{X: 3, Y: -1}
	prev := out
	for _, ts := range []float64{1.02, 1.04, 1.1, 1.5} {
		out = e.Update(ts, vel, nil)
		want := r3.Add(prev.Position, r3.Scale(ts-prev.Timestamp, vel))
		assert.Equal(t, want, out.Position)
		assert.True(t, out.EstimateValid)
		assert.False(t, out.RawEstimateValid)
		assert.Equal(t, StateDeadReckoning, out.State)
		prev = out
	}
	last, lastTime := e.Last()
	assert.Equal(t, prev.Position, last)
	assert.Equal(t, 1.5, lastTime)

	// A new aligned estimate replaces the extrapolation outright.
	raw2 := Vec3{X: -4}
	out = e.Update(1.52, vel, &raw2)
	assert.Equal(t, raw2, out.Position)
	assert.Equal(t, StateAligned, e.State())
}

func TestEstimatorHoldsOnStaleTick(t *testing.T) {
	e := NewEstimator()
	e.Update(10, Vec3{}, &Vec3{X: 100})

	out := e.Update(9, Vec3{X: 20}, nil)
	assert.Equal(t, Vec3{X: 100}, out.Position)
	assert.Equal(t, StateDeadReckoning, out.State)

	out = e.Update(9, Vec3{X: 20}, nil)
	assert.Equal(t, Vec3{X: 100}, out.Position)

	out = e.Update(10, Vec3{X: 20}, nil)
	assert.Equal(t, Vec3{X: 120}, out.Position)
}

func TestEstimatorReset(t *testing.T) {
	e := NewEstimator()
	raw := Vec3{X: 1}
	e.Update(0, Vec3{}, &raw)
	e.Reset()
	out := e.Update(1, Vec3{X: 1}, nil)
	assert.False(t, out.EstimateValid)
	assert.Equal(t, StateUninitialized, out.State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ALIGNED", StateAligned.String())
	assert.Equal(t, "DEAD_RECKONING", StateDeadReckoning.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
