package fusion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"localizer-go/fusion"
	"localizer-go/monitoring"
	"localizer-go/sim"
)

func run(t *testing.T, sc sim.Scenario) ([]fusion.TickResult, []sim.Truth) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })

	events, truth := sc.Generate()
	return sim.Feed(fusion.NewPipeline(fusion.DefaultParams()), events), truth
}

func raws(results []fusion.TickResult) []fusion.TickResult {
	var out []fusion.TickResult
	for _, r := range results {
		if r.RawEstimateValid {
			out = append(out, r)
		}
	}
	return out
}

func errorTo(t *testing.T, truth []sim.Truth, r fusion.TickResult) float64 {
	t.Helper()
	want, ok := sim.TruthAt(truth, r.Timestamp)
	require.True(t, ok)
	return r3.Norm(r3.Sub(r.Position, want))
}

func straight(duration float64) sim.Scenario {
	return sim.Scenario{
		Duration: duration,
		Speed:    20,
		Origin:   fusion.Vec3{X: 3500, Y: -1200, Z: 40},
	}
}

func TestNoGNSSNeverInitializes(t *testing.T) {
	sc := straight(0.2)
	sc.GNSSRateHz = -1
	results, _ := run(t, sc)

	require.Len(t, results, 10)
	for _, r := range results {
		assert.False(t, r.EstimateValid)
		assert.False(t, r.RawEstimateValid)
		assert.Equal(t, fusion.StateUninitialized, r.State)
		assert.Equal(t, fusion.Vec3{}, r.Position)
	}
}

func TestStraightLineAlignsExactly(t *testing.T) {
	results, truth := run(t, straight(40))

	// 500 m at 20 m/s takes 25 s; every tenth fix at 5 Hz is aligned.
	est := raws(results)
	require.Len(t, est, 8)
	assert.InDelta(t, 26, est[0].Timestamp, 1e-6)
	for _, r := range est {
		assert.Equal(t, 1, r.Iterations)
		assert.Zero(t, r.Removed)
		assert.Equal(t, r.AnchorsInitial, r.AnchorsFinal)
		assert.InDelta(t, 0, errorTo(t, truth, r), 1e-6)
		assert.Equal(t, fusion.StateAligned, r.State)
	}
	for _, r := range results {
		if r.Timestamp < 25 {
			assert.False(t, r.EstimateValid)
		}
	}
}

func TestOutlierFixIsRejected(t *testing.T) {
	sc := straight(60)
	sc.Outliers = map[uint32]fusion.Vec3{153: {X: 30}} // t = 30.6 s
	results, truth := run(t, sc)

	est := raws(results)
	require.NotEmpty(t, est)
	for _, r := range est {
		assert.InDelta(t, 0, errorTo(t, truth, r), 1e-6, "t=%.2f", r.Timestamp)
		switch {
		case r.Timestamp > 31 && r.Timestamp < 55:
			assert.Equal(t, 1, r.Removed, "t=%.2f", r.Timestamp)
			assert.Equal(t, 2, r.Iterations)
		case r.Timestamp < 30 || r.Timestamp > 57:
			assert.Zero(t, r.Removed, "t=%.2f", r.Timestamp)
		}
	}
}

func TestDeadReckoningAfterOutage(t *testing.T) {
	sc := straight(40)
	sc.Outages = [][2]float64{{30, 1e9}}
	results, _ := run(t, sc)

	require.NotEmpty(t, raws(results))
	vel := fusion.Vec3{Y: 20}
	var prev *fusion.TickResult
	for i := range results {
		r := results[i]
		if r.Timestamp > 30 {
			assert.False(t, r.RawEstimateValid)
		}
		if prev != nil && prev.EstimateValid && !r.RawEstimateValid {
			want := r3.Add(prev.Position, r3.Scale(r.Timestamp-prev.Timestamp, vel))
			assert.Equal(t, want, r.Position, "t=%.2f", r.Timestamp)
			assert.Equal(t, fusion.StateDeadReckoning, r.State)
			assert.True(t, r.EstimateValid)
		}
		prev = &results[i]
	}
	assert.True(t, results[len(results)-1].EstimateValid)
}

func TestTurningDriveStaysClose(t *testing.T) {
	sc := straight(60)
	sc.CourseDeg = 45
	sc.TurnRateDegPerSec = 3
	results, truth := run(t, sc)

	est := raws(results)
	require.NotEmpty(t, est)
	for _, r := range est {
		assert.Less(t, errorTo(t, truth, r), 0.5, "t=%.2f", r.Timestamp)
	}
}

func TestStationaryStartWaitsForMotion(t *testing.T) {
	sc := straight(50)
	sc.StationaryUntil = 10
	results, _ := run(t, sc)

	est := raws(results)
	require.NotEmpty(t, est)
	// 500 m of travel only accumulates after the vehicle starts moving.
	assert.Greater(t, est[0].Timestamp, 35.0)
}
