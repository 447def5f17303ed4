package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localizer-go/fusion"
)

func count(events []Event, k Kind) int {
	n := 0
	for _, e := range events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func TestGenerateRatesAndOrder(t *testing.T) {
	events, truth := Scenario{Duration: 2, Speed: 10}.Generate()

	assert.Equal(t, 200, count(events, KindVelocity))
	assert.Equal(t, 10, count(events, KindGNSS))
	assert.Len(t, truth, 200)

	// The velocity event closes every step.
	assert.Equal(t, KindVelocity, events[len(events)-1].Kind)
	for i, e := range events {
		if e.Kind == KindGNSS {
			require.Less(t, i+4, len(events))
			assert.Equal(t, KindVelocity, events[i+4].Kind)
			assert.Equal(t, e.Time, events[i+4].Time)
		}
	}
}

func TestGenerateTrackAndDistance(t *testing.T) {
	events, truth := Scenario{Duration: 1, Speed: 10, CourseDeg: 0}.Generate()
	last := truth[len(truth)-1]
	assert.InDelta(t, 10, last.Position.Y, 1e-9)
	assert.InDelta(t, 0, last.Position.X, 1e-9)

	var dist float64
	for _, e := range events {
		if e.Kind == KindDistance {
			dist = e.Value
		}
	}
	assert.InDelta(t, 10, dist, 1e-9)
}

func TestGenerateOutliersAndOutages(t *testing.T) {
	sc := Scenario{
		Duration: 4,
		Speed:    10,
		Outliers: map[uint32]fusion.Vec3{2: {Z: 50}},
		Outages:  [][2]float64{{1, 2}},
	}
	events, truth := sc.Generate()
	assert.Equal(t, 15, count(events, KindGNSS))

	var seqs []uint32
	for _, e := range events {
		if e.Kind != KindGNSS {
			continue
		}
		seqs = append(seqs, e.Seq)
		assert.False(t, e.Time >= 1 && e.Time < 2, "fix inside outage at %.2f", e.Time)
		want, _ := TruthAt(truth, e.Time)
		if e.Seq == 2 {
			assert.InDelta(t, want.Z+50, e.Vec.Z, 1e-9)
		} else {
			assert.Equal(t, want, e.Vec)
		}
	}
	for i := 1; i < len(seqs); i++ {
		assert.Equal(t, seqs[i-1]+1, seqs[i])
	}
}

func TestHeadingAvailability(t *testing.T) {
	events, _ := Scenario{Duration: 1, HeadingFrom: -1}.Generate()
	for _, e := range events {
		if e.Kind == KindHeading {
			assert.False(t, e.Flag)
		}
	}
}

func TestTruthAt(t *testing.T) {
	truth := []Truth{{Time: 1, Position: fusion.Vec3{X: 1}}, {Time: 2, Position: fusion.Vec3{X: 2}}}
	p, ok := TruthAt(truth, 1.4)
	require.True(t, ok)
	assert.Equal(t, 1.0, p.X)
	p, _ = TruthAt(truth, 1.6)
	assert.Equal(t, 2.0, p.X)
	p, _ = TruthAt(truth, 9)
	assert.Equal(t, 2.0, p.X)
	_, ok = TruthAt(nil, 1)
	assert.False(t, ok)
}
