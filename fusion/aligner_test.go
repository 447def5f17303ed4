package fusion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var origin = Vec3{X: 1200, Y: -340, Z: 12}

// straightRun builds n samples one second apart moving east at 20 m/s with a
// perfect fix on every sample.
func straightRun(n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			Timestamp:      float64(i),
			Velocity:       Vec3{X: 20},
			CorrectedSpeed: 20,
			Distance:       20 * float64(i),
			GNSSValid:      true,
			GNSSPosition:   r3.Add(origin, Vec3{X: 20 * float64(i)}),
		}
	}
	return samples
}

func allAnchors(samples []Sample) []int {
	anchors, _ := SelectAnchors(samples, 1)
	return anchors
}

var testAlign = AlignParams{OutlierThreshold: 3, GiveUpFraction: 0.01}

func TestAlignCleanConvergesFirstPass(t *testing.T) {
	samples := straightRun(11)
	anchors := allAnchors(samples)

	al, err := Align(samples, Integrate(samples), anchors, len(samples), testAlign)
	require.NoError(t, err)
	assert.Equal(t, 1, al.Iterations)
	assert.Empty(t, al.Removed)
	assert.Equal(t, anchors, al.Anchors)
	assert.Equal(t, 10, al.Anchor)
	assert.InDelta(t, 0, al.MaxResidual, 1e-9)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(al.Position, samples[10].GNSSPosition)), 1e-9)
}

func TestAlignRejectsSingleOutlier(t *testing.T) {
	samples := straightRun(11)
	samples[5].GNSSPosition = r3.Add(samples[5].GNSSPosition, Vec3{X: 30})
	anchors := allAnchors(samples)

	al, err := Align(samples, Integrate(samples), anchors, len(samples), testAlign)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, al.Removed)
	assert.Equal(t, 2, al.Iterations)
	assert.NotContains(t, al.Anchors, 5)
	assert.Len(t, al.Anchors, 10)
	assert.InDelta(t, 0, al.MaxResidual, 1e-9)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(al.Position, samples[10].GNSSPosition)), 1e-9)
	// The caller's slice is left alone.
	assert.Len(t, anchors, 11)
}

func TestAlignExtrapolatesPastLastAnchor(t *testing.T) {
	samples := straightRun(6)
	samples[5].GNSSValid = false
	samples[5].GNSSPosition = Vec3{}

	al, err := Align(samples, Integrate(samples), allAnchors(samples), len(samples), testAlign)
	require.NoError(t, err)
	assert.Equal(t, 4, al.Anchor)
	want := r3.Add(origin, Vec3{X: 100})
	assert.InDelta(t, 0, r3.Norm(r3.Sub(al.Position, want)), 1e-9)
}

func TestAlignGivesUp(t *testing.T) {
	samples := straightRun(2)
	samples[0].GNSSPosition = r3.Add(samples[0].GNSSPosition, Vec3{Y: 100})

	_, err := Align(samples, Integrate(samples), allAnchors(samples), 1000, testAlign)
	assert.ErrorIs(t, err, ErrGaveUp)
}

func TestAlignTooLittleSupport(t *testing.T) {
	// Converges immediately but three anchors are less than 1% of 1000.
	samples := straightRun(3)
	_, err := Align(samples, Integrate(samples), allAnchors(samples), 1000, testAlign)
	assert.ErrorIs(t, err, ErrGaveUp)
}

func TestAlignNoAnchors(t *testing.T) {
	samples := straightRun(3)
	_, err := Align(samples, Integrate(samples), nil, 3, testAlign)
	assert.ErrorIs(t, err, ErrTooFewAnchors)
}

func TestAlignSingleAnchor(t *testing.T) {
	samples := straightRun(4)
	al, err := Align(samples, Integrate(samples), []int{1}, 4, testAlign)
	require.NoError(t, err)
	assert.Equal(t, 1, al.Iterations)
	want := r3.Add(origin, Vec3{X: 60})
	assert.InDelta(t, 0, r3.Norm(r3.Sub(al.Position, want)), 1e-9)
}

func TestAlignNoisyFixesBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		samples := straightRun(40)
		for i := range samples {
			noise := Vec3{X: rng.NormFloat64() * 0.5, Y: rng.NormFloat64() * 0.5}
			if rng.Intn(8) == 0 {
				noise = r3.Scale(20, noise)
			}
			samples[i].GNSSPosition = r3.Add(samples[i].GNSSPosition, noise)
		}
		anchors := allAnchors(samples)
		traj := Integrate(samples)

		al, err := Align(samples, traj, anchors, len(samples), testAlign)
		if err != nil {
			require.ErrorIs(t, err, ErrGaveUp)
			continue
		}
		// Every pass but the last removes exactly one anchor.
		assert.Equal(t, len(al.Removed)+1, al.Iterations)
		assert.Equal(t, len(anchors), len(al.Anchors)+len(al.Removed))
		assert.LessOrEqual(t, al.MaxResidual, testAlign.OutlierThreshold)

		refined := r3.Sub(al.Position, r3.Sub(traj[len(traj)-1], traj[al.Anchor]))
		for _, i := range al.Anchors {
			r := r3.Norm(r3.Sub(shift(refined, traj[al.Anchor], traj[i]), samples[i].GNSSPosition))
			assert.LessOrEqual(t, r, testAlign.OutlierThreshold+1e-9)
		}
	}
}
