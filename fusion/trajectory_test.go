package fusion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestIntegrate(t *testing.T) {
	samples := []Sample{
		{Timestamp: 0, Velocity: Vec3{X: 100}}, // first velocity is never used
		{Timestamp: 1, Velocity: Vec3{X: 2}},
		{Timestamp: 3, Velocity: Vec3{Y: 1, Z: -0.5}},
	}
	want := []Vec3{{}, {X: 2}, {X: 2, Y: 2, Z: -1}}
	if diff := cmp.Diff(want, Integrate(samples)); diff != "" {
		t.Errorf("Integrate mismatch (-want +got):\n%s", diff)
	}
}

func TestIntegrateDeterministic(t *testing.T) {
	samples := make([]Sample, 200)
	for i := range samples {
		samples[i] = Sample{Timestamp: float64(i) * 0.02, Velocity: Vec3{X: float64(i%7) * 0.3, Y: 1.1}}
	}
	assert.Equal(t, Integrate(samples), Integrate(samples))
	assert.Nil(t, Integrate(nil))
}
