package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectWindow(t *testing.T) {
	b := NewSampleBuffer(8)
	fill(b, distSamples(0, 4, 8, 12, 16))

	w := SelectWindow(b, 8)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 3, w.Start)
	assert.False(t, w.Saturated)
	assert.Equal(t, 12.0, w.Samples[0].Distance)
}

func TestSelectWindowSaturated(t *testing.T) {
	b := NewSampleBuffer(4)
	fill(b, distSamples(0, 1, 2, 3, 4, 5))

	w := SelectWindow(b, 100)
	assert.Equal(t, 4, w.Len())
	assert.Equal(t, 0, w.Start)
	assert.True(t, w.Saturated)
}

func TestSelectWindowEmpty(t *testing.T) {
	w := SelectWindow(NewSampleBuffer(4), 10)
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Saturated)
}
