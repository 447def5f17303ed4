package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectAnchors(t *testing.T) {
	samples := []Sample{
		{CorrectedSpeed: 5, GNSSValid: true},
		{CorrectedSpeed: 5},
		{CorrectedSpeed: 0.5, GNSSValid: true}, // stationary fix
		{CorrectedSpeed: 1, GNSSValid: true},   // at the threshold
		{CorrectedSpeed: 8, GNSSValid: true},
	}
	anchors, qualified := SelectAnchors(samples, 1)
	assert.Equal(t, []int{0, 4}, anchors)
	assert.Equal(t, 3, qualified)
}

func TestSelectAnchorsNone(t *testing.T) {
	anchors, qualified := SelectAnchors([]Sample{{CorrectedSpeed: 9}}, 1)
	assert.Empty(t, anchors)
	assert.Equal(t, 1, qualified)
}
