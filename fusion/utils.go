package fusion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is an ENU vector: X east, Y north, Z up, in meters (or m/s).
type Vec3 = r3.Vec

// maxInt returns the larger of two ints.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func roundInt(x float64) int { return int(math.Round(x)) }

// meanVec returns the arithmetic mean of vs, or the zero vector.
func meanVec(vs []Vec3) Vec3 {
	if len(vs) == 0 {
		return Vec3{}
	}
	var sum Vec3
	for _, v := range vs {
		sum = r3.Add(sum, v)
	}
	return r3.Scale(1/float64(len(vs)), sum)
}

// shift translates a trajectory point so that traj[anchor] lands on at.
func shift(at, trajAnchor, trajK Vec3) Vec3 {
	return r3.Add(r3.Sub(at, trajAnchor), trajK)
}
