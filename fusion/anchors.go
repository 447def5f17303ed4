package fusion

// SelectAnchors returns, in ascending order, the window indices that carry a
// fresh GNSS fix while moving faster than speedThreshold, together with the
// number of speed-qualifying samples. Fixes taken while (nearly) stationary
// never become anchors.
func SelectAnchors(samples []Sample, speedThreshold float64) (anchors []int, speedQualified int) {
	for i, s := range samples {
		if s.CorrectedSpeed <= speedThreshold {
			continue
		}
		speedQualified++
		if s.GNSSValid {
			anchors = append(anchors, i)
		}
	}
	return anchors, speedQualified
}
