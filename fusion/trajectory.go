package fusion

import "gonum.org/v1/gonum/spatial/r3"

// Integrate dead-reckons the window velocities into a trajectory relative
// to the first sample: traj[0] is zero and traj[k] = traj[k-1] + v[k]*dt[k].
func Integrate(samples []Sample) []Vec3 {
	if len(samples) == 0 {
		return nil
	}
	traj := make([]Vec3, len(samples))
	for k := 1; k < len(samples); k++ {
		dt := samples[k].Timestamp - samples[k-1].Timestamp
		traj[k] = r3.Add(traj[k-1], r3.Scale(dt, samples[k].Velocity))
	}
	return traj
}
