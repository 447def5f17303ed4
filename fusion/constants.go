package fusion

// Estimator defaults mirrored from the deployed vehicle tuning.
const (
	DefaultBufferCapacity           = 50000
	DefaultEstimationSpan           = 500.0      // m of traveled distance
	DefaultSpeedThreshold           = 10.0 / 3.6 // m/s
	DefaultPositionOutlierThreshold = 3.0        // m
	DefaultGiveUpFraction           = 1.0 / 100
	DefaultMinAnchorFraction        = 1.0 / 20 / 2.5
	DefaultGNSSDecimation           = 10
	DefaultVelocityRateHz           = 100.0
	DefaultTickRateHz               = 50.0
)

// Params holds the estimator tuning. The zero value is not usable; start
// from DefaultParams.
type Params struct {
	BufferCapacity           int
	EstimationSpan           float64
	SpeedThreshold           float64
	PositionOutlierThreshold float64
	GiveUpFraction           float64
	MinAnchorFraction        float64
	GNSSDecimation           int
	VelocityRateHz           float64
	TickRateHz               float64
}

// DefaultParams returns the deployed tuning.
func DefaultParams() Params {
	return Params{
		BufferCapacity:           DefaultBufferCapacity,
		EstimationSpan:           DefaultEstimationSpan,
		SpeedThreshold:           DefaultSpeedThreshold,
		PositionOutlierThreshold: DefaultPositionOutlierThreshold,
		GiveUpFraction:           DefaultGiveUpFraction,
		MinAnchorFraction:        DefaultMinAnchorFraction,
		GNSSDecimation:           DefaultGNSSDecimation,
		VelocityRateHz:           DefaultVelocityRateHz,
		TickRateHz:               DefaultTickRateHz,
	}
}

// Modulus is the number of velocity events per pipeline tick.
func (p Params) Modulus() int {
	if p.TickRateHz <= 0 || p.VelocityRateHz <= p.TickRateHz {
		return 1
	}
	return maxInt(1, roundInt(p.VelocityRateHz/p.TickRateHz))
}
