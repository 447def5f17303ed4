package fusion

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrTooFewAnchors is returned when alignment is attempted without anchors.
	ErrTooFewAnchors = errors.New("fusion: no alignment anchors")
	// ErrGaveUp is returned when outlier rejection exhausted the anchor support.
	ErrGaveUp = errors.New("fusion: alignment gave up")
)

// AlignParams are the aligner thresholds.
type AlignParams struct {
	OutlierThreshold float64 // max residual norm for an anchor, m
	GiveUpFraction   float64 // of speed-qualifying samples
}

// Alignment is the outcome of a successful Align call.
type Alignment struct {
	Position    Vec3  // estimate at the newest window sample
	Anchor      int   // window index the trajectory was pinned to
	Anchors     []int // surviving anchors
	Removed     []int // rejected anchors in removal order
	Iterations  int
	MaxResidual float64
}

// Align pins the dead-reckoned trajectory to the GNSS fixes at the anchor
// indices with a single translation, centered on the mean anchor residual.
// The anchor with the largest residual is dropped while it exceeds the
// outlier threshold and the fit is redone against the remaining ones. Each
// pass removes one anchor, so the loop runs at most len(anchors) times.
//
// anchors is not modified. speedQualified is the population the give-up
// fraction is taken of.
func Align(samples []Sample, traj []Vec3, anchors []int, speedQualified int, p AlignParams) (Alignment, error) {
	if len(anchors) == 0 {
		return Alignment{}, ErrTooFewAnchors
	}
	giveUp := float64(speedQualified) * p.GiveUpFraction
	idx := append([]int(nil), anchors...)
	res := Alignment{}

	residuals := make([]Vec3, 0, len(idx))
	norms := make([]float64, 0, len(idx))
	var refined Vec3
	converged := false
	for len(idx) > 0 {
		res.Iterations++
		last := idx[len(idx)-1]
		fixL := samples[last].GNSSPosition

		residuals = residuals[:0]
		for _, i := range idx {
			base := shift(fixL, traj[last], traj[i])
			residuals = append(residuals, r3.Sub(base, samples[i].GNSSPosition))
		}
		refined = r3.Sub(fixL, meanVec(residuals))

		norms = norms[:0]
		for _, i := range idx {
			base := shift(refined, traj[last], traj[i])
			norms = append(norms, r3.Norm(r3.Sub(base, samples[i].GNSSPosition)))
		}
		worst := floats.MaxIdx(norms)
		res.MaxResidual = norms[worst]
		if norms[worst] <= p.OutlierThreshold {
			converged = true
			break
		}
		res.Removed = append(res.Removed, idx[worst])
		idx = append(idx[:worst], idx[worst+1:]...)
		if float64(len(idx)) < giveUp {
			break
		}
	}
	if !converged || float64(len(idx)) < giveUp {
		return res, ErrGaveUp
	}

	end := len(samples) - 1
	res.Anchor = idx[len(idx)-1]
	res.Anchors = idx
	res.Position = r3.Add(refined, r3.Sub(traj[end], traj[res.Anchor]))
	return res, nil
}
