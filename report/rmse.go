// Package report evaluates estimated tracks offline: error against a
// reference track, CSV exchange and PNG plots.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrNoOverlap is returned when two tracks share no samples.
var ErrNoOverlap = errors.New("report: tracks do not overlap")

// RMSE is the root mean square horizontal distance between pred[i] and
// ref[i] over the common prefix.
func RMSE(pred, ref [][2]float64) (float64, error) {
	n := min(len(pred), len(ref))
	if n == 0 {
		return 0, ErrNoOverlap
	}
	var sum float64
	for i := 0; i < n; i++ {
		dx := pred[i][0] - ref[i][0]
		dy := pred[i][1] - ref[i][1]
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum / float64(n)), nil
}

// BestShiftRMSE slides pred against ref by up to maxShift samples in either
// direction and returns the lowest RMSE with its shift. A positive shift
// means pred[i+shift] is compared with ref[i].
func BestShiftRMSE(pred, ref [][2]float64, maxShift int) (float64, int, error) {
	bestShift := 0
	bestRmse := math.MaxFloat64
	found := false
	for shift := -maxShift; shift <= maxShift; shift++ {
		var rmse float64
		var err error
		if shift >= 0 {
			if shift >= len(pred) {
				continue
			}
			rmse, err = RMSE(pred[shift:], ref)
		} else {
			if -shift >= len(ref) {
				continue
			}
			rmse, err = RMSE(pred, ref[-shift:])
		}
		if err != nil {
			continue
		}
		if rmse < bestRmse {
			bestRmse, bestShift, found = rmse, shift, true
		}
	}
	if !found {
		return 0, 0, ErrNoOverlap
	}
	return bestRmse, bestShift, nil
}

// columnPairs are the recognised east/north header names, in preference
// order.
var columnPairs = [][2]string{
	{"e_m", "n_m"},
	{"fused_x_m", "fused_y_m"},
	{"x_m", "y_m"},
	{"gnss_e_m", "gnss_n_m"},
}

// ReadXY loads the east/north columns of a CSV track.
func ReadXY(path string) ([][2]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(recs) <= 1 {
		return nil, fmt.Errorf("%s: no rows", path)
	}

	idxX, idxY := -1, -1
	for _, p := range columnPairs {
		ix, iy := indexOf(recs[0], p[0]), indexOf(recs[0], p[1])
		if ix >= 0 && iy >= 0 {
			idxX, idxY = ix, iy
			break
		}
	}
	if idxX < 0 {
		return nil, fmt.Errorf("%s: columns not found", path)
	}

	out := make([][2]float64, 0, len(recs)-1)
	for _, row := range recs[1:] {
		if len(row) <= idxX || len(row) <= idxY {
			continue
		}
		x, errX := strconv.ParseFloat(row[idxX], 64)
		y, errY := strconv.ParseFloat(row[idxY], 64)
		if errX != nil || errY != nil {
			continue
		}
		out = append(out, [2]float64{x, y})
	}
	return out, nil
}

// WriteCSV writes rows, header first, to path.
func WriteCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func indexOf(arr []string, key string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), key) {
			return i
		}
	}
	return -1
}
