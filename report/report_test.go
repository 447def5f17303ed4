package report

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(n int, offset float64) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{float64(i), offset}
	}
	return out
}

func TestRMSE(t *testing.T) {
	got, err := RMSE(line(10, 3), line(12, -1))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got, 1e-12)

	_, err = RMSE(nil, line(3, 0))
	assert.ErrorIs(t, err, ErrNoOverlap)
}

func TestBestShiftRMSE(t *testing.T) {
	ref := line(50, 0)
	// pred lags ref by 3 samples
	pred := append(line(3, 0), ref...)
	rmse, shift, err := BestShiftRMSE(pred, ref, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, shift)
	assert.InDelta(t, 0, rmse, 1e-12)

	rmse, shift, err = BestShiftRMSE(ref, pred, 5)
	require.NoError(t, err)
	assert.Equal(t, -3, shift)
	assert.InDelta(t, 0, rmse, 1e-12)

	_, _, err = BestShiftRMSE(nil, nil, 2)
	assert.ErrorIs(t, err, ErrNoOverlap)
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.csv")
	require.NoError(t, WriteCSV(path, [][]string{
		{"ts", "e_m", "n_m"},
		{"1.0", "10.5", "-2"},
		{"2.0", "bad", "0"},
		{"3.0", "11.5", "-1"},
	}))
	got, err := ReadXY(path)
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{10.5, -2}, {11.5, -1}}, got)
}

func TestReadXYErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadXY(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	path := filepath.Join(dir, "cols.csv")
	require.NoError(t, WriteCSV(path, [][]string{{"a", "b"}, {"1", "2"}}))
	_, err = ReadXY(path)
	assert.ErrorContains(t, err, "columns not found")

	// legacy headers still load
	path = filepath.Join(dir, "legacy.csv")
	require.NoError(t, WriteCSV(path, [][]string{{"seq", "fused_x_m", "fused_y_m"}, {"1", "4", "5"}}))
	got, err := ReadXY(path)
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{4, 5}}, got)
}

func TestPlotTrack(t *testing.T) {
	est := make([][2]float64, 100)
	for i := range est {
		a := float64(i) / 100 * math.Pi
		est[i] = [2]float64{100 * math.Cos(a), 100 * math.Sin(a)}
	}
	var gnss [][2]float64
	for i := 0; i < len(est); i += 10 {
		gnss = append(gnss, est[i])
	}
	path := filepath.Join(t.TempDir(), "track.png")
	require.NoError(t, PlotTrack(path, Track{GNSS: gnss, Est: est, Raw: est[50:51]}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Positive(t, cfg.Width)

	assert.Error(t, PlotTrack(path, Track{}))
}
