package store

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localizer-go/fusion"
	"localizer-go/monitoring"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(nil)
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tick(ts float64, raw bool) fusion.TickResult {
	return fusion.TickResult{
		Output: fusion.Output{
			Timestamp:        ts,
			Position:         fusion.Vec3{X: ts, Y: 2 * ts, Z: 1},
			EstimateValid:    true,
			RawEstimateValid: raw,
			State:            fusion.StateDeadReckoning,
		},
		Reason:     fusion.ReasonNoFreshGNSS,
		WindowSize: 250,
	}
}

func TestOpenMigrates(t *testing.T) {
	db := openTestDB(t)
	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	// reopening an up to date database is a no-op
	require.NoError(t, db.MigrateUp())
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	params := fusion.DefaultParams()
	params.EstimationSpan = 250

	first, err := db.StartRun("first", fusion.DefaultParams())
	require.NoError(t, err)
	second, err := db.StartRun("second", params)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, second, 36)

	require.NoError(t, db.FinishRun(first))
	assert.Error(t, db.FinishRun("no-such-run"))

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].Label)
	assert.Equal(t, 250.0, runs[0].Params.EstimationSpan)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, first, runs[1].ID)
	assert.NotNil(t, runs[1].FinishedAt)
	assert.False(t, runs[1].StartedAt.IsZero())
}

func TestRecordAndQueryTicks(t *testing.T) {
	db := openTestDB(t)
	run, err := db.StartRun("ticks", fusion.DefaultParams())
	require.NoError(t, err)

	require.NoError(t, db.RecordTick(run, 7, tick(2, false)))
	require.NoError(t, db.RecordTick(run, 7, tick(1, true)))
	require.NoError(t, db.RecordTick(run, 8, tick(1, false)))

	got, err := db.RunEstimates(run, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Estimate{
		Vehicle:    7,
		Timestamp:  1,
		Position:   fusion.Vec3{X: 1, Y: 2, Z: 1},
		Valid:      true,
		Raw:        true,
		State:      "DEAD_RECKONING",
		Reason:     "no_fresh_gnss",
		WindowSize: 250,
	}, got[0])
	assert.Equal(t, 2.0, got[1].Timestamp)

	none, err := db.RunEstimates(run, 9)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecorderBatches(t *testing.T) {
	db := openTestDB(t)
	run, err := db.StartRun("recorder", fusion.DefaultParams())
	require.NoError(t, err)

	rec := NewRecorder(db, run, 4)
	for i := 0; i < 10; i++ {
		rec.Publish(0xABCDEF01, tick(float64(i), i%5 == 0))
	}
	written, failed := rec.Stats()
	assert.Equal(t, 8, written)
	assert.Zero(t, failed)

	rec.Flush()
	written, _ = rec.Stats()
	assert.Equal(t, 10, written)

	got, err := db.RunEstimates(run, 0xABCDEF01)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, uint32(0xABCDEF01), got[9].Vehicle)
	assert.True(t, got[5].Raw)
}

func TestRecorderUnknownRunFails(t *testing.T) {
	db := openTestDB(t)
	rec := NewRecorder(db, "missing", 2)
	rec.Publish(1, tick(1, false))
	rec.Publish(1, tick(2, false))
	written, failed := rec.Stats()
	assert.Zero(t, written)
	assert.Equal(t, 2, failed)
}

func TestAdminRoutes(t *testing.T) {
	db := openTestDB(t)
	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}
