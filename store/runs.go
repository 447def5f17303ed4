package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"localizer-go/fusion"
)

// Run is one estimator session: a live service lifetime or an offline fuse.
type Run struct {
	ID         string
	Label      string
	Params     fusion.Params
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Estimate is one stored tick.
type Estimate struct {
	Vehicle        uint32
	Timestamp      float64
	Position       fusion.Vec3
	Valid          bool
	Raw            bool
	State          string
	Reason         string
	WindowSize     int
	AnchorsInitial int
	AnchorsFinal   int
	Iterations     int
	Removed        int
}

// StartRun registers a new run with the tuning it uses and returns its id.
func (db *DB) StartRun(label string, params fusion.Params) (string, error) {
	pj, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	id := uuid.New().String()
	if _, err := db.Exec(`INSERT INTO runs (run_id, label, params_json) VALUES (?, ?, ?)`, id, label, string(pj)); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run's end time.
func (db *DB) FinishRun(runID string) error {
	res, err := db.Exec(`UPDATE runs SET finished_at = CURRENT_TIMESTAMP WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

const insertEstimate = `INSERT INTO estimates (
	run_id, vehicle, ts, e, n, u, valid, raw, state, reason,
	window_size, anchors_initial, anchors_final, iterations, removed
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func estimateArgs(runID string, vehicle uint32, res fusion.TickResult) []interface{} {
	return []interface{}{
		runID, int64(vehicle), res.Timestamp,
		res.Position.X, res.Position.Y, res.Position.Z,
		res.EstimateValid, res.RawEstimateValid,
		res.State.String(), res.Reason.String(),
		res.WindowSize, res.AnchorsInitial, res.AnchorsFinal, res.Iterations, res.Removed,
	}
}

// RecordTick stores one tick result.
func (db *DB) RecordTick(runID string, vehicle uint32, res fusion.TickResult) error {
	if _, err := db.Exec(insertEstimate, estimateArgs(runID, vehicle, res)...); err != nil {
		return fmt.Errorf("insert estimate: %w", err)
	}
	return nil
}

// TickRecord is one entry of a RecordTicks batch.
type TickRecord struct {
	Vehicle uint32
	Result  fusion.TickResult
}

// RecordTicks stores a batch in one transaction.
func (db *DB) RecordTicks(runID string, batch []TickRecord) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(insertEstimate)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, r := range batch {
		if _, err := stmt.Exec(estimateArgs(runID, r.Vehicle, r.Result)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert estimate: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RunEstimates returns the stored ticks of one vehicle in a run, in time
// order.
func (db *DB) RunEstimates(runID string, vehicle uint32) ([]Estimate, error) {
	rows, err := db.Query(`SELECT vehicle, ts, e, n, u, valid, raw, state, reason,
			window_size, anchors_initial, anchors_final, iterations, removed
		FROM estimates WHERE run_id = ? AND vehicle = ? ORDER BY ts, rowid`, runID, int64(vehicle))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		var e Estimate
		var vehicle int64
		if err := rows.Scan(&vehicle, &e.Timestamp, &e.Position.X, &e.Position.Y, &e.Position.Z,
			&e.Valid, &e.Raw, &e.State, &e.Reason,
			&e.WindowSize, &e.AnchorsInitial, &e.AnchorsFinal, &e.Iterations, &e.Removed); err != nil {
			return nil, err
		}
		e.Vehicle = uint32(vehicle)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Runs lists every run, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, label, params_json,
			CAST(strftime('%s', started_at) AS INTEGER), CAST(strftime('%s', finished_at) AS INTEGER)
		FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var pj string
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Label, &pj, &started, &finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(pj), &r.Params); err != nil {
			return nil, fmt.Errorf("run %s: decode params: %w", r.ID, err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			t := time.Unix(finished.Int64, 0).UTC()
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
