package store

import (
	"sync"

	"localizer-go/fusion"
	"localizer-go/monitoring"
)

// DefaultBatchSize is the number of ticks a Recorder buffers per commit.
const DefaultBatchSize = 500

// Recorder stores the tick results published to it under one run. Ticks
// are buffered and written in batches; Flush writes what is pending.
type Recorder struct {
	db    *DB
	runID string
	size  int

	mu      sync.Mutex
	pending []TickRecord
	written int
	failed  int
}

func NewRecorder(db *DB, runID string, batchSize int) *Recorder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Recorder{db: db, runID: runID, size: batchSize}
}

func (r *Recorder) RunID() string { return r.runID }

// Publish buffers one tick result.
func (r *Recorder) Publish(vehicle uint32, res fusion.TickResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, TickRecord{Vehicle: vehicle, Result: res})
	if len(r.pending) >= r.size {
		r.flushLocked()
	}
}

// Flush writes every buffered tick.
func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

func (r *Recorder) flushLocked() {
	if len(r.pending) == 0 {
		return
	}
	if err := r.db.RecordTicks(r.runID, r.pending); err != nil {
		r.failed += len(r.pending)
		monitoring.Logf("store: run %s: dropped %d ticks: %v", r.runID, len(r.pending), err)
	} else {
		r.written += len(r.pending)
	}
	r.pending = r.pending[:0]
}

// Stats returns the number of ticks written and dropped so far.
func (r *Recorder) Stats() (written, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written, r.failed
}
