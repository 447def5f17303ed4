package server

import (
	"context"
	"fmt"
	"time"

	"localizer-go/binlog"
	"localizer-go/monitoring"
)

// Replay feeds the received datagrams of a recording through the router,
// paced by their capture times divided by speed. speed 0 replays as fast
// as possible. Estimate records (FlagTx) are skipped.
func (r *Router) Replay(ctx context.Context, path string, speed float64) (int, error) {
	recs, err := binlog.Records(path)
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", path, err)
	}
	monitoring.Logf("Replaying %s at %.1fx speed...", path, speed)

	var first time.Time
	start := time.Now()
	count := 0
	for _, rec := range recs {
		if rec.Flag != binlog.FlagRx {
			continue
		}
		if first.IsZero() {
			first = rec.Time
			start = time.Now()
		} else if speed > 0 {
			target := time.Duration(float64(rec.Time.Sub(first)) / speed)
			if wait := target - time.Since(start); wait > 0 {
				select {
				case <-ctx.Done():
					return count, ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
		r.HandleDatagram(rec.Payload, rec.Addr)
		count++
	}
	monitoring.Logf("Replay loop ended. Total Packets: %d", count)
	return count, nil
}
