package rbc

import (
	"fmt"
	"math"
	"time"

	"localizer-go/fusion"
)

// timeString formats fractional Unix seconds as UTC yyyymmddhhmmss.mmm.
func timeString(ts float64) string {
	ms := int64(math.Round(ts * 1000))
	return time.UnixMilli(ms).UTC().Format("20060102150405.000")
}

func boolDigit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FormatPosition formats one published estimate:
//
//	posdis:NNN,<id>,<seq>,<time>,<state>,<valid>,<raw>,<e>,<n>,<u>\r\n
//
// NNN is the total message length, written over the three spaces after
// the tag.
func FormatPosition(id uint32, seq uint16, out fusion.Output) []byte {
	body := fmt.Sprintf("posdis:   ,%016X,%d,%s,%s,%d,%d,%.3f,%.3f,%.3f\r\n",
		id, seq, timeString(out.Timestamp), out.State,
		boolDigit(out.EstimateValid), boolDigit(out.RawEstimateValid),
		out.Position.X, out.Position.Y, out.Position.Z)
	return fillLength([]byte(body), 7)
}

// FormatStatus formats an estimator state change with its diagnostics:
//
//	posstat:NNN,<id>,<time>,<state>,<reason>,<window>,<anchors>/<candidates>\r\n
func FormatStatus(id uint32, res fusion.TickResult) []byte {
	body := fmt.Sprintf("posstat:   ,%016X,%s,%s,%s,%d,%d/%d\r\n",
		id, timeString(res.Timestamp), res.State, res.Reason,
		res.WindowSize, res.AnchorsFinal, res.AnchorsInitial)
	return fillLength([]byte(body), 8)
}

// fillLength writes len(b) as three digits at b[at:at+3]. Lengths under
// 100 keep the leading space.
func fillLength(b []byte, at int) []byte {
	n := len(b)
	if n >= 100 {
		b[at] = byte('0' + (n/100)%10)
	}
	b[at+1] = byte('0' + (n/10)%10)
	b[at+2] = byte('0' + n%10)
	return b
}
