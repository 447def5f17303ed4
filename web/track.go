package web

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"localizer-go/fusion"
)

// DefaultTrackLength is the number of points kept per vehicle.
const DefaultTrackLength = 5000

// TrackPoint is one published estimate.
type TrackPoint struct {
	Timestamp float64
	E, N      float64
	Raw       bool
}

// TrackHistory keeps the most recent valid estimates of each vehicle.
type TrackHistory struct {
	mu     sync.Mutex
	max    int
	tracks map[uint32][]TrackPoint
}

func NewTrackHistory(max int) *TrackHistory {
	if max <= 0 {
		max = DefaultTrackLength
	}
	return &TrackHistory{max: max, tracks: make(map[uint32][]TrackPoint)}
}

// Add records res when it carries a valid estimate.
func (t *TrackHistory) Add(vehicle uint32, res fusion.TickResult) {
	if !res.EstimateValid {
		return
	}
	p := TrackPoint{Timestamp: res.Timestamp, E: res.Position.X, N: res.Position.Y, Raw: res.RawEstimateValid}
	t.mu.Lock()
	defer t.mu.Unlock()
	tr := append(t.tracks[vehicle], p)
	if len(tr) > t.max {
		tr = append(tr[:0:0], tr[len(tr)-t.max:]...)
	}
	t.tracks[vehicle] = tr
}

// Track returns a copy of the history of vehicle, oldest first.
func (t *TrackHistory) Track(vehicle uint32) []TrackPoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TrackPoint(nil), t.tracks[vehicle]...)
}

// Vehicles returns the ids with a recorded track in ascending order.
func (t *TrackHistory) Vehicles() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uint32, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// handleTrack renders the track of one vehicle as an E/N scatter, raw
// estimates and dead-reckoned positions as separate series.
// Query params:
//   - vehicle (hex or decimal id; defaults to the lowest known id)
func (t *TrackHistory) handleTrack(w http.ResponseWriter, r *http.Request) {
	var vehicle uint32
	if v := r.URL.Query().Get("vehicle"); v != "" {
		id, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			http.Error(w, "invalid vehicle id", http.StatusBadRequest)
			return
		}
		vehicle = uint32(id)
	} else {
		ids := t.Vehicles()
		if len(ids) == 0 {
			http.Error(w, "no track recorded", http.StatusNotFound)
			return
		}
		vehicle = ids[0]
	}

	track := t.Track(vehicle)
	if len(track) == 0 {
		http.Error(w, "no track recorded", http.StatusNotFound)
		return
	}

	raw := make([]opts.ScatterData, 0, len(track)/10+1)
	dr := make([]opts.ScatterData, 0, len(track))
	for _, p := range track {
		pt := opts.ScatterData{Value: []interface{}{p.E, p.N, p.Timestamp}}
		if p.Raw {
			raw = append(raw, pt)
		} else {
			dr = append(dr, pt)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vehicle Track", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Estimated Track", Subtitle: fmt.Sprintf("vehicle=%08X points=%d raw=%d", vehicle, len(track), len(raw))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "E (m)", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "N (m)", NameLocation: "middle", NameGap: 30, Scale: opts.Bool(true)}),
	)
	scatter.AddSeries("dead reckoning", dr, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	scatter.AddSeries("aligned", raw, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
