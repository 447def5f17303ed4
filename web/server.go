package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"localizer-go/fusion"
	"localizer-go/monitoring"
)

// EstimateMessage is the JSON document broadcast on /ws for every tick.
type EstimateMessage struct {
	Vehicle   string  `json:"vehicle"`
	Timestamp float64 `json:"ts"`
	E         float64 `json:"e"`
	N         float64 `json:"n"`
	U         float64 `json:"u"`
	Valid     bool    `json:"valid"`
	Raw       bool    `json:"raw"`
	State     string  `json:"state"`
	Reason    string  `json:"reason"`
	Anchors   int     `json:"anchors,omitempty"`
	Removed   int     `json:"removed,omitempty"`
}

type Server struct {
	Hub    *Hub
	Tracks *TrackHistory

	// Vehicles supplies the /api/vehicles document. Nil serves an empty list.
	Vehicles func() interface{}
	// AdminRoutes, when set, may mount extra handlers on the mux.
	AdminRoutes func(mux *http.ServeMux)
}

func NewServer() *Server {
	return &Server{
		Hub:    NewHub(),
		Tracks: NewTrackHistory(DefaultTrackLength),
	}
}

// Publish broadcasts res to websocket clients and records it in the
// track history.
func (s *Server) Publish(vehicle uint32, res fusion.TickResult) {
	s.Tracks.Add(vehicle, res)
	b, err := json.Marshal(EstimateMessage{
		Vehicle:   fmt.Sprintf("%08X", vehicle),
		Timestamp: res.Timestamp,
		E:         res.Position.X,
		N:         res.Position.Y,
		U:         res.Position.Z,
		Valid:     res.EstimateValid,
		Raw:       res.RawEstimateValid,
		State:     res.State.String(),
		Reason:    res.Reason.String(),
		Anchors:   res.AnchorsFinal,
		Removed:   res.Removed,
	})
	if err != nil {
		monitoring.Logf("web: encode estimate: %v", err)
		return
	}
	s.Hub.Broadcast(b)
}

// Handler builds the HTTP routes. staticDir may be empty.
func (s *Server) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.Hub, w, r)
	})
	mux.HandleFunc("/api/vehicles", s.handleVehicles)
	mux.HandleFunc("/debug/track", s.Tracks.handleTrack)

	if s.AdminRoutes != nil {
		s.AdminRoutes(mux)
	}

	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	var doc interface{} = []struct{}{}
	if s.Vehicles != nil {
		doc = s.Vehicles()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		monitoring.Logf("web: encode vehicles: %v", err)
	}
}

// Start runs the hub and serves HTTP on port until the listener fails.
func (s *Server) Start(port int, staticDir string) error {
	go s.Hub.Run()
	defer s.Hub.Close()

	addr := fmt.Sprintf(":%d", port)
	monitoring.Logf("HTTP Server listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler(staticDir))
}
