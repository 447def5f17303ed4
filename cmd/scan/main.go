package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"localizer-go/binlog"
	"localizer-go/config"
	"localizer-go/fusion"
	"localizer-go/monitoring"
	"localizer-go/protocol"
	"localizer-go/server"
)

type summary struct {
	frames      map[uint16]int
	ticks       int
	valid, raw  int
	firstRaw    float64
	minE, maxE  float64
	minN, maxN  float64
	reasonCount map[fusion.Reason]int
}

func newSummary() *summary {
	return &summary{
		frames:      map[uint16]int{},
		reasonCount: map[fusion.Reason]int{},
		firstRaw:    math.NaN(),
		minE:        math.Inf(1),
		maxE:        math.Inf(-1),
		minN:        math.Inf(1),
		maxN:        math.Inf(-1),
	}
}

var typeNames = map[uint16]string{
	protocol.TypeVelocity: "velocity",
	protocol.TypeGNSS:     "gnss",
	protocol.TypeSpeed:    "speed",
	protocol.TypeDistance: "distance",
	protocol.TypeHeading:  "heading",
	protocol.TypeEstimate: "estimate",
}

func main() {
	pcapPath := flag.String("pcap", "", "Input PCAP file")
	tuningPath := flag.String("config", "", "Path to tuning JSON (optional)")
	verbose := flag.Bool("v", false, "Print estimator diagnostics")
	flag.Parse()

	if *pcapPath == "" {
		fmt.Println("--pcap required")
		os.Exit(1)
	}
	if !*verbose {
		monitoring.SetLogger(nil)
	}

	tuning := config.DefaultTuningConfig()
	if *tuningPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*tuningPath); err != nil {
			fmt.Printf("load tuning failed: %v\n", err)
			os.Exit(1)
		}
	}

	parser := binlog.NewBinlogParser(*pcapPath)
	if err := parser.Parse(); err != nil {
		fmt.Printf("parse pcap failed: %v\n", err)
		os.Exit(1)
	}

	sums := map[uint32]*summary{}
	get := func(v uint32) *summary {
		s, ok := sums[v]
		if !ok {
			s = newSummary()
			sums[v] = s
		}
		return s
	}

	router := server.NewRouter(tuning.Params())
	router.AddSink(server.SinkFunc(func(v uint32, res fusion.TickResult) {
		s := get(v)
		s.ticks++
		s.reasonCount[res.Reason]++
		if !res.EstimateValid {
			return
		}
		s.valid++
		if res.RawEstimateValid {
			s.raw++
			if math.IsNaN(s.firstRaw) {
				s.firstRaw = res.Timestamp
			}
		}
		s.minE, s.maxE = math.Min(s.minE, res.Position.X), math.Max(s.maxE, res.Position.X)
		s.minN, s.maxN = math.Min(s.minN, res.Position.Y), math.Max(s.maxN, res.Position.Y)
	}))

	fmt.Printf("Scanning vehicles in %s...\n", *pcapPath)
	for _, evt := range parser.Events {
		for _, in := range evt.Inner {
			get(in.Addr).frames[in.Type]++
			if evt.Flag != binlog.FlagRx || in.Msg == nil {
				continue
			}
			router.HandleMessage(in.Addr, in.Msg)
		}
	}

	for _, v := range parser.Vehicles() {
		s := sums[v]
		fmt.Printf("Vehicle %08X:\n", v)
		types := make([]int, 0, len(s.frames))
		for t := range s.frames {
			types = append(types, int(t))
		}
		sort.Ints(types)
		for _, t := range types {
			name, ok := typeNames[uint16(t)]
			if !ok {
				name = fmt.Sprintf("0x%02X", t)
			}
			fmt.Printf("  %-9s %d frames\n", name, s.frames[uint16(t)])
		}
		fmt.Printf("  ticks %d, valid %d, aligned %d", s.ticks, s.valid, s.raw)
		if !math.IsNaN(s.firstRaw) {
			fmt.Printf(", first aligned at %.3f", s.firstRaw)
		}
		fmt.Println()
		if s.valid > 0 {
			fmt.Printf("  E[%.2f, %.2f] N[%.2f, %.2f]\n", s.minE, s.maxE, s.minN, s.maxN)
		}
		for r := fusion.ReasonNone; r <= fusion.ReasonGaveUp; r++ {
			if n := s.reasonCount[r]; n > 0 {
				fmt.Printf("  %-16s %d\n", r, n)
			}
		}
	}
	if parser.Skipped > 0 {
		fmt.Printf("%d frames failed to decode\n", parser.Skipped)
	}
}
