package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"localizer-go/binlog"
	"localizer-go/fusion"
	"localizer-go/report"
	"localizer-go/sim"
)

func parseRange(s string) ([2]float64, error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return [2]float64{}, fmt.Errorf("expected from:to, got %q", s)
	}
	a, err := strconv.ParseFloat(from, 64)
	if err != nil {
		return [2]float64{}, err
	}
	b, err := strconv.ParseFloat(to, 64)
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{a, b}, nil
}

// parseOutlier reads "seq:east:north".
func parseOutlier(s string) (uint32, fusion.Vec3, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fusion.Vec3{}, fmt.Errorf("expected seq:east:north, got %q", s)
	}
	seq, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, fusion.Vec3{}, err
	}
	e, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fusion.Vec3{}, err
	}
	n, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fusion.Vec3{}, err
	}
	return uint32(seq), fusion.Vec3{X: e, Y: n}, nil
}

func main() {
	outPath := flag.String("out", "sim.pcap", "Output PCAP path")
	truthPath := flag.String("truth", "", "Optional ground truth CSV")
	vehicle := flag.Uint("vehicle", 0x1001, "Vehicle id")
	duration := flag.Float64("duration", 120, "Drive length in seconds")
	speed := flag.Float64("speed", 15, "Vehicle speed in m/s")
	course := flag.Float64("course", 90, "Initial course in degrees clockwise from north")
	turn := flag.Float64("turn", 0, "Turn rate in deg/s")
	gnssRate := flag.Float64("gnss-rate", 5, "GNSS fix rate in Hz (negative disables)")
	stationary := flag.Float64("stationary", 0, "Stand still for this many seconds first")
	outage := flag.String("outage", "", "GNSS outage interval from:to in seconds (optional)")
	outlier := flag.String("outlier", "", "Offset one fix, seq:east:north (optional)")
	startUnix := flag.Int64("start", 1700000000, "Recording start time (Unix seconds)")
	flag.Parse()

	sc := sim.Scenario{
		Duration:          *duration,
		GNSSRateHz:        *gnssRate,
		Speed:             *speed,
		CourseDeg:         *course,
		TurnRateDegPerSec: *turn,
		StationaryUntil:   *stationary,
		HeadingFrom:       0,
	}
	if *outage != "" {
		r, err := parseRange(*outage)
		if err != nil {
			log.Fatalf("Invalid outage: %v", err)
		}
		sc.Outages = append(sc.Outages, r)
	}
	if *outlier != "" {
		seq, off, err := parseOutlier(*outlier)
		if err != nil {
			log.Fatalf("Invalid outlier: %v", err)
		}
		sc.Outliers = map[uint32]fusion.Vec3{seq: off}
	}

	events, truth := sc.Generate()

	pw, err := binlog.NewPcapWriter(*outPath)
	if err != nil {
		log.Fatalf("Failed to create pcap writer: %v", err)
	}
	src := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 50000}
	base := time.Unix(*startUnix, 0)
	dgs := sim.Datagrams(uint32(*vehicle), events)
	for _, d := range dgs {
		ts := base.Add(time.Duration(d.Time * float64(time.Second)))
		if err := pw.WritePacketAt(ts, binlog.FlagRx, src, d.Data); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}
	if err := pw.Close(); err != nil {
		log.Fatalf("Close failed: %v", err)
	}
	fmt.Printf("Vehicle %08X: wrote %d datagrams (%d events) to %s\n", *vehicle, len(dgs), len(events), *outPath)

	if *truthPath != "" {
		rows := [][]string{{"ts", "e_m", "n_m", "u_m"}}
		for _, tr := range truth {
			rows = append(rows, []string{
				strconv.FormatFloat(tr.Time, 'f', 3, 64),
				strconv.FormatFloat(tr.Position.X, 'f', 4, 64),
				strconv.FormatFloat(tr.Position.Y, 'f', 4, 64),
				strconv.FormatFloat(tr.Position.Z, 'f', 4, 64),
			})
		}
		if err := report.WriteCSV(*truthPath, rows); err != nil {
			log.Fatalf("Write truth failed: %v", err)
		}
		fmt.Printf("Wrote %d truth rows to %s\n", len(truth), *truthPath)
	}
}
