package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"localizer-go/fusion"
	"localizer-go/rbc"
	"localizer-go/server"
	"localizer-go/sim"
)

func main() {
	udpAddr := flag.String("udp", "127.0.0.1:5555", "UDP destination (positions and aligned estimates)")
	tcpAddr := flag.String("tcp", "", "TCP destination for status messages (optional)")
	header := flag.String("hdr", "AOX", "Header string")
	vehicle := flag.Uint("vehicle", 0x1001, "Simulated vehicle id")
	duration := flag.Float64("duration", 120, "Simulated drive length in seconds")
	speed := flag.Float64("speed", 15, "Vehicle speed in m/s")
	turn := flag.Float64("turn", 0, "Turn rate in deg/s")
	realtime := flag.Bool("realtime", true, "Pace events at their simulated time")
	flag.Parse()

	sender := rbc.NewSender()
	sender.SetHeader(*header)
	if err := sender.AddUDPSender(*udpAddr, rbc.FlagPosition|rbc.FlagRawEstimate); err != nil {
		log.Fatalf("Failed to add UDP sender: %v", err)
	}
	if *tcpAddr != "" {
		sender.AddTCPSender(*tcpAddr, rbc.FlagStatus)
	}
	if err := sender.Start(); err != nil {
		log.Fatalf("Failed to start sender: %v", err)
	}
	defer sender.Stop()

	router := server.NewRouter(fusion.DefaultParams())
	router.AddSink(rbc.NewPublisher(sender))

	events, _ := sim.Scenario{
		Duration:          *duration,
		Speed:             *speed,
		CourseDeg:         90,
		TurnRateDegPerSec: *turn,
		HeadingFrom:       0,
	}.Generate()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dgs := sim.Datagrams(uint32(*vehicle), events)
	log.Printf("Sender started: %d datagrams over %.0f s. Press Ctrl+C to exit.", len(dgs), *duration)
	start := time.Now()
	for _, d := range dgs {
		if *realtime {
			wait := time.Duration(d.Time*float64(time.Second)) - time.Since(start)
			if wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
		if ctx.Err() != nil {
			return
		}
		router.HandleDatagram(d.Data, nil)
	}
	log.Printf("Done. Sent %d messages.", sender.Sent())
}
