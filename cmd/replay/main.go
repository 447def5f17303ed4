package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"localizer-go/binlog"
)

func main() {
	pcapPath := flag.String("pcap", "", "Input PCAP file")
	destAddr := flag.String("dest", "127.0.0.1:44333", "Destination UDP address")
	speed := flag.Float64("speed", 1.0, "Replay speed multiplier (0 for max speed)")
	flag.Parse()

	if *pcapPath == "" {
		log.Fatal("--pcap required")
	}

	raddr, err := net.ResolveUDPAddr("udp", *destAddr)
	if err != nil {
		log.Fatalf("Invalid dest address: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	recs, err := binlog.Records(*pcapPath)
	if err != nil {
		log.Fatalf("Open pcap failed: %v", err)
	}

	log.Printf("Replaying %s to %s...", *pcapPath, *destAddr)

	var first time.Time
	var startReal time.Time
	count := 0
	for _, rec := range recs {
		// only received sensor traffic; published estimates are regenerated
		if rec.Flag != binlog.FlagRx {
			continue
		}
		if first.IsZero() {
			first = rec.Time
			startReal = time.Now()
		} else if *speed > 0 {
			targetDelay := time.Duration(float64(rec.Time.Sub(first)) / *speed)
			if elapsed := time.Since(startReal); targetDelay > elapsed {
				time.Sleep(targetDelay - elapsed)
			}
		}

		if _, err := conn.Write(rec.Payload); err != nil {
			log.Printf("Write error: %v", err)
		}
		count++
		if count%1000 == 0 {
			fmt.Printf("\rSent %d packets...", count)
		}
	}
	fmt.Printf("\nDone. Sent %d packets.\n", count)
}
