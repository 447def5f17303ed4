package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"localizer-go/binlog"
	"localizer-go/config"
	"localizer-go/rbc"
	"localizer-go/server"
	"localizer-go/store"
	"localizer-go/web"
)

func main() {
	port := flag.Int("port", server.DefaultPort, "UDP port to listen on")
	httpPort := flag.Int("http", 0, "HTTP/WebSocket port (e.g. 8080). 0 to disable.")
	staticDir := flag.String("static", "", "Directory of static web files to serve")
	tuningPath := flag.String("config", "", "Path to tuning JSON (optional)")
	projectXML := flag.String("project", "", "Path to project.xml with the RBC output list (optional)")
	rbcHeader := flag.String("rbc-header", "", "Prefix for every RBC message (optional)")
	pcapPath := flag.String("pcap", "", "Path to output PCAP file or directory (optional)")
	dbPath := flag.String("db", "", "Path to sqlite database recording every tick (optional)")
	serialPort := flag.String("serial", "", "Serial device to read frames from in addition to UDP (optional)")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	echo := flag.Bool("echo", false, "Send estimate frames back to the source address of each vehicle")
	noCRC := flag.Bool("no-crc", false, "Accept frames with a bad CRC")
	flag.Parse()

	tuning := config.DefaultTuningConfig()
	if *tuningPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("Failed to load tuning: %v", err)
		}
		log.Printf("Loaded tuning from %s", *tuningPath)
	}
	params := tuning.Params()

	router := server.NewRouter(params)
	router.VerifyCRC = !*noCRC

	udpSvr, err := server.NewUdpServer(*port, router)
	if err != nil {
		log.Fatalf("Failed to create UDP server: %v", err)
	}
	if *echo {
		udpSvr.EnableEcho()
	}

	// RBC outputs
	if *projectXML != "" {
		targets, err := config.ParseOutputTargets(*projectXML)
		if err != nil {
			log.Fatalf("Failed to read output targets: %v", err)
		}
		if len(targets) > 0 {
			sender := rbc.NewSender()
			sender.SetHeader(*rbcHeader)
			for _, t := range targets {
				fullAddr := net.JoinHostPort(t.Addr, fmt.Sprint(t.Port))
				if strings.EqualFold(t.Type, "tcp") {
					sender.AddTCPSender(fullAddr, t.Mask)
					log.Printf("Added RBC TCP Sender: %s (mask %x)", fullAddr, t.Mask)
				} else {
					if err := sender.AddUDPSender(fullAddr, t.Mask); err != nil {
						log.Fatalf("Failed to add RBC UDP Sender: %v", err)
					}
					log.Printf("Added RBC UDP Sender: %s (mask %x)", fullAddr, t.Mask)
				}
			}
			if err := sender.Start(); err != nil {
				log.Fatalf("Failed to start RBC sender: %v", err)
			}
			defer sender.Stop()
			router.AddSink(rbc.NewPublisher(sender))
		}
	}

	if *pcapPath != "" {
		// Auto-generate name if directory
		path := *pcapPath
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = fmt.Sprintf("%s/PKTSBIN_%s.pcap", path, time.Now().Format("20060102150405"))
		}
		pw, err := binlog.NewPcapWriter(path)
		if err != nil {
			log.Fatalf("Failed to create pcap writer: %v", err)
		}
		defer pw.Close()
		router.SetPcapWriter(pw)
		log.Printf("Logging packets to %s", path)
	}

	var db *store.DB
	if *dbPath != "" {
		db, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		runID, err := db.StartRun("udp_server", params)
		if err != nil {
			log.Fatalf("Failed to start run: %v", err)
		}
		rec := store.NewRecorder(db, runID, store.DefaultBatchSize)
		router.AddSink(rec)
		defer func() {
			rec.Flush()
			if err := db.FinishRun(runID); err != nil {
				log.Printf("Failed to finish run: %v", err)
			}
		}()
		log.Printf("Recording run %s to %s", runID, *dbPath)
	}

	if *httpPort > 0 {
		webSvr := web.NewServer()
		webSvr.Vehicles = func() interface{} { return router.GetVehicles() }
		if db != nil {
			webSvr.AdminRoutes = func(mux *http.ServeMux) { db.AttachAdminRoutes(mux) }
		}
		router.AddSink(webSvr)
		go func() {
			if err := webSvr.Start(*httpPort, *staticDir); err != nil {
				log.Fatalf("HTTP server error: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *serialPort != "" {
		src, err := server.OpenSerial(*serialPort, *baud, router)
		if err != nil {
			log.Fatalf("Failed to open serial port: %v", err)
		}
		go func() {
			if err := src.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Serial source stopped: %v", err)
			}
		}()
	}

	go udpSvr.Start(ctx)

	<-ctx.Done()
	log.Println("Shutting down...")
	udpSvr.Stop()
}
