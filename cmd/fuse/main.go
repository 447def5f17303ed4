package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"localizer-go/binlog"
	"localizer-go/config"
	"localizer-go/fusion"
	"localizer-go/monitoring"
	"localizer-go/protocol"
	"localizer-go/report"
	"localizer-go/server"
	"localizer-go/store"
)

type vehicleRun struct {
	rows [][]string
	gnss [][2]float64
	est  [][2]float64
	raw  [][2]float64
}

func newVehicleRun() *vehicleRun {
	return &vehicleRun{rows: [][]string{{"ts", "e_m", "n_m", "u_m", "valid", "raw", "state", "reason", "anchors", "removed"}}}
}

func main() {
	pcapPath := flag.String("pcap", "", "Input PCAP/binlog file")
	vehicleHex := flag.String("vehicle", "", "Vehicle id in hex (e.g. 1001); empty processes all")
	outPath := flag.String("out", "fused.csv", "Output CSV path")
	tuningPath := flag.String("config", "", "Path to tuning JSON (optional)")
	refPath := flag.String("ref", "", "Optional reference CSV for RMSE")
	maxShift := flag.Int("max-shift", 400, "Max sample shift for RMSE")
	pngPath := flag.String("png", "", "Optional track plot path")
	dbPath := flag.String("db", "", "Optional sqlite database to record the run")
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
	params := tuning.Params()

	parser := binlog.NewBinlogParser(*pcapPath)
	if err := parser.Parse(); err != nil {
		fmt.Printf("parse pcap failed: %v\n", err)
		os.Exit(1)
	}

	var vehicles []uint32
	if *vehicleHex == "" {
		vehicles = parser.Vehicles()
		if len(vehicles) == 0 {
			fmt.Println("no vehicles found")
			os.Exit(1)
		}
	} else {
		id, err := parseVehicleHex(*vehicleHex)
		if err != nil {
			fmt.Printf("invalid vehicle: %v\n", err)
			os.Exit(1)
		}
		vehicles = []uint32{id}
	}
	wanted := map[uint32]*vehicleRun{}
	for _, v := range vehicles {
		wanted[v] = newVehicleRun()
	}

	router := server.NewRouter(params)
	router.AddSink(server.SinkFunc(func(v uint32, res fusion.TickResult) {
		run := wanted[v]
		if run == nil || !res.EstimateValid {
			return
		}
		run.rows = append(run.rows, []string{
			strconv.FormatFloat(res.Timestamp, 'f', 3, 64),
			strconv.FormatFloat(res.Position.X, 'f', 4, 64),
			strconv.FormatFloat(res.Position.Y, 'f', 4, 64),
			strconv.FormatFloat(res.Position.Z, 'f', 4, 64),
			strconv.FormatBool(res.EstimateValid),
			strconv.FormatBool(res.RawEstimateValid),
			res.State.String(),
			res.Reason.String(),
			strconv.Itoa(res.AnchorsFinal),
			strconv.Itoa(res.Removed),
		})
		p := [2]float64{res.Position.X, res.Position.Y}
		run.est = append(run.est, p)
		if res.RawEstimateValid {
			run.raw = append(run.raw, p)
		}
	}))

	if *dbPath != "" {
		db, err := store.Open(*dbPath)
		if err != nil {
			fmt.Printf("open database failed: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		runID, err := db.StartRun("fuse "+filepath.Base(*pcapPath), params)
		if err != nil {
			fmt.Printf("start run failed: %v\n", err)
			os.Exit(1)
		}
		rec := store.NewRecorder(db, runID, store.DefaultBatchSize)
		router.AddSink(server.SinkFunc(func(v uint32, res fusion.TickResult) {
			if wanted[v] != nil {
				rec.Publish(v, res)
			}
		}))
		defer func() {
			rec.Flush()
			_ = db.FinishRun(runID)
			written, failed := rec.Stats()
			fmt.Printf("Run %s: stored %d ticks (%d failed) in %s\n", runID, written, failed, *dbPath)
		}()
	}

	for _, evt := range parser.Events {
		if evt.Flag != binlog.FlagRx {
			continue
		}
		for _, in := range evt.Inner {
			run := wanted[in.Addr]
			if run == nil || in.Msg == nil {
				continue
			}
			if g, ok := in.Msg.(protocol.GNSS); ok {
				run.gnss = append(run.gnss, [2]float64{g.Position.X, g.Position.Y})
			}
			router.HandleMessage(in.Addr, in.Msg)
		}
	}

	for _, v := range vehicles {
		run := wanted[v]
		out := outputPath(*outPath, v, len(vehicles) > 1)
		if err := report.WriteCSV(out, run.rows); err != nil {
			fmt.Printf("vehicle %08X failed: %v\n", v, err)
			continue
		}
		fmt.Printf("Vehicle %08X written %d rows (%d aligned) to %s\n", v, len(run.rows)-1, len(run.raw), out)

		if *pngPath != "" {
			png := outputPath(*pngPath, v, len(vehicles) > 1)
			if err := report.PlotTrack(png, report.Track{
				Title: fmt.Sprintf("Vehicle %08X", v),
				GNSS:  run.gnss,
				Est:   run.est,
				Raw:   run.raw,
			}); err != nil {
				fmt.Printf("plot failed: %v\n", err)
			} else {
				fmt.Printf("Plot written to %s\n", png)
			}
		}
	}

	if *refPath != "" {
		pred, err := report.ReadXY(outputPath(*outPath, vehicles[0], len(vehicles) > 1))
		if err == nil {
			var ref [][2]float64
			if ref, err = report.ReadXY(*refPath); err == nil {
				var rmse float64
				var shift int
				if rmse, shift, err = report.BestShiftRMSE(pred, ref, *maxShift); err == nil {
					fmt.Printf("ref shift %d samples, RMSE %.3f m\n", shift, rmse)
				}
			}
		}
		if err != nil {
			fmt.Printf("rmse compare failed: %v\n", err)
		}
	}
}

func parseVehicleHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

// outputPath appends the vehicle id to path when several vehicles are
// written.
func outputPath(path string, v uint32, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%08X%s", strings.TrimSuffix(path, ext), v, ext)
}
