package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"

	"localizer-go/binlog"
	"localizer-go/protocol"
)

func main() {
	file1 := flag.String("1", "", "Original PCAP")
	file2 := flag.String("2", "", "Replayed PCAP")
	tx := flag.Bool("tx", false, "Compare published estimates (Tx) instead of received data")
	flag.Parse()

	if *file1 == "" || *file2 == "" {
		log.Fatal("Usage: verify_pcap -1 <original> -2 <replayed>")
	}

	var want uint16 = binlog.FlagRx
	if *tx {
		want = binlog.FlagTx
	}

	pkts1, err := readPackets(*file1, want)
	if err != nil {
		log.Fatalf("Error reading %s: %v", *file1, err)
	}
	pkts2, err := readPackets(*file2, want)
	if err != nil {
		log.Fatalf("Error reading %s: %v", *file2, err)
	}

	fmt.Printf("Original packets: %d\n", len(pkts1))
	fmt.Printf("Replayed packets: %d\n", len(pkts2))

	mismatches := 0
	for i := 0; i < min(len(pkts1), len(pkts2)); i++ {
		if !bytes.Equal(pkts1[i], pkts2[i]) {
			fmt.Printf("Mismatch at packet %d: len1=%d len2=%d%s\n", i, len(pkts1[i]), len(pkts2[i]), firstFrameDiff(pkts1[i], pkts2[i]))
			mismatches++
			if mismatches > 10 {
				fmt.Println("Too many mismatches, stopping.")
				break
			}
		}
	}

	if len(pkts1) != len(pkts2) {
		fmt.Printf("Count mismatch: %d vs %d\n", len(pkts1), len(pkts2))
		mismatches++
	}

	if mismatches == 0 {
		fmt.Println("SUCCESS: All payloads match.")
	} else {
		fmt.Println("FAILURE: Mismatches found.")
		os.Exit(1)
	}
}

// firstFrameDiff describes the first frame that differs between two
// datagrams.
func firstFrameDiff(a, b []byte) string {
	fa, fb := protocol.Split(a, false), protocol.Split(b, false)
	for i := 0; i < min(len(fa), len(fb)); i++ {
		if fa[i].Addr != fb[i].Addr || fa[i].Type != fb[i].Type || !bytes.Equal(fa[i].Body, fb[i].Body) {
			return fmt.Sprintf(" (frame %d: vehicle %08X type 0x%02X vs vehicle %08X type 0x%02X)",
				i, fa[i].Addr, fa[i].Type, fb[i].Addr, fb[i].Type)
		}
	}
	if len(fa) != len(fb) {
		return fmt.Sprintf(" (%d vs %d frames)", len(fa), len(fb))
	}
	return ""
}

func readPackets(path string, flag uint16) ([][]byte, error) {
	recs, err := binlog.Records(path)
	if err != nil {
		return nil, err
	}
	var packets [][]byte
	for _, r := range recs {
		if r.Flag == flag {
			packets = append(packets, r.Payload)
		}
	}
	return packets, nil
}
