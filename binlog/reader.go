package binlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket/pcapgo"
)

// Record is one pcap record with its PHDR2 prefix split off.
type Record struct {
	Time    time.Time
	Flag    uint16
	Addr    *net.UDPAddr
	Payload []byte
}

// Seconds is the capture time as fractional Unix seconds.
func (r Record) Seconds() float64 {
	return float64(r.Time.UnixNano()) / 1e9
}

// Reader iterates the records of a recording.
type Reader struct {
	r *pcapgo.Reader
}

func NewReader(r io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("pcap header: %w", err)
	}
	return &Reader{r: pr}, nil
}

// Next returns the next record, or io.EOF. A torn final record is treated
// as the end of the file. Records too short for a PHDR2 prefix are skipped.
func (r *Reader) Next() (Record, error) {
	for {
		data, ci, err := r.r.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf("pcap record: %w", err)
		}
		if len(data) < phdr2Len {
			continue
		}
		ip := make(net.IP, 4)
		copy(ip, data[4:8])
		return Record{
			Time: ci.Timestamp,
			Flag: binary.LittleEndian.Uint16(data[0:2]),
			Addr: &net.UDPAddr{
				IP:   ip,
				Port: int(binary.LittleEndian.Uint16(data[2:4])),
			},
			Payload: data[phdr2Len:],
		}, nil
	}
}

// Records loads every record of the file at path except FlagStats ones.
func Records(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := NewReader(f)
	if err != nil {
		return nil, err
	}
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if rec.Flag == FlagStats {
			continue
		}
		out = append(out, rec)
	}
}
