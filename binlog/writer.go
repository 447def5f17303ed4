package binlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const (
	// LinkTypeUser0 is the pcap DLT for private encapsulations.
	LinkTypeUser0 layers.LinkType = 147

	snapLen  = 65535
	phdr2Len = 8 // flag u16, port u16, ipv4 in network order

	// Record flags.
	FlagRx    = 0x00 // frames received from a vehicle
	FlagTx    = 0x01 // estimates sent out
	FlagStats = 0x10 // ignored by readers
)

// PcapWriter records datagrams into a pcap file. Each record payload is an
// 8-byte PHDR2 prefix followed by the datagram. It is safe for concurrent use.
type PcapWriter struct {
	mu  sync.Mutex
	w   *pcapgo.Writer
	c   io.Closer
	hdr [phdr2Len]byte
	buf []byte
}

func NewPcapWriter(path string) (*PcapWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	pw, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	pw.c = f
	return pw, nil
}

// NewWriter writes the pcap file header to w and returns a writer for it.
func NewWriter(w io.Writer) (*PcapWriter, error) {
	pw := &PcapWriter{w: pcapgo.NewWriter(w)}
	if err := pw.w.WriteFileHeader(snapLen, LinkTypeUser0); err != nil {
		return nil, fmt.Errorf("pcap header: %w", err)
	}
	return pw, nil
}

func (pw *PcapWriter) WritePacket(flag uint16, addr *net.UDPAddr, data []byte) error {
	return pw.WritePacketAt(time.Now(), flag, addr, data)
}

// WritePacketAt records data with an explicit capture time.
func (pw *PcapWriter) WritePacketAt(ts time.Time, flag uint16, addr *net.UDPAddr, data []byte) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	binary.LittleEndian.PutUint16(pw.hdr[0:], flag)
	port := uint16(0)
	var ip4 net.IP
	if addr != nil {
		port = uint16(addr.Port)
		ip4 = addr.IP.To4()
	}
	binary.LittleEndian.PutUint16(pw.hdr[2:], port)
	if ip4 != nil {
		copy(pw.hdr[4:8], ip4)
	} else {
		binary.LittleEndian.PutUint32(pw.hdr[4:], 0)
	}

	pw.buf = append(pw.buf[:0], pw.hdr[:]...)
	pw.buf = append(pw.buf, data...)
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(pw.buf),
		Length:        len(pw.buf),
	}
	return pw.w.WritePacket(ci, pw.buf)
}

func (pw *PcapWriter) Close() error {
	if pw.c != nil {
		return pw.c.Close()
	}
	return nil
}
