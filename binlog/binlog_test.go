package binlog

import (
	"bytes"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localizer-go/fusion"
	"localizer-go/protocol"
)

var t0 = time.Unix(1700000000, 250000000)

func recording(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	src := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 20), Port: 9001}
	dgram := append(protocol.EncodeMessage(7, protocol.Speed{MPS: 12}),
		protocol.EncodeMessage(8, protocol.Distance{Meters: 40})...)
	require.NoError(t, w.WritePacketAt(t0, FlagRx, src, dgram))
	require.NoError(t, w.WritePacketAt(t0.Add(10*time.Millisecond), FlagStats, nil, []byte("stats")))
	require.NoError(t, w.WritePacketAt(t0.Add(20*time.Millisecond), FlagRx, src,
		protocol.EncodeMessage(7, protocol.Velocity{Time: 1, Vel: fusion.Vec3{X: 2}})))
	require.NoError(t, w.WritePacketAt(t0.Add(30*time.Millisecond), FlagRx, nil, []byte("garbage")))
	require.NoError(t, w.WritePacketAt(t0.Add(40*time.Millisecond), FlagTx, nil,
		protocol.EncodeMessage(7, protocol.Estimate{Time: 1, Valid: true})))
	return buf.Bytes()
}

func TestReaderRecords(t *testing.T) {
	r, err := NewReader(bytes.NewReader(recording(t)))
	require.NoError(t, err)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(FlagRx), rec.Flag)
	assert.Equal(t, 9001, rec.Addr.Port)
	assert.Equal(t, "192.168.1.20", rec.Addr.IP.String())
	assert.True(t, rec.Time.Equal(t0), "got %v", rec.Time)
	assert.InDelta(t, 1700000000.25, rec.Seconds(), 1e-6)

	n := 1
	for {
		_, err := r.Next()
		if err != nil {
			break
		}
		n++
	}
	assert.Equal(t, 5, n)
}

func TestRecordsSkipsStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.pcap")
	w, err := NewPcapWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(FlagRx, nil, []byte{1, 2, 3}))
	require.NoError(t, w.WritePacket(FlagStats, nil, []byte{4}))
	require.NoError(t, w.Close())

	recs, err := Records(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []byte{1, 2, 3}, recs[0].Payload)
	assert.Equal(t, "0.0.0.0", recs[0].Addr.IP.String())
}

func TestTornRecordEndsFile(t *testing.T) {
	data := recording(t)
	r, err := NewReader(bytes.NewReader(data[:len(data)-3]))
	require.NoError(t, err)
	n := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		n++
	}
	assert.Equal(t, 4, n)
}

func TestBinlogParser(t *testing.T) {
	p := &BinlogParser{VerifyCRC: true}
	require.NoError(t, p.ParseFrom(bytes.NewReader(recording(t))))

	require.Len(t, p.Events, 3)
	assert.Len(t, p.Events[0].Inner, 2)
	assert.Equal(t, []uint32{7, 8}, p.Vehicles())
	assert.InDelta(t, 1700000000.25, p.EarliestEventTs(), 1e-6)

	evs := p.ForVehicle(7)
	require.Len(t, evs, 3)
	assert.Equal(t, protocol.Speed{MPS: 12}, evs[0].Inner[0].Msg)
	assert.Equal(t, protocol.Velocity{Time: 1, Vel: fusion.Vec3{X: 2}}, evs[1].Inner[0].Msg)
	assert.Equal(t, uint16(FlagTx), evs[2].Flag)

	assert.Len(t, p.ForVehicle(8), 1)
	assert.Empty(t, p.ForVehicle(99))
}

func TestParseMissingFile(t *testing.T) {
	err := NewBinlogParser(filepath.Join(t.TempDir(), "nope.pcap")).Parse()
	assert.Error(t, err)
}
