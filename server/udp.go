package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"localizer-go/monitoring"
)

const (
	DefaultPort   = 44333
	MaxPacketSize = 65535
)

// UdpServer receives datagrams and hands them to a Router.
type UdpServer struct {
	conn    *net.UDPConn
	router  *Router
	running atomic.Bool
	packets atomic.Int64
}

// NewUdpServer listens on port (DefaultPort when 0; use -1 for an
// ephemeral port).
func NewUdpServer(port int, router *Router) (*UdpServer, error) {
	if port == 0 {
		port = DefaultPort
	}
	if port < 0 {
		port = 0
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port, IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("listen udp :%d: %w", port, err)
	}
	conn.SetReadBuffer(256 * 1024)
	return &UdpServer{conn: conn, router: router}, nil
}

func (s *UdpServer) LocalAddr() *net.UDPAddr { return s.conn.LocalAddr().(*net.UDPAddr) }

func (s *UdpServer) Router() *Router { return s.router }

// Packets is the number of datagrams received so far.
func (s *UdpServer) Packets() int64 { return s.packets.Load() }

// EnableEcho sends every estimate back to the address its vehicle last
// sent from.
func (s *UdpServer) EnableEcho() {
	s.router.mu.Lock()
	s.router.echo = func(addr *net.UDPAddr, frame []byte) {
		if _, err := s.conn.WriteToUDP(frame, addr); err != nil {
			monitoring.Logf("server: echo to %s: %v", addr, err)
		}
	}
	s.router.mu.Unlock()
}

// Start serves until ctx is done or Stop is called.
func (s *UdpServer) Start(ctx context.Context) {
	s.running.Store(true)
	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	buf := make([]byte, MaxPacketSize)
	monitoring.Logf("UDP Server listening on %s", s.conn.LocalAddr())
	for s.running.Load() {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.running.Load() {
				monitoring.Logf("Read error: %v", err)
			}
			continue
		}
		s.packets.Add(1)
		data := make([]byte, n)
		copy(data, buf[:n])
		s.router.HandleDatagram(data, addr)
	}
}

func (s *UdpServer) Stop() {
	if s.running.Swap(false) {
		s.conn.Close()
	}
}
