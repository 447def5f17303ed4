package rbc

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"localizer-go/monitoring"
)

// udpTarget receives every message whose flag is within its mask.
type udpTarget struct {
	addr *net.UDPAddr
	mask uint32
}

const (
	tcpQueueLen     = 1000
	tcpDialTimeout  = 2 * time.Second
	tcpWriteTimeout = 5 * time.Second
	tcpMaxBackoff   = 5 * time.Second
)

// TcpClient keeps one outbound TCP connection and writes queued messages
// to it in order, redialing after failures.
type TcpClient struct {
	addr    string
	mask    uint32
	queue   chan []byte
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// Sender fans messages out to UDP targets and TCP clients by flag mask.
type Sender struct {
	mu         sync.Mutex
	udpTargets []*udpTarget
	tcpClients []*TcpClient
	connUDP    *net.UDPConn
	header     []byte
	running    bool
	sent       int
}

func NewSender() *Sender {
	return &Sender{}
}

// SetHeader sets a prefix, followed by ':', for every message.
func (s *Sender) SetHeader(hdr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hdr == "" {
		s.header = nil
	} else {
		s.header = []byte(hdr + ":")
	}
}

func (s *Sender) AddUDPSender(addr string, flag uint32) error {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	s.mu.Lock()
	s.udpTargets = append(s.udpTargets, &udpTarget{addr: uaddr, mask: flag})
	s.mu.Unlock()
	return nil
}

func (s *Sender) AddTCPSender(addr string, flag uint32) {
	s.mu.Lock()
	s.tcpClients = append(s.tcpClients, &TcpClient{
		addr:  addr,
		mask:  flag,
		queue: make(chan []byte, tcpQueueLen),
	})
	s.mu.Unlock()
}

func (s *Sender) Start() error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connUDP = conn
	s.running = true
	for _, c := range s.tcpClients {
		c.Start()
	}
	return nil
}

// Stop closes the UDP socket and waits for TCP clients to drain.
func (s *Sender) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.connUDP != nil {
		s.connUDP.Close()
	}
	clients := s.tcpClients
	s.mu.Unlock()
	for _, c := range clients {
		c.Stop()
	}
}

// Sent is the number of messages handed to at least one target.
func (s *Sender) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Send delivers data, prefixed with the header, to every target whose
// mask contains all bits of flag. It is a no-op before Start and after Stop.
func (s *Sender) Send(data []byte, flag uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	msg := append(append(make([]byte, 0, len(s.header)+len(data)), s.header...), data...)
	delivered := false
	for _, t := range s.udpTargets {
		if t.mask&flag != flag {
			continue
		}
		if _, err := s.connUDP.WriteToUDP(msg, t.addr); err != nil {
			monitoring.Logf("rbc: UDP send to %s: %v", t.addr, err)
			continue
		}
		delivered = true
	}
	for _, c := range s.tcpClients {
		if c.mask&flag == flag && c.enqueue(msg) {
			delivered = true
		}
	}
	if delivered {
		s.sent++
	}
}

// Dropped is the number of messages the TCP clients discarded because
// their queue was full or the peer was unreachable.
func (s *Sender) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.tcpClients {
		n += c.dropped.Load()
	}
	return n
}

func (c *TcpClient) enqueue(msg []byte) bool {
	select {
	case c.queue <- msg:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *TcpClient) Start() {
	c.wg.Add(1)
	go c.loop()
}

// Stop flushes the queue and closes the connection.
func (c *TcpClient) Stop() {
	close(c.queue)
	c.wg.Wait()
}

func (c *TcpClient) loop() {
	defer c.wg.Done()
	var conn net.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	backoff := 100 * time.Millisecond
	var retryAt time.Time
	for msg := range c.queue {
		if conn == nil {
			if time.Now().Before(retryAt) {
				c.dropped.Add(1)
				continue
			}
			var err error
			if conn, err = net.DialTimeout("tcp", c.addr, tcpDialTimeout); err != nil {
				monitoring.Logf("rbc: TCP dial %s: %v (retry in %v)", c.addr, err, backoff)
				conn = nil
				retryAt = time.Now().Add(backoff)
				backoff = min(2*backoff, tcpMaxBackoff)
				c.dropped.Add(1)
				continue
			}
			backoff = 100 * time.Millisecond
		}
		_ = conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout))
		if _, err := conn.Write(msg); err != nil {
			monitoring.Logf("rbc: TCP write to %s failed: %v", c.addr, err)
			conn.Close()
			conn = nil
			c.dropped.Add(1)
		}
	}
}
