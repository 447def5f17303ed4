package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"

	"localizer-go/monitoring"
	"localizer-go/protocol"
)

// SerialSource reads UNIB frames from a serial byte stream.
type SerialSource struct {
	name   string
	port   io.ReadCloser
	dec    *protocol.Decoder
	router *Router
}

// OpenSerial opens a serial port in 8N1 mode at baud.
func OpenSerial(name string, baud int, router *Router) (*SerialSource, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return NewSerialSource(name, port, router), nil
}

// NewSerialSource reads from an already open stream.
func NewSerialSource(name string, port io.ReadCloser, router *Router) *SerialSource {
	return &SerialSource{name: name, port: port, dec: protocol.NewDecoder(router.VerifyCRC), router: router}
}

// Run reads until the stream ends or ctx is done. The port is closed on
// return. End of stream is not an error.
func (s *SerialSource) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.port.Close() })
	defer stop()
	defer s.port.Close()

	buf := make([]byte, 4096)
	frames := 0
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			s.dec.Write(buf[:n])
			for {
				f, ok := s.dec.Next()
				if !ok {
					break
				}
				frames++
				s.router.HandleFrame(f)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				monitoring.Logf("serial %s: end of stream after %d frames (%d bytes dropped)", s.name, frames, s.dec.Dropped())
				return nil
			}
			return fmt.Errorf("read serial %s: %w", s.name, err)
		}
	}
}
