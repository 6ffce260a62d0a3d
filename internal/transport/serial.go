package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Serial is the UART transport. Reads are bounded by the port's read
// timeout, so Poll returns promptly when the line is idle.
type Serial struct {
	port    *serial.Port
	scratch []byte
	pending []byte
}

// OpenSerial opens the port with a short read timeout suitable for polling.
func OpenSerial(device string, baud int, bufferSize int) (*Serial, error) {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return &Serial{port: port, scratch: make([]byte, bufferSize)}, nil
}

func (s *Serial) Poll() error {
	n, err := s.port.Read(s.scratch)
	if n > 0 {
		s.pending = append(s.pending, s.scratch[:n]...)
	}
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (s *Serial) HasData() bool {
	return len(s.pending) > 0
}

func (s *Serial) Read(p []byte) (int, error) {
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *Serial) Close() error {
	return s.port.Close()
}
