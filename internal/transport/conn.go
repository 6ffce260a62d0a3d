package transport

import (
	"net"
	"time"
)

// Conn adapts a net.Conn to the polled Transport interface. Poll performs
// one deadline-bounded read into an internal buffer.
type Conn struct {
	conn        net.Conn
	readTimeout time.Duration
	scratch     []byte
	pending     []byte
}

// NewConn wraps an accepted connection.
func NewConn(c net.Conn, readTimeout time.Duration, bufferSize int) *Conn {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &Conn{
		conn:        c,
		readTimeout: readTimeout,
		scratch:     make([]byte, bufferSize),
	}
}

func (c *Conn) Poll() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return err
	}
	n, err := c.conn.Read(c.scratch)
	if n > 0 {
		c.pending = append(c.pending, c.scratch[:n]...)
	}
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil
		}
		return err
	}
	return nil
}

func (c *Conn) HasData() bool {
	return len(c.pending) > 0
}

func (c *Conn) Read(p []byte) (int, error) {
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.Write(p)
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr identifies the peer for logging.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
