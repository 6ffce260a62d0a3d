package transport

import (
	"bytes"
	"io"
	"sync"
)

// Loopback is an in-memory transport for tests: the test pushes input with
// Inject and collects replies from Output.
type Loopback struct {
	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

// Inject queues bytes as if they arrived from the peer.
func (l *Loopback) Inject(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.in.Write(p)
}

// Output returns everything written so far.
func (l *Loopback) Output() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.out.Bytes()...)
}

func (l *Loopback) Poll() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return io.EOF
	}
	return nil
}

func (l *Loopback) HasData() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.Len() > 0
}

func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.Read(p)
}

func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Write(p)
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Loopback) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
