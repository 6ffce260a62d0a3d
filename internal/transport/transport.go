// Package transport abstracts the byte transports a dispatcher can be
// attached to. The protocol behaves identically over all of them.
package transport

// Transport is a polled byte stream. Poll services pending I/O without
// blocking for long; HasData reports buffered input; Read drains it.
type Transport interface {
	Poll() error
	HasData() bool
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}
