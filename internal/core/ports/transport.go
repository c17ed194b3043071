package ports

import "time"

// NoTimeout disables the deadline on a blocking transport call.
const NoTimeout time.Duration = 0

// Conn is one duplex, length-framed byte channel. Both platform backends
// (stream sockets, named pipes) present identical framing semantics.
type Conn interface {
	// WriteFrame writes one complete frame, finishing partial underlying
	// writes before returning.
	WriteFrame(p []byte) error

	// ReadFrame blocks until one complete frame is buffered and returns
	// its payload. Header and body may arrive in arbitrarily small
	// chunks across calls. It fails with domain.ErrConnClosed when the
	// peer closed cleanly with no buffered frame, and domain.ErrTransport
	// on timeout or mid-frame hangup. A timeout of NoTimeout blocks
	// indefinitely.
	ReadFrame(timeout time.Duration) ([]byte, error)

	// Buffered reports whether a complete frame is already buffered, in
	// which case ReadFrame will not block.
	Buffered() bool

	// Close tears the connection down.
	Close() error
}

// Listener accepts framed connections on a platform endpoint.
type Listener interface {
	// Accept blocks until a peer connects. A timeout of NoTimeout blocks
	// indefinitely; on expiry it fails with domain.ErrTransport.
	Accept(timeout time.Duration) (Conn, error)

	// Addr returns the endpoint's connection name (socket path or pipe name).
	Addr() string

	// Close stops listening and removes the endpoint.
	Close() error
}

// Multiplexer is the readiness-check primitive the driver uses to service
// several workers without one blocking call per worker.
type Multiplexer interface {
	// ReadyToRead returns the indices of connections with readable data
	// or a buffered frame. An empty result means the timeout expired.
	ReadyToRead(conns []Conn, timeout time.Duration) ([]int, error)
}
