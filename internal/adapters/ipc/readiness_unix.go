//go:build unix

package ipc

import (
	"time"

	"golang.org/x/sys/unix"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Multiplexer = (*Multiplexer)(nil)

// Multiplexer reports which connections have input available, either
// buffered at the frame layer or pending on the descriptor.
type Multiplexer struct{}

// NewMultiplexer creates a multiplexer for connections produced by this
// package.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{}
}

// ReadyToRead implements ports.Multiplexer. Indices of ready
// connections are returned in input order. An empty result means the
// timeout expired with nothing readable.
func (m *Multiplexer) ReadyToRead(conns []ports.Conn, timeout time.Duration) ([]int, error) {
	// Frame-buffered data wins over descriptor state: a complete frame
	// may already be held in memory with the socket drained.
	var buffered []int
	for i, c := range conns {
		if c.Buffered() {
			buffered = append(buffered, i)
		}
	}
	if len(buffered) > 0 {
		return buffered, nil
	}

	fds := make([]unix.PollFd, len(conns))
	for i, c := range conns {
		fc, ok := c.(*Conn)
		if !ok {
			return nil, zerr.Wrap(domain.ErrTransport, "foreign connection type in multiplexer")
		}
		ss, ok := fc.s.(*socketStream)
		if !ok {
			return nil, zerr.Wrap(domain.ErrTransport, "foreign stream type in multiplexer")
		}
		fds[i] = unix.PollFd{Fd: int32(ss.pollFd()), Events: unix.POLLIN}
	}

	timeoutMs := -1
	if timeout != ports.NoTimeout {
		timeoutMs = int(timeout.Milliseconds())
	}

	for {
		n, err := unix.Poll(fds, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, zerr.Wrap(domain.ErrTransport, "poll failed: "+err.Error())
		}
		if n == 0 {
			return nil, nil
		}
		break
	}

	var ready []int
	for i, fd := range fds {
		if fd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, i)
		}
	}
	return ready, nil
}
