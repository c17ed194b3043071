// Package ipc implements the duplex, length-framed byte channel the
// daemon, client, and workers communicate over. Two platform backends
// exist behind the same ports.Conn contract: unix domain sockets and
// Windows named pipes with overlapped I/O. Framing and readiness
// semantics are identical on both.
package ipc

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	headerLen = 4

	// readChunk is the size of one underlying read. Frames larger than
	// this are accumulated across multiple reads.
	readChunk = 64 * 1024
)

// errTimeout marks a platform read that expired; the frame layer
// translates it into domain.ErrTransport.
var errTimeout = errors.New("read timed out")

// stream is the platform half of a connection: a raw byte channel with
// possibly-partial reads and writes.
type stream interface {
	// read reads up to len(p) bytes, blocking at most timeout
	// (ports.NoTimeout blocks indefinitely). Returns errTimeout on expiry
	// and io.EOF on clean peer close.
	read(p []byte, timeout time.Duration) (int, error)

	// write writes from p, possibly partially.
	write(p []byte) (int, error)

	close() error
}

var _ ports.Conn = (*Conn)(nil)

// Conn frames a stream. Partial frames are buffered across reads, so
// header and body may arrive in arbitrarily small chunks.
type Conn struct {
	s   stream
	buf []byte
}

func newConn(s stream) *Conn {
	return &Conn{s: s}
}

// WriteFrame implements ports.Conn.
func (c *Conn) WriteFrame(p []byte) error {
	frame := make([]byte, headerLen+len(p))
	binary.BigEndian.PutUint32(frame, uint32(len(p)))
	copy(frame[headerLen:], p)

	for len(frame) > 0 {
		n, err := c.s.write(frame)
		if err != nil {
			return zerr.Wrap(domain.ErrTransport, "frame write failed: "+err.Error())
		}
		frame = frame[n:]
	}
	return nil
}

// ReadFrame implements ports.Conn.
func (c *Conn) ReadFrame(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout != ports.NoTimeout {
		deadline = time.Now().Add(timeout)
	}

	for {
		if payload, ok := c.popFrame(); ok {
			return payload, nil
		}

		remaining := ports.NoTimeout
		if !deadline.IsZero() {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return nil, zerr.Wrap(domain.ErrTransport, "frame read timed out")
			}
		}

		chunk := make([]byte, readChunk)
		n, err := c.s.read(chunk, remaining)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
			continue
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			if len(c.buf) == 0 {
				return nil, domain.ErrConnClosed
			}
			return nil, zerr.Wrap(domain.ErrTransport, "peer closed mid-frame")
		case errors.Is(err, errTimeout):
			return nil, zerr.Wrap(domain.ErrTransport, "frame read timed out")
		default:
			return nil, zerr.Wrap(domain.ErrTransport, "frame read failed: "+err.Error())
		}
	}
}

// popFrame removes one complete frame from the buffer if present.
func (c *Conn) popFrame() ([]byte, bool) {
	if len(c.buf) < headerLen {
		return nil, false
	}
	n := int(binary.BigEndian.Uint32(c.buf))
	if len(c.buf) < headerLen+n {
		return nil, false
	}
	payload := make([]byte, n)
	copy(payload, c.buf[headerLen:headerLen+n])
	c.buf = c.buf[headerLen+n:]
	return payload, true
}

// Buffered implements ports.Conn.
func (c *Conn) Buffered() bool {
	if len(c.buf) < headerLen {
		return false
	}
	n := int(binary.BigEndian.Uint32(c.buf))
	return len(c.buf) >= headerLen+n
}

// feed appends bytes retrieved out of band (speculative readiness reads
// on the pipe backend) so they are not lost to the frame accounting.
func (c *Conn) feed(p []byte) {
	c.buf = append(c.buf, p...)
}

// Close implements ports.Conn.
func (c *Conn) Close() error {
	return c.s.close()
}
