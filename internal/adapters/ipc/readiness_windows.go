//go:build windows

package ipc

import (
	"time"

	"golang.org/x/sys/windows"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Multiplexer = (*Multiplexer)(nil)

// Multiplexer reports which connections have input available. Named
// pipes have no poll primitive, so readiness is probed with speculative
// one-byte overlapped reads; any byte pulled off a pipe that way is fed
// back into the connection's frame buffer.
type Multiplexer struct{}

// NewMultiplexer creates a multiplexer for connections produced by this
// package.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{}
}

// probe tracks one speculative read.
type probe struct {
	conn    *Conn
	stream  *pipeStream
	ov      windows.Overlapped
	buf     [1]byte
	pending bool
}

// settle cancels a still-pending probe and feeds any byte that landed
// before the cancel took effect.
func (p *probe) settle() {
	if !p.pending {
		return
	}
	_ = windows.CancelIoEx(p.stream.handle, &p.ov)
	var done uint32
	if err := windows.GetOverlappedResult(p.stream.handle, &p.ov, &done, true); err == nil && done > 0 {
		p.conn.feed(p.buf[:done])
	}
	p.pending = false
}

// ReadyToRead implements ports.Multiplexer.
func (m *Multiplexer) ReadyToRead(conns []ports.Conn, timeout time.Duration) ([]int, error) {
	var buffered []int
	for i, c := range conns {
		if c.Buffered() {
			buffered = append(buffered, i)
		}
	}
	if len(buffered) > 0 {
		return buffered, nil
	}

	probes := make([]*probe, len(conns))
	var ready []int
	defer func() {
		for _, p := range probes {
			if p != nil {
				p.settle()
			}
		}
	}()

	for i, c := range conns {
		fc, ok := c.(*Conn)
		if !ok {
			return nil, zerr.Wrap(domain.ErrTransport, "foreign connection type in multiplexer")
		}
		ps, ok := fc.s.(*pipeStream)
		if !ok {
			return nil, zerr.Wrap(domain.ErrTransport, "foreign stream type in multiplexer")
		}
		p := &probe{conn: fc, stream: ps}
		p.ov.HEvent = ps.readEv
		probes[i] = p

		err := windows.ReadFile(ps.handle, p.buf[:], nil, &p.ov)
		switch err {
		case nil:
			var done uint32
			if resErr := windows.GetOverlappedResult(ps.handle, &p.ov, &done, true); resErr == nil && done > 0 {
				fc.feed(p.buf[:done])
			}
			ready = append(ready, i)
		case windows.ERROR_IO_PENDING:
			p.pending = true
		case windows.ERROR_BROKEN_PIPE:
			// Closed peer counts as readable so the caller observes the
			// close on its next read.
			ready = append(ready, i)
		default:
			return nil, zerr.Wrap(domain.ErrTransport, "speculative read failed: "+err.Error())
		}
	}
	if len(ready) > 0 {
		return ready, nil
	}

	events := make([]windows.Handle, 0, len(probes))
	indices := make([]int, 0, len(probes))
	for i, p := range probes {
		if p.pending {
			events = append(events, p.stream.readEv)
			indices = append(indices, i)
		}
	}
	if len(events) == 0 {
		return nil, nil
	}

	waitMs := uint32(windows.INFINITE)
	if timeout != ports.NoTimeout {
		waitMs = uint32(timeout.Milliseconds())
	}
	event, err := windows.WaitForMultipleObjects(events, false, waitMs)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrTransport, "readiness wait failed: "+err.Error())
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		return nil, nil
	}

	slot := int(event - windows.WAIT_OBJECT_0)
	if slot < 0 || slot >= len(indices) {
		return nil, zerr.Wrap(domain.ErrTransport, "readiness wait returned unknown handle")
	}
	idx := indices[slot]
	p := probes[idx]
	var done uint32
	resErr := windows.GetOverlappedResult(p.stream.handle, &p.ov, &done, true)
	p.pending = false
	if resErr == nil && done > 0 {
		p.conn.feed(p.buf[:done])
	}
	return []int{idx}, nil
}
