//go:build windows

package ipc

import (
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

const pipeBufSize = 64 * 1024

// pipeStream adapts one instance of a named pipe to the stream
// contract. All I/O is overlapped so reads can carry timeouts and the
// multiplexer can park speculative reads on many pipes at once.
type pipeStream struct {
	handle  windows.Handle
	readEv  windows.Handle
	writeEv windows.Handle
}

func newPipeStream(handle windows.Handle) (*pipeStream, error) {
	readEv, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrTransport, "pipe event creation failed: "+err.Error())
	}
	writeEv, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		_ = windows.CloseHandle(readEv)
		return nil, zerr.Wrap(domain.ErrTransport, "pipe event creation failed: "+err.Error())
	}
	return &pipeStream{handle: handle, readEv: readEv, writeEv: writeEv}, nil
}

func (s *pipeStream) read(p []byte, timeout time.Duration) (int, error) {
	ov := windows.Overlapped{HEvent: s.readEv}
	err := windows.ReadFile(s.handle, p, nil, &ov)
	if err != nil && err != windows.ERROR_IO_PENDING {
		if err == windows.ERROR_BROKEN_PIPE {
			return 0, io.EOF
		}
		return 0, err
	}

	waitMs := uint32(windows.INFINITE)
	if timeout != ports.NoTimeout {
		waitMs = uint32(timeout.Milliseconds())
	}
	event, err := windows.WaitForSingleObject(s.readEv, waitMs)
	if err != nil {
		return 0, err
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		// Cancel and collect whatever arrived before the cancel landed.
		_ = windows.CancelIoEx(s.handle, &ov)
		var done uint32
		if err := windows.GetOverlappedResult(s.handle, &ov, &done, true); err == nil && done > 0 {
			return int(done), nil
		}
		return 0, errTimeout
	}

	var done uint32
	if err := windows.GetOverlappedResult(s.handle, &ov, &done, true); err != nil {
		if err == windows.ERROR_BROKEN_PIPE {
			return int(done), io.EOF
		}
		return int(done), err
	}
	if done == 0 {
		return 0, io.EOF
	}
	return int(done), nil
}

func (s *pipeStream) write(p []byte) (int, error) {
	ov := windows.Overlapped{HEvent: s.writeEv}
	err := windows.WriteFile(s.handle, p, nil, &ov)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return 0, err
	}
	var done uint32
	if err := windows.GetOverlappedResult(s.handle, &ov, &done, true); err != nil {
		return int(done), err
	}
	return int(done), nil
}

func (s *pipeStream) close() error {
	_ = windows.CancelIoEx(s.handle, nil)
	err := windows.CloseHandle(s.handle)
	_ = windows.CloseHandle(s.readEv)
	_ = windows.CloseHandle(s.writeEv)
	return err
}

var _ ports.Listener = (*PipeListener)(nil)

// PipeListener accepts framed connections on a named pipe. The pipe
// name carries a random suffix so concurrent server instances never
// collide, and the first instance is created eagerly to reserve the
// name before the address is published.
type PipeListener struct {
	addr    string
	next    windows.Handle
	connEv  windows.Handle
	closed  bool
}

// NewListener creates the endpoint for a server instance.
func NewListener(name string) (*PipeListener, error) {
	addr := `\\.\pipe\` + name + "-" + uuid.NewString() + ".pipe"

	connEv, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrTransport, "pipe event creation failed: "+err.Error())
	}
	l := &PipeListener{addr: addr, connEv: connEv}
	if err := l.createInstance(true); err != nil {
		_ = windows.CloseHandle(connEv)
		return nil, err
	}
	return l, nil
}

func (l *PipeListener) createInstance(first bool) error {
	namep, err := windows.UTF16PtrFromString(l.addr)
	if err != nil {
		return zerr.Wrap(domain.ErrTransport, "pipe name encoding failed: "+err.Error())
	}
	openMode := uint32(windows.PIPE_ACCESS_DUPLEX | windows.FILE_FLAG_OVERLAPPED)
	if first {
		openMode |= windows.FILE_FLAG_FIRST_PIPE_INSTANCE
	}
	handle, err := windows.CreateNamedPipe(
		namep,
		openMode,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES,
		pipeBufSize,
		pipeBufSize,
		0,
		nil,
	)
	if err != nil {
		return zerr.Wrap(domain.ErrTransport, "pipe creation failed: "+err.Error())
	}
	l.next = handle
	return nil
}

// Accept implements ports.Listener.
func (l *PipeListener) Accept(timeout time.Duration) (ports.Conn, error) {
	if l.closed {
		return nil, zerr.Wrap(domain.ErrTransport, "listener closed")
	}

	ov := windows.Overlapped{HEvent: l.connEv}
	err := windows.ConnectNamedPipe(l.next, &ov)
	switch err {
	case nil, windows.ERROR_PIPE_CONNECTED:
		// A client raced ahead of the connect call.
	case windows.ERROR_IO_PENDING:
		waitMs := uint32(windows.INFINITE)
		if timeout != ports.NoTimeout {
			waitMs = uint32(timeout.Milliseconds())
		}
		event, waitErr := windows.WaitForSingleObject(l.connEv, waitMs)
		if waitErr != nil {
			return nil, zerr.Wrap(domain.ErrTransport, "pipe connect wait failed: "+waitErr.Error())
		}
		if event == uint32(windows.WAIT_TIMEOUT) {
			_ = windows.CancelIoEx(l.next, &ov)
			var done uint32
			_ = windows.GetOverlappedResult(l.next, &ov, &done, true)
			return nil, zerr.Wrap(domain.ErrTransport, "accept timed out")
		}
		var done uint32
		if resErr := windows.GetOverlappedResult(l.next, &ov, &done, true); resErr != nil && resErr != windows.ERROR_PIPE_CONNECTED {
			return nil, zerr.Wrap(domain.ErrTransport, "pipe connect failed: "+resErr.Error())
		}
	default:
		return nil, zerr.Wrap(domain.ErrTransport, "pipe connect failed: "+err.Error())
	}

	connected := l.next
	if err := l.createInstance(false); err != nil {
		_ = windows.CloseHandle(connected)
		return nil, err
	}
	s, err := newPipeStream(connected)
	if err != nil {
		_ = windows.CloseHandle(connected)
		return nil, err
	}
	return newConn(s), nil
}

// Addr implements ports.Listener.
func (l *PipeListener) Addr() string {
	return l.addr
}

// Close implements ports.Listener.
func (l *PipeListener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	err := windows.CloseHandle(l.next)
	_ = windows.CloseHandle(l.connEv)
	return err
}

// Dial connects to a server endpoint by its published address. A busy
// pipe (all instances taken mid-accept) is retried briefly.
func Dial(addr string) (ports.Conn, error) {
	namep, err := windows.UTF16PtrFromString(addr)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrTransport, "pipe name encoding failed: "+err.Error())
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		handle, err := windows.CreateFile(
			namep,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			windows.FILE_FLAG_OVERLAPPED,
			0,
		)
		if err == nil {
			s, streamErr := newPipeStream(handle)
			if streamErr != nil {
				_ = windows.CloseHandle(handle)
				return nil, streamErr
			}
			return newConn(s), nil
		}
		if err != windows.ERROR_PIPE_BUSY || time.Now().After(deadline) {
			return nil, zerr.Wrap(domain.ErrTransport, "dial failed: "+err.Error())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
