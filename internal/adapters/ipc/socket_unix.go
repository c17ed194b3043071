//go:build unix

package ipc

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

// socketStream adapts a unix domain socket to the stream contract.
// Timeouts map onto net deadlines. The duplicated *os.File keeps a
// pollable descriptor for the readiness multiplexer.
type socketStream struct {
	conn *net.UnixConn
	file *os.File
}

func newSocketStream(conn *net.UnixConn) (*socketStream, error) {
	file, err := conn.File()
	if err != nil {
		return nil, zerr.Wrap(domain.ErrTransport, "socket fd duplication failed: "+err.Error())
	}
	return &socketStream{conn: conn, file: file}, nil
}

func (s *socketStream) read(p []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout != ports.NoTimeout {
		deadline = time.Now().Add(timeout)
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := s.conn.Read(p)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return n, errTimeout
		}
		if err == io.EOF {
			return n, io.EOF
		}
		return n, err
	}
	return n, nil
}

func (s *socketStream) write(p []byte) (int, error) {
	return s.conn.Write(p)
}

func (s *socketStream) close() error {
	err := s.conn.Close()
	if fileErr := s.file.Close(); err == nil {
		err = fileErr
	}
	return err
}

// pollFd returns the descriptor the multiplexer polls.
func (s *socketStream) pollFd() int {
	return int(s.file.Fd())
}

var _ ports.Listener = (*SocketListener)(nil)

// SocketListener accepts framed connections on a unix domain socket
// inside a private per-instance temp directory.
type SocketListener struct {
	ln   *net.UnixListener
	addr string
	dir  string
}

// NewListener creates the endpoint for a server instance. name is the
// logical endpoint name; the published address is the socket path.
func NewListener(name string) (*SocketListener, error) {
	dir, err := os.MkdirTemp("", "pycheck-")
	if err != nil {
		return nil, zerr.Wrap(domain.ErrTransport, "socket dir creation failed: "+err.Error())
	}
	path := filepath.Join(dir, name+".sock")

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, zerr.Wrap(domain.ErrTransport, "socket listen failed: "+err.Error())
	}
	if err := os.Chmod(path, domain.SocketPerm); err != nil {
		_ = ln.Close()
		_ = os.RemoveAll(dir)
		return nil, zerr.Wrap(domain.ErrTransport, "socket chmod failed: "+err.Error())
	}
	return &SocketListener{ln: ln, addr: path, dir: dir}, nil
}

// Accept implements ports.Listener.
func (l *SocketListener) Accept(timeout time.Duration) (ports.Conn, error) {
	var deadline time.Time
	if timeout != ports.NoTimeout {
		deadline = time.Now().Add(timeout)
	}
	if err := l.ln.SetDeadline(deadline); err != nil {
		return nil, zerr.Wrap(domain.ErrTransport, "accept deadline failed: "+err.Error())
	}

	conn, err := l.ln.AcceptUnix()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, zerr.Wrap(domain.ErrTransport, "accept timed out")
		}
		return nil, zerr.Wrap(domain.ErrTransport, "accept failed: "+err.Error())
	}
	s, err := newSocketStream(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return newConn(s), nil
}

// Addr implements ports.Listener. The returned string is what clients
// pass to Dial and what the status file records as the connection name.
func (l *SocketListener) Addr() string {
	return l.addr
}

// Close implements ports.Listener. The endpoint directory is removed so
// stale sockets never accumulate.
func (l *SocketListener) Close() error {
	err := l.ln.Close()
	if rmErr := os.RemoveAll(l.dir); err == nil {
		err = rmErr
	}
	return err
}

// Dial connects to a server endpoint by its published address.
func Dial(addr string) (ports.Conn, error) {
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: addr, Net: "unix"})
	if err != nil {
		return nil, zerr.Wrap(domain.ErrTransport, "dial failed: "+err.Error())
	}
	s, err := newSocketStream(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return newConn(s), nil
}
