package ipc

import (
	"encoding/json"
	"time"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

// Send marshals v as JSON and writes it as one frame.
func Send(conn ports.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return zerr.Wrap(domain.ErrTransport, "message encoding failed: "+err.Error())
	}
	return conn.WriteFrame(data)
}

// Receive reads one frame and unmarshals it into out. A clean peer
// close between messages surfaces as domain.ErrConnClosed.
func Receive(conn ports.Conn, timeout time.Duration, out any) error {
	data, err := conn.ReadFrame(timeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return zerr.Wrap(domain.ErrTransport, "message decoding failed: "+err.Error())
	}
	return nil
}
