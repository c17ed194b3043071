package daemon

import (
	"context"
	"errors"
	"io"
	"time"

	"go.trai.ch/pycheck/internal/adapters/ipc"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

var _ ports.DaemonClient = (*Client)(nil)

// Client talks to one discovered daemon. Incidental stdout/stderr
// passthrough text is copied to the given writers as frames arrive, so
// long-running commands stream output before the final response.
type Client struct {
	record domain.StatusRecord
	stdout io.Writer
	stderr io.Writer
}

// NewClient creates a client for a validated status record.
func NewClient(record domain.StatusRecord, stdout, stderr io.Writer) *Client {
	return &Client{record: record, stdout: stdout, stderr: stderr}
}

// Request implements ports.DaemonClient. Transport failures beyond
// discovery are softened into a Response carrying Error, never
// propagated: the caller already knows a daemon exists, so a broken
// exchange is a result, not a crash.
func (c *Client) Request(ctx context.Context, req domain.Request) domain.Response {
	conn, err := ipc.Dial(c.record.ConnectionName)
	if err != nil {
		return domain.Response{Error: "daemon is not reachable: " + err.Error(), Final: true}
	}
	defer func() { _ = conn.Close() }()

	if err := ipc.Send(conn, req); err != nil {
		return domain.Response{Error: "request send failed: " + err.Error(), Final: true}
	}

	for {
		timeout := ports.NoTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
			if timeout <= 0 {
				return domain.Response{Error: "request timed out", Final: true}
			}
		}

		var resp domain.Response
		if err := ipc.Receive(conn, timeout, &resp); err != nil {
			if errors.Is(err, domain.ErrConnClosed) {
				return domain.Response{Error: "daemon closed the connection unexpectedly", Final: true}
			}
			return domain.Response{Error: "response read failed: " + err.Error(), Final: true}
		}

		if resp.Stdout != "" && c.stdout != nil {
			_, _ = io.WriteString(c.stdout, resp.Stdout)
		}
		if resp.Stderr != "" && c.stderr != nil {
			_, _ = io.WriteString(c.stderr, resp.Stderr)
		}
		if resp.Final {
			return resp
		}
	}
}
