package daemon

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.trai.ch/pycheck/internal/adapters/ipc"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	pollInterval    = 100 * time.Millisecond
	maxPollDuration = 5 * time.Second
)

var _ ports.DaemonConnector = (*Connector)(nil)

// Connector implements ports.DaemonConnector: status-file discovery and
// daemon process lifecycle from the CLI side.
type Connector struct {
	executablePath string
	log            ports.Logger
}

// NewConnector creates a new daemon connector.
func NewConnector(log ports.Logger) (*Connector, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to determine executable path")
	}
	return &Connector{executablePath: exe, log: log}, nil
}

// Status implements ports.DaemonConnector.
func (c *Connector) Status(statusFile string) (domain.StatusRecord, error) {
	return ReadStatus(statusFile)
}

// IsRunning implements ports.DaemonConnector: the record must validate
// and the endpoint must accept a connection.
func (c *Connector) IsRunning(statusFile string) bool {
	record, err := ReadStatus(statusFile)
	if err != nil {
		return false
	}
	conn, err := ipc.Dial(record.ConnectionName)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Spawn implements ports.DaemonConnector. The daemon runs detached with
// its output appended to the daemon log; success means the fresh status
// record is present, live, and connectable.
func (c *Connector) Spawn(ctx context.Context, statusFile string) error {
	logPath := domain.DefaultDaemonLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create daemon directory")
	}
	//nolint:gosec // G304: logPath is a domain constant, not user input
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, domain.PrivateFilePerm)
	if err != nil {
		return zerr.Wrap(err, "failed to open daemon log")
	}

	//nolint:gosec // G204: executablePath is controlled, args are fixed literals
	cmd := exec.Command(c.executablePath, "daemon", "--status-file", statusFile)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return zerr.Wrap(domain.ErrDaemonSpawnFailed, err.Error())
	}

	go func() {
		_ = cmd.Wait()
		_ = logFile.Close()
	}()

	return c.waitForDaemonStartup(ctx, statusFile)
}

// waitForDaemonStartup polls the status file until the daemon is live.
func (c *Connector) waitForDaemonStartup(ctx context.Context, statusFile string) error {
	start := time.Now()
	for time.Since(start) < maxPollDuration {
		if c.IsRunning(statusFile) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return domain.ErrDaemonStartTimeout
}

// Kill implements ports.DaemonConnector: hard termination without a
// graceful stop, then status file removal.
func (c *Connector) Kill(statusFile string) error {
	record, err := ReadStatus(statusFile)
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(record.PID)
	if err != nil {
		return zerr.Wrap(err, "daemon process not found")
	}
	if err := proc.Kill(); err != nil {
		return zerr.Wrap(err, "failed to kill daemon")
	}
	RemoveStatus(statusFile)
	return nil
}
