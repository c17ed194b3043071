package worker

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.trai.ch/pycheck/internal/adapters/daemon"
	"go.trai.ch/pycheck/internal/adapters/ipc"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	spawnPollInterval = 100 * time.Millisecond
	spawnPollDuration = 10 * time.Second
)

// SpawnPool starts n worker processes by re-executing this binary with
// the hidden worker subcommand and returns one connected conn per
// worker. Each worker publishes its endpoint through its own status
// file, which is discarded once the connection is up. On any failure the
// already-started workers are killed.
func SpawnPool(ctx context.Context, n int, log ports.Logger) ([]ports.Conn, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to determine executable path")
	}
	dir, err := os.MkdirTemp("", "pycheck-workers-")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create worker status directory")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	conns := make([]ports.Conn, 0, n)
	procs := make([]*os.Process, 0, n)
	abort := func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
		for _, proc := range procs {
			_ = proc.Kill()
		}
	}

	for i := 0; i < n; i++ {
		statusFile := filepath.Join(dir, "worker-"+strconv.Itoa(i)+".json")

		//nolint:gosec // G204: exe is this binary, args are fixed literals
		cmd := exec.Command(exe, "worker", "--status-file", statusFile)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			abort()
			return nil, zerr.Wrap(err, "failed to start worker "+strconv.Itoa(i))
		}
		procs = append(procs, cmd.Process)
		go func() { _ = cmd.Wait() }()

		conn, err := connectWorker(ctx, statusFile)
		if err != nil {
			abort()
			return nil, zerr.Wrap(err, "worker "+strconv.Itoa(i)+" never came up")
		}
		conns = append(conns, conn)
		log.Info("worker " + strconv.Itoa(i) + " connected")
	}
	return conns, nil
}

// connectWorker polls the worker's status file until it names a live,
// connectable endpoint.
func connectWorker(ctx context.Context, statusFile string) (ports.Conn, error) {
	start := time.Now()
	for time.Since(start) < spawnPollDuration {
		if record, err := daemon.ReadStatus(statusFile); err == nil {
			if conn, err := ipc.Dial(record.ConnectionName); err == nil {
				return conn, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(spawnPollInterval):
		}
	}
	return nil, zerr.New("worker startup timed out")
}
