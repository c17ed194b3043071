// Package app implements the application layer for pycheck.
package app

import (
	"context"
	"io"
	"os"

	"go.trai.ch/pycheck/internal/adapters/daemon"
	"go.trai.ch/pycheck/internal/adapters/watcher"
	"go.trai.ch/pycheck/internal/adapters/worker"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/term"
)

// App represents the main application logic: the client side of every
// subcommand, plus the foreground daemon and worker entry points.
type App struct {
	opts      domain.Options
	log       ports.Logger
	connector ports.DaemonConnector
	analyzer  ports.Analyzer
	store     ports.MetadataStore
	view      ports.FileView

	stdout io.Writer
	stderr io.Writer
}

// New creates a new App instance.
func New(
	opts domain.Options,
	log ports.Logger,
	connector ports.DaemonConnector,
	an ports.Analyzer,
	store ports.MetadataStore,
	view ports.FileView,
) *App {
	return &App{
		opts:      opts,
		log:       log,
		connector: connector,
		analyzer:  an,
		store:     store,
		view:      view,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
}

// WithOutput redirects the app's result streams. Used for testing.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// StatusFile resolves the status file location: the explicit override
// when given, otherwise the configured one.
func (a *App) StatusFile(override string) string {
	if override != "" {
		return override
	}
	return a.opts.StatusFile
}

// Start spawns the daemon unless one is already running.
func (a *App) Start(ctx context.Context, statusFile string) error {
	if a.connector.IsRunning(statusFile) {
		a.log.Info("daemon is already running")
		return nil
	}
	if err := a.connector.Spawn(ctx, statusFile); err != nil {
		return err
	}
	a.log.Info("daemon started")
	return nil
}

// Restart stops any running daemon gracefully and spawns a fresh one.
func (a *App) Restart(ctx context.Context, statusFile string) error {
	if a.connector.IsRunning(statusFile) {
		if _, err := a.transact(ctx, statusFile, a.envelope("stop")); err != nil {
			return err
		}
	}
	if err := a.connector.Spawn(ctx, statusFile); err != nil {
		return err
	}
	a.log.Info("daemon restarted")
	return nil
}

// Status prints the running daemon's status report.
func (a *App) Status(ctx context.Context, statusFile string) error {
	resp, err := a.transact(ctx, statusFile, a.envelope("status"))
	if err != nil {
		return err
	}
	_, err = a.renderResponse(resp)
	return err
}

// Stop asks the running daemon to shut down gracefully.
func (a *App) Stop(ctx context.Context, statusFile string) error {
	resp, err := a.transact(ctx, statusFile, a.envelope("stop"))
	if err != nil {
		return err
	}
	_, err = a.renderResponse(resp)
	return err
}

// Kill terminates the daemon process without a graceful stop.
func (a *App) Kill(statusFile string) error {
	if err := a.connector.Kill(statusFile); err != nil {
		return err
	}
	a.log.Info("daemon killed")
	return nil
}

// Check runs a type check, starting the daemon when none is running and
// restarting it once when the daemon asks for it (version or option
// drift). The returned status is the command's exit code: 0 clean, 1
// diagnostics, 2 failure.
func (a *App) Check(ctx context.Context, statusFile, command string) (int, error) {
	if !a.connector.IsRunning(statusFile) {
		a.log.Info("no running daemon, starting one")
		if err := a.connector.Spawn(ctx, statusFile); err != nil {
			return 2, err
		}
	}

	resp, err := a.transact(ctx, statusFile, a.envelope(command))
	if err != nil {
		return 2, err
	}
	if resp.Restart != "" {
		a.log.Info("restarting daemon: " + resp.Restart)
		if err := a.connector.Kill(statusFile); err != nil {
			return 2, err
		}
		if err := a.connector.Spawn(ctx, statusFile); err != nil {
			return 2, err
		}
		resp, err = a.transact(ctx, statusFile, a.envelope(command))
		if err != nil {
			return 2, err
		}
	}
	return a.renderResponse(resp)
}

// Command issues one daemon command that requires an already-running
// daemon, with optional arguments.
func (a *App) Command(ctx context.Context, statusFile, command string, args map[string]string) (int, error) {
	req := a.envelope(command)
	req.Args = args
	resp, err := a.transact(ctx, statusFile, req)
	if err != nil {
		return 2, err
	}
	return a.renderResponse(resp)
}

// ServeDaemon runs the daemon server in the foreground. Output switches
// to JSON because the spawner points it at a log file.
func (a *App) ServeDaemon(ctx context.Context, statusFile string) error {
	a.log.SetJSON(true)

	opts := a.opts
	opts.StatusFile = statusFile
	srv := daemon.NewServer(opts, a.analyzer, a.store, a.view, a.log)
	srv.SpawnWorkers = func(ctx context.Context, n int) ([]ports.Conn, error) {
		return worker.SpawnPool(ctx, n, a.log)
	}
	srv.WatchFactory = func() (ports.Watcher, error) {
		return watcher.NewWatcher(a.log)
	}
	return srv.Serve(ctx)
}

// ServeWorker runs one build worker in the foreground.
func (a *App) ServeWorker(ctx context.Context, statusFile string) error {
	a.log.SetJSON(true)
	w := worker.New(a.analyzer, a.view, a.log)
	return w.Serve(ctx, statusFile)
}

// envelope builds the request all commands share: protocol version,
// options fingerprint, and terminal hints.
func (a *App) envelope(command string) domain.Request {
	return domain.Request{
		Command:       command,
		Version:       domain.ProtocolVersion,
		Fingerprint:   a.opts.Fingerprint(),
		IsTTY:         isTTY(a.stdout),
		TerminalWidth: terminalWidth(),
	}
}

// transact discovers the daemon and performs one request/response
// exchange. Discovery failures are fatal; later failures arrive inside
// the response.
func (a *App) transact(ctx context.Context, statusFile string, req domain.Request) (domain.Response, error) {
	record, err := a.connector.Status(statusFile)
	if err != nil {
		return domain.Response{}, zerr.Wrap(err, "no usable daemon (try 'pycheck start')")
	}
	client := daemon.NewClient(record, a.stdout, a.stderr)
	return client.Request(ctx, req), nil
}

// renderResponse writes the result text to the app's streams and maps
// the response to an exit status.
func (a *App) renderResponse(resp domain.Response) (int, error) {
	if resp.Out != "" {
		_, _ = io.WriteString(a.stdout, resp.Out)
	}
	if resp.Err != "" {
		_, _ = io.WriteString(a.stderr, resp.Err)
	}
	if resp.Error != "" {
		err := zerr.New(resp.Error)
		if resp.Traceback != "" {
			_, _ = io.WriteString(a.stderr, resp.Traceback)
		}
		status := resp.Status
		if status == 0 {
			status = 2
		}
		return status, err
	}
	return resp.Status, nil
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func terminalWidth() int {
	cols, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || cols <= 0 {
		return 0
	}
	return cols
}
