package domain

import "go.trai.ch/zerr"

var (
	// ErrBadStatus is returned when the daemon status file is missing,
	// malformed, or names a pid that is not alive. Always fatal to the
	// client command that triggered discovery.
	ErrBadStatus = zerr.New("invalid daemon status")

	// ErrTransport is returned for framing, connect, timeout, or
	// peer-hangup failures on an IPC connection.
	ErrTransport = zerr.New("transport failure")

	// ErrConnClosed is returned when the peer closed the connection
	// before sending a complete message.
	ErrConnClosed = zerr.New("connection closed by peer")

	// ErrNotFound is returned when a cache entry is absent. Expected and
	// recoverable; callers branch on it.
	ErrNotFound = zerr.New("cache entry not found")

	// ErrCyclicDependency is returned when topological layering cannot
	// make progress. Indicates a malformed input graph; not recoverable.
	ErrCyclicDependency = zerr.New("cycle in dependency graph")

	// ErrNoPriorCheck is returned by recheck when no check or run has
	// been performed on this daemon yet.
	ErrNoPriorCheck = zerr.New("no previous check to repeat")

	// ErrInvalidCacheName is returned when a cache entry name escapes
	// the cache root.
	ErrInvalidCacheName = zerr.New("invalid cache entry name")

	// ErrStoreClosed is returned when a metadata store is used after Close.
	ErrStoreClosed = zerr.New("metadata store is closed")

	// ErrUnknownCommand is returned by the daemon for a request naming a
	// command outside the dispatch table.
	ErrUnknownCommand = zerr.New("unrecognized command")

	// ErrDaemonSpawnFailed is returned when the daemon process cannot be started.
	ErrDaemonSpawnFailed = zerr.New("failed to spawn daemon")

	// ErrDaemonStartTimeout is returned when a freshly spawned daemon
	// does not publish a live status record within the startup bound.
	ErrDaemonStartTimeout = zerr.New("daemon failed to start within timeout")

	// ErrWorkerDead is returned when the driver observes an IPC failure
	// on a worker connection. The worker's in-flight job is lost.
	ErrWorkerDead = zerr.New("worker connection lost")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")
)

// BlockerError is the structured outcome of analysis aborting on a module
// that cannot be processed. It is a legitimate result, not a bug, and is
// propagated through worker and daemon responses rather than as a
// generic failure.
type BlockerError struct {
	Messages  []string `json:"messages"`
	UseStdout bool     `json:"use_stdout"`
	Module    string   `json:"module_with_blocker,omitempty"`
}

// Error implements the error interface.
func (e *BlockerError) Error() string {
	if e.Module != "" {
		return "compile blocker in module " + e.Module
	}
	return "compile blocker"
}
