package ports

import (
	"context"

	"go.trai.ch/pycheck/internal/core/domain"
)

//go:generate mockgen -source=daemon.go -destination=mocks/mock_daemon.go -package=mocks

// DaemonClient issues one command to a running daemon and collects the
// final response, streaming incidental output as it arrives.
type DaemonClient interface {
	// Request sends the command envelope and loops over response frames
	// until one carries Final. Transport failures after discovery are
	// softened into a Response with the Error field set.
	Request(ctx context.Context, req domain.Request) domain.Response
}

// DaemonConnector manages daemon lifecycle from the CLI perspective.
type DaemonConnector interface {
	// Status reads and validates the status file. Failures are
	// domain.ErrBadStatus, fatal to the invoking command.
	Status(statusFile string) (domain.StatusRecord, error)

	// IsRunning reports whether a live daemon is reachable.
	IsRunning(statusFile string) bool

	// Spawn starts a daemon process in the background and waits,
	// bounded, until its status record is present and live.
	Spawn(ctx context.Context, statusFile string) error

	// Kill terminates the daemon process without a graceful stop.
	Kill(statusFile string) error
}
