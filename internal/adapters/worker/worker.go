// Package worker implements the build worker process: a sibling of the
// daemon that holds its own copy of the module graph and analyzes the
// components the driver assigns to it.
package worker

import (
	"context"
	"errors"
	"os"
	"time"

	"go.trai.ch/pycheck/internal/adapters/daemon"
	"go.trai.ch/pycheck/internal/adapters/ipc"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

// acceptTick bounds one blocking accept so context cancellation is
// observed while waiting for the driver to connect.
const acceptTick = time.Second

// Worker is one build worker. It serves exactly one driver connection:
// the driver initializes it with the source list, distributes the
// topology, then streams process requests until the final sentinel.
type Worker struct {
	analyzer ports.Analyzer
	view     ports.FileView
	log      ports.Logger

	sccs  map[int]domain.SCC
	stats map[string]int64
}

// New creates a worker around its analysis collaborators.
func New(an ports.Analyzer, view ports.FileView, log ports.Logger) *Worker {
	return &Worker{
		analyzer: an,
		view:     view,
		log:      log,
		sccs:     make(map[int]domain.SCC),
		stats:    make(map[string]int64),
	}
}

// Serve publishes the worker's endpoint through the status file, waits
// for the driver to connect, and runs the message loop until the final
// sentinel or a connection loss.
func (w *Worker) Serve(ctx context.Context, statusFile string) error {
	ln, err := ipc.NewListener("pycheck-worker")
	if err != nil {
		return err
	}
	defer func() { _ = ln.Close() }()

	record := domain.StatusRecord{PID: os.Getpid(), ConnectionName: ln.Addr()}
	if err := daemon.WriteStatus(statusFile, record); err != nil {
		return err
	}
	defer daemon.RemoveStatus(statusFile)

	conn, err := w.acceptDriver(ctx, ln)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	return w.loop(ctx, conn)
}

func (w *Worker) acceptDriver(ctx context.Context, ln ports.Listener) (ports.Conn, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := ln.Accept(acceptTick)
		if err != nil {
			if errors.Is(err, domain.ErrTransport) {
				continue
			}
			return nil, err
		}
		return conn, nil
	}
}

func (w *Worker) loop(ctx context.Context, conn ports.Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var msg domain.WorkerMessage
		if err := ipc.Receive(conn, ports.NoTimeout, &msg); err != nil {
			if errors.Is(err, domain.ErrConnClosed) {
				return nil
			}
			return err
		}

		switch msg.Kind {
		case domain.WorkerMsgInit:
			graph, err := w.analyzer.BuildGraph(ctx, msg.Sources, w.view)
			if err != nil {
				return zerr.Wrap(err, "graph build failed")
			}
			ack := domain.WorkerMessage{Kind: domain.WorkerMsgGraphAck, ModuleCount: len(graph)}
			if err := ipc.Send(conn, ack); err != nil {
				return err
			}

		case domain.WorkerMsgTopology:
			for _, scc := range msg.SCCs {
				w.sccs[scc.ID] = scc
			}

		case domain.WorkerMsgProcess:
			if err := w.process(ctx, conn, msg); err != nil {
				return err
			}

		case domain.WorkerMsgFinal:
			final := domain.WorkerMessage{Kind: domain.WorkerMsgStats, Stats: w.stats}
			return ipc.Send(conn, final)

		default:
			return zerr.New("unexpected driver message " + msg.Kind)
		}
	}
}

// process analyzes one assigned component. A blocker is a structured
// reply; any other analysis failure kills the worker, which the driver
// observes as a lost job.
func (w *Worker) process(ctx context.Context, conn ports.Conn, msg domain.WorkerMessage) error {
	scc, ok := w.sccs[msg.SCCID]
	if !ok {
		scc = domain.SCC{ID: msg.SCCID, Modules: msg.Modules}
	}

	result, err := w.analyzer.ProcessSCC(ctx, scc)
	if err != nil {
		var blocker *domain.BlockerError
		if errors.As(err, &blocker) {
			w.stats["blocked"]++
			reply := domain.WorkerMessage{Kind: domain.WorkerMsgBlocker, SCCID: scc.ID, Blocker: blocker}
			return ipc.Send(conn, reply)
		}
		return zerr.Wrap(err, "component analysis failed")
	}

	w.stats["processed"]++
	reply := domain.WorkerMessage{Kind: domain.WorkerMsgResult, SCCID: scc.ID, Result: result}
	return ipc.Send(conn, reply)
}
