package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.trai.ch/pycheck/internal/adapters/analyzer"
	"go.trai.ch/pycheck/internal/adapters/ipc"
	"go.trai.ch/pycheck/internal/adapters/watcher"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/pycheck/internal/engine/build"
	"go.trai.ch/pycheck/internal/shared/observability"
	"go.trai.ch/zerr"
)

const (
	// acceptTick bounds one blocking accept so shutdown signals are
	// observed promptly.
	acceptTick = time.Second

	// requestReadTimeout bounds how long an accepted connection may take
	// to deliver its request.
	requestReadTimeout = 5 * time.Minute
)

// Server is the daemon: a single-threaded serve loop owning the
// in-memory incremental build state. Requests are serviced strictly
// serially, so none of the build state needs locking.
type Server struct {
	opts     domain.Options
	analyzer ports.Analyzer
	store    ports.MetadataStore
	view     ports.FileView
	log      ports.Logger

	// SpawnWorkers, when set and opts.Workers > 0, provides connected
	// build worker processes for the first full check.
	SpawnWorkers func(ctx context.Context, n int) ([]ports.Conn, error)

	// WatchFactory, when set, provides one filesystem watcher per source
	// root. A quiet watcher lets an incremental check answer from the
	// last result without touching the tree.
	WatchFactory func() (ports.Watcher, error)

	lifecycle *Lifecycle
	commands  map[string]func(context.Context, domain.Request) domain.Response

	fingerprint string
	stopping    bool

	// Build state across requests.
	checked     bool
	graph       map[string]*domain.ModuleNode
	baseline    *watcher.Baseline
	lastSources []domain.SourceFile

	watching   bool
	dirty      atomic.Int64
	lastResult *domain.Response
}

// NewServer creates a daemon server around its collaborators. The
// options are snapshotted here; a later run request carrying a different
// fingerprint is answered with a restart signal.
func NewServer(opts domain.Options, an ports.Analyzer, store ports.MetadataStore, view ports.FileView, log ports.Logger) *Server {
	s := &Server{
		opts:        opts,
		analyzer:    an,
		store:       store,
		view:        view,
		log:         log,
		fingerprint: opts.Fingerprint(),
	}
	// Closed dispatch table; unknown commands never reach a handler.
	s.commands = map[string]func(context.Context, domain.Request) domain.Response{
		"status":  s.cmdStatus,
		"stop":    s.cmdStop,
		"run":     s.cmdRun,
		"check":   s.cmdRun,
		"recheck": s.cmdRecheck,
		"suggest": s.cmdSuggest,
		"inspect": s.cmdInspect,
		"hang":    s.cmdHang,
	}
	return s
}

// Serve binds the endpoint, publishes the status record, and runs the
// serial accept loop until stop, idle timeout, or context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	RemoveStatus(s.opts.StatusFile)

	ln, err := ipc.NewListener("pycheck-daemon")
	if err != nil {
		return err
	}
	defer func() { _ = ln.Close() }()

	record := domain.StatusRecord{PID: os.Getpid(), ConnectionName: ln.Addr()}
	if err := WriteStatus(s.opts.StatusFile, record); err != nil {
		return err
	}
	defer RemoveStatus(s.opts.StatusFile)

	s.lifecycle = NewLifecycle(s.opts.IdleTimeout)
	defer s.lifecycle.Shutdown()
	s.log.Info("daemon serving on " + ln.Addr())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.lifecycle.ShutdownChan():
			s.log.Info("idle timeout reached, shutting down")
			return nil
		default:
		}

		conn, err := ln.Accept(acceptTick)
		if err != nil {
			if errors.Is(err, domain.ErrTransport) {
				continue
			}
			return err
		}

		s.lifecycle.ResetTimer()
		s.serveConn(ctx, conn)
		if s.stopping {
			return nil
		}
	}
}

// serveConn services exactly one request on one connection. A handler
// panic is reported once to the requesting client, then re-raised: the
// in-memory graph cannot be trusted after an unexpected failure.
func (s *Server) serveConn(ctx context.Context, conn ports.Conn) {
	defer func() { _ = conn.Close() }()

	var req domain.Request
	if err := ipc.Receive(conn, requestReadTimeout, &req); err != nil {
		s.log.Error(zerr.Wrap(err, "dropping connection without request"))
		return
	}
	observability.RequestsTotal.WithLabelValues(req.Command).Inc()

	defer func() {
		if r := recover(); r != nil {
			notice := domain.Response{
				Error:     fmt.Sprintf("daemon crashed while handling %q: %v", req.Command, r),
				Traceback: string(debug.Stack()),
				Final:     true,
			}
			_ = ipc.Send(conn, notice)
			_ = conn.Close()
			panic(r)
		}
	}()

	handler, ok := s.commands[req.Command]
	var resp domain.Response
	if !ok {
		resp = domain.Response{Error: domain.ErrUnknownCommand.Error() + ": " + req.Command, Status: 2}
	} else {
		resp = handler(ctx, req)
	}
	resp.Final = true
	if err := ipc.Send(conn, resp); err != nil {
		s.log.Error(zerr.Wrap(err, "response send failed"))
	}
}

func (s *Server) cmdStatus(context.Context, domain.Request) domain.Response {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	counters := observability.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "daemon is up (pid %d, uptime %s, idle shutdown in %s)\n",
		os.Getpid(), s.lifecycle.Uptime().Round(time.Second), s.lifecycle.IdleRemaining().Round(time.Second))
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s %v\n", name, counters[name])
	}

	return domain.Response{
		Out: b.String(),
		Memory: map[string]uint64{
			"heap_alloc_bytes": ms.HeapAlloc,
			"heap_sys_bytes":   ms.HeapSys,
			"sys_bytes":        ms.Sys,
			"gc_runs":          uint64(ms.NumGC),
		},
		Counters: counters,
	}
}

func (s *Server) cmdStop(context.Context, domain.Request) domain.Response {
	s.stopping = true
	return domain.Response{Out: "daemon stopped\n"}
}

func (s *Server) cmdRun(ctx context.Context, req domain.Request) domain.Response {
	if req.Version != "" && req.Version != domain.ProtocolVersion {
		return domain.Response{Restart: "protocol version mismatch"}
	}
	if req.Fingerprint != "" && req.Fingerprint != s.fingerprint {
		return domain.Response{Restart: "configuration changed"}
	}
	if !s.checked {
		return s.firstCheck(ctx)
	}
	return s.incrementalCheck(ctx)
}

// firstCheck builds the module graph from scratch, runs a full analysis
// (fanned out to workers when configured), and records the watcher
// baseline every later request diffs against.
func (s *Server) firstCheck(ctx context.Context) domain.Response {
	s.view.Flush()
	sources, err := analyzer.DiscoverSources(s.view, s.opts.SourceRoots)
	if err != nil {
		return domain.Response{Error: "source discovery failed: " + err.Error(), Status: 2}
	}

	driver := &build.Driver{
		Analyzer: s.analyzer,
		Store:    s.store,
		View:     s.view,
		Log:      s.log,
	}
	var pool *build.WorkerPool
	if s.opts.Workers > 0 && s.SpawnWorkers != nil {
		conns, err := s.SpawnWorkers(ctx, s.opts.Workers)
		if err != nil {
			return domain.Response{Error: "worker startup failed: " + err.Error(), Status: 2}
		}
		pool = build.NewWorkerPool(conns, ipc.NewMultiplexer(), s.log)
		driver.Pool = pool
	}

	outcome, err := driver.Run(ctx, sources)
	if pool != nil {
		pool.Shutdown()
	}
	if err != nil {
		return domain.Response{Error: err.Error(), Status: 2}
	}

	s.baseline = watcher.NewBaseline()
	if _, _, err := s.baseline.Advance(s.view, sources); err != nil {
		return domain.Response{Error: err.Error(), Status: 2}
	}
	s.graph = outcome.Graph
	s.lastSources = sources
	s.checked = true
	s.startWatching(ctx)

	if len(outcome.Blockers) > 0 {
		return s.remember(blockerResponse(outcome.Blockers))
	}
	if len(outcome.Lost) > 0 {
		return domain.Response{Error: "worker died during analysis; rerun to retry", Status: 2}
	}
	return s.remember(diagnosticsResponse(collectDiagnostics(outcome)))
}

// startWatching puts one watcher on every source root. Events only bump
// a counter; the serve loop stays single-threaded. Watching is best
// effort: any failure just disables the quiet-tree fast path.
func (s *Server) startWatching(ctx context.Context) {
	if s.WatchFactory == nil || s.watching {
		return
	}
	for _, root := range s.opts.SourceRoots {
		w, err := s.WatchFactory()
		if err != nil {
			s.log.Error(zerr.Wrap(err, "filesystem watching disabled"))
			return
		}
		if err := w.Start(ctx, root); err != nil {
			s.log.Error(zerr.Wrap(err, "filesystem watching disabled"))
			return
		}
		go func(w ports.Watcher) {
			for range w.Events() {
				s.dirty.Add(1)
			}
		}(w)
	}
	s.watching = true
}

// remember keeps the last complete result for the quiet-tree fast path.
func (s *Server) remember(resp domain.Response) domain.Response {
	r := resp
	s.lastResult = &r
	return resp
}

// incrementalCheck computes the changed/removed set since the last call
// and delegates exactly that to the fine-grained updater. When the
// watchers saw nothing since the previous answer, that answer still
// holds and the tree is not touched at all.
func (s *Server) incrementalCheck(ctx context.Context) domain.Response {
	if s.watching && s.lastResult != nil && s.dirty.Swap(0) == 0 {
		return *s.lastResult
	}
	s.view.Flush()
	sources, err := analyzer.DiscoverSources(s.view, s.opts.SourceRoots)
	if err != nil {
		return domain.Response{Error: "source discovery failed: " + err.Error(), Status: 2}
	}

	changed, removed, err := s.baseline.Advance(s.view, sources)
	if err != nil {
		return domain.Response{Error: err.Error(), Status: 2}
	}

	diags, err := s.analyzer.Update(ctx, changed, removed)
	if err != nil {
		return domain.Response{Error: err.Error(), Status: 2}
	}
	s.lastSources = sources
	return s.remember(diagnosticsResponse(diags))
}

func (s *Server) cmdRecheck(ctx context.Context, _ domain.Request) domain.Response {
	if !s.checked {
		return domain.Response{Error: domain.ErrNoPriorCheck.Error(), Status: 2}
	}
	s.view.Flush()
	diags, err := s.analyzer.Update(ctx, s.lastSources, nil)
	if err != nil {
		return domain.Response{Error: err.Error(), Status: 2}
	}
	return s.remember(diagnosticsResponse(diags))
}

// cmdSuggest lists the suppressed dependencies of a module: imports the
// analysis silenced for lack of an implementation or stub.
func (s *Server) cmdSuggest(_ context.Context, req domain.Request) domain.Response {
	node, resp := s.lookupModule(req)
	if node == nil {
		return resp
	}
	if len(node.SuppressedDeps) == 0 {
		return domain.Response{Out: "no stub suggestions for " + node.ID + "\n"}
	}
	var b strings.Builder
	for _, dep := range node.SuppressedDeps {
		fmt.Fprintf(&b, "%s: needs implementation or stub for %q\n", node.ID, dep)
	}
	return domain.Response{Out: b.String()}
}

func (s *Server) cmdInspect(_ context.Context, req domain.Request) domain.Response {
	node, resp := s.lookupModule(req)
	if node == nil {
		return resp
	}
	data, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return domain.Response{Error: err.Error(), Status: 2}
	}
	return domain.Response{Out: string(data) + "\n"}
}

func (s *Server) lookupModule(req domain.Request) (*domain.ModuleNode, domain.Response) {
	if !s.checked {
		return nil, domain.Response{Error: domain.ErrNoPriorCheck.Error(), Status: 2}
	}
	id := req.Args["module"]
	if id == "" {
		return nil, domain.Response{Error: "missing module argument", Status: 2}
	}
	node, ok := s.graph[id]
	if !ok {
		return nil, domain.Response{Error: "unknown module: " + id, Status: 1}
	}
	return node, domain.Response{}
}

// cmdHang blocks for 100 seconds. It exists to exercise client-side
// timeout handling against a live daemon.
func (s *Server) cmdHang(ctx context.Context, _ domain.Request) domain.Response {
	select {
	case <-time.After(100 * time.Second):
	case <-ctx.Done():
	}
	return domain.Response{Out: "hang finished\n"}
}

// collectDiagnostics decodes the diagnostics field of every component
// result. Results are otherwise opaque to the daemon.
func collectDiagnostics(outcome *build.Outcome) []string {
	var all []string
	for _, raw := range outcome.Results {
		var payload struct {
			Diagnostics []string `json:"diagnostics"`
		}
		if err := json.Unmarshal(raw, &payload); err == nil {
			all = append(all, payload.Diagnostics...)
		}
	}
	sort.Strings(all)
	return all
}

func diagnosticsResponse(diags []string) domain.Response {
	if len(diags) == 0 {
		return domain.Response{Out: "Success: no issues found\n"}
	}
	return domain.Response{
		Out:    strings.Join(diags, "\n") + "\n",
		Status: 1,
	}
}

func blockerResponse(blockers []*domain.BlockerError) domain.Response {
	var out, errOut strings.Builder
	for _, b := range blockers {
		target := &errOut
		if b.UseStdout {
			target = &out
		}
		for _, msg := range b.Messages {
			target.WriteString(msg + "\n")
		}
	}
	return domain.Response{Out: out.String(), Err: errOut.String(), Status: 2}
}
