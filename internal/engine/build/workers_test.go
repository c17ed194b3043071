package build_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.trai.ch/pycheck/internal/adapters/ipc"
	"go.trai.ch/pycheck/internal/adapters/logger"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/pycheck/internal/engine/build"
)

// fakeWorker speaks the worker protocol on one connection. process is
// called per job; returning nil kills the connection mid-protocol.
func fakeWorker(t *testing.T, conn ports.Conn, process func(sccID int) *domain.WorkerMessage) {
	t.Helper()
	go func() {
		defer func() { _ = conn.Close() }()

		var msg domain.WorkerMessage
		if err := ipc.Receive(conn, 5*time.Second, &msg); err != nil || msg.Kind != domain.WorkerMsgInit {
			return
		}
		if err := ipc.Send(conn, domain.WorkerMessage{Kind: domain.WorkerMsgGraphAck, ModuleCount: len(msg.Sources)}); err != nil {
			return
		}
		if err := ipc.Receive(conn, 5*time.Second, &msg); err != nil || msg.Kind != domain.WorkerMsgTopology {
			return
		}
		for {
			if err := ipc.Receive(conn, 5*time.Second, &msg); err != nil {
				return
			}
			switch msg.Kind {
			case domain.WorkerMsgProcess:
				reply := process(msg.SCCID)
				if reply == nil {
					return
				}
				if err := ipc.Send(conn, *reply); err != nil {
					return
				}
			case domain.WorkerMsgFinal:
				_ = ipc.Send(conn, domain.WorkerMessage{Kind: domain.WorkerMsgStats, Stats: map[string]int64{"jobs": 1}})
				return
			default:
				return
			}
		}
	}()
}

// connectWorkers returns driver-side connections to n fake workers.
func connectWorkers(t *testing.T, n int, process func(sccID int) *domain.WorkerMessage) []ports.Conn {
	t.Helper()
	conns := make([]ports.Conn, n)
	for i := range n {
		ln, err := ipc.NewListener("worker-test")
		require.NoError(t, err)

		accepted := make(chan ports.Conn, 1)
		go func() {
			conn, err := ln.Accept(5 * time.Second)
			if err == nil {
				accepted <- conn
			}
		}()

		driverSide, err := ipc.Dial(ln.Addr())
		require.NoError(t, err)
		t.Cleanup(func() { _ = driverSide.Close() })

		select {
		case workerSide := <-accepted:
			fakeWorker(t, workerSide, process)
		case <-time.After(5 * time.Second):
			t.Fatal("worker connect timed out")
		}
		require.NoError(t, ln.Close())
		conns[i] = driverSide
	}
	return conns
}

func testJobs(n int) []domain.SCC {
	jobs := make([]domain.SCC, n)
	for i := range n {
		jobs[i] = domain.SCC{ID: i, Modules: []string{"m" + string(rune('0'+i))}}
	}
	return jobs
}

func TestWorkerPool_DistributesJobsAndMergesResults(t *testing.T) {
	process := func(sccID int) *domain.WorkerMessage {
		return &domain.WorkerMessage{
			Kind:   domain.WorkerMsgResult,
			SCCID:  sccID,
			Result: json.RawMessage(`{"scc":` + mustJSON(sccID) + `}`),
		}
	}
	conns := connectWorkers(t, 2, process)
	pool := build.NewWorkerPool(conns, ipc.NewMultiplexer(), logger.New())

	require.NoError(t, pool.Init([]domain.SourceFile{{Path: "a.py", ModuleID: "a"}}))
	require.NoError(t, pool.Topology(testJobs(5)))

	results, blockers, lost, err := pool.ProcessLayer(context.Background(), testJobs(5))
	require.NoError(t, err)
	require.Empty(t, blockers)
	require.Empty(t, lost)
	require.Len(t, results, 5)
	for id, raw := range results {
		require.JSONEq(t, `{"scc":`+mustJSON(id)+`}`, string(raw))
	}

	stats := pool.Shutdown()
	require.Equal(t, int64(2), stats["jobs"])
}

func TestWorkerPool_BlockerIsStructuredNotFatal(t *testing.T) {
	process := func(sccID int) *domain.WorkerMessage {
		if sccID == 1 {
			return &domain.WorkerMessage{
				Kind:  domain.WorkerMsgBlocker,
				SCCID: sccID,
				Blocker: &domain.BlockerError{
					Messages:  []string{"m1 does not parse"},
					UseStdout: true,
					Module:    "m1",
				},
			}
		}
		return &domain.WorkerMessage{Kind: domain.WorkerMsgResult, SCCID: sccID, Result: json.RawMessage(`{}`)}
	}
	conns := connectWorkers(t, 1, process)
	pool := build.NewWorkerPool(conns, ipc.NewMultiplexer(), logger.New())

	require.NoError(t, pool.Init(nil))
	require.NoError(t, pool.Topology(testJobs(3)))

	results, blockers, lost, err := pool.ProcessLayer(context.Background(), testJobs(3))
	require.NoError(t, err)
	require.Empty(t, lost)
	require.Len(t, results, 2)
	require.Len(t, blockers, 1)
	require.Equal(t, "m1", blockers[0].Module)
	require.True(t, blockers[0].UseStdout)
}

func TestWorkerPool_DeadWorkerLosesJobWithoutResubmission(t *testing.T) {
	// The single worker dies on job 0; the pool must report it lost and
	// fail the layer because nobody is left.
	process := func(sccID int) *domain.WorkerMessage { return nil }
	conns := connectWorkers(t, 1, process)
	pool := build.NewWorkerPool(conns, ipc.NewMultiplexer(), logger.New())

	require.NoError(t, pool.Init(nil))
	require.NoError(t, pool.Topology(testJobs(2)))

	results, _, lost, err := pool.ProcessLayer(context.Background(), testJobs(2))
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrWorkerDead)
	require.Empty(t, results)
	require.Equal(t, []int{0}, lost)
	require.Zero(t, pool.Alive())
}
