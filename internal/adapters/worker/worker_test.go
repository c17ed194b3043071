package worker_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pycheck/internal/adapters/analyzer"
	"go.trai.ch/pycheck/internal/adapters/daemon"
	"go.trai.ch/pycheck/internal/adapters/fscache"
	"go.trai.ch/pycheck/internal/adapters/ipc"
	"go.trai.ch/pycheck/internal/adapters/logger"
	"go.trai.ch/pycheck/internal/adapters/worker"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

// startWorker serves a worker over a real socket and returns the driver
// side of its connection.
func startWorker(t *testing.T, srcDir string) ports.Conn {
	t.Helper()

	opts := domain.Options{SourceRoots: []string{srcDir}, FollowImports: "normal"}
	log := logger.New()
	log.SetOutput(io.Discard)
	w := worker.New(analyzer.New(opts, log), fscache.New(), log)

	statusFile := filepath.Join(t.TempDir(), "worker.json")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx, statusFile) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("worker did not shut down")
		}
	})

	var record domain.StatusRecord
	require.Eventually(t, func() bool {
		var err error
		record, err = daemon.ReadStatus(statusFile)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "worker never published its status record")

	conn, err := ipc.Dial(record.ConnectionName)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func exchange(t *testing.T, conn ports.Conn, msg domain.WorkerMessage) domain.WorkerMessage {
	t.Helper()
	require.NoError(t, ipc.Send(conn, msg))
	var reply domain.WorkerMessage
	require.NoError(t, ipc.Receive(conn, 5*time.Second, &reply))
	return reply
}

func TestWorker_FullProtocol(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.py"), []byte("import b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.py"), []byte("import missing_dep\n"), 0o644))
	conn := startWorker(t, srcDir)

	sources := []domain.SourceFile{
		{Path: filepath.Join(srcDir, "a.py"), ModuleID: "a"},
		{Path: filepath.Join(srcDir, "b.py"), ModuleID: "b"},
	}
	ack := exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgInit, Sources: sources})
	require.Equal(t, domain.WorkerMsgGraphAck, ack.Kind)
	require.Equal(t, 2, ack.ModuleCount)

	sccs := []domain.SCC{
		{ID: 0, Modules: []string{"b"}},
		{ID: 1, Modules: []string{"a"}, Deps: []int{0}},
	}
	require.NoError(t, ipc.Send(conn, domain.WorkerMessage{Kind: domain.WorkerMsgTopology, SCCs: sccs}))

	reply := exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgProcess, SCCID: 0, Modules: []string{"b"}})
	require.Equal(t, domain.WorkerMsgResult, reply.Kind)
	require.Equal(t, 0, reply.SCCID)
	require.Contains(t, string(reply.Result), "missing_dep")

	reply = exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgProcess, SCCID: 1, Modules: []string{"a"}})
	require.Equal(t, domain.WorkerMsgResult, reply.Kind)
	require.Equal(t, 1, reply.SCCID)

	stats := exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgFinal})
	require.Equal(t, domain.WorkerMsgStats, stats.Kind)
	require.Equal(t, int64(2), stats.Stats["processed"])
}

func TestWorker_BlockerIsStructuredReply(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.py"), []byte("x = 1\n"), 0o644))
	conn := startWorker(t, srcDir)

	sources := []domain.SourceFile{{Path: filepath.Join(srcDir, "a.py"), ModuleID: "a"}}
	ack := exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgInit, Sources: sources})
	require.Equal(t, domain.WorkerMsgGraphAck, ack.Kind)

	// A component naming a module outside the graph cannot be analyzed.
	reply := exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgProcess, SCCID: 9, Modules: []string{"ghost"}})
	require.Equal(t, domain.WorkerMsgBlocker, reply.Kind)
	require.NotNil(t, reply.Blocker)
	require.NotEmpty(t, reply.Blocker.Messages)

	stats := exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgFinal})
	require.Equal(t, int64(1), stats.Stats["blocked"])
}

func TestWorker_CleanDriverHangupEndsServe(t *testing.T) {
	srcDir := t.TempDir()
	conn := startWorker(t, srcDir)

	require.NoError(t, conn.Close())
	// Cleanup asserts Serve returns; nothing else to check here.
}

func TestWorker_StatusFileRemovedAfterFinal(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.py"), []byte("x = 1\n"), 0o644))

	opts := domain.Options{SourceRoots: []string{srcDir}, FollowImports: "normal"}
	log := logger.New()
	log.SetOutput(io.Discard)
	w := worker.New(analyzer.New(opts, log), fscache.New(), log)

	statusFile := filepath.Join(t.TempDir(), "worker.json")
	done := make(chan error, 1)
	go func() { done <- w.Serve(context.Background(), statusFile) }()

	var record domain.StatusRecord
	require.Eventually(t, func() bool {
		var err error
		record, err = daemon.ReadStatus(statusFile)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	conn, err := ipc.Dial(record.ConnectionName)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgInit})
	exchange(t, conn, domain.WorkerMessage{Kind: domain.WorkerMsgFinal})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after final")
	}
	_, err = os.Stat(statusFile)
	require.True(t, os.IsNotExist(err))
}
