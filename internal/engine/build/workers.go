package build

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.trai.ch/pycheck/internal/adapters/ipc"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/pycheck/internal/shared/observability"
	"go.trai.ch/zerr"
)

// graphAckTimeout bounds how long a worker may take to build its copy of
// the module graph before the pool gives up on it.
const graphAckTimeout = 5 * time.Minute

// WorkerPool drives a set of worker processes over IPC. A worker whose
// connection fails is marked dead for the rest of the run; its in-flight
// job is reported lost, never resubmitted.
type WorkerPool struct {
	conns []ports.Conn
	mux   ports.Multiplexer
	log   ports.Logger
	dead  []bool
}

// NewWorkerPool wraps already-connected worker connections.
func NewWorkerPool(conns []ports.Conn, mux ports.Multiplexer, log ports.Logger) *WorkerPool {
	return &WorkerPool{
		conns: conns,
		mux:   mux,
		log:   log,
		dead:  make([]bool, len(conns)),
	}
}

// Alive reports how many workers are still usable.
func (p *WorkerPool) Alive() int {
	n := 0
	for _, d := range p.dead {
		if !d {
			n++
		}
	}
	return n
}

func (p *WorkerPool) markDead(i int, err error) {
	if p.dead[i] {
		return
	}
	p.dead[i] = true
	_ = p.conns[i].Close()
	p.log.Error(zerr.Wrap(domain.ErrWorkerDead, "worker "+strconv.Itoa(i)+": "+err.Error()))
}

// Init sends the full source list to every worker and waits for each to
// acknowledge its graph build.
func (p *WorkerPool) Init(sources []domain.SourceFile) error {
	msg := domain.WorkerMessage{Kind: domain.WorkerMsgInit, Sources: sources}
	for i, conn := range p.conns {
		if p.dead[i] {
			continue
		}
		if err := ipc.Send(conn, msg); err != nil {
			p.markDead(i, err)
			continue
		}
	}
	for i, conn := range p.conns {
		if p.dead[i] {
			continue
		}
		var ack domain.WorkerMessage
		if err := ipc.Receive(conn, graphAckTimeout, &ack); err != nil {
			p.markDead(i, err)
			continue
		}
		if ack.Kind != domain.WorkerMsgGraphAck {
			p.markDead(i, zerr.New("expected graph_ack, got "+ack.Kind))
		}
	}
	if p.Alive() == 0 {
		return zerr.Wrap(domain.ErrWorkerDead, "no worker survived initialization")
	}
	return nil
}

// Topology distributes the SCC partition and dependency order.
func (p *WorkerPool) Topology(sccs []domain.SCC) error {
	msg := domain.WorkerMessage{Kind: domain.WorkerMsgTopology, SCCs: sccs}
	for i, conn := range p.conns {
		if p.dead[i] {
			continue
		}
		if err := ipc.Send(conn, msg); err != nil {
			p.markDead(i, err)
		}
	}
	if p.Alive() == 0 {
		return zerr.Wrap(domain.ErrWorkerDead, "no worker accepted the topology")
	}
	return nil
}

// ProcessLayer dispatches one layer of independent components across the
// live workers, multiplexing completions with the readiness primitive.
func (p *WorkerPool) ProcessLayer(ctx context.Context, jobs []domain.SCC) (map[int]json.RawMessage, []*domain.BlockerError, []int, error) {
	results := make(map[int]json.RawMessage, len(jobs))
	var blockers []*domain.BlockerError
	var lost []int

	queue := jobs
	busy := make(map[int]int) // worker index -> scc id

	for len(queue) > 0 || len(busy) > 0 {
		if err := ctx.Err(); err != nil {
			return results, blockers, lost, err
		}

		// Hand queued jobs to idle live workers.
		for i := range p.conns {
			if len(queue) == 0 {
				break
			}
			if p.dead[i] {
				continue
			}
			if _, taken := busy[i]; taken {
				continue
			}
			job := queue[0]
			msg := domain.WorkerMessage{Kind: domain.WorkerMsgProcess, SCCID: job.ID, Modules: job.Modules}
			if err := ipc.Send(p.conns[i], msg); err != nil {
				p.markDead(i, err)
				continue
			}
			queue = queue[1:]
			busy[i] = job.ID
		}

		if len(busy) == 0 {
			if p.Alive() == 0 {
				return results, blockers, lost, zerr.Wrap(domain.ErrWorkerDead, "all workers died")
			}
			continue
		}

		// Wait for any busy worker to answer.
		waiting := make([]ports.Conn, 0, len(busy))
		indices := make([]int, 0, len(busy))
		for i := range p.conns {
			if _, taken := busy[i]; taken {
				waiting = append(waiting, p.conns[i])
				indices = append(indices, i)
			}
		}
		ready, err := p.mux.ReadyToRead(waiting, time.Second)
		if err != nil {
			return results, blockers, lost, err
		}

		for _, r := range ready {
			i := indices[r]
			sccID := busy[i]
			var msg domain.WorkerMessage
			if err := ipc.Receive(p.conns[i], ports.NoTimeout, &msg); err != nil {
				p.markDead(i, err)
				delete(busy, i)
				lost = append(lost, sccID)
				observability.WorkerJobsTotal.WithLabelValues("lost").Inc()
				continue
			}
			delete(busy, i)

			switch msg.Kind {
			case domain.WorkerMsgResult:
				results[msg.SCCID] = msg.Result
				observability.WorkerJobsTotal.WithLabelValues("result").Inc()
			case domain.WorkerMsgBlocker:
				blockers = append(blockers, msg.Blocker)
				observability.WorkerJobsTotal.WithLabelValues("blocker").Inc()
			default:
				p.markDead(i, zerr.New("unexpected worker message "+msg.Kind))
				lost = append(lost, sccID)
				observability.WorkerJobsTotal.WithLabelValues("lost").Inc()
			}
		}
	}
	return results, blockers, lost, nil
}

// Shutdown sends the final sentinel, collects worker statistics, and
// closes the connections.
func (p *WorkerPool) Shutdown() map[string]int64 {
	stats := make(map[string]int64)
	for i, conn := range p.conns {
		if p.dead[i] {
			continue
		}
		if err := ipc.Send(conn, domain.WorkerMessage{Kind: domain.WorkerMsgFinal}); err == nil {
			var msg domain.WorkerMessage
			if err := ipc.Receive(conn, 10*time.Second, &msg); err == nil && msg.Kind == domain.WorkerMsgStats {
				for k, v := range msg.Stats {
					stats[k] += v
				}
			}
		}
		_ = conn.Close()
		p.dead[i] = true
	}
	return stats
}
