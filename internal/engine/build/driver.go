package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/pycheck/internal/engine/graphutil"
	"go.trai.ch/pycheck/internal/shared/observability"
	"go.trai.ch/zerr"
)

// Driver runs one full build transaction: graph, SCC decomposition,
// freshness, processing, cache write-back.
type Driver struct {
	Analyzer ports.Analyzer
	Store    ports.MetadataStore
	View     ports.FileView
	Log      ports.Logger

	// Pool fans SCC jobs out to worker processes when set; otherwise
	// components are processed in this process.
	Pool *WorkerPool

	// Parallelism bounds in-process SCC processing; zero means
	// GOMAXPROCS.
	Parallelism int
}

// Outcome is the merged result of one build transaction.
type Outcome struct {
	Graph   map[string]*domain.ModuleNode
	SCCs    []domain.SCC
	Results map[int]json.RawMessage

	// Processed counts components analyzed this run, Fresh components
	// served from cache.
	Processed int
	Fresh     int

	// Blockers are structured analysis failures; any blocker stops
	// downstream layers from being processed.
	Blockers []*domain.BlockerError

	// Lost are components whose worker died mid-job; they are not
	// resubmitted within the same run.
	Lost []int
}

// Run executes a build over the given sources.
func (d *Driver) Run(ctx context.Context, sources []domain.SourceFile) (*Outcome, error) {
	graph, err := d.Analyzer.BuildGraph(ctx, sources, d.View)
	if err != nil {
		return nil, zerr.Wrap(err, "module graph build failed")
	}

	vertices := make([]string, 0, len(graph))
	edges := make(map[string][]string, len(graph))
	for id, node := range graph {
		vertices = append(vertices, id)
		for _, dep := range node.DepIDs() {
			if _, ok := graph[dep]; ok {
				edges[id] = append(edges[id], dep)
			}
		}
	}

	sccs := graphutil.BuildSCCGraph(vertices, edges)
	layers, err := graphutil.SCCLayers(sccs)
	if err != nil {
		return nil, err
	}
	observability.GraphModules.Set(float64(len(graph)))
	observability.GraphSCCs.Set(float64(len(sccs)))

	stale := staleSCCs(d.Store, graph, sccs, layers)

	outcome := &Outcome{
		Graph:   graph,
		SCCs:    sccs,
		Results: make(map[int]json.RawMessage),
		Fresh:   len(sccs) - len(stale),
	}

	if d.Pool != nil {
		err = d.runWithWorkers(ctx, sources, sccs, layers, stale, outcome)
	} else {
		err = d.runLocal(ctx, sccs, layers, stale, outcome)
	}
	if err != nil {
		return nil, err
	}

	for id, result := range outcome.Results {
		writeResult(d.Store, graph, sccs[id], result)
	}
	if len(outcome.Blockers) == 0 && len(outcome.Lost) == 0 {
		d.writeBuildMeta(graph, sources)
		dropVanished(d.Store, graph)
	}
	if err := d.Store.Commit(); err != nil {
		return nil, zerr.Wrap(err, "cache commit failed")
	}

	observability.ModulesChecked.Add(float64(countModules(sccs, outcome.Results)))
	return outcome, nil
}

// runLocal processes stale components in this process, layer by layer,
// parallel within a layer.
func (d *Driver) runLocal(ctx context.Context, sccs []domain.SCC, layers [][]int, stale map[int]bool, outcome *Outcome) error {
	limit := d.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	for _, layer := range layers {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		for _, id := range layer {
			if !stale[id] {
				continue
			}
			g.Go(func() error {
				result, err := d.Analyzer.ProcessSCC(gctx, sccs[id])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					var blocker *domain.BlockerError
					if errors.As(err, &blocker) {
						outcome.Blockers = append(outcome.Blockers, blocker)
						return nil
					}
					return err
				}
				outcome.Results[id] = result
				outcome.Processed++
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		// A blocker poisons everything downstream of it.
		if len(outcome.Blockers) > 0 {
			return nil
		}
	}
	return nil
}

// runWithWorkers ships stale components to the worker pool.
func (d *Driver) runWithWorkers(ctx context.Context, sources []domain.SourceFile, sccs []domain.SCC, layers [][]int, stale map[int]bool, outcome *Outcome) error {
	if err := d.Pool.Init(sources); err != nil {
		return err
	}
	if err := d.Pool.Topology(sccs); err != nil {
		return err
	}

	for _, layer := range layers {
		var jobs []domain.SCC
		for _, id := range layer {
			if stale[id] {
				jobs = append(jobs, sccs[id])
			}
		}
		if len(jobs) == 0 {
			continue
		}

		results, blockers, lost, err := d.Pool.ProcessLayer(ctx, jobs)
		for id, result := range results {
			outcome.Results[id] = result
			outcome.Processed++
		}
		outcome.Blockers = append(outcome.Blockers, blockers...)
		outcome.Lost = append(outcome.Lost, lost...)
		if err != nil {
			return err
		}
		if len(outcome.Blockers) > 0 || len(outcome.Lost) > 0 {
			return nil
		}
	}
	return nil
}

// writeBuildMeta persists the whole-build records: the dependency map
// and the root source list.
func (d *Driver) writeBuildMeta(graph map[string]*domain.ModuleNode, sources []domain.SourceFile) {
	deps := make(map[string][]domain.Dependency, len(graph))
	for id, node := range graph {
		deps[id] = node.Deps
	}
	if raw, err := json.Marshal(deps); err == nil {
		d.Store.Write(domain.DepsMetaName, raw, nil)
	}
	if raw, err := json.Marshal(sources); err == nil {
		d.Store.Write(domain.RootDepsName, raw, nil)
	}
}

func countModules(sccs []domain.SCC, results map[int]json.RawMessage) int {
	n := 0
	for id := range results {
		n += len(sccs[id].Modules)
	}
	return n
}

func contentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
