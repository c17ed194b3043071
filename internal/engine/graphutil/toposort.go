package graphutil

import (
	"sort"
	"strings"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/zerr"
)

// TopologicalLayers orders the vertices of a dependency map into layers
// using Kahn's algorithm. Each layer is the maximal set of vertices with
// no remaining unresolved dependencies at that point; within a layer the
// vertices are sorted for determinism.
//
// The input is normalized first: self-dependencies are discarded and any
// vertex that appears only as a dependency is promoted to a key with an
// empty dependency set. When no further layer can be produced the whole
// call fails with domain.ErrCyclicDependency naming every vertex that
// still has unresolved dependencies.
//
// Runs in O(V+E) using reverse adjacency and in-degree counters.
func TopologicalLayers(deps map[string][]string) ([][]string, error) {
	inDegree := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))

	for v := range deps {
		if _, ok := inDegree[v]; !ok {
			inDegree[v] = 0
		}
	}
	for v, vdeps := range deps {
		for _, d := range vdeps {
			if d == v {
				continue
			}
			if _, ok := inDegree[d]; !ok {
				inDegree[d] = 0
			}
			inDegree[v]++
			dependents[d] = append(dependents[d], v)
		}
	}

	ready := make([]string, 0, len(inDegree))
	for v, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, v)
		}
	}

	var layers [][]string
	emitted := 0
	for len(ready) > 0 {
		layer := ready
		sort.Strings(layer)
		layers = append(layers, layer)
		emitted += len(layer)

		ready = nil
		for _, v := range layer {
			for _, dep := range dependents[v] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready = append(ready, dep)
				}
			}
		}
	}

	if emitted != len(inDegree) {
		var stuck []string
		for v, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, v)
			}
		}
		sort.Strings(stuck)
		return nil, zerr.Wrap(domain.ErrCyclicDependency, "unresolved dependencies: "+strings.Join(stuck, ", "))
	}

	return layers, nil
}

// SCCLayers is TopologicalLayers specialized to SCC ids: it layers the
// (acyclic) SCC dependency graph produced by BuildSCCGraph.
func SCCLayers(sccs []domain.SCC) ([][]int, error) {
	deps := make(map[string][]string, len(sccs))
	names := make(map[string]int, len(sccs))
	for _, s := range sccs {
		name := sccName(s.ID)
		names[name] = s.ID
		for _, d := range s.Deps {
			deps[name] = append(deps[name], sccName(d))
		}
		if _, ok := deps[name]; !ok {
			deps[name] = nil
		}
	}

	strLayers, err := TopologicalLayers(deps)
	if err != nil {
		return nil, err
	}

	layers := make([][]int, len(strLayers))
	for i, layer := range strLayers {
		ids := make([]int, len(layer))
		for j, name := range layer {
			ids[j] = names[name]
		}
		sort.Ints(ids)
		layers[i] = ids
	}
	return layers, nil
}

// BuildSCCGraph collapses the module graph into its SCC dependency
// graph. Component ids are assigned in emission order; the Deps of each
// SCC are the ids of components it has at least one edge into. The
// resulting graph is acyclic by construction.
func BuildSCCGraph(vertices []string, edges map[string][]string) []domain.SCC {
	components := StronglyConnectedComponents(vertices, edges)

	owner := make(map[string]int, len(vertices))
	for id, comp := range components {
		for _, v := range comp {
			owner[v] = id
		}
	}

	sccs := make([]domain.SCC, len(components))
	for id, comp := range components {
		sorted := make([]string, len(comp))
		copy(sorted, comp)
		sort.Strings(sorted)

		depSet := make(map[int]bool)
		for _, v := range comp {
			for _, w := range edges[v] {
				target, ok := owner[w]
				if !ok || target == id {
					continue
				}
				depSet[target] = true
			}
		}
		depIDs := make([]int, 0, len(depSet))
		for d := range depSet {
			depIDs = append(depIDs, d)
		}
		sort.Ints(depIDs)

		sccs[id] = domain.SCC{ID: id, Modules: sorted, Deps: depIDs}
	}
	return sccs
}

func sccName(id int) string {
	// Fixed-width so lexical sort inside a layer is numeric sort.
	const digits = 10
	buf := [digits]byte{}
	for i := digits - 1; i >= 0; i-- {
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[:])
}
