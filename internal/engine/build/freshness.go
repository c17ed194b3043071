// Package build implements the build driver: it turns a source list
// into a module graph, decomposes it into SCCs, decides which components
// are stale against the metadata cache, and processes them locally or
// through a pool of worker processes.
package build

import (
	"encoding/json"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

// moduleFresh reports whether the cached analysis for one module is
// still valid: the freshness record exists, the source identity matches,
// the dependency edges are unchanged, and the payload is present.
func moduleFresh(store ports.MetadataStore, node *domain.ModuleNode) bool {
	raw, err := store.Read(domain.CacheMetaName(node.ID))
	if err != nil {
		return false
	}
	var meta domain.FreshnessMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return false
	}
	if !meta.Fresh(node.MTimeNS, node.Hash) {
		return false
	}
	if !depsEqual(meta.Deps, node.Deps) {
		return false
	}
	if _, err := store.ModTime(domain.CacheDataName(node.ID)); err != nil {
		return false
	}
	return true
}

func depsEqual(a, b []domain.Dependency) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Priority != b[i].Priority {
			return false
		}
	}
	return true
}

// staleSCCs walks the layered SCC graph in dependency order and marks a
// component stale when any of its modules is stale or any component it
// depends on is stale.
func staleSCCs(store ports.MetadataStore, graph map[string]*domain.ModuleNode, sccs []domain.SCC, layers [][]int) map[int]bool {
	stale := make(map[int]bool)
	for _, layer := range layers {
		for _, id := range layer {
			scc := sccs[id]
			for _, dep := range scc.Deps {
				if stale[dep] {
					stale[id] = true
					break
				}
			}
			if stale[id] {
				continue
			}
			for _, mod := range scc.Modules {
				node, ok := graph[mod]
				if !ok || !moduleFresh(store, node) {
					stale[id] = true
					break
				}
			}
		}
	}
	return stale
}

// writeResult persists one processed component: the payload and a fresh
// freshness record per member module.
func writeResult(store ports.MetadataStore, graph map[string]*domain.ModuleNode, scc domain.SCC, result json.RawMessage) {
	dataHash := contentHash(result)
	for _, mod := range scc.Modules {
		node, ok := graph[mod]
		if !ok {
			continue
		}
		if !store.Write(domain.CacheDataName(mod), result, nil) {
			continue
		}
		meta := domain.FreshnessMeta{
			ID:         node.ID,
			Path:       node.Path,
			MTimeNS:    node.MTimeNS,
			Hash:       node.Hash,
			Deps:       node.Deps,
			Suppressed: node.SuppressedDeps,
			DataHash:   dataHash,
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			continue
		}
		store.Write(domain.CacheMetaName(mod), raw, nil)
	}
}

// dropVanished removes cache entries for modules no longer in the graph.
func dropVanished(store ports.MetadataStore, graph map[string]*domain.ModuleNode) {
	live := make(map[string]bool, 2*len(graph))
	for id := range graph {
		live[domain.CacheDataName(id)] = true
		live[domain.CacheMetaName(id)] = true
	}
	live[domain.DepsMetaName] = true
	live[domain.RootDepsName] = true

	var gone []string
	for name := range store.List() {
		if !live[name] {
			gone = append(gone, name)
		}
	}
	for _, name := range gone {
		_ = store.Remove(name)
	}
}
