// Package domain contains the core types of the pycheck build state.
package domain

// Dependency is one import edge of a module, with the priority the
// analyzer assigned to it and the source line it was introduced on.
type Dependency struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
	Line     int    `json:"line"`
}

// ModuleNode is one vertex of the build graph. Each process owns its own
// copy; nodes are never shared mutably across process boundaries.
type ModuleNode struct {
	// ID is the dotted module id, e.g. "pkg.sub.mod".
	ID string `json:"id"`

	// Path is the source file backing the module.
	Path string `json:"path"`

	// Deps are the resolved import edges of the module.
	Deps []Dependency `json:"deps"`

	// SuppressedDeps are dependencies silenced by the analyzer
	// (missing stubs, ignored imports).
	SuppressedDeps []string `json:"suppressed_deps,omitempty"`

	// Hash is the last-known content hash of the source file.
	Hash string `json:"hash"`

	// MTimeNS is the last-known modification time in unix nanoseconds.
	MTimeNS int64 `json:"mtime_ns"`
}

// DepIDs returns the ids of all resolved dependencies.
func (m *ModuleNode) DepIDs() []string {
	ids := make([]string, len(m.Deps))
	for i, d := range m.Deps {
		ids[i] = d.ID
	}
	return ids
}

// SourceFile pairs a file path with the module id it maps to. The module
// id of a file can change between builds when an __init__ file appears or
// disappears next to it, so the pair is tracked together.
type SourceFile struct {
	Path     string `json:"path"`
	ModuleID string `json:"module_id"`
}

// SCC is an immutable strongly connected component of the module graph:
// a synthetic id, the module ids it contains, and the ids of the SCCs it
// depends on. The SCC dependency graph is acyclic by construction.
type SCC struct {
	ID      int      `json:"id"`
	Modules []string `json:"modules"`
	Deps    []int    `json:"deps"`
}
