// Package analyzer implements the semantic-analysis boundary as an
// import scanner: it discovers sources, maps files to dotted module ids,
// and derives the import graph that the build driver schedules. Deeper
// per-expression analysis stays behind the same port.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Analyzer = (*Analyzer)(nil)

// Analyzer scans Python sources for import statements and maintains the
// resulting module graph across fine-grained updates.
type Analyzer struct {
	opts domain.Options
	log  ports.Logger

	mu    sync.Mutex
	view  ports.FileView
	graph map[string]*domain.ModuleNode
	diags map[string][]string
}

// New creates an analyzer for the given resolved options.
func New(opts domain.Options, log ports.Logger) *Analyzer {
	return &Analyzer{
		opts:  opts,
		log:   log,
		graph: make(map[string]*domain.ModuleNode),
		diags: make(map[string][]string),
	}
}

// BuildGraph implements ports.Analyzer.
func (a *Analyzer) BuildGraph(ctx context.Context, sources []domain.SourceFile, view ports.FileView) (map[string]*domain.ModuleNode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.view = view
	a.graph = make(map[string]*domain.ModuleNode, len(sources))
	a.diags = make(map[string][]string)

	known := make(map[string]bool, len(sources))
	for _, src := range sources {
		known[src.ModuleID] = true
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node, diags, err := a.scanModule(src, known)
		if err != nil {
			a.log.Warn("skipping unreadable source " + src.Path + ": " + err.Error())
			continue
		}
		a.graph[src.ModuleID] = node
		if len(diags) > 0 {
			a.diags[src.ModuleID] = diags
		}
	}
	return a.graph, nil
}

// scanModule reads one source through the transaction view and resolves
// its import statements against the known module set.
func (a *Analyzer) scanModule(src domain.SourceFile, known map[string]bool) (*domain.ModuleNode, []string, error) {
	data, hash, err := a.view.Read(src.Path)
	if err != nil {
		return nil, nil, err
	}
	mtime, err := a.view.MTime(src.Path)
	if err != nil {
		return nil, nil, err
	}

	isPackage := filepath.Base(src.Path) == "__init__.py"
	node := &domain.ModuleNode{
		ID:      src.ModuleID,
		Path:    src.Path,
		Hash:    hash,
		MTimeNS: mtime.UnixNano(),
	}

	var diags []string
	seen := make(map[string]bool)
	for _, ref := range scanImports(data) {
		target, ok := resolveRelative(src.ModuleID, isPackage, ref)
		if !ok {
			diags = append(diags, fmt.Sprintf(
				"%s:%d: error: Relative import climbs above the source root", src.Path, ref.line))
			continue
		}

		priority := PriorityTopLevel
		if ref.indented {
			priority = PriorityLocal
		}
		add := func(id string) {
			if id == src.ModuleID || seen[id] {
				return
			}
			seen[id] = true
			node.Deps = append(node.Deps, domain.Dependency{ID: id, Priority: priority, Line: ref.line})
		}

		// A name imported "from" a package can address a submodule
		// rather than an attribute; bind the ones that name known
		// modules.
		bound := 0
		for _, name := range ref.names {
			if cand := target + "." + name; known[cand] {
				add(cand)
				bound++
			}
		}

		dep, found := longestKnownPrefix(target, known)
		if !found {
			if bound > 0 {
				continue
			}
			if a.opts.FollowImports == "normal" {
				diags = append(diags, fmt.Sprintf(
					"%s:%d: error: Cannot find implementation or library stub for module named %q",
					src.Path, ref.line, target))
			}
			node.SuppressedDeps = append(node.SuppressedDeps, target)
			continue
		}
		add(dep)
	}
	return node, diags, nil
}

// resolveRelative turns a possibly-relative import into an absolute
// dotted module id. moduleID is the importing module; a package module
// resolves "." to itself, a plain module to its parent package.
func resolveRelative(moduleID string, isPackage bool, ref importRef) (string, bool) {
	if ref.dots == 0 {
		return ref.target, true
	}

	base := moduleID
	if !isPackage {
		base = parentPackage(base)
	}
	for i := 1; i < ref.dots; i++ {
		if base == "" {
			return "", false
		}
		base = parentPackage(base)
	}
	switch {
	case ref.target == "":
		if base == "" {
			return "", false
		}
		return base, true
	case base == "":
		return ref.target, true
	default:
		return base + "." + ref.target, true
	}
}

func parentPackage(moduleID string) string {
	if i := strings.LastIndexByte(moduleID, '.'); i >= 0 {
		return moduleID[:i]
	}
	return ""
}

// longestKnownPrefix maps an import target onto the graph: importing
// "a.b.c" binds to "a.b" when only "a.b" is a known module.
func longestKnownPrefix(target string, known map[string]bool) (string, bool) {
	for cur := target; cur != ""; cur = parentPackage(cur) {
		if known[cur] {
			return cur, true
		}
	}
	return "", false
}

// sccResult is the serialized outcome of processing one component.
type sccResult struct {
	SCCID       int      `json:"scc_id"`
	Modules     []string `json:"modules"`
	Diagnostics []string `json:"diagnostics"`
}

// ProcessSCC implements ports.Analyzer.
func (a *Analyzer) ProcessSCC(ctx context.Context, scc domain.SCC) (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := sccResult{SCCID: scc.ID, Modules: scc.Modules, Diagnostics: []string{}}
	for _, id := range scc.Modules {
		node, ok := a.graph[id]
		if !ok {
			return nil, &domain.BlockerError{
				Messages: []string{fmt.Sprintf("module %q dropped out of the build graph", id)},
				Module:   id,
			}
		}
		if _, _, err := a.view.Read(node.Path); err != nil {
			return nil, &domain.BlockerError{
				Messages: []string{fmt.Sprintf("cannot read %s: %v", node.Path, err)},
				Module:   id,
			}
		}
		result.Diagnostics = append(result.Diagnostics, a.diags[id]...)
	}
	sort.Strings(result.Diagnostics)

	data, err := json.Marshal(result)
	if err != nil {
		return nil, zerr.Wrap(err, "scc result encoding failed")
	}
	return data, nil
}

// Update implements ports.Analyzer.
func (a *Analyzer) Update(ctx context.Context, changed, removed []domain.SourceFile) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.view == nil {
		return nil, zerr.Wrap(domain.ErrNoPriorCheck, "fine-grained update before initial graph build")
	}

	for _, src := range removed {
		delete(a.graph, src.ModuleID)
		delete(a.diags, src.ModuleID)
	}

	known := make(map[string]bool, len(a.graph)+len(changed))
	for id := range a.graph {
		known[id] = true
	}
	for _, src := range changed {
		known[src.ModuleID] = true
	}

	for _, src := range changed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node, diags, err := a.scanModule(src, known)
		if err != nil {
			delete(a.graph, src.ModuleID)
			delete(a.diags, src.ModuleID)
			a.log.Warn("dropping unreadable module " + src.ModuleID + ": " + err.Error())
			continue
		}
		a.graph[src.ModuleID] = node
		if len(diags) > 0 {
			a.diags[src.ModuleID] = diags
		} else {
			delete(a.diags, src.ModuleID)
		}
	}

	var all []string
	for _, diags := range a.diags {
		all = append(all, diags...)
	}
	sort.Strings(all)
	return all, nil
}
