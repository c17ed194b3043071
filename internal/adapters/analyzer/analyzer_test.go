package analyzer_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pycheck/internal/adapters/analyzer"
	"go.trai.ch/pycheck/internal/adapters/config"
	"go.trai.ch/pycheck/internal/adapters/fscache"
	"go.trai.ch/pycheck/internal/adapters/logger"
	"go.trai.ch/pycheck/internal/core/domain"
)

// writeTree lays out a small package under dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newAnalyzer(root string) *analyzer.Analyzer {
	opts := config.Defaults()
	opts.SourceRoots = []string{root}
	return analyzer.New(opts, logger.New())
}

func TestModuleIDForPath(t *testing.T) {
	root := t.TempDir()

	cases := map[string]string{
		"main.py":              "main",
		"pkg/__init__.py":      "pkg",
		"pkg/mod.py":           "pkg.mod",
		"pkg/sub/__init__.py":  "pkg.sub",
		"pkg/sub/deep.py":      "pkg.sub.deep",
	}
	for rel, want := range cases {
		id, ok := analyzer.ModuleIDForPath([]string{root}, filepath.Join(root, filepath.FromSlash(rel)))
		require.True(t, ok, rel)
		require.Equal(t, want, id)
	}

	_, ok := analyzer.ModuleIDForPath([]string{root}, filepath.Join(root, "notes.txt"))
	require.False(t, ok)
	_, ok = analyzer.ModuleIDForPath([]string{root}, "/elsewhere/x.py")
	require.False(t, ok)
	_, ok = analyzer.ModuleIDForPath([]string{root}, filepath.Join(root, "my-tool.py"))
	require.False(t, ok)
}

func TestDiscoverSources(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":             "",
		"pkg/__init__.py":     "",
		"pkg/mod.py":          "",
		"pkg/__pycache__/c.py": "",
		".hidden/x.py":        "",
		"pkg/data.txt":        "",
	})

	sources, err := analyzer.DiscoverSources(fscache.New(), []string{root})
	require.NoError(t, err)

	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ModuleID
	}
	require.Equal(t, []string{"main", "pkg", "pkg.mod"}, ids)
}

func TestBuildGraph_ResolvesImports(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":         "import pkg.mod\nimport os\n",
		"pkg/__init__.py": "from . import mod\n",
		"pkg/mod.py":      "from .sibling import thing\n\ndef f():\n    import main\n",
		"pkg/sibling.py":  "",
		"use.py":          "from pkg import mod, shiny\n",
	})

	a := newAnalyzer(root)
	view := fscache.New()
	sources, err := analyzer.DiscoverSources(view, []string{root})
	require.NoError(t, err)

	graph, err := a.BuildGraph(context.Background(), sources, view)
	require.NoError(t, err)
	require.Len(t, graph, 5)

	require.Equal(t, []string{"pkg.mod"}, graph["main"].DepIDs())
	require.Contains(t, graph["main"].SuppressedDeps, "os")

	require.Equal(t, []string{"pkg.mod"}, graph["pkg"].DepIDs())

	// "mod" is a submodule of pkg, "shiny" just an attribute.
	require.Equal(t, []string{"pkg.mod", "pkg"}, graph["use"].DepIDs())

	mod := graph["pkg.mod"]
	require.Equal(t, []string{"pkg.sibling", "main"}, mod.DepIDs())
	require.Equal(t, analyzer.PriorityTopLevel, mod.Deps[0].Priority)
	require.Equal(t, analyzer.PriorityLocal, mod.Deps[1].Priority)
	require.NotEmpty(t, mod.Hash)
	require.NotZero(t, mod.MTimeNS)
}

func TestBuildGraph_ImportOfSubmoduleBindsToKnownPrefix(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":         "import pkg.mod.missing_attr\n",
		"pkg/__init__.py": "",
		"pkg/mod.py":      "",
	})

	a := newAnalyzer(root)
	view := fscache.New()
	sources, err := analyzer.DiscoverSources(view, []string{root})
	require.NoError(t, err)

	graph, err := a.BuildGraph(context.Background(), sources, view)
	require.NoError(t, err)
	require.Equal(t, []string{"pkg.mod"}, graph["main"].DepIDs())
}

func TestProcessSCC_ReportsDiagnosticsAndBlockers(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py": "import ghost\n",
	})

	a := newAnalyzer(root)
	view := fscache.New()
	sources, err := analyzer.DiscoverSources(view, []string{root})
	require.NoError(t, err)
	_, err = a.BuildGraph(context.Background(), sources, view)
	require.NoError(t, err)

	raw, err := a.ProcessSCC(context.Background(), domain.SCC{ID: 0, Modules: []string{"main"}})
	require.NoError(t, err)

	var result struct {
		Diagnostics []string `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Diagnostics, 1)
	require.Contains(t, result.Diagnostics[0], `"ghost"`)

	// An unreadable module is a blocker, not a diagnostic. A fresh view
	// avoids the memoized read.
	require.NoError(t, os.Remove(filepath.Join(root, "main.py")))
	fresh := fscache.New()
	_, err = a.BuildGraph(context.Background(), sources, fresh)
	require.NoError(t, err)
	_, err = a.ProcessSCC(context.Background(), domain.SCC{ID: 0, Modules: []string{"main"}})
	var blocker *domain.BlockerError
	require.ErrorAs(t, err, &blocker)
	require.Equal(t, "main", blocker.Module)
}

func TestUpdate_AppliesChangedAndRemoved(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "import b\n",
		"b.py": "",
	})

	a := newAnalyzer(root)
	view := fscache.New()
	sources, err := analyzer.DiscoverSources(view, []string{root})
	require.NoError(t, err)
	_, err = a.BuildGraph(context.Background(), sources, view)
	require.NoError(t, err)

	// b disappears and a now imports a missing module.
	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))
	writeTree(t, root, map[string]string{"a.py": "import b\nimport c\n"})
	view.Flush()

	diags, err := a.Update(context.Background(),
		[]domain.SourceFile{{Path: filepath.Join(root, "a.py"), ModuleID: "a"}},
		[]domain.SourceFile{{Path: filepath.Join(root, "b.py"), ModuleID: "b"}},
	)
	require.NoError(t, err)
	require.Len(t, diags, 2)
	require.Contains(t, diags[0], `"b"`)
	require.Contains(t, diags[1], `"c"`)
}

func TestUpdate_BeforeBuildGraphFails(t *testing.T) {
	a := newAnalyzer(t.TempDir())
	_, err := a.Update(context.Background(), nil, nil)
	require.ErrorIs(t, err, domain.ErrNoPriorCheck)
}
