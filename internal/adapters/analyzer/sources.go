package analyzer

import (
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

// DiscoverSources walks the source roots through the transaction view
// and returns every Python file paired with its module id, sorted by
// path. Hidden directories and __pycache__ are skipped.
func DiscoverSources(view ports.FileView, roots []string) ([]domain.SourceFile, error) {
	var sources []domain.SourceFile
	for _, root := range roots {
		if err := walkRoot(view, root, root, &sources); err != nil {
			return nil, err
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

func walkRoot(view ports.FileView, root, dir string, out *[]domain.SourceFile) error {
	names, err := view.ListDir(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.HasPrefix(name, ".") || name == "__pycache__" {
			continue
		}
		path := filepath.Join(dir, name)
		switch {
		case view.IsDir(path):
			if err := walkRoot(view, root, path, out); err != nil {
				return err
			}
		case strings.HasSuffix(name, ".py"):
			if id, ok := moduleIDUnderRoot(root, path); ok {
				*out = append(*out, domain.SourceFile{Path: path, ModuleID: id})
			}
		}
	}
	return nil
}

// ModuleIDForPath maps a file path to its dotted module id under the
// first source root that contains it. The id of a file is re-derived on
// every change because the presence of __init__.py files shifts it.
func ModuleIDForPath(roots []string, path string) (string, bool) {
	for _, root := range roots {
		if id, ok := moduleIDUnderRoot(root, path); ok {
			return id, true
		}
	}
	return "", false
}

func moduleIDUnderRoot(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	last := parts[len(parts)-1]
	if !strings.HasSuffix(last, ".py") {
		return "", false
	}

	if last == "__init__.py" {
		parts = parts[:len(parts)-1]
	} else {
		parts[len(parts)-1] = strings.TrimSuffix(last, ".py")
	}
	if len(parts) == 0 {
		return "", false
	}
	for _, part := range parts {
		if !validModuleName(part) {
			return "", false
		}
	}
	return strings.Join(parts, "."), true
}
