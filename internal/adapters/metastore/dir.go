// Package metastore implements the metadata blob store behind
// ports.MetadataStore: a directory-tree backend, a single-file sqlite
// backend, and a discard backend used when caching is disabled.
package metastore

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.MetadataStore = (*DirStore)(nil)

// errNotFound and errInvalidName attach the entry name while keeping the
// sentinel in the unwrap chain, so callers can errors.Is against the
// domain catalog.
func errNotFound(name string) error {
	return zerr.With(zerr.Wrap(domain.ErrNotFound, ""), "name", name)
}

func errInvalidName(name string) error {
	return zerr.With(zerr.Wrap(domain.ErrInvalidCacheName, ""), "name", name)
}

// DirStore maps each entry name to a file under a cache root. Writes are
// atomic: content lands in a randomized temp name first and is renamed
// over the destination, so a concurrent reader never observes a torn file.
type DirStore struct {
	root string
}

// NewDirStore creates a directory-backed store rooted at root.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, "failed to create cache root")
	}
	return &DirStore{root: filepath.Clean(root)}, nil
}

// resolve validates an entry name and maps it to a path under the root.
// Absolute names and parent traversal are rejected so a crafted module
// id cannot escape the cache.
func (s *DirStore) resolve(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", errInvalidName(name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errInvalidName(name)
	}
	return filepath.Join(s.root, clean), nil
}

// Read implements ports.MetadataStore.
func (s *DirStore) Read(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // resolve confines the path to the root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errNotFound(name)
		}
		return nil, zerr.Wrap(err, "failed to read cache entry")
	}
	return data, nil
}

// Write implements ports.MetadataStore. It reports false on any ordinary
// I/O failure rather than returning an error.
func (s *DirStore) Write(name string, data []byte, mtime *time.Time) bool {
	path, err := s.resolve(name)
	if err != nil {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return false
	}

	tmp := path + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return false
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false
	}
	if mtime != nil {
		if err := os.Chtimes(path, *mtime, *mtime); err != nil {
			return false
		}
	}
	return true
}

// Remove implements ports.MetadataStore.
func (s *DirStore) Remove(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errNotFound(name)
		}
		return zerr.Wrap(err, "failed to remove cache entry")
	}
	return nil
}

// ModTime implements ports.MetadataStore.
func (s *DirStore) ModTime(name string) (time.Time, error) {
	path, err := s.resolve(name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, errNotFound(name)
		}
		return time.Time{}, zerr.Wrap(err, "failed to stat cache entry")
	}
	return info.ModTime(), nil
}

// List implements ports.MetadataStore. Each call walks the tree afresh.
// In-flight temp files from concurrent writers are skipped.
func (s *DirStore) List() iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil //nolint:nilerr // unreadable subtrees are skipped, not fatal
			}
			if strings.Contains(d.Name(), ".tmp.") {
				return nil
			}
			rel, relErr := filepath.Rel(s.root, path)
			if relErr != nil {
				return nil //nolint:nilerr
			}
			if !yield(filepath.ToSlash(rel)) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Commit implements ports.MetadataStore. Directory writes are already
// durable at rename time.
func (s *DirStore) Commit() error {
	return nil
}
