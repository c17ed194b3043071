// Package fscache implements the per-transaction memoizing view of the
// source tree. Every syscall family has an independent success cache and
// error cache, so a repeated failing lookup is answered from memory
// instead of re-hitting the filesystem. Flush starts a new transaction.
package fscache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/pycheck/internal/shared/observability"
)

var _ ports.FileView = (*Cache)(nil)

type readResult struct {
	data []byte
	hash string
}

// Cache memoizes stat, read, and listdir results for one build
// transaction. Once a path has been observed within a transaction, later
// calls for it return the first-observed result, giving the build a
// single consistent view of the tree.
type Cache struct {
	mu sync.Mutex

	stats    map[string]fs.FileInfo
	statErrs map[string]error

	reads    map[string]readResult
	readErrs map[string]error

	lists    map[string][]string
	listErrs map[string]error

	isFileCase map[string]bool
}

// New creates an empty cache.
func New() *Cache {
	c := &Cache{}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.stats = make(map[string]fs.FileInfo)
	c.statErrs = make(map[string]error)
	c.reads = make(map[string]readResult)
	c.readErrs = make(map[string]error)
	c.lists = make(map[string][]string)
	c.listErrs = make(map[string]error)
	c.isFileCase = make(map[string]bool)
}

// Flush discards all memoized results, starting a new transaction.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Stat implements ports.FileView.
func (c *Cache) Stat(path string) (fs.FileInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statLocked(path)
}

func (c *Cache) statLocked(path string) (fs.FileInfo, error) {
	if info, ok := c.stats[path]; ok {
		observability.FscacheHitsTotal.Inc()
		return info, nil
	}
	if err, ok := c.statErrs[path]; ok {
		observability.FscacheHitsTotal.Inc()
		return nil, err
	}
	observability.FscacheMissesTotal.Inc()

	info, err := os.Stat(path)
	if err != nil {
		c.statErrs[path] = err
		return nil, err
	}
	c.stats[path] = info
	return info, nil
}

// Read implements ports.FileView. The content hash is the xxhash of the
// raw bytes, formatted as 16 hex digits.
func (c *Cache) Read(path string) ([]byte, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.reads[path]; ok {
		observability.FscacheHitsTotal.Inc()
		return res.data, res.hash, nil
	}
	if err, ok := c.readErrs[path]; ok {
		observability.FscacheHitsTotal.Inc()
		return nil, "", err
	}
	observability.FscacheMissesTotal.Inc()

	// Stat first so the mtime observed for this path within the
	// transaction is never newer than the content returned.
	if _, err := c.statLocked(path); err != nil {
		c.readErrs[path] = err
		return nil, "", err
	}

	data, err := os.ReadFile(path) //nolint:gosec // paths come from the build's own source list
	if err != nil {
		c.readErrs[path] = err
		return nil, "", err
	}
	hash := fmt.Sprintf("%016x", xxhash.Sum64(data))
	c.reads[path] = readResult{data: data, hash: hash}
	return data, hash, nil
}

// ListDir implements ports.FileView.
func (c *Cache) ListDir(path string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if names, ok := c.lists[path]; ok {
		observability.FscacheHitsTotal.Inc()
		return names, nil
	}
	if err, ok := c.listErrs[path]; ok {
		observability.FscacheHitsTotal.Inc()
		return nil, err
	}
	observability.FscacheMissesTotal.Inc()

	entries, err := os.ReadDir(path)
	if err != nil {
		c.listErrs[path] = err
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	c.lists[path] = names
	return names, nil
}

// IsFile implements ports.FileView.
func (c *Cache) IsFile(path string) bool {
	info, err := c.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDir implements ports.FileView.
func (c *Cache) IsDir(path string) bool {
	info, err := c.Stat(path)
	return err == nil && info.IsDir()
}

// Exists implements ports.FileView.
func (c *Cache) Exists(path string) bool {
	_, err := c.Stat(path)
	return err == nil
}

// CaseSensitiveIsFile implements ports.FileView. On case-insensitive
// filesystems a stat for "Foo.py" succeeds when only "foo.py" exists;
// module lookup must not, so the parent listing is consulted for an
// exact-case match.
func (c *Cache) CaseSensitiveIsFile(path string) bool {
	if !c.IsFile(path) {
		return false
	}

	c.mu.Lock()
	if res, ok := c.isFileCase[path]; ok {
		c.mu.Unlock()
		return res
	}
	c.mu.Unlock()

	names, err := c.ListDir(filepath.Dir(path))
	if err != nil {
		return false
	}
	base := filepath.Base(path)
	found := false
	for _, name := range names {
		if name == base {
			found = true
			break
		}
	}

	c.mu.Lock()
	c.isFileCase[path] = found
	c.mu.Unlock()
	return found
}

// MTime implements ports.FileView.
func (c *Cache) MTime(path string) (time.Time, error) {
	info, err := c.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
