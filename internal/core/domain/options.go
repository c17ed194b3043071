package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ProtocolVersion is the daemon wire protocol version. A client whose
// version differs from a running daemon's triggers a daemon restart.
const ProtocolVersion = "1"

// DefaultIdleTimeout is how long the daemon waits without connections
// before shutting itself down.
const DefaultIdleTimeout = 24 * time.Hour

// Options are the resolved settings a build runs under. The daemon
// snapshots its options at startup; a run request carrying a different
// fingerprint is answered with a restart signal instead of a check.
type Options struct {
	// SourceRoots are the directories scanned for Python sources.
	SourceRoots []string `yaml:"source_roots"`

	// CacheDir is the metadata cache location. The sentinel
	// DiscardCacheDir disables caching.
	CacheDir string `yaml:"cache_dir"`

	// SQLiteCache selects the single-file store backend instead of the
	// directory tree backend.
	SQLiteCache bool `yaml:"sqlite_cache"`

	// Workers is the number of build worker processes; zero means
	// in-process SCC processing.
	Workers int `yaml:"workers"`

	// IdleTimeout shuts the daemon down after this much inactivity.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// FollowImports controls whether imports outside the source roots
	// are pulled into the graph ("normal") or skipped ("skip").
	FollowImports string `yaml:"follow_imports"`

	// StatusFile overrides the daemon status file location.
	StatusFile string `yaml:"status_file"`
}

// Fingerprint returns a stable hash of every setting that affects
// analysis results. Lifecycle-only settings (idle timeout, status file
// location) are excluded so that they never force a restart.
func (o Options) Fingerprint() string {
	h := xxhash.New()

	roots := make([]string, len(o.SourceRoots))
	copy(roots, o.SourceRoots)
	sort.Strings(roots)
	for _, r := range roots {
		_, _ = h.WriteString(r)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte{0})

	_, _ = h.WriteString(o.CacheDir)
	_, _ = h.Write([]byte{0})
	if o.SQLiteCache {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.WriteString(o.FollowImports)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(fmt.Sprintf("%d", o.Workers))

	return fmt.Sprintf("%016x", h.Sum64())
}
