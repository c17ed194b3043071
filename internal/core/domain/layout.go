package domain

import "path/filepath"

const (
	// PycheckDirName is the name of the internal workspace directory.
	PycheckDirName = ".pycheck"

	// CacheDirName is the name of the metadata cache directory.
	CacheDirName = "cache"

	// StatusFileName is the well-known daemon status file name.
	StatusFileName = "status.json"

	// DaemonLogFile is the name of the daemon log file.
	DaemonLogFile = "daemon.log"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "pycheck.yaml"

	// DiscardCacheDir is the sentinel cache location that disables
	// caching: all writes are dropped and all reads miss.
	DiscardCacheDir = "/dev/null"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600

	// SocketPerm is the permission applied to the daemon's unix socket.
	SocketPerm = 0o600
)

// DefaultPycheckPath returns the default root directory for pycheck metadata.
func DefaultPycheckPath() string {
	return PycheckDirName
}

// DefaultStatusFilePath returns the default daemon status file path.
func DefaultStatusFilePath() string {
	return filepath.Join(PycheckDirName, StatusFileName)
}

// DefaultCachePath returns the default metadata cache directory.
func DefaultCachePath() string {
	return filepath.Join(PycheckDirName, CacheDirName)
}

// DefaultDaemonLogPath returns the default path for the daemon log.
func DefaultDaemonLogPath() string {
	return filepath.Join(PycheckDirName, DaemonLogFile)
}

// CacheDataName returns the cache entry name holding a module's analysis
// payload, e.g. "pkg/mod.data.json" for module "pkg.mod".
func CacheDataName(moduleID string) string {
	return modulePathKey(moduleID) + ".data.json"
}

// CacheMetaName returns the cache entry name holding a module's
// freshness metadata, e.g. "pkg/mod.meta.json".
func CacheMetaName(moduleID string) string {
	return modulePathKey(moduleID) + ".meta.json"
}

const (
	// DepsMetaName is the whole-build dependency metadata entry.
	DepsMetaName = "@deps.meta.json"

	// RootDepsName is the whole-build root dependency entry.
	RootDepsName = "@root.deps.json"
)

func modulePathKey(moduleID string) string {
	key := make([]byte, len(moduleID))
	for i := 0; i < len(moduleID); i++ {
		if moduleID[i] == '.' {
			key[i] = '/'
		} else {
			key[i] = moduleID[i]
		}
	}
	return string(key)
}
