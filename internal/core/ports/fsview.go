package ports

import (
	"io/fs"
	"time"
)

// FileView is a consistent read-only view of the source tree for the
// duration of one build transaction. Repeated calls for the same path
// return memoized results, including memoized errors.
type FileView interface {
	// Stat returns file metadata.
	Stat(path string) (fs.FileInfo, error)

	// Read returns a file's content together with its content hash.
	Read(path string) (data []byte, hash string, err error)

	// ListDir returns the entry names of a directory.
	ListDir(path string) ([]string, error)

	// IsFile reports whether path exists and is a regular file.
	IsFile(path string) bool

	// IsDir reports whether path exists and is a directory.
	IsDir(path string) bool

	// Exists reports whether path exists at all.
	Exists(path string) bool

	// CaseSensitiveIsFile is IsFile plus an exact-case check of the
	// final path component, for case-insensitive filesystems.
	CaseSensitiveIsFile(path string) bool

	// MTime returns the modification time of path.
	MTime(path string) (time.Time, error)

	// Flush discards all memoized results, starting a new transaction.
	Flush()
}
