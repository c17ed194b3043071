package ports

import (
	"iter"
	"time"
)

// MetadataStore is a named-blob store for analysis artifacts. Names are
// slash-separated logical paths relative to the store root; a store
// instance exclusively owns its root and must not share it with another
// live instance without external serialization.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type MetadataStore interface {
	// Read returns the blob stored under name. Fails with
	// domain.ErrNotFound when the entry is absent.
	Read(name string) ([]byte, error)

	// Write stores data under name, overwriting any previous entry, and
	// applies mtime to the entry when non-nil. It reports false on
	// ordinary I/O failure instead of returning an error.
	Write(name string, data []byte, mtime *time.Time) bool

	// Remove deletes the entry. Fails with domain.ErrNotFound when absent.
	Remove(name string) error

	// ModTime returns the entry's modification time.
	ModTime(name string) (time.Time, error)

	// List yields every live entry name once. The sequence is finite and
	// restartable: each call starts a fresh enumeration.
	List() iter.Seq[string]

	// Commit flushes buffered writes. A no-op for the directory backend;
	// commits the open transaction for the single-file backend.
	Commit() error
}
