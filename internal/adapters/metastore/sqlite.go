package metastore

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
	"go.trai.ch/zerr"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS entries (
  path TEXT NOT NULL UNIQUE,
  mtime INTEGER NOT NULL,
  data BLOB NOT NULL
);
`

var _ ports.MetadataStore = (*SQLiteStore)(nil)

// SQLiteStore simulates the name-to-bytes mapping of the directory
// backend inside a single transactional database file. Writes accumulate
// in one open transaction until Commit flushes them.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
	tx *sql.Tx
}

// NewSQLiteStore opens (or creates) the store at path. The sentinel
// domain.DiscardCacheDir yields a store that drops all writes and misses
// all reads, used when caching is disabled.
func NewSQLiteStore(path string) (ports.MetadataStore, error) {
	if path == domain.DiscardCacheDir {
		return discardStore{}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
			return nil, zerr.Wrap(err, "failed to create cache directory")
		}
	}

	// busy_timeout + WAL reduce lock conflicts when a reader tool has
	// the database open alongside the daemon.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open sqlite cache")
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "failed to ping sqlite cache")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "failed to initialize sqlite schema")
	}

	return &SQLiteStore{db: db}, nil
}

// queryer unifies *sql.DB and *sql.Tx so reads observe uncommitted writes.
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// q returns the open transaction when one exists, the database otherwise.
// Callers must hold mu.
func (s *SQLiteStore) q() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// begin lazily opens the write transaction. Callers must hold mu.
func (s *SQLiteStore) begin() (*sql.Tx, error) {
	if s.tx == nil {
		tx, err := s.db.Begin()
		if err != nil {
			return nil, err
		}
		s.tx = tx
	}
	return s.tx, nil
}

// Read implements ports.MetadataStore.
func (s *SQLiteStore) Read(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, domain.ErrStoreClosed
	}

	var data []byte
	err := s.q().QueryRow(`SELECT data FROM entries WHERE path = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound(name)
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read cache entry")
	}
	return data, nil
}

// Write implements ports.MetadataStore.
func (s *SQLiteStore) Write(name string, data []byte, mtime *time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return false
	}

	when := time.Now()
	if mtime != nil {
		when = *mtime
	}

	tx, err := s.begin()
	if err != nil {
		return false
	}
	_, err = tx.Exec(
		`INSERT INTO entries (path, mtime, data) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime, data = excluded.data`,
		name, when.UnixNano(), data,
	)
	return err == nil
}

// Remove implements ports.MetadataStore.
func (s *SQLiteStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return domain.ErrStoreClosed
	}

	tx, err := s.begin()
	if err != nil {
		return zerr.Wrap(err, "failed to open cache transaction")
	}
	res, err := tx.Exec(`DELETE FROM entries WHERE path = ?`, name)
	if err != nil {
		return zerr.Wrap(err, "failed to remove cache entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return zerr.Wrap(err, "failed to remove cache entry")
	}
	if n == 0 {
		return errNotFound(name)
	}
	return nil
}

// ModTime implements ports.MetadataStore.
func (s *SQLiteStore) ModTime(name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return time.Time{}, domain.ErrStoreClosed
	}

	var ns int64
	err := s.q().QueryRow(`SELECT mtime FROM entries WHERE path = ?`, name).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, errNotFound(name)
	}
	if err != nil {
		return time.Time{}, zerr.Wrap(err, "failed to read cache entry mtime")
	}
	return time.Unix(0, ns), nil
}

// List implements ports.MetadataStore. Names are drained in one query so
// the sequence stays valid while the caller mutates the store.
func (s *SQLiteStore) List() iter.Seq[string] {
	return func(yield func(string) bool) {
		s.mu.Lock()
		if s.db == nil {
			s.mu.Unlock()
			return
		}
		rows, err := s.q().Query(`SELECT path FROM entries ORDER BY path`)
		if err != nil {
			s.mu.Unlock()
			return
		}
		var names []string
		for rows.Next() {
			var name string
			if rows.Scan(&name) == nil {
				names = append(names, name)
			}
		}
		_ = rows.Close()
		s.mu.Unlock()

		for _, name := range names {
			if !yield(name) {
				return
			}
		}
	}
}

// Commit implements ports.MetadataStore.
func (s *SQLiteStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return domain.ErrStoreClosed
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return zerr.Wrap(err, "failed to commit cache transaction")
	}
	return nil
}

// Close commits any open transaction and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if s.tx != nil {
		_ = s.tx.Commit()
		s.tx = nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// discardStore is the caching-disabled backend: every write vanishes and
// every read misses.
type discardStore struct{}

func (discardStore) Read(name string) ([]byte, error) {
	return nil, errNotFound(name)
}

func (discardStore) Write(string, []byte, *time.Time) bool { return false }

func (discardStore) Remove(name string) error {
	return errNotFound(name)
}

func (discardStore) ModTime(name string) (time.Time, error) {
	return time.Time{}, errNotFound(name)
}

func (discardStore) List() iter.Seq[string] {
	return func(func(string) bool) {}
}

func (discardStore) Commit() error { return nil }
