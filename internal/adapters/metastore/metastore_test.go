package metastore_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pycheck/internal/adapters/metastore"
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

// each backend must satisfy the same contract.
func backends(t *testing.T) map[string]ports.MetadataStore {
	t.Helper()

	dir, err := metastore.NewDirStore(t.TempDir())
	require.NoError(t, err)

	sqlite, err := metastore.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)

	return map[string]ports.MetadataStore{"dir": dir, "sqlite": sqlite}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok := store.Write("pkg/mod.data.json", []byte(`{"k":1}`), nil)
			require.True(t, ok)

			data, err := store.Read("pkg/mod.data.json")
			require.NoError(t, err)
			require.Equal(t, []byte(`{"k":1}`), data)

			require.NoError(t, store.Remove("pkg/mod.data.json"))
			_, err = store.Read("pkg/mod.data.json")
			require.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStore_ReadMissingIsNotFound(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Read("absent.meta.json")
			require.ErrorIs(t, err, domain.ErrNotFound)
			require.ErrorIs(t, store.Remove("absent.meta.json"), domain.ErrNotFound)
		})
	}
}

func TestStore_ListYieldsLiveNamesOnce(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.True(t, store.Write("a.meta.json", []byte("a"), nil))
			require.True(t, store.Write("pkg/b.meta.json", []byte("b"), nil))
			require.True(t, store.Write("gone.meta.json", []byte("x"), nil))
			require.NoError(t, store.Remove("gone.meta.json"))

			counts := make(map[string]int)
			for n := range store.List() {
				counts[n]++
			}
			require.Equal(t, map[string]int{"a.meta.json": 1, "pkg/b.meta.json": 1}, counts)

			// restartable: a second enumeration sees the same names.
			again := 0
			for range store.List() {
				again++
			}
			require.Equal(t, 2, again)
		})
	}
}

func TestStore_ExplicitMTime(t *testing.T) {
	when := time.Unix(1700000000, 0)
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.True(t, store.Write("m.meta.json", []byte("m"), &when))
			got, err := store.ModTime("m.meta.json")
			require.NoError(t, err)
			require.True(t, got.Equal(when), "mtime %v != %v", got, when)
		})
	}
}

func TestDirStore_RejectsAbsoluteAndTraversalNames(t *testing.T) {
	store, err := metastore.NewDirStore(t.TempDir())
	require.NoError(t, err)

	require.False(t, store.Write("/etc/passwd", []byte("x"), nil))
	require.False(t, store.Write("../escape.json", []byte("x"), nil))

	_, err = store.Read("/etc/passwd")
	require.ErrorIs(t, err, domain.ErrInvalidCacheName)
}

func TestDirStore_SurvivesReopen(t *testing.T) {
	root := t.TempDir()

	store, err := metastore.NewDirStore(root)
	require.NoError(t, err)
	require.True(t, store.Write("pkg/a.meta.json", []byte(`{"hash":"x"}`), nil))
	require.NoError(t, store.Commit())

	reopened, err := metastore.NewDirStore(root)
	require.NoError(t, err)
	data, err := reopened.Read("pkg/a.meta.json")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"hash":"x"}`), data)
}

func TestSQLiteStore_CommitFlushesAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := metastore.NewSQLiteStore(path)
	require.NoError(t, err)
	require.True(t, store.Write("pkg/a.meta.json", []byte(`{"hash":"x"}`), nil))
	require.NoError(t, store.Commit())
	require.NoError(t, store.(*metastore.SQLiteStore).Close())

	reopened, err := metastore.NewSQLiteStore(path)
	require.NoError(t, err)
	data, err := reopened.Read("pkg/a.meta.json")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"hash":"x"}`), data)
}

func TestSQLiteStore_ReadSeesUncommittedWrite(t *testing.T) {
	store, err := metastore.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)

	require.True(t, store.Write("pending.json", []byte("p"), nil))
	data, err := store.Read("pending.json")
	require.NoError(t, err)
	require.Equal(t, []byte("p"), data)
}

func TestDiscardStore_DropsEverything(t *testing.T) {
	store, err := metastore.NewSQLiteStore(domain.DiscardCacheDir)
	require.NoError(t, err)

	require.False(t, store.Write("a.json", []byte("a"), nil))
	_, err = store.Read("a.json")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, store.Commit())
}

func TestDiff(t *testing.T) {
	oldStore, err := metastore.NewDirStore(t.TempDir())
	require.NoError(t, err)
	newStore, err := metastore.NewDirStore(t.TempDir())
	require.NoError(t, err)

	require.True(t, oldStore.Write("same.json", []byte("s"), nil))
	require.True(t, oldStore.Write("changed.json", []byte("old"), nil))
	require.True(t, oldStore.Write("removed.json", []byte("r"), nil))
	require.True(t, newStore.Write("same.json", []byte("s"), nil))
	require.True(t, newStore.Write("changed.json", []byte("new"), nil))
	require.True(t, newStore.Write("added.json", []byte("a"), nil))

	entries, err := metastore.Diff(oldStore, newStore)
	require.NoError(t, err)
	require.Equal(t, []metastore.DiffEntry{
		{Name: "added.json", Op: "added"},
		{Name: "changed.json", Op: "changed"},
		{Name: "removed.json", Op: "removed"},
	}, entries)
}
