package fscache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pycheck/internal/adapters/fscache"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCache_ReadIsMemoizedWithinTransaction(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.py", "x = 1\n")

	c := fscache.New()
	data, hash, err := c.Read(path)
	require.NoError(t, err)
	require.Equal(t, "x = 1\n", string(data))
	require.Len(t, hash, 16)

	// Mutate the file behind the cache's back; the transaction's view
	// must not change.
	require.NoError(t, os.WriteFile(path, []byte("x = 2\n"), 0o644))

	again, hash2, err := c.Read(path)
	require.NoError(t, err)
	require.Equal(t, "x = 1\n", string(again))
	require.Equal(t, hash, hash2)

	// A new transaction observes the new content.
	c.Flush()
	fresh, hash3, err := c.Read(path)
	require.NoError(t, err)
	require.Equal(t, "x = 2\n", string(fresh))
	require.NotEqual(t, hash, hash3)
}

func TestCache_ErrorsAreMemoized(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.py")

	c := fscache.New()
	_, err := c.Stat(missing)
	require.Error(t, err)

	// Create the file after the failed stat; within the same
	// transaction it must still look absent.
	writeFile(t, dir, "missing.py", "late\n")
	_, err = c.Stat(missing)
	require.Error(t, err)
	require.False(t, c.Exists(missing))

	c.Flush()
	require.True(t, c.Exists(missing))
}

func TestCache_ListDirMemoized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "")

	c := fscache.New()
	names, err := c.ListDir(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.py"}, names)

	writeFile(t, dir, "b.py", "")
	names, err = c.ListDir(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.py"}, names)
}

func TestCache_Predicates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.py", "")

	c := fscache.New()
	require.True(t, c.IsFile(path))
	require.False(t, c.IsDir(path))
	require.True(t, c.IsDir(dir))
	require.True(t, c.Exists(dir))
	require.False(t, c.Exists(filepath.Join(dir, "nope")))
}

func TestCache_CaseSensitiveIsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mod.py", "")

	c := fscache.New()
	require.True(t, c.CaseSensitiveIsFile(filepath.Join(dir, "mod.py")))
	// Wrong-case lookup must fail regardless of filesystem semantics.
	require.False(t, c.CaseSensitiveIsFile(filepath.Join(dir, "MOD.py")))
}
