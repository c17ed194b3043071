package metastore

import (
	"bytes"
	"sort"

	"go.trai.ch/pycheck/internal/core/ports"
)

// DiffEntry is one divergence between two stores.
type DiffEntry struct {
	Name string `json:"name"`
	// Op is "added", "changed", or "removed", relative to the old store.
	Op string `json:"op"`
}

// Diff lists the entries that differ between two full caches, the
// derived artifact used to ship incremental cache updates instead of a
// whole cache. Both stores are only read.
func Diff(oldStore, newStore ports.MetadataStore) ([]DiffEntry, error) {
	oldNames := make(map[string]bool)
	for name := range oldStore.List() {
		oldNames[name] = true
	}

	var entries []DiffEntry
	for name := range newStore.List() {
		newData, err := newStore.Read(name)
		if err != nil {
			return nil, err
		}
		if !oldNames[name] {
			entries = append(entries, DiffEntry{Name: name, Op: "added"})
			continue
		}
		delete(oldNames, name)
		oldData, err := oldStore.Read(name)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(oldData, newData) {
			entries = append(entries, DiffEntry{Name: name, Op: "changed"})
		}
	}
	for name := range oldNames {
		entries = append(entries, DiffEntry{Name: name, Op: "removed"})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
