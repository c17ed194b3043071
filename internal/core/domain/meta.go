package domain

// FreshnessMeta is the per-module freshness record stored as
// "<module>.meta.json" next to the analysis payload. Cached analysis is
// reusable only when the source's mtime or hash still matches and the
// dependency list is unchanged.
type FreshnessMeta struct {
	ID         string       `json:"id"`
	Path       string       `json:"path"`
	MTimeNS    int64        `json:"mtime_ns"`
	Hash       string       `json:"hash"`
	Deps       []Dependency `json:"deps"`
	Suppressed []string     `json:"suppressed,omitempty"`
	DataHash   string       `json:"data_hash"`
}

// Fresh reports whether the record still describes the given source
// state. A matching hash wins even when the mtime moved, so touch(1)
// alone does not invalidate a module.
func (m *FreshnessMeta) Fresh(mtimeNS int64, hash string) bool {
	if m.Hash == hash {
		return true
	}
	return m.MTimeNS == mtimeNS
}
