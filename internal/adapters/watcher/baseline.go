package watcher

import (
	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/pycheck/internal/core/ports"
)

// fileStamp is the recorded identity of one source file.
type fileStamp struct {
	mtimeNS  int64
	hash     string
	moduleID string
}

// Baseline remembers the mtime, content hash, and module id of every
// source file as of the last completed check. Diffing a fresh discovery
// against it yields the changed/removed set for a fine-grained update.
type Baseline struct {
	files map[string]fileStamp
}

// NewBaseline creates an empty baseline; the first Advance reports every
// source as changed.
func NewBaseline() *Baseline {
	return &Baseline{files: make(map[string]fileStamp)}
}

// Advance diffs the current source list against the baseline and moves
// the baseline forward to match it.
//
// A file is changed when it is new, when its content hash moved, or when
// its module id flipped (an __init__ file appeared or disappeared next
// to it); a module-id flip additionally reports the old id as removed.
// Matching mtimes short-circuit the content check.
func (b *Baseline) Advance(view ports.FileView, sources []domain.SourceFile) (changed, removed []domain.SourceFile, err error) {
	current := make(map[string]bool, len(sources))

	for _, src := range sources {
		current[src.Path] = true
		prev, existed := b.files[src.Path]

		mtime, err := view.MTime(src.Path)
		if err != nil {
			// Discovered but gone before stat: treat as removed if we
			// knew it, otherwise skip.
			if existed {
				removed = append(removed, domain.SourceFile{Path: src.Path, ModuleID: prev.moduleID})
				delete(b.files, src.Path)
			}
			continue
		}
		mtimeNS := mtime.UnixNano()

		if existed && prev.mtimeNS == mtimeNS && prev.moduleID == src.ModuleID {
			continue
		}

		_, hash, err := view.Read(src.Path)
		if err != nil {
			if existed {
				removed = append(removed, domain.SourceFile{Path: src.Path, ModuleID: prev.moduleID})
				delete(b.files, src.Path)
			}
			continue
		}

		flipped := existed && prev.moduleID != src.ModuleID
		if flipped {
			removed = append(removed, domain.SourceFile{Path: src.Path, ModuleID: prev.moduleID})
		}
		if !existed || flipped || prev.hash != hash {
			changed = append(changed, src)
		}
		b.files[src.Path] = fileStamp{mtimeNS: mtimeNS, hash: hash, moduleID: src.ModuleID}
	}

	for path, stamp := range b.files {
		if !current[path] {
			removed = append(removed, domain.SourceFile{Path: path, ModuleID: stamp.moduleID})
			delete(b.files, path)
		}
	}
	return changed, removed, nil
}

// Len reports how many files the baseline tracks.
func (b *Baseline) Len() int {
	return len(b.files)
}
