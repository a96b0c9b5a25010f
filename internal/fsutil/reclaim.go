package fsutil

import "path/filepath"

// ReclaimEmptyDirs walks upward from the parent of each seed path,
// removing directories that have become empty, stopping at the first
// non-empty ancestor or at stopAt (which is never removed, even if
// empty — the caller tears that down separately, at the end of a run).
func ReclaimEmptyDirs(seedPaths []string, stopAt string) {
	seen := make(map[string]struct{}, len(seedPaths))
	for _, seed := range seedPaths {
		dir := filepath.Dir(seed)
		if _, ok := seen[dir]; ok {
			continue
		}
		reclaimFrom(dir, stopAt, seen)
	}
}

func reclaimFrom(dir, stopAt string, seen map[string]struct{}) {
	for {
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}

		if dir == stopAt || dir == "." || dir == string(filepath.Separator) {
			return
		}

		if !removeDirIfEmpty(dir) {
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
