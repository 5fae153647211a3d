package resynth

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// applyPlan removes deleted files below root, then writes created and
// updated ones. Deletions run deepest first so a file can replace a
// directory, and a directory a file, in a single pass. Directories left
// empty by a deletion are removed up to root. The first I/O error stops the
// pass; files already written stay written.
func applyPlan(root string, plan *Plan) (written, deleted []string, err error) {
	var removals []string
	for _, r := range plan.Resolutions {
		if r.Outcome == OutcomeDeleted {
			removals = append(removals, r.Path)
		}
	}
	sort.SliceStable(removals, func(i, j int) bool {
		di, dj := strings.Count(removals[i], "/"), strings.Count(removals[j], "/")
		if di != dj {
			return di > dj
		}
		return removals[i] < removals[j]
	})
	for _, p := range removals {
		target := filepath.Join(root, filepath.FromSlash(p))
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return written, deleted, fmt.Errorf("delete %s: %w", p, err)
		}
		deleted = append(deleted, p)
		pruneEmptyDirs(root, filepath.Dir(target))
	}

	for _, r := range plan.Resolutions {
		if r.Outcome != OutcomeCreated && r.Outcome != OutcomeUpdated {
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(r.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, deleted, fmt.Errorf("create directory for %s: %w", r.Path, err)
		}
		if err := os.WriteFile(target, r.Result.Content, filePerm(target)); err != nil {
			return written, deleted, fmt.Errorf("write %s: %w", r.Path, err)
		}
		written = append(written, r.Path)
	}
	return written, deleted, nil
}

// filePerm keeps the mode of an existing file.
func filePerm(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

func pruneEmptyDirs(root, dir string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root && len(dir) > len(root); dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}
