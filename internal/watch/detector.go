// Package watch detects project file changes by polling modification times.
package watch

import (
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

// WorktreeDirName is the disposable workspace directory created inside the
// project during isolated cycles. It is always excluded from scans so the
// daemon never reacts to its own edits.
const WorktreeDirName = ".creeper-worktree"

// defaultIgnore lists directory names skipped during scans: version-control
// metadata, dependency and build caches, coverage output, and the daemon's
// own directories.
var defaultIgnore = map[string]bool{
	".git":          true,
	".hg":           true,
	"node_modules":  true,
	"vendor":        true,
	".venv":         true,
	"venv":          true,
	"__pycache__":   true,
	"target":        true,
	"dist":          true,
	"build":         true,
	"coverage":      true,
	".creeper":      true,
	WorktreeDirName: true,
}

// Detector tracks observed modification times for every file under a project
// root. It is owned by a single orchestrator and is not safe for concurrent
// use.
type Detector struct {
	root   string
	ignore map[string]bool
	seen   map[string]time.Time
}

// New returns a Detector for root. Extra entries extend the default ignore
// list by bare directory name.
func New(root string, extra []string) *Detector {
	ignore := make(map[string]bool, len(defaultIgnore)+len(extra))
	for k := range defaultIgnore {
		ignore[k] = true
	}
	for _, name := range extra {
		ignore[name] = true
	}
	return &Detector{
		root:   root,
		ignore: ignore,
		seen:   make(map[string]time.Time),
	}
}

// Scan walks the project tree and returns a path → modification time mapping
// for every regular file not under an ignored directory. Paths are relative
// to the root with forward slashes.
func (d *Detector) Scan() (map[string]time.Time, error) {
	found := make(map[string]time.Time)
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if path != d.root && d.ignore[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return nil
		}
		found[filepath.ToSlash(rel)] = info.ModTime()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// DetectChanges re-scans and returns the sorted set of paths whose
// modification time is newer than previously observed, or that were absent
// from the previous scan. Detected times are recorded as a side effect, so
// repeated calls do not report the same change twice. Deleted paths drop out
// of the tracked set silently; renames appear as a delete plus an add.
func (d *Detector) DetectChanges() ([]string, error) {
	found, err := d.Scan()
	if err != nil {
		return nil, err
	}

	var changed []string
	for path, mod := range found {
		prev, ok := d.seen[path]
		if !ok || mod.After(prev) {
			changed = append(changed, path)
			d.seen[path] = mod
		}
	}
	for path := range d.seen {
		if _, ok := found[path]; !ok {
			delete(d.seen, path)
		}
	}

	sort.Strings(changed)
	return changed, nil
}

// Prime records the current tree state without reporting changes, so the
// first real delta reflects edits made after the daemon started.
func (d *Detector) Prime() error {
	found, err := d.Scan()
	if err != nil {
		return err
	}
	d.seen = found
	return nil
}
