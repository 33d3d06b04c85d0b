// Package transcript locates and decodes Claude Code session transcripts.
package transcript

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultScanLines bounds how many leading lines of a candidate file are
// inspected for a project-path match. The scan is deliberately not
// exhaustive; a match past the window is not found.
const DefaultScanLines = 20

// transcriptExt is the line-oriented event-log extension used by the store.
const transcriptExt = ".jsonl"

// Candidate is a transcript file matched to a project.
type Candidate struct {
	Path    string
	ModTime time.Time
}

// Correlator searches the Claude transcript store for the session transcript
// belonging to a project.
type Correlator struct {
	StoreDir  string
	ScanLines int
}

// DefaultStoreDir returns the well-known transcript store location,
// ~/.claude/projects, or "" when the home directory is unknown.
func DefaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "projects")
}

// NewCorrelator returns a Correlator over storeDir. An empty storeDir uses
// the default location.
func NewCorrelator(storeDir string) *Correlator {
	if storeDir == "" {
		storeDir = DefaultStoreDir()
	}
	return &Correlator{StoreDir: storeDir, ScanLines: DefaultScanLines}
}

// Find returns the most recent transcript matching projectPath that was
// modified after since (unbounded when since is zero). Candidates match when
// the inspected prefix of lines mentions the absolute project path, or
// /<projectDirectoryName>/ as a weaker heuristic. Modification-time ties keep
// the first-discovered candidate; the precedence among true ties is
// undefined. The second return is false when no transcript matches; callers
// treat that as valid, content-free input.
func (c *Correlator) Find(projectPath string, since time.Time) (Candidate, bool) {
	dirs, err := os.ReadDir(c.StoreDir)
	if err != nil {
		return Candidate{}, false
	}

	base := filepath.Base(projectPath)
	var best Candidate
	var found bool
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		subdir := filepath.Join(c.StoreDir, dir.Name())
		files, err := os.ReadDir(subdir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != transcriptExt {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			if !since.IsZero() && !info.ModTime().After(since) {
				continue
			}
			if found && !info.ModTime().After(best.ModTime) {
				continue
			}
			path := filepath.Join(subdir, f.Name())
			if !c.headMatches(path, projectPath, base) {
				continue
			}
			best = Candidate{Path: path, ModTime: info.ModTime()}
			found = true
		}
	}
	return best, found
}

// headMatches inspects the first ScanLines lines of path for a mention of
// the project.
func (c *Correlator) headMatches(path, projectPath, base string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	limit := c.ScanLines
	if limit <= 0 {
		limit = DefaultScanLines
	}
	needle := "/" + base + "/"

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)
	for i := 0; i < limit && scanner.Scan(); i++ {
		line := scanner.Text()
		if strings.Contains(line, projectPath) || strings.Contains(line, needle) {
			return true
		}
	}
	return false
}
