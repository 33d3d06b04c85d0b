// Package state persists daemon and per-project records as JSON under a
// per-machine state directory.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProjectState is the durable per-project record. It is created on a
// project's first cycle, merged (never wholesale overwritten) on later
// cycles, and saved after every cycle regardless of outcome.
type ProjectState struct {
	ProjectPath         string    `json:"project_path"`
	LastAnalysisTime    time.Time `json:"last_analysis_time"`
	NextScheduledTime   time.Time `json:"next_scheduled_time,omitempty"`
	CurrentBranch       string    `json:"current_branch,omitempty"`
	PendingImprovements []string  `json:"pending_improvements,omitempty"`
}

// Store reads and writes state under dir.
type Store struct {
	dir string
}

// DefaultDir returns the per-machine state directory, ~/.creeper, honoring
// the CREEPER_STATE_DIR override.
func DefaultDir() string {
	if dir := os.Getenv("CREEPER_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".creeper"
	}
	return filepath.Join(home, ".creeper")
}

// Open returns a Store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "projects"), 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory root.
func (s *Store) Dir() string { return s.dir }

// projectKey derives a short deterministic key from an absolute project
// path. Collisions are accepted as negligible at this scale.
func projectKey(projectPath string) string {
	sum := sha256.Sum256([]byte(projectPath))
	return hex.EncodeToString(sum[:])[:12]
}

func (s *Store) projectFile(projectPath string) string {
	return filepath.Join(s.dir, "projects", projectKey(projectPath)+".json")
}

// LoadProject reads the project record. Absent or corrupt files yield a
// fresh record for the path; corrupt state never crashes the daemon.
func (s *Store) LoadProject(projectPath string) *ProjectState {
	fresh := &ProjectState{ProjectPath: projectPath}
	data, err := os.ReadFile(s.projectFile(projectPath))
	if err != nil {
		return fresh
	}
	var ps ProjectState
	if err := json.Unmarshal(data, &ps); err != nil {
		return fresh
	}
	if ps.ProjectPath == "" {
		ps.ProjectPath = projectPath
	}
	return &ps
}

// SaveProject writes the project record atomically.
func (s *Store) SaveProject(ps *ProjectState) error {
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.projectFile(ps.ProjectPath), data, 0644)
}

// MergeProject applies mutate to the loaded record and saves the result, so
// concurrent fields a caller does not touch survive the write.
func (s *Store) MergeProject(projectPath string, mutate func(*ProjectState)) error {
	ps := s.LoadProject(projectPath)
	mutate(ps)
	return s.SaveProject(ps)
}

// writeFileAtomic writes data via a temp file, fsync, and rename, so a crash
// mid-write never leaves a truncated record.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
