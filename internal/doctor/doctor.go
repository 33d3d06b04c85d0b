// Package doctor diagnoses the environment the daemon depends on.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tyler-jewell/claude-code-creeper/internal/state"
	"github.com/tyler-jewell/claude-code-creeper/internal/transcript"
	"github.com/tyler-jewell/claude-code-creeper/internal/ux"
)

// Check is one diagnosis result. Required checks gate the daemon; the rest
// only degrade functionality when they fail.
type Check struct {
	Name     string
	OK       bool
	Required bool
	Detail   string
}

// Run performs every environment check for a project. An empty transcriptDir
// means the default store location.
func Run(projectRoot, transcriptDir string, store *state.Store) []Check {
	if transcriptDir == "" {
		transcriptDir = transcript.DefaultStoreDir()
	}
	checks := []Check{
		binaryCheck("claude", true),
		binaryCheck("git", true),
		binaryCheck("gh", false),
	}
	checks = append(checks,
		gitRepoCheck(projectRoot),
		transcriptStoreCheck(transcriptDir),
		daemonCheck(store),
	)
	return checks
}

// Healthy reports whether every required check passed.
func Healthy(checks []Check) bool {
	for _, c := range checks {
		if c.Required && !c.OK {
			return false
		}
	}
	return true
}

// Render prints the check list.
func Render(checks []Check) {
	fmt.Println()
	for _, c := range checks {
		mark := ux.Green + "✓" + ux.Reset
		if !c.OK {
			mark = ux.Yellow + "–" + ux.Reset
			if c.Required {
				mark = ux.Red + "✗" + ux.Reset
			}
		}
		fmt.Printf("  %s %-24s %s\n", mark, c.Name, c.Detail)
	}
	fmt.Println()
}

func binaryCheck(name string, required bool) Check {
	c := Check{Name: name + " on PATH", Required: required}
	path, err := exec.LookPath(name)
	if err != nil {
		c.Detail = "not found"
		if !required {
			c.Detail = "not found (publishing will be skipped)"
		}
		return c
	}
	c.OK = true
	c.Detail = path
	return c
}

func gitRepoCheck(projectRoot string) Check {
	c := Check{Name: "project is a git repo", Required: true}
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = projectRoot
	if err := cmd.Run(); err != nil {
		c.Detail = projectRoot + " is not inside a git work tree"
		return c
	}
	c.OK = true
	c.Detail = projectRoot
	return c
}

func transcriptStoreCheck(dir string) Check {
	c := Check{Name: "transcript store"}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		c.Detail = dir + " missing (cycles run without transcript context)"
		return c
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.Detail = dir + " unreadable"
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%s (%d project(s))", dir, len(entries))
	return c
}

func daemonCheck(store *state.Store) Check {
	c := Check{Name: "daemon"}
	rec := store.ReadDaemon()
	if rec == nil {
		c.OK = true
		c.Detail = "not running"
		return c
	}
	if state.Alive(rec.PID) {
		c.OK = true
		c.Detail = fmt.Sprintf("running (pid %d, watching %s)", rec.PID, rec.ProjectPath)
		return c
	}
	// LiveDaemon would clean this up; report it rather than mutating here.
	c.Detail = fmt.Sprintf("stale record for dead pid %d in %s", rec.PID, filepath.Join(store.Dir(), "daemon.json"))
	return c
}
