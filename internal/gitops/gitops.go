// Package gitops drives the git and gh command-line tools for workspace
// isolation and publishing.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpError is a workflow-tool failure carrying the underlying diagnostic
// output. Callers decide per operation whether it is fatal.
type OpError struct {
	Op     string
	Output string
	Err    error
}

func (e *OpError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Worktree is a live disposable workspace. At most one exists per project;
// creating a new one force-removes any stale workspace first.
type Worktree struct {
	Path   string
	Branch string
}

// runFunc executes a command in dir and returns its combined output.
type runFunc func(dir, name string, args ...string) (string, error)

// Client exposes version-control and review-request operations against a
// project. The command runner is swappable for tests.
type Client struct {
	ProjectRoot string
	run         runFunc
}

// New returns a Client for projectRoot backed by the real git and gh
// binaries.
func New(projectRoot string) *Client {
	return &Client{ProjectRoot: projectRoot, run: runCommand}
}

func runCommand(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// WorktreePath returns the well-known disposable workspace location.
func (c *Client) WorktreePath() string {
	return filepath.Join(c.ProjectRoot, ".creeper-worktree")
}

// CurrentBranch returns the checked-out branch of the project.
func (c *Client) CurrentBranch() (string, error) {
	out, err := c.run(c.ProjectRoot, "git", "branch", "--show-current")
	if err != nil {
		return "", &OpError{Op: "current-branch", Output: out, Err: err}
	}
	return out, nil
}

// DefaultBranch returns the upstream default branch, falling back to "main"
// when origin/HEAD is not resolvable.
func (c *Client) DefaultBranch() string {
	out, err := c.run(c.ProjectRoot, "git", "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if err != nil {
		return "main"
	}
	return strings.TrimPrefix(out, "origin/")
}

// CreateWorktree removes any stale workspace, then branches a fresh one off
// the default branch at the well-known path.
func (c *Client) CreateWorktree() (*Worktree, error) {
	_ = c.RemoveWorktree()

	branch := fmt.Sprintf("creeper/%s-%s",
		time.Now().Format("20060102"), uuid.NewString()[:8])
	path := c.WorktreePath()
	out, err := c.run(c.ProjectRoot, "git", "worktree", "add", "-b", branch, path, c.DefaultBranch())
	if err != nil {
		return nil, &OpError{Op: "create-worktree", Output: out, Err: err}
	}
	return &Worktree{Path: path, Branch: branch}, nil
}

// RemoveWorktree tears down the disposable workspace. It is best-effort and
// idempotent: a workspace that is already gone is not an error.
func (c *Client) RemoveWorktree() error {
	path := c.WorktreePath()
	_, _ = c.run(c.ProjectRoot, "git", "worktree", "remove", "--force", path)
	if err := os.RemoveAll(path); err != nil {
		return &OpError{Op: "remove-worktree", Err: err}
	}
	_, _ = c.run(c.ProjectRoot, "git", "worktree", "prune")
	return nil
}

// HasUncommittedChanges reports whether dir has staged or unstaged changes.
func (c *Client) HasUncommittedChanges(dir string) (bool, error) {
	out, err := c.run(dir, "git", "status", "--porcelain")
	if err != nil {
		return false, &OpError{Op: "status", Output: out, Err: err}
	}
	return out != "", nil
}

// ChangedPaths returns the paths reported by git status --porcelain in dir.
func (c *Client) ChangedPaths(dir string) ([]string, error) {
	out, err := c.run(dir, "git", "status", "--porcelain")
	if err != nil {
		return nil, &OpError{Op: "status", Output: out, Err: err}
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		// Two status columns, a space, then the path. Renames keep the
		// destination side.
		path := line[3:]
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		paths = append(paths, strings.Trim(path, `"`))
	}
	return paths, nil
}

// StageCommitPush stages everything in dir, commits with message, and pushes
// the current branch upstream.
func (c *Client) StageCommitPush(dir, message string) error {
	if out, err := c.run(dir, "git", "add", "-A"); err != nil {
		return &OpError{Op: "stage", Output: out, Err: err}
	}
	if out, err := c.run(dir, "git", "commit", "-m", message); err != nil {
		return &OpError{Op: "commit", Output: out, Err: err}
	}
	if out, err := c.run(dir, "git", "push", "-u", "origin", "HEAD"); err != nil {
		return &OpError{Op: "push", Output: out, Err: err}
	}
	return nil
}

// OpenPullRequest opens a review request from dir via gh and returns the
// created reference (the last line of gh's stdout, typically the PR URL).
func (c *Client) OpenPullRequest(dir, title, body string) (string, error) {
	out, err := c.run(dir, "gh", "pr", "create", "--title", title, "--body", body)
	if err != nil {
		return "", &OpError{Op: "open-pull-request", Output: out, Err: err}
	}
	lines := strings.Split(out, "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// RecentLog returns the last n one-line commits, or "" when unavailable.
// Best effort: absence only thins the analysis prompt.
func (c *Client) RecentLog(n int) string {
	out, err := c.run(c.ProjectRoot, "git", "log", "--oneline", fmt.Sprintf("-%d", n))
	if err != nil {
		return ""
	}
	return out
}

// DiffStat returns a summary of uncommitted changes, or "" when unavailable.
func (c *Client) DiffStat() string {
	out, err := c.run(c.ProjectRoot, "git", "diff", "--stat")
	if err != nil {
		return ""
	}
	return out
}
