// Package cycle drives the analysis cycle state machine: detect changes,
// correlate a session transcript, analyze, isolate, publish, clean up.
package cycle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tyler-jewell/claude-code-creeper/internal/agent"
	"github.com/tyler-jewell/claude-code-creeper/internal/config"
	"github.com/tyler-jewell/claude-code-creeper/internal/gitops"
	"github.com/tyler-jewell/claude-code-creeper/internal/pipeline"
	"github.com/tyler-jewell/claude-code-creeper/internal/schedule"
	"github.com/tyler-jewell/claude-code-creeper/internal/state"
	"github.com/tyler-jewell/claude-code-creeper/internal/transcript"
	"github.com/tyler-jewell/claude-code-creeper/internal/ux"
	"github.com/tyler-jewell/claude-code-creeper/internal/watch"
)

// WorkspaceManager is the version-control and publish surface the cycle
// drives. Tests substitute a mock; gitops.Client is the real thing.
type WorkspaceManager interface {
	CreateWorktree() (*gitops.Worktree, error)
	RemoveWorktree() error
	CurrentBranch() (string, error)
	HasUncommittedChanges(dir string) (bool, error)
	ChangedPaths(dir string) ([]string, error)
	StageCommitPush(dir, message string) error
	OpenPullRequest(dir, title, body string) (string, error)
	RecentLog(n int) string
	DiffStat() string
}

// AgentRunner invokes the external coding agent.
type AgentRunner interface {
	Invoke(ctx context.Context, dir, prompt, system, permissionMode string) (*agent.Result, error)
}

// TranscriptFinder locates the session transcript for a project.
type TranscriptFinder interface {
	Find(projectPath string, since time.Time) (transcript.Candidate, bool)
}

// Outcome summarizes what one cycle did. It is produced on every cycle,
// including failed and empty ones.
type Outcome struct {
	PublishedReference string
	ChangedArtifacts   []string
}

// Orchestrator owns the poll loop and runs cycles strictly one at a time.
// All watch state lives here, not in package globals.
type Orchestrator struct {
	Config    *config.Config
	Project   string
	Detector  *watch.Detector
	Sched     *schedule.Scheduler
	Finder    TranscriptFinder
	Pipeline  *pipeline.Pipeline
	Workspace WorkspaceManager
	Agent     AgentRunner
	Store     *state.Store
}

// New wires an Orchestrator with the real collaborators.
func New(cfg *config.Config, project string, store *state.Store) *Orchestrator {
	return &Orchestrator{
		Config:    cfg,
		Project:   project,
		Detector:  watch.New(project, cfg.Ignore),
		Sched:     schedule.New(cfg.Wait()),
		Finder:    transcript.NewCorrelator(cfg.TranscriptDir),
		Pipeline:  pipeline.Default(),
		Workspace: gitops.New(project),
		Agent:     agent.NewInvoker(cfg.Model, cfg.AllowedTools, time.Duration(cfg.AgentTimeout)*time.Minute),
		Store:     store,
	}
}

// RunLoop polls for changes until ctx is cancelled. One goroutine services
// detection, debouncing, and cycles; subprocess calls block the loop, which
// is fine because cycles are strictly serialized anyway.
func (o *Orchestrator) RunLoop(ctx context.Context) error {
	if err := o.Detector.Prime(); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	ux.Info("watching %s (poll %s, debounce %s)", o.Project, o.Config.PollInterval(), o.Config.Wait())

	ticker := time.NewTicker(o.Config.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ux.Info("shutting down")
			return nil
		case <-ticker.C:
		}

		changed, err := o.Detector.DetectChanges()
		if err != nil {
			ux.Warnf("scan failed: %v", err)
			continue
		}
		if len(changed) > 0 {
			o.Sched.Add(changed)
			ux.ChangesDetected(len(changed))
			deadline := o.Sched.Deadline()
			if err := o.Store.MergeProject(o.Project, func(ps *state.ProjectState) {
				ps.NextScheduledTime = deadline
			}); err != nil {
				ux.Warnf("saving schedule: %v", err)
			}
		}

		if o.Sched.Due() {
			pending := o.Sched.Take()
			if _, err := o.RunCycle(ctx, pending); err != nil {
				// Per-cycle errors never stop the daemon.
				ux.CycleFail(err)
			}
			o.Sched.Done()
		}
	}
}

// RunCycle executes one full analysis cycle over the given change set.
// Whatever happens, the disposable workspace is removed, an AnalysisRecord
// is appended, and the project's last-analysis time advances, so a broken
// cycle must not cause the same stale transcript to be reprocessed forever.
func (o *Orchestrator) RunCycle(ctx context.Context, changed []string) (*Outcome, error) {
	start := time.Now()
	ux.CycleStart(len(changed))

	prior := o.Store.LoadProject(o.Project)
	outcome := &Outcome{}
	rec := &state.AnalysisRecord{ID: uuid.NewString(), Timestamp: start}
	var branch string

	defer func() {
		rec.ChangesApplied = outcome.ChangedArtifacts
		rec.PublishedReference = outcome.PublishedReference
		if rec.PatternsDetected == nil {
			rec.PatternsDetected = []string{}
		}
		if rec.ChangesApplied == nil {
			rec.ChangesApplied = []string{}
		}
		if err := o.Store.AppendRecord(o.Project, rec); err != nil {
			ux.Warnf("appending history: %v", err)
		}
		if err := o.Store.MergeProject(o.Project, func(ps *state.ProjectState) {
			ps.LastAnalysisTime = time.Now()
			ps.NextScheduledTime = time.Time{}
			if branch != "" {
				ps.CurrentBranch = branch
			}
			if len(outcome.ChangedArtifacts) > 0 {
				ps.PendingImprovements = nil
			} else {
				ps.PendingImprovements = rec.PatternsDetected
			}
		}); err != nil {
			ux.Warnf("saving project state: %v", err)
		}
	}()

	cctx := o.buildContext(changed, prior.LastAnalysisTime, rec)
	analysis := o.Pipeline.Analyze(cctx)
	rec.PatternsDetected = analysis.PatternNames()
	prompt := o.Pipeline.RenderPrompt(cctx, analysis)

	if o.Config.DryRun {
		ux.DryRunPayload(prompt)
		ux.CycleComplete(time.Since(start))
		return outcome, nil
	}

	// Isolating. Auto-apply works directly in the project; otherwise edits
	// go to a disposable worktree. Isolation failure degrades to direct
	// edits rather than skipping the cycle.
	workDir := o.Project
	mode := agent.PermissionDirect
	var wt *gitops.Worktree
	if !o.Config.AutoApply {
		defer func() {
			if err := o.Workspace.RemoveWorktree(); err != nil {
				ux.Warnf("removing workspace: %v", err)
			}
		}()
		created, err := o.Workspace.CreateWorktree()
		if err != nil {
			ux.Warnf("workspace isolation failed, editing the project directly: %v", err)
		} else {
			wt = created
			workDir = wt.Path
			mode = agent.PermissionIsolated
			branch = wt.Branch
			ux.Info("working in %s on branch %s", wt.Path, wt.Branch)
		}
	}

	res, err := o.Agent.Invoke(ctx, workDir, prompt, o.Pipeline.SystemPrompt(), mode)
	if err != nil {
		return outcome, fmt.Errorf("invoking agent: %w", err)
	}
	if res.ExitCode != 0 {
		ux.Errorf("agent exited with status %d", res.ExitCode)
	}
	ux.AgentOutput(res.Output)

	// Publishing, only when isolated.
	if wt != nil {
		dirty, err := o.Workspace.HasUncommittedChanges(wt.Path)
		if err != nil {
			return outcome, err
		}
		if !dirty {
			ux.Info("agent made no changes")
			ux.CycleComplete(time.Since(start))
			return outcome, nil
		}
		paths, err := o.Workspace.ChangedPaths(wt.Path)
		if err != nil {
			return outcome, err
		}
		outcome.ChangedArtifacts = paths
		if err := o.Workspace.StageCommitPush(wt.Path, commitMessage(paths)); err != nil {
			return outcome, err
		}
		title, body := reviewRequest(paths, rec.PatternsDetected)
		ref, err := o.Workspace.OpenPullRequest(wt.Path, title, body)
		if err != nil {
			// Reported, non-fatal: the branch is pushed and the attempt is
			// recorded either way.
			ux.Errorf("opening review request: %v", err)
		} else {
			outcome.PublishedReference = ref
			ux.Published(ref)
		}
	} else if o.Config.AutoApply {
		// Direct edits land on whatever branch the project has checked out.
		if b, err := o.Workspace.CurrentBranch(); err == nil {
			branch = b
		}
		if dirty, err := o.Workspace.HasUncommittedChanges(o.Project); err == nil && dirty {
			if paths, err := o.Workspace.ChangedPaths(o.Project); err == nil {
				outcome.ChangedArtifacts = paths
			}
		}
	}

	ux.CycleComplete(time.Since(start))
	return outcome, nil
}

// buildContext assembles the per-cycle analysis input. Transcript and git
// context are best-effort; their absence thins the prompt, nothing else.
func (o *Orchestrator) buildContext(changed []string, since time.Time, rec *state.AnalysisRecord) *pipeline.Context {
	cctx := &pipeline.Context{
		ProjectPath:  o.Project,
		ChangedFiles: changed,
	}

	if cand, ok := o.Finder.Find(o.Project, since); ok {
		rec.Transcript = cand.Path
		entries, err := transcript.Load(cand.Path)
		if err != nil {
			ux.Warnf("transcript unreadable: %v", err)
		} else {
			cctx.Transcript = entries
			ux.Info("correlated transcript %s", filepath.Base(cand.Path))
		}
	} else {
		ux.Info("no session transcript found, analyzing changes alone")
	}

	cctx.GitLog = o.Workspace.RecentLog(10)
	cctx.GitDiffStat = o.Workspace.DiffStat()
	return cctx
}

func commitMessage(paths []string) string {
	msg := "Apply automated improvements\n\nChanged paths:\n"
	for _, p := range paths {
		msg += "- " + p + "\n"
	}
	return msg
}

func reviewRequest(paths, patterns []string) (title, body string) {
	title = fmt.Sprintf("Automated improvements (%d file(s))", len(paths))
	body = "## Changes\n\n"
	for _, p := range paths {
		body += "- " + p + "\n"
	}
	if len(patterns) > 0 {
		body += "\n## Detected patterns\n\n"
		for _, p := range patterns {
			body += "- " + p + "\n"
		}
	}
	body += "\nOpened automatically from a watched-project analysis cycle. Review before merging.\n"
	return title, body
}
