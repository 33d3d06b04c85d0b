package cycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tyler-jewell/claude-code-creeper/internal/agent"
	"github.com/tyler-jewell/claude-code-creeper/internal/config"
	"github.com/tyler-jewell/claude-code-creeper/internal/gitops"
	"github.com/tyler-jewell/claude-code-creeper/internal/pipeline"
	"github.com/tyler-jewell/claude-code-creeper/internal/state"
	"github.com/tyler-jewell/claude-code-creeper/internal/transcript"
)

type mockWorkspace struct {
	branchName string
	createErr  error
	dirty      bool
	dirtyErr   error
	changed    []string
	changedErr error
	commitErr  error
	prRef      string
	prErr      error

	worktreeLive bool
	removed      int
	commits      []string
	prTitles     []string
}

func (m *mockWorkspace) CreateWorktree() (*gitops.Worktree, error) {
	// Even a failed create can leave debris behind; the cycle is expected
	// to remove it regardless.
	m.worktreeLive = true
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &gitops.Worktree{Path: "/tmp/wt", Branch: "creeper/20260830-abcd1234"}, nil
}

func (m *mockWorkspace) RemoveWorktree() error {
	m.removed++
	m.worktreeLive = false
	return nil
}

func (m *mockWorkspace) CurrentBranch() (string, error) {
	return m.branchName, nil
}

func (m *mockWorkspace) HasUncommittedChanges(dir string) (bool, error) {
	return m.dirty, m.dirtyErr
}

func (m *mockWorkspace) ChangedPaths(dir string) ([]string, error) {
	return m.changed, m.changedErr
}

func (m *mockWorkspace) StageCommitPush(dir, message string) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits = append(m.commits, message)
	return nil
}

func (m *mockWorkspace) OpenPullRequest(dir, title, body string) (string, error) {
	if m.prErr != nil {
		return "", m.prErr
	}
	m.prTitles = append(m.prTitles, title)
	return m.prRef, nil
}

func (m *mockWorkspace) RecentLog(n int) string { return "" }
func (m *mockWorkspace) DiffStat() string       { return "" }

type mockAgent struct {
	result *agent.Result
	err    error

	dir    string
	mode   string
	prompt string
	calls  int
}

func (m *mockAgent) Invoke(ctx context.Context, dir, prompt, system, mode string) (*agent.Result, error) {
	m.calls++
	m.dir = dir
	m.mode = mode
	m.prompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &agent.Result{ExitCode: 0, Output: "done"}, nil
}

type mockFinder struct {
	cand transcript.Candidate
	ok   bool
}

func (m *mockFinder) Find(projectPath string, since time.Time) (transcript.Candidate, bool) {
	return m.cand, m.ok
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *mockWorkspace, *mockAgent) {
	t.Helper()
	store, err := state.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	ws := &mockWorkspace{prRef: "https://example.com/pull/1"}
	ag := &mockAgent{}
	o := &Orchestrator{
		Config:    config.Default(),
		Project:   "/work/demo",
		Finder:    &mockFinder{},
		Pipeline:  pipeline.Default(),
		Workspace: ws,
		Agent:     ag,
		Store:     store,
	}
	return o, ws, ag
}

func TestRunCycle_PublishesWhenAgentMadeChanges(t *testing.T) {
	o, ws, ag := newTestOrchestrator(t)
	ws.dirty = true
	ws.changed = []string{"server.go", "server_test.go"}

	out, err := o.RunCycle(context.Background(), []string{"server.go"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if ag.calls != 1 {
		t.Fatalf("agent invoked %d times, want 1", ag.calls)
	}
	if ag.dir != "/tmp/wt" {
		t.Errorf("agent ran in %q, want the worktree", ag.dir)
	}
	if ag.mode != agent.PermissionIsolated {
		t.Errorf("permission mode = %q, want %q", ag.mode, agent.PermissionIsolated)
	}
	if len(ws.commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(ws.commits))
	}
	if !strings.Contains(ws.commits[0], "server.go") {
		t.Errorf("commit message omits changed path: %q", ws.commits[0])
	}
	if out.PublishedReference != "https://example.com/pull/1" {
		t.Errorf("published ref = %q", out.PublishedReference)
	}
	if ws.worktreeLive {
		t.Error("worktree still present after cycle")
	}
}

func TestRunCycle_NoAgentChangesSkipsPublish(t *testing.T) {
	o, ws, _ := newTestOrchestrator(t)
	ws.dirty = false

	out, err := o.RunCycle(context.Background(), []string{"a.go"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(ws.commits) != 0 || len(ws.prTitles) != 0 {
		t.Error("publish steps ran despite a clean worktree")
	}
	if out.PublishedReference != "" || len(out.ChangedArtifacts) != 0 {
		t.Errorf("outcome should be empty, got %+v", out)
	}
	if ws.worktreeLive {
		t.Error("worktree still present after cycle")
	}

	hist := o.Store.History(o.Project, 0)
	if len(hist) != 1 {
		t.Fatalf("got %d history records, want 1", len(hist))
	}
	if hist[0].PublishedReference != "" {
		t.Errorf("record published ref = %q, want empty", hist[0].PublishedReference)
	}
}

func TestRunCycle_EmptyChangeSetStillRecords(t *testing.T) {
	// An up-to-date tree with no correlated transcript still gets a full
	// cycle: one history record with empty lists and an advanced analysis
	// clock, so the next run measures from this one.
	o, ws, ag := newTestOrchestrator(t)

	out, err := o.RunCycle(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if ag.calls != 1 {
		t.Fatalf("agent invoked %d times, want 1", ag.calls)
	}
	if out.PublishedReference != "" || len(out.ChangedArtifacts) != 0 {
		t.Errorf("outcome should be empty, got %+v", out)
	}
	if ws.worktreeLive {
		t.Error("worktree still present after cycle")
	}

	hist := o.Store.History(o.Project, 0)
	if len(hist) != 1 {
		t.Fatalf("got %d history records, want 1", len(hist))
	}
	if len(hist[0].PatternsDetected) != 0 || len(hist[0].ChangesApplied) != 0 {
		t.Errorf("record lists should be empty, got %+v", hist[0])
	}
	if o.Store.LoadProject(o.Project).LastAnalysisTime.IsZero() {
		t.Error("last analysis time not advanced")
	}
}

func TestRunCycle_IsolationFailureFallsBackToProjectDir(t *testing.T) {
	o, ws, ag := newTestOrchestrator(t)
	ws.createErr = errors.New("worktree add: exit status 128")

	if _, err := o.RunCycle(context.Background(), []string{"a.go"}); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if ag.calls != 1 {
		t.Fatalf("agent invoked %d times, want 1", ag.calls)
	}
	if ag.dir != o.Project {
		t.Errorf("agent ran in %q, want project dir %q", ag.dir, o.Project)
	}
	if ag.mode != agent.PermissionDirect {
		t.Errorf("permission mode = %q, want %q", ag.mode, agent.PermissionDirect)
	}
	if len(ws.commits) != 0 {
		t.Error("publish steps should not run without an isolated worktree")
	}
	if ws.worktreeLive {
		t.Error("partial worktree left behind after failed isolation")
	}
}

func TestRunCycle_AutoApplySkipsIsolation(t *testing.T) {
	o, ws, ag := newTestOrchestrator(t)
	o.Config.AutoApply = true
	ws.branchName = "main"
	ws.dirty = true
	ws.changed = []string{"a.go"}

	out, err := o.RunCycle(context.Background(), []string{"a.go"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if ag.dir != o.Project {
		t.Errorf("agent ran in %q, want project dir", ag.dir)
	}
	if ag.mode != agent.PermissionDirect {
		t.Errorf("permission mode = %q, want %q", ag.mode, agent.PermissionDirect)
	}
	if ws.removed != 0 {
		t.Error("no worktree should be created or removed in auto-apply mode")
	}
	if len(ws.commits) != 0 || out.PublishedReference != "" {
		t.Error("auto-apply must not commit or publish")
	}
	if len(out.ChangedArtifacts) != 1 {
		t.Errorf("changed artifacts = %v, want the direct edit recorded", out.ChangedArtifacts)
	}
	if got := o.Store.LoadProject(o.Project).CurrentBranch; got != "main" {
		t.Errorf("current branch = %q, want the checked-out branch recorded", got)
	}
}

func TestRunCycle_DryRunStopsBeforeIsolation(t *testing.T) {
	o, ws, ag := newTestOrchestrator(t)
	o.Config.DryRun = true

	if _, err := o.RunCycle(context.Background(), []string{"a.go"}); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if ag.calls != 0 {
		t.Error("dry run must not invoke the agent")
	}
	if ws.removed != 0 {
		t.Error("dry run must not touch worktrees")
	}

	// Dry runs still record the cycle and advance the analysis clock.
	if len(o.Store.History(o.Project, 0)) != 1 {
		t.Error("dry run did not append a history record")
	}
	if o.Store.LoadProject(o.Project).LastAnalysisTime.IsZero() {
		t.Error("dry run did not advance last analysis time")
	}
}

func TestRunCycle_CleanupAndStateOnEveryFailure(t *testing.T) {
	cases := []struct {
		name    string
		prep    func(ws *mockWorkspace, ag *mockAgent)
		wantErr bool
	}{
		{
			name:    "agent start failure",
			prep:    func(ws *mockWorkspace, ag *mockAgent) { ag.err = errors.New("claude: executable not found") },
			wantErr: true,
		},
		{
			name: "status check failure",
			prep: func(ws *mockWorkspace, ag *mockAgent) {
				ws.dirtyErr = errors.New("git status: exit status 128")
			},
			wantErr: true,
		},
		{
			name: "commit or push failure",
			prep: func(ws *mockWorkspace, ag *mockAgent) {
				ws.dirty = true
				ws.changed = []string{"a.go"}
				ws.commitErr = errors.New("git push: remote rejected")
			},
			wantErr: true,
		},
		{
			name: "review request failure",
			prep: func(ws *mockWorkspace, ag *mockAgent) {
				ws.dirty = true
				ws.changed = []string{"a.go"}
				ws.prErr = errors.New("gh: not authenticated")
			},
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, ws, ag := newTestOrchestrator(t)
			tc.prep(ws, ag)

			_, err := o.RunCycle(context.Background(), []string{"a.go"})
			if tc.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("RunCycle: %v", err)
			}
			if ws.worktreeLive {
				t.Error("worktree left behind")
			}
			if len(o.Store.History(o.Project, 0)) != 1 {
				t.Error("no history record appended")
			}
			if o.Store.LoadProject(o.Project).LastAnalysisTime.IsZero() {
				t.Error("last analysis time not advanced")
			}
		})
	}
}

func TestRunCycle_PushFailureStillRecordsChangedPaths(t *testing.T) {
	o, ws, _ := newTestOrchestrator(t)
	ws.dirty = true
	ws.changed = []string{"a.go", "b.go"}
	ws.commitErr = errors.New("git push: network down")

	out, err := o.RunCycle(context.Background(), []string{"a.go"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(out.ChangedArtifacts) != 2 {
		t.Errorf("changed artifacts = %v, want both paths", out.ChangedArtifacts)
	}
	hist := o.Store.History(o.Project, 0)
	if len(hist) != 1 || len(hist[0].ChangesApplied) != 2 {
		t.Errorf("history record missing changed paths: %+v", hist)
	}
}

func TestRunCycle_ReviewRequestFailureIsNonFatal(t *testing.T) {
	o, ws, _ := newTestOrchestrator(t)
	ws.dirty = true
	ws.changed = []string{"a.go"}
	ws.prErr = errors.New("gh: not found")

	out, err := o.RunCycle(context.Background(), []string{"a.go"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(ws.commits) != 1 {
		t.Error("commit should have happened before the review request failed")
	}
	if out.PublishedReference != "" {
		t.Errorf("published ref = %q, want empty", out.PublishedReference)
	}
}

func TestRunCycle_RecordsBranchAndTranscript(t *testing.T) {
	o, ws, _ := newTestOrchestrator(t)
	ws.dirty = true
	ws.changed = []string{"a.go"}

	dir := t.TempDir()
	tr := filepath.Join(dir, "session.jsonl")
	line := `{"type":"user","message":{"role":"user","content":"please fix a.go"}}` + "\n"
	if err := os.WriteFile(tr, []byte(line), 0644); err != nil {
		t.Fatal(err)
	}
	o.Finder = &mockFinder{cand: transcript.Candidate{Path: tr, ModTime: time.Now()}, ok: true}

	if _, err := o.RunCycle(context.Background(), []string{"a.go"}); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	ps := o.Store.LoadProject(o.Project)
	if ps.CurrentBranch != "creeper/20260830-abcd1234" {
		t.Errorf("current branch = %q", ps.CurrentBranch)
	}
	hist := o.Store.History(o.Project, 0)
	if len(hist) != 1 || hist[0].Transcript != tr {
		t.Errorf("history transcript = %+v, want %q", hist, tr)
	}
	if hist[0].ID == "" {
		t.Error("record has no id")
	}
}

func TestRunCycle_TranscriptFlowsIntoPrompt(t *testing.T) {
	o, _, ag := newTestOrchestrator(t)

	dir := t.TempDir()
	tr := filepath.Join(dir, "session.jsonl")
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"left a TODO in parser.go"}]}}` + "\n"
	if err := os.WriteFile(tr, []byte(line), 0644); err != nil {
		t.Fatal(err)
	}
	o.Finder = &mockFinder{cand: transcript.Candidate{Path: tr, ModTime: time.Now()}, ok: true}

	if _, err := o.RunCycle(context.Background(), []string{"parser.go"}); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !strings.Contains(ag.prompt, "left a TODO in parser.go") {
		t.Error("prompt missing transcript excerpt")
	}
	if !strings.Contains(ag.prompt, "parser.go") {
		t.Error("prompt missing changed file")
	}
}
