// Package agent invokes the external Claude Code CLI against a working
// directory.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Permission modes passed to the agent. Isolated worktrees get free rein
// because every edit lands on a disposable branch; direct edits to the
// project are limited to accepted edit tools.
const (
	PermissionIsolated = "bypassPermissions"
	PermissionDirect   = "acceptEdits"
)

// Result holds the captured outcome of one agent invocation. Output is the
// combined stdout and stderr; it is captured, not streamed.
type Result struct {
	ExitCode int
	Output   string
}

// Invoker runs the agent binary with a constructed argument set.
type Invoker struct {
	Binary       string
	Model        string
	AllowedTools []string
	Timeout      time.Duration // 0 = unbounded
}

// NewInvoker returns an Invoker for the claude binary.
func NewInvoker(model string, allowedTools []string, timeout time.Duration) *Invoker {
	return &Invoker{
		Binary:       "claude",
		Model:        model,
		AllowedTools: allowedTools,
		Timeout:      timeout,
	}
}

// Args builds the full argument list for an invocation.
func (iv *Invoker) Args(prompt, system, permissionMode string) []string {
	return []string{
		"-p", prompt,
		"--append-system-prompt", system,
		"--output-format", "text",
		"--permission-mode", permissionMode,
		"--allowedTools", strings.Join(iv.AllowedTools, ","),
		"--model", iv.Model,
	}
}

// Invoke runs the agent in dir. A non-zero exit is returned in the Result
// for the caller to log; an error is returned only when the invocation
// itself cannot start or run (missing binary, cancelled context).
func (iv *Invoker) Invoke(ctx context.Context, dir, prompt, system, permissionMode string) (*Result, error) {
	if iv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, iv.Binary, iv.Args(prompt, system, permissionMode)...)
	cmd.Dir = dir

	var captured bytes.Buffer
	cmd.Stdout = &captured
	cmd.Stderr = &captured

	code, err := exitCode(cmd.Run())
	if err != nil {
		return nil, fmt.Errorf("invoking %s: %w", iv.Binary, err)
	}
	return &Result{ExitCode: code, Output: captured.String()}, nil
}
