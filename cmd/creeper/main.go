package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/tyler-jewell/claude-code-creeper/internal/config"
	"github.com/tyler-jewell/claude-code-creeper/internal/cycle"
	"github.com/tyler-jewell/claude-code-creeper/internal/docs"
	"github.com/tyler-jewell/claude-code-creeper/internal/doctor"
	"github.com/tyler-jewell/claude-code-creeper/internal/state"
	"github.com/tyler-jewell/claude-code-creeper/internal/ux"
	cli "github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:        "creeper",
		Usage:       "Background analysis daemon for Claude Code sessions",
		Description: "Watches a project for file changes, correlates them with Claude session transcripts, and dispatches improvement cycles. Run 'creeper docs' for details.",
		Commands: []*cli.Command{
			initCmd(),
			watchCmd(),
			startCmd(),
			stopCmd(),
			analyzeCmd(),
			statusCmd(),
			historyCmd(),
			doctorCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

// projectFlags are shared by every command that runs cycles.
func projectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "auto-apply", Usage: "Edit the project directly instead of an isolated worktree"},
		&cli.BoolFlag{Name: "dry-run", Usage: "Print the analysis payload without invoking the agent"},
		&cli.IntFlag{Name: "interval", Usage: "Poll interval in seconds"},
		&cli.StringFlag{Name: "debounce", Usage: "Quiet period before a cycle fires (e.g. 5m, 30s)"},
	}
}

// resolveProject validates the positional project argument, defaulting to
// the working directory, and loads its config with flag overrides applied.
func resolveProject(cmd *cli.Command) (string, *config.Config, error) {
	path := cmd.Args().First()
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, err
		}
		path = wd
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", nil, fmt.Errorf("project path %q is not a directory", abs)
	}

	cfg, err := config.Load(filepath.Join(abs, ".creeper", "config.yaml"))
	if err != nil {
		return "", nil, fmt.Errorf("loading config: %w", err)
	}
	if cmd.IsSet("auto-apply") {
		cfg.AutoApply = cmd.Bool("auto-apply")
	}
	if cmd.IsSet("dry-run") {
		cfg.DryRun = cmd.Bool("dry-run")
	}
	if cmd.IsSet("interval") {
		cfg.Interval = int(cmd.Int("interval"))
		if cfg.Interval <= 0 {
			return "", nil, fmt.Errorf("--interval must be positive")
		}
	}
	if cmd.IsSet("debounce") {
		cfg.Debounce = cmd.String("debounce")
	}
	return abs, cfg, nil
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch a project in the foreground and run cycles as changes settle",
		ArgsUsage: "[path]",
		Flags:     projectFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if os.Getenv("CLAUDECODE") != "" {
				return fmt.Errorf("creeper cannot run inside Claude Code (CLAUDECODE env var is set). Run from a regular terminal")
			}

			project, cfg, err := resolveProject(cmd)
			if err != nil {
				return err
			}

			store, err := state.Open(state.DefaultDir())
			if err != nil {
				return err
			}
			if live := store.LiveDaemon(); live != nil {
				return fmt.Errorf("a daemon is already running (pid %d, watching %s). Run 'creeper stop' first", live.PID, live.ProjectPath)
			}

			rec := &state.DaemonRecord{
				PID:         os.Getpid(),
				StartedAt:   time.Now(),
				ProjectPath: project,
				Interval:    cfg.Interval,
				AutoApply:   cfg.AutoApply,
			}
			if err := store.WriteDaemon(rec); err != nil {
				return fmt.Errorf("writing daemon record: %w", err)
			}
			defer func() {
				if err := store.DeleteDaemon(); err != nil {
					ux.Warnf("removing daemon record: %v", err)
				}
			}()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			return cycle.New(cfg, project, store).RunLoop(ctx)
		},
	}
}

func startCmd() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start the watcher as a background daemon",
		ArgsUsage: "[path]",
		Flags:     projectFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if os.Getenv("CLAUDECODE") != "" {
				return fmt.Errorf("creeper cannot run inside Claude Code (CLAUDECODE env var is set). Run from a regular terminal")
			}

			project, cfg, err := resolveProject(cmd)
			if err != nil {
				return err
			}

			store, err := state.Open(state.DefaultDir())
			if err != nil {
				return err
			}
			if live := store.LiveDaemon(); live != nil {
				return fmt.Errorf("a daemon is already running (pid %d, watching %s)", live.PID, live.ProjectPath)
			}

			exe, err := os.Executable()
			if err != nil {
				return err
			}
			logPath := filepath.Join(store.Dir(), "creeper.log")
			logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("opening daemon log: %w", err)
			}
			defer logFile.Close()

			args := []string{"watch", project}
			if cfg.AutoApply {
				args = append(args, "--auto-apply")
			}
			if cfg.DryRun {
				args = append(args, "--dry-run")
			}
			args = append(args, "--interval", fmt.Sprint(cfg.Interval), "--debounce", cfg.Debounce)

			child := exec.Command(exe, args...)
			child.Stdout = logFile
			child.Stderr = logFile
			child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
			if err := child.Start(); err != nil {
				return fmt.Errorf("starting daemon: %w", err)
			}

			ux.Info("daemon started (pid %d), watching %s", child.Process.Pid, project)
			ux.Info("logs: %s", logPath)
			return nil
		},
	}
}

func stopCmd() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Stop the background daemon",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := state.Open(state.DefaultDir())
			if err != nil {
				return err
			}
			rec := store.ReadDaemon()
			if rec == nil || !state.Alive(rec.PID) {
				if err := store.DeleteDaemon(); err != nil {
					return err
				}
				ux.Info("no daemon running")
				return nil
			}
			if err := syscall.Kill(rec.PID, syscall.SIGTERM); err != nil {
				return fmt.Errorf("signalling pid %d: %w", rec.PID, err)
			}
			if err := store.DeleteDaemon(); err != nil {
				return err
			}
			ux.Info("daemon stopped (pid %d)", rec.PID)
			return nil
		},
	}
}

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Run one analysis cycle immediately, skipping the debounce",
		ArgsUsage: "[path]",
		Flags:     projectFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if os.Getenv("CLAUDECODE") != "" {
				return fmt.Errorf("creeper cannot run inside Claude Code (CLAUDECODE env var is set). Run from a regular terminal")
			}

			project, cfg, err := resolveProject(cmd)
			if err != nil {
				return err
			}
			store, err := state.Open(state.DefaultDir())
			if err != nil {
				return err
			}

			orch := cycle.New(cfg, project, store)
			changed, err := changedSinceLastAnalysis(orch, store.LoadProject(project).LastAnalysisTime)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = orch.RunCycle(ctx, changed)
			return err
		},
	}
}

// changedSinceLastAnalysis seeds a one-shot cycle with the files modified
// since the previous cycle, or every tracked file on a project's first run.
func changedSinceLastAnalysis(orch *cycle.Orchestrator, since time.Time) ([]string, error) {
	snapshot, err := orch.Detector.Scan()
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	var changed []string
	for path, mtime := range snapshot {
		if since.IsZero() || mtime.After(since) {
			changed = append(changed, path)
		}
	}
	// The detector itself reports sorted paths; match that here.
	sort.Strings(changed)
	return changed, nil
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show daemon liveness and per-project analysis state",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			project, _, err := resolveProject(cmd)
			if err != nil {
				return err
			}
			store, err := state.Open(state.DefaultDir())
			if err != nil {
				return err
			}
			ux.RenderStatus(store.LiveDaemon(), store.LoadProject(project), store.History(project, 5))
			return nil
		},
	}
}

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List past analysis cycles, most recent first",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "Maximum records to show"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			project, _, err := resolveProject(cmd)
			if err != nil {
				return err
			}
			store, err := state.Open(state.DefaultDir())
			if err != nil {
				return err
			}
			ux.RenderHistory(store.History(project, int(cmd.Int("limit"))))
			return nil
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Diagnose the environment creeper depends on",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			project, cfg, err := resolveProject(cmd)
			if err != nil {
				return err
			}
			store, err := state.Open(state.DefaultDir())
			if err != nil {
				return err
			}
			checks := doctor.Run(project, cfg.TranscriptDir, store)
			doctor.Render(checks)
			if !doctor.Healthy(checks) {
				return fmt.Errorf("required checks failed")
			}
			return nil
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-10s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'creeper docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}

const defaultConfigYAML = `# creeper configuration
#
# interval: seconds between change-detection polls
# debounce: quiet period after the last change before a cycle fires (30s, 5m, 1h)
# model: model passed to the claude CLI
# auto_apply: edit the project directly instead of an isolated worktree
# dry_run: print the analysis payload instead of invoking the agent
# ignore: extra directory names to skip while watching
# agent_timeout: minutes before an agent invocation is cancelled (0 = unbounded)
interval: 5
debounce: 5m
model: sonnet
allowed_tools:
  - Read
  - Edit
  - Write
  - Bash
  - Grep
  - Glob
auto_apply: false
dry_run: false
ignore: []
agent_timeout: 0
`

func initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a default .creeper/config.yaml",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				path = wd
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			cfgPath := filepath.Join(abs, ".creeper", "config.yaml")
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists", cfgPath)
			}
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, []byte(defaultConfigYAML), 0644); err != nil {
				return err
			}
			ux.Info("wrote %s", cfgPath)
			return nil
		},
	}
}
