package docs

var topics = []Topic{
	{
		Name:    "config",
		Title:   "Configuration",
		Summary: "The .creeper/config.yaml file and its keys",
		Content: `
CONFIGURATION

creeper reads .creeper/config.yaml from the project root. Every key is
optional; missing keys fall back to defaults.

  interval: 5          # poll interval in seconds
  debounce: 5m         # quiet period after the last change before a cycle
  model: sonnet        # model passed to the claude CLI
  allowed_tools:       # tool allow-list for the agent
    - Read
    - Edit
    - Write
    - Bash
    - Grep
    - Glob
  auto_apply: false    # true: edit the project directly, no worktree or PR
  dry_run: false       # true: log the prompt, never invoke the agent
  ignore:              # extra directory names to skip while watching
    - tmp
  transcript_dir: ""   # override ~/.claude/projects
  agent_timeout: 0     # minutes; 0 waits for the agent indefinitely

The debounce value uses a compact form: a number followed by s, m, or h
(case-insensitive). Anything else falls back to 5m.

Run 'creeper init' to write this file with defaults.
`,
	},
	{
		Name:    "daemon",
		Title:   "The background daemon",
		Summary: "Starting, stopping, and inspecting the watcher",
		Content: `
THE BACKGROUND DAEMON

  creeper watch         run the watcher in the foreground
  creeper start         run it in the background
  creeper stop          stop the background daemon
  creeper status        show liveness, project state, and recent cycles

State lives under ~/.creeper (override with CREEPER_STATE_DIR): a daemon
record, a pid file, and per-project status plus history keyed by a hash of
the project path.

Only one daemon runs per state directory. Enforcement is a best-effort
probe of the recorded pid; a record whose process is gone gets cleaned up
automatically, but there is no true lock. Do not run two daemons for the
same project on purpose.

Background logs go to ~/.creeper/creeper.log.
`,
	},
	{
		Name:    "cycles",
		Title:   "Analysis cycles",
		Summary: "What happens between a file change and a pull request",
		Content: `
ANALYSIS CYCLES

One cycle is: detect → correlate → analyze → isolate → publish → clean up.

File changes are polled and accumulate during a debounce window; each new
change resets the window, so a burst of edits produces exactly one cycle.
When the window closes, creeper looks in the Claude transcript store for
the most recent session that mentions this project, builds an analysis
prompt from the change set, the transcript, and recent git history, and
invokes the claude CLI.

By default the agent works in a disposable git worktree on a fresh
creeper/* branch. If anything was changed, the branch is committed, pushed,
and opened as a pull request; the worktree is always removed afterwards,
also on failure. With auto_apply the agent edits the project directly and
no branch or PR is involved.

Every cycle appends a history record and advances the last-analysis
timestamp, also when it fails, so a broken cycle is never retried against
the same stale transcript forever.
`,
	},
}
