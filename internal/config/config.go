package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultWait is the debounce duration used when the configured value
// cannot be parsed.
const DefaultWait = 5 * time.Minute

type Config struct {
	Interval      int      `yaml:"interval"`       // poll interval in seconds
	Debounce      string   `yaml:"debounce"`       // compact duration: 30s, 5m, 1h
	Model         string   `yaml:"model"`
	AllowedTools  []string `yaml:"allowed_tools"`
	AutoApply     bool     `yaml:"auto_apply"`     // edit the project directly, no worktree
	DryRun        bool     `yaml:"dry_run"`        // log the prompt, never invoke the agent
	Ignore        []string `yaml:"ignore"`         // extra directory names to skip
	TranscriptDir string   `yaml:"transcript_dir"` // override the Claude transcript store
	AgentTimeout  int      `yaml:"agent_timeout"`  // minutes, 0 = unbounded
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Interval: 5,
		Debounce: "5m",
		Model:    "sonnet",
		AllowedTools: []string{
			"Read", "Edit", "Write", "Bash", "Grep", "Glob",
		},
	}
}

// Load reads a YAML config file and returns a validated Config.
// A missing file yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("config: 'interval' must be a positive number of seconds")
	}
	if cfg.AgentTimeout < 0 {
		return fmt.Errorf("config: 'agent_timeout' must be >= 0")
	}
	for _, tool := range cfg.AllowedTools {
		if strings.TrimSpace(tool) == "" {
			return fmt.Errorf("config: 'allowed_tools' entries must be non-empty")
		}
	}
	for _, dir := range cfg.Ignore {
		if strings.ContainsAny(dir, "/\\") {
			return fmt.Errorf("config: 'ignore' entry %q must be a bare directory name", dir)
		}
	}
	return nil
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Wait returns the parsed debounce duration.
func (c *Config) Wait() time.Duration {
	return ParseWait(c.Debounce)
}

var waitRe = regexp.MustCompile(`(?i)^(\d+)(s|m|h)$`)

// ParseWait parses a compact duration of the form <n>s|m|h (case-insensitive).
// Unparseable values fall back to DefaultWait.
func ParseWait(s string) time.Duration {
	m := waitRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return DefaultWait
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return DefaultWait
	}
	switch strings.ToLower(m[2]) {
	case "s":
		return time.Duration(n) * time.Second
	case "m":
		return time.Duration(n) * time.Minute
	default:
		return time.Duration(n) * time.Hour
	}
}
