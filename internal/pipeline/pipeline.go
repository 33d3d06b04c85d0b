// Package pipeline turns a cycle context into a derived analysis and a
// rendered instruction payload for the external agent.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tyler-jewell/claude-code-creeper/internal/transcript"
)

// Context carries everything one cycle knows about the project. It is built
// fresh per cycle and read-only once handed to the pipeline. Transcript,
// GitLog, and GitDiffStat are best-effort and may be absent.
type Context struct {
	ProjectPath  string
	ChangedFiles []string
	Transcript   []transcript.Entry
	GitLog       string
	GitDiffStat  string
}

// Pattern is one improvement opportunity detected by a domain.
type Pattern struct {
	Domain      string
	Description string
	Paths       []string
}

// Analysis is the union of every domain's detections for one cycle.
type Analysis struct {
	Patterns []Pattern
}

// PatternNames returns "domain: description" labels for history records.
func (a *Analysis) PatternNames() []string {
	names := make([]string, 0, len(a.Patterns))
	for _, p := range a.Patterns {
		names = append(names, p.Domain+": "+p.Description)
	}
	return names
}

// Domain is a pluggable analyzer. Implementations inspect the context and
// report improvement patterns; they must not mutate it.
type Domain interface {
	Name() string
	Detect(ctx *Context) []Pattern
}

// Pipeline runs a fixed set of domains over a context.
type Pipeline struct {
	domains []Domain
}

// New returns a Pipeline over the given domains.
func New(domains ...Domain) *Pipeline {
	return &Pipeline{domains: domains}
}

// Default returns the built-in domain catalog.
func Default() *Pipeline {
	return New(&todoDomain{}, &testGapDomain{})
}

// Analyze runs every domain and collects their patterns. An empty context
// yields an empty analysis, never an error.
func (p *Pipeline) Analyze(ctx *Context) *Analysis {
	a := &Analysis{}
	for _, d := range p.domains {
		a.Patterns = append(a.Patterns, d.Detect(ctx)...)
	}
	return a
}

// maxTranscriptEntries bounds how much session history lands in the prompt.
const maxTranscriptEntries = 30

// RenderPrompt formats the cycle context and analysis as the agent's
// instruction payload.
func (p *Pipeline) RenderPrompt(ctx *Context, a *Analysis) string {
	var buf strings.Builder

	buf.WriteString("Review the recent activity in this project and make small, safe improvements.\n")

	if len(ctx.ChangedFiles) > 0 {
		buf.WriteString("\n## Recently Changed Files\n\n")
		for _, f := range ctx.ChangedFiles {
			buf.WriteString("- " + f + "\n")
		}
	}

	if len(a.Patterns) > 0 {
		buf.WriteString("\n## Detected Patterns\n\n")
		for _, pat := range a.Patterns {
			buf.WriteString(fmt.Sprintf("- [%s] %s", pat.Domain, pat.Description))
			if len(pat.Paths) > 0 {
				buf.WriteString(" (" + strings.Join(pat.Paths, ", ") + ")")
			}
			buf.WriteString("\n")
		}
	}

	if len(ctx.Transcript) > 0 {
		buf.WriteString("\n## Session Transcript Excerpt\n\n```\n")
		entries := ctx.Transcript
		if len(entries) > maxTranscriptEntries {
			entries = entries[len(entries)-maxTranscriptEntries:]
		}
		for _, e := range entries {
			if e.Kind == transcript.KindUnknown {
				continue
			}
			buf.WriteString(e.Kind + ": " + e.Text + "\n")
		}
		buf.WriteString("```\n")
	}

	if ctx.GitLog != "" {
		buf.WriteString("\n## Recent Git History\n\n```\n")
		buf.WriteString(ctx.GitLog)
		buf.WriteString("\n```\n")
	}

	if ctx.GitDiffStat != "" {
		buf.WriteString("\n## Uncommitted Changes\n\n```\n")
		buf.WriteString(ctx.GitDiffStat)
		buf.WriteString("\n```\n")
	}

	return buf.String()
}

// SystemPrompt returns the appended system instruction for every invocation.
func (p *Pipeline) SystemPrompt() string {
	return "You are an automated maintenance agent. Make only small, focused, " +
		"low-risk improvements: fix TODOs, add missing tests, tighten error " +
		"handling, improve naming. Never rewrite working code wholesale, never " +
		"change public APIs, and never touch files outside the project."
}

// sourceExts are file extensions the built-in domains treat as source code.
var sourceExts = map[string]bool{
	".go": true, ".py": true, ".ts": true, ".tsx": true,
	".js": true, ".jsx": true, ".rs": true, ".rb": true, ".java": true,
}

func ext(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i:]
	}
	return ""
}

func sortedUnique(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
