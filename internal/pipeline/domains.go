package pipeline

import (
	"strings"

	"github.com/tyler-jewell/claude-code-creeper/internal/transcript"
)

// todoDomain flags unfinished work mentioned in the session transcript.
type todoDomain struct{}

func (d *todoDomain) Name() string { return "todos" }

func (d *todoDomain) Detect(ctx *Context) []Pattern {
	var paths []string
	var mentioned bool
	for _, e := range ctx.Transcript {
		if e.Kind != transcript.KindUser && e.Kind != transcript.KindAssistant {
			continue
		}
		upper := strings.ToUpper(e.Text)
		if strings.Contains(upper, "TODO") || strings.Contains(upper, "FIXME") {
			mentioned = true
			for _, f := range ctx.ChangedFiles {
				if strings.Contains(e.Text, f) {
					paths = append(paths, f)
				}
			}
		}
	}
	if !mentioned {
		return nil
	}
	return []Pattern{{
		Domain:      d.Name(),
		Description: "session left TODO/FIXME work unfinished",
		Paths:       sortedUnique(paths),
	}}
}

// testGapDomain flags changed source files with no corresponding test change
// in the same change set.
type testGapDomain struct{}

func (d *testGapDomain) Name() string { return "tests" }

func (d *testGapDomain) Detect(ctx *Context) []Pattern {
	changedTests := make(map[string]bool)
	for _, f := range ctx.ChangedFiles {
		if isTestFile(f) {
			changedTests[f] = true
		}
	}

	var untested []string
	for _, f := range ctx.ChangedFiles {
		if isTestFile(f) || !sourceExts[ext(f)] {
			continue
		}
		if !hasCompanionTest(f, changedTests) {
			untested = append(untested, f)
		}
	}
	if len(untested) == 0 {
		return nil
	}
	return []Pattern{{
		Domain:      d.Name(),
		Description: "source changes without matching test changes",
		Paths:       sortedUnique(untested),
	}}
}

func isTestFile(path string) bool {
	base := path
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	return strings.HasSuffix(base, "_test.go") ||
		strings.HasPrefix(base, "test_") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.")
}

func hasCompanionTest(path string, changedTests map[string]bool) bool {
	e := ext(path)
	stem := strings.TrimSuffix(path, e)
	candidates := []string{
		stem + "_test" + e,
		stem + ".test" + e,
		stem + ".spec" + e,
	}
	for _, c := range candidates {
		if changedTests[c] {
			return true
		}
	}
	return false
}
