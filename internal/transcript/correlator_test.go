package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTranscript writes lines to a .jsonl file under a per-session subdir
// and pins its mtime.
func writeTranscript(t *testing.T, store, session, name string, mod time.Time, lines ...string) string {
	t.Helper()
	dir := filepath.Join(store, session)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
	return path
}

func cwdLine(project string) string {
	return fmt.Sprintf(`{"type":"user","cwd":"%s","message":{"role":"user","content":"hi"}}`, project)
}

func TestFind_MatchesProjectPath(t *testing.T) {
	store := t.TempDir()
	project := "/home/dev/widgets"
	mod := time.Now().Add(-time.Hour)
	want := writeTranscript(t, store, "session-a", "x.jsonl", mod, cwdLine(project))
	writeTranscript(t, store, "session-b", "y.jsonl", mod, cwdLine("/home/dev/other"))

	c := NewCorrelator(store)
	got, ok := c.Find(project, time.Time{})
	if !ok {
		t.Fatal("no transcript found")
	}
	if got.Path != want {
		t.Fatalf("Path = %q, want %q", got.Path, want)
	}
}

func TestFind_NewestModTimeWins(t *testing.T) {
	store := t.TempDir()
	project := "/home/dev/widgets"
	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-time.Minute)
	writeTranscript(t, store, "s1", "old.jsonl", old, cwdLine(project))
	want := writeTranscript(t, store, "s2", "new.jsonl", recent, cwdLine(project))

	c := NewCorrelator(store)
	got, ok := c.Find(project, time.Time{})
	if !ok {
		t.Fatal("no transcript found")
	}
	if got.Path != want {
		t.Fatalf("Path = %q, want %q", got.Path, want)
	}
	if !got.ModTime.After(old) {
		t.Fatalf("ModTime = %v, want after %v", got.ModTime, old)
	}
}

func TestFind_SinceFiltersOldCandidates(t *testing.T) {
	store := t.TempDir()
	project := "/home/dev/widgets"
	mod := time.Now().Add(-2 * time.Hour)
	writeTranscript(t, store, "s1", "old.jsonl", mod, cwdLine(project))

	c := NewCorrelator(store)
	if _, ok := c.Find(project, time.Now().Add(-time.Hour)); ok {
		t.Fatal("found a transcript older than since")
	}
	if _, ok := c.Find(project, time.Time{}); !ok {
		t.Fatal("zero since should be unbounded")
	}
}

func TestFind_BoundedPrefixScan(t *testing.T) {
	store := t.TempDir()
	project := "/home/dev/widgets"
	mod := time.Now().Add(-time.Hour)

	// Match only at line N+1 of an N-line scan window: must not be found.
	filler := make([]string, 0, DefaultScanLines+1)
	for i := 0; i < DefaultScanLines; i++ {
		filler = append(filler, `{"type":"system","level":"info"}`)
	}
	filler = append(filler, cwdLine(project))
	writeTranscript(t, store, "s1", "deep.jsonl", mod, filler...)

	c := NewCorrelator(store)
	if _, ok := c.Find(project, time.Time{}); ok {
		t.Fatal("matched beyond the bounded scan window")
	}

	// The same content with the match at the final in-window line is found.
	within := append([]string{}, filler[:DefaultScanLines-1]...)
	within = append(within, cwdLine(project))
	writeTranscript(t, store, "s2", "shallow.jsonl", mod, within...)
	if _, ok := c.Find(project, time.Time{}); !ok {
		t.Fatal("did not match at the edge of the scan window")
	}
}

func TestFind_DirectoryNameHeuristic(t *testing.T) {
	store := t.TempDir()
	project := "/home/dev/widgets"
	mod := time.Now().Add(-time.Hour)
	// No absolute path, but a /widgets/ mention within the prefix.
	writeTranscript(t, store, "s1", "weak.jsonl", mod,
		`{"type":"user","message":{"role":"user","content":"see src in /widgets/ for details"}}`)

	c := NewCorrelator(store)
	if _, ok := c.Find(project, time.Time{}); !ok {
		t.Fatal("directory-name heuristic did not match")
	}
}

func TestFind_MissingStore(t *testing.T) {
	c := NewCorrelator(filepath.Join(t.TempDir(), "nope"))
	if _, ok := c.Find("/home/dev/widgets", time.Time{}); ok {
		t.Fatal("found a transcript in a missing store")
	}
}

func TestFind_IgnoresNonTranscriptFiles(t *testing.T) {
	store := t.TempDir()
	project := "/home/dev/widgets"
	dir := filepath.Join(store, "s1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(project), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewCorrelator(store)
	if _, ok := c.Find(project, time.Time{}); ok {
		t.Fatal("matched a non-.jsonl file")
	}
}
