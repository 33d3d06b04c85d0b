package state

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AnalysisRecord is one append-only history entry per completed cycle,
// immutable once written.
type AnalysisRecord struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Transcript         string    `json:"transcript,omitempty"`
	PatternsDetected   []string  `json:"patterns_detected"`
	ChangesApplied     []string  `json:"changes_applied"`
	PublishedReference string    `json:"published_reference,omitempty"`
}

func (s *Store) historyFile(projectPath string) string {
	return filepath.Join(s.dir, "projects", projectKey(projectPath)+".history.ndjson")
}

// AppendRecord appends one record to the project's history log.
func (s *Store) AppendRecord(projectPath string, rec *AnalysisRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.historyFile(projectPath), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// History returns up to limit records, most recent first. Malformed lines
// are skipped; a missing log is an empty history.
func (s *Store) History(projectPath string, limit int) []AnalysisRecord {
	f, err := os.Open(s.historyFile(projectPath))
	if err != nil {
		return nil
	}
	defer f.Close()

	var records []AnalysisRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec AnalysisRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}

	// Reverse to most-recent-first, then bound.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
