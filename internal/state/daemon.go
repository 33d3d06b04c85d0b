package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
)

// DaemonRecord describes the single daemon process allowed per state
// directory. Enforcement is a best-effort pid probe, not a lock: two daemons
// racing the record file can both start. That limitation is deliberate.
type DaemonRecord struct {
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	ProjectPath string    `json:"project_path"`
	Interval    int       `json:"interval"`
	AutoApply   bool      `json:"auto_apply"`
}

func (s *Store) daemonFile() string { return filepath.Join(s.dir, "daemon.json") }
func (s *Store) pidFile() string    { return filepath.Join(s.dir, "creeper.pid") }

// WriteDaemon persists the daemon record and the plain-text pid file.
func (s *Store) WriteDaemon(rec *DaemonRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.daemonFile(), data, 0644); err != nil {
		return err
	}
	return writeFileAtomic(s.pidFile(), []byte(strconv.Itoa(rec.PID)+"\n"), 0644)
}

// ReadDaemon returns the recorded daemon, or nil when absent or corrupt.
func (s *Store) ReadDaemon() *DaemonRecord {
	data, err := os.ReadFile(s.daemonFile())
	if err != nil {
		return nil
	}
	var rec DaemonRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	return &rec
}

// DeleteDaemon removes the daemon record and pid file. Already-absent files
// are not an error.
func (s *Store) DeleteDaemon() error {
	for _, path := range []string{s.daemonFile(), s.pidFile()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Alive probes a process id without side effects.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

// LiveDaemon returns the daemon record when its process is alive. A record
// whose process is dead is deleted and nil is returned.
func (s *Store) LiveDaemon() *DaemonRecord {
	rec := s.ReadDaemon()
	if rec == nil {
		return nil
	}
	if !Alive(rec.PID) {
		_ = s.DeleteDaemon()
		return nil
	}
	return rec
}
