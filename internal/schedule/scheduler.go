// Package schedule accumulates change sets and debounces cycle triggers.
package schedule

import (
	"sync"
	"time"
)

// Scheduler is a single-flight debounce trigger. Change sets accumulate into
// one pending set; each addition pushes the trigger deadline out to wait past
// the most recent change. There is only ever one pending deadline; arming a
// new one replaces the old before it can fire.
//
// The orchestrator's poll loop is the only goroutine that normally touches a
// Scheduler, but the fields are mutex-guarded so a concurrent caller (status
// queries, tests) observes a consistent state.
type Scheduler struct {
	mu       sync.Mutex
	wait     time.Duration
	now      func() time.Time
	pending  []string
	member   map[string]bool
	deadline time.Time
	running  bool
}

// New returns a Scheduler that fires wait after the most recent change.
func New(wait time.Duration) *Scheduler {
	return &Scheduler{
		wait:   wait,
		now:    time.Now,
		member: make(map[string]bool),
	}
}

// SetClock replaces the time source. Tests inject a fake clock here.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Add unions paths into the pending set, preserving first-seen order, and
// resets the trigger deadline to wait from now. Empty deltas are ignored and
// do not touch the deadline.
func (s *Scheduler) Add(paths []string) {
	if len(paths) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		if !s.member[p] {
			s.member[p] = true
			s.pending = append(s.pending, p)
		}
	}
	s.deadline = s.now().Add(s.wait)
}

// Due reports whether a cycle should start: changes are pending, the
// deadline has passed, and no cycle is in flight.
func (s *Scheduler) Due() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || len(s.pending) == 0 {
		return false
	}
	return !s.now().Before(s.deadline)
}

// Take atomically snapshots and clears the pending set and marks a cycle as
// running. Changes added while running accumulate for the cycle after this
// one; the running cycle is never interrupted.
func (s *Scheduler) Take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := s.pending
	s.pending = nil
	s.member = make(map[string]bool)
	s.deadline = time.Time{}
	s.running = true
	return taken
}

// Done marks the running cycle as finished.
func (s *Scheduler) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Pending returns the number of accumulated paths.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Deadline returns the current trigger deadline, or the zero time when
// nothing is pending.
func (s *Scheduler) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}
