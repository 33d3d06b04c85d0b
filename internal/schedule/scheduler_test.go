package schedule

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestScheduler(wait time.Duration) (*Scheduler, *fakeClock) {
	s := New(wait)
	clock := newFakeClock()
	s.SetClock(clock.now)
	return s, clock
}

func TestAdd_UnionWithinWindow(t *testing.T) {
	s, clock := newTestScheduler(time.Minute)

	s.Add([]string{"a.go"})
	clock.advance(10 * time.Second)
	s.Add([]string{"a.go", "b.go"})

	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", s.Pending())
	}

	clock.advance(time.Minute)
	if !s.Due() {
		t.Fatal("expected Due after wait elapsed")
	}
	taken := s.Take()
	if len(taken) != 2 || taken[0] != "a.go" || taken[1] != "b.go" {
		t.Fatalf("taken = %v", taken)
	}
	// Exactly one cycle: nothing left pending.
	if s.Pending() != 0 {
		t.Fatalf("Pending after Take = %d", s.Pending())
	}
	s.Done()
	if s.Due() {
		t.Fatal("Due with empty pending set")
	}
}

func TestAdd_ResetsDeadline(t *testing.T) {
	s, clock := newTestScheduler(time.Minute)

	s.Add([]string{"a.go"})
	first := s.Deadline()

	clock.advance(30 * time.Second)
	s.Add([]string{"b.go"})
	second := s.Deadline()

	want := clock.now().Add(time.Minute)
	if !second.Equal(want) {
		t.Fatalf("deadline = %v, want %v", second, want)
	}
	if !second.After(first) {
		t.Fatalf("deadline did not move forward: %v -> %v", first, second)
	}

	// The original deadline passing is not enough once reset.
	clock.advance(31 * time.Second)
	if s.Due() {
		t.Fatal("fired at the replaced deadline")
	}
	clock.advance(30 * time.Second)
	if !s.Due() {
		t.Fatal("did not fire at the reset deadline")
	}
}

func TestAdd_EmptyDeltaDoesNotArm(t *testing.T) {
	s, clock := newTestScheduler(time.Minute)
	s.Add(nil)
	clock.advance(2 * time.Minute)
	if s.Due() {
		t.Fatal("Due without any changes")
	}
	if !s.Deadline().IsZero() {
		t.Fatalf("deadline armed by empty delta: %v", s.Deadline())
	}
}

func TestAccumulateWhileRunning(t *testing.T) {
	s, clock := newTestScheduler(time.Minute)

	s.Add([]string{"a.go"})
	clock.advance(time.Minute)
	if !s.Due() {
		t.Fatal("expected Due")
	}
	_ = s.Take()

	// Changes during a running cycle accumulate but never trigger.
	s.Add([]string{"c.go"})
	clock.advance(5 * time.Minute)
	if s.Due() {
		t.Fatal("Due while a cycle is running")
	}

	s.Done()
	if !s.Due() {
		t.Fatal("accumulated changes not due after cycle finished")
	}
	taken := s.Take()
	if len(taken) != 1 || taken[0] != "c.go" {
		t.Fatalf("taken = %v", taken)
	}
}

func TestTake_ClearsDeadline(t *testing.T) {
	s, clock := newTestScheduler(time.Second)
	s.Add([]string{"a.go"})
	clock.advance(time.Second)
	_ = s.Take()
	s.Done()
	if !s.Deadline().IsZero() {
		t.Fatalf("deadline survived Take: %v", s.Deadline())
	}
}
