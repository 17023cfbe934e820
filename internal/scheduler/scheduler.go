// Package scheduler implements the cooperative timer wheel behind every delay
// in tandem: dedup sweeps, worker settle delays and simulated completions.
//
// Timers never run on their own goroutine. The owner of the Scheduler calls
// RunDue from its loop; due callbacks run there, in deadline order, so they
// observe the same single-threaded world as bus handlers.
package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source used by the scheduler and the components it drives.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to. Safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts a manual clock at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TimerID identifies a scheduled callback.
type TimerID uint64

type timer struct {
	id       TimerID
	name     string
	deadline time.Time
	interval time.Duration // zero for one-shot timers
	fn       func()
}

// Scheduler holds pending timers. It is not safe for concurrent use.
type Scheduler struct {
	clock  Clock
	timers map[TimerID]*timer
	nextID TimerID
}

// New creates a scheduler driven by clock. A nil clock means RealClock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock:  clock,
		timers: make(map[TimerID]*timer),
	}
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Now is shorthand for s.Clock().Now().
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// After schedules fn to run once, d from now.
func (s *Scheduler) After(d time.Duration, name string, fn func()) TimerID {
	return s.add(name, d, 0, fn)
}

// Every schedules fn to run every interval until cancelled.
// Non-positive intervals are rejected and return 0.
func (s *Scheduler) Every(interval time.Duration, name string, fn func()) TimerID {
	if interval <= 0 {
		return 0
	}
	return s.add(name, interval, interval, fn)
}

func (s *Scheduler) add(name string, d, interval time.Duration, fn func()) TimerID {
	s.nextID++
	t := &timer{
		id:       s.nextID,
		name:     name,
		deadline: s.clock.Now().Add(d),
		interval: interval,
		fn:       fn,
	}
	s.timers[t.id] = t
	return t.id
}

// Cancel removes a pending timer. Returns false if it already ran or never existed.
func (s *Scheduler) Cancel(id TimerID) bool {
	if _, ok := s.timers[id]; !ok {
		return false
	}
	delete(s.timers, id)
	return true
}

// Pending returns the number of scheduled timers.
func (s *Scheduler) Pending() int {
	return len(s.timers)
}

// PendingNamed returns how many scheduled timers carry name.
func (s *Scheduler) PendingNamed(name string) int {
	n := 0
	for _, t := range s.timers {
		if t.name == name {
			n++
		}
	}
	return n
}

// NextDeadline returns the earliest pending deadline.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for _, t := range s.timers {
		if !found || t.deadline.Before(next) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

// RunDue runs every timer whose deadline has passed and returns how many ran.
// Timers run in (deadline, creation) order. Timers created by a callback are
// eligible in the same call if already due; a timer cancelled by an earlier
// callback does not run. Repeating timers run at most once per call.
func (s *Scheduler) RunDue() int {
	now := s.clock.Now()
	ran := 0
	fired := make(map[TimerID]bool)

	for {
		t := s.earliestDue(now, fired)
		if t == nil {
			return ran
		}

		fired[t.id] = true
		if t.interval > 0 {
			t.deadline = t.deadline.Add(t.interval)
			if !t.deadline.After(now) {
				// Skip missed ticks rather than bursting to catch up.
				t.deadline = now.Add(t.interval)
			}
		} else {
			delete(s.timers, t.id)
		}

		t.fn()
		ran++
	}
}

func (s *Scheduler) earliestDue(now time.Time, fired map[TimerID]bool) *timer {
	due := make([]*timer, 0)
	for _, t := range s.timers {
		if !fired[t.id] && !t.deadline.After(now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}
