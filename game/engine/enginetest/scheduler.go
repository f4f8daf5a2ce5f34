// Package enginetest provides helpers for driving the game engine in tests.
package enginetest

import (
	"sync"
	"time"

	"github.com/peymanfazeli/Memory-game/game/engine"
)

// ManualScheduler records scheduled tasks and runs them only when told to.
// It satisfies engine.Scheduler.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*Task
}

// Task is a task recorded by ManualScheduler
type Task struct {
	s       *ManualScheduler
	Delay   time.Duration
	due     time.Duration
	fn      func()
	stopped bool
	ran     bool
}

// NewManualScheduler creates an empty scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

var _ engine.Scheduler = (*ManualScheduler)(nil)

// AfterFunc records f to run once the scheduler has advanced by d
func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) engine.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &Task{s: m, Delay: d, due: m.now + d, fn: f}
	m.tasks = append(m.tasks, t)
	return t
}

// Stop cancels the task if it has not run yet
func (t *Task) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.ran {
		return false
	}
	t.stopped = true
	return true
}

// Stopped reports whether the task was cancelled before running
func (t *Task) Stopped() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.stopped
}

// Pending returns the number of tasks that are neither run nor stopped
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.stopped && !t.ran {
			n++
		}
	}
	return n
}

// Tasks returns every task recorded so far, in scheduling order
func (m *ManualScheduler) Tasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Task(nil), m.tasks...)
}

// Run executes the task regardless of its due time, even if it was stopped.
// It models a timer whose callback was already in flight when Stop was called.
func (t *Task) Run() {
	t.s.mu.Lock()
	t.ran = true
	t.s.mu.Unlock()
	t.fn()
}

// Advance moves the clock forward by d and runs every live task that became due
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now += d
	var due []*Task
	for _, t := range m.tasks {
		if !t.stopped && !t.ran && t.due <= m.now {
			t.ran = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
	return len(due)
}

// FireAll runs every live task immediately and returns how many ran
func (m *ManualScheduler) FireAll() int {
	m.mu.Lock()
	var live []*Task
	for _, t := range m.tasks {
		if !t.stopped && !t.ran {
			t.ran = true
			live = append(live, t)
		}
	}
	m.mu.Unlock()

	for _, t := range live {
		t.fn()
	}
	return len(live)
}
