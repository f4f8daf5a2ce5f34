package engine

import "time"

// Timer is a pending scheduled task that can be cancelled
type Timer interface {
	// Stop cancels the task. It returns false if the task already ran or was stopped.
	Stop() bool
}

// Scheduler runs f once after d has elapsed
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SchedulerFunc adapts a function to the Scheduler interface
type SchedulerFunc func(d time.Duration, f func()) Timer

// AfterFunc calls fn(d, f)
func (fn SchedulerFunc) AfterFunc(d time.Duration, f func()) Timer {
	return fn(d, f)
}

// WallClock schedules tasks on the runtime timer
var WallClock Scheduler = SchedulerFunc(func(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
})
