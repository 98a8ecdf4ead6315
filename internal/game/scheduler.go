package game

import "time"

// Scheduler schedules fire-and-forget delayed callbacks. Timers are never
// cancelled; stale callbacks are suppressed by the generation-token check
// in the engine, so the only requirement here is that fn eventually runs.
// Tests substitute an implementation with simulated time.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

type wallClock struct{}

// NewWallClockScheduler returns a Scheduler backed by time.AfterFunc.
func NewWallClockScheduler() Scheduler {
	return wallClock{}
}

func (wallClock) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
