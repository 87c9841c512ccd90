// Package sharedstate holds the timer state that every tab of a session
// agrees on: how many timers are running, the last display value, and when
// the most recent one started.
package sharedstate

import "time"

// Snapshot is the shared timer state as it travels between tabs.
// DisplayTime is in milliseconds. StartTime is nil until a timer has started.
type Snapshot struct {
	IsRunning    bool       `json:"isRunning"`
	DisplayTime  int64      `json:"displayTime"`
	StartTime    *time.Time `json:"startTime"`
	RunningCount int        `json:"runningCount"`
}

// normalize enforces IsRunning == (RunningCount > 0) and a non-negative count.
func (s Snapshot) normalize() Snapshot {
	if s.RunningCount < 0 {
		s.RunningCount = 0
	}
	s.IsRunning = s.RunningCount > 0
	if s.StartTime != nil {
		t := *s.StartTime
		s.StartTime = &t
	}
	return s
}

// Equal reports whether two snapshots carry the same values.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.IsRunning != o.IsRunning || s.DisplayTime != o.DisplayTime || s.RunningCount != o.RunningCount {
		return false
	}
	switch {
	case s.StartTime == nil && o.StartTime == nil:
		return true
	case s.StartTime == nil || o.StartTime == nil:
		return false
	default:
		return s.StartTime.Equal(*o.StartTime)
	}
}
