package timer

import "time"

// StopReason says why an engine stopped its current segment.
type StopReason int

const (
	// UserStop is an explicit stop from the user.
	UserStop StopReason = iota
	// NaturalCompletion means the segment ran to zero.
	NaturalCompletion
	// IntervalTransition means a pomodoro segment ended and the next began.
	IntervalTransition
)

func (r StopReason) String() string {
	switch r {
	case UserStop:
		return "user_stop"
	case NaturalCompletion:
		return "natural_completion"
	case IntervalTransition:
		return "interval_transition"
	default:
		return "unknown"
	}
}

// Interval is one finished segment of tracked time.
// Duration is the active time between StartTime and EndTime, net of pauses.
type Interval struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Activity  Activity
	Mode      Mode
	Reason    StopReason
}

// newInterval finalizes a segment. paused is subtracted from the wall span
// and the result is clamped at zero.
func newInterval(mode Mode, activity Activity, start, end time.Time, paused time.Duration, reason StopReason) Interval {
	d := end.Sub(start) - paused
	if d < 0 {
		d = 0
	}
	return Interval{
		StartTime: start,
		EndTime:   end,
		Duration:  d,
		Activity:  activity,
		Mode:      mode,
		Reason:    reason,
	}
}
