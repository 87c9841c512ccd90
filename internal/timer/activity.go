package timer

import (
	"fmt"
	"strings"
)

// Activity tags an interval with what the time was spent on.
type Activity string

// Known activities.
const (
	ActivityStudy      Activity = "Study"
	ActivityReading    Activity = "Reading"
	ActivityCoding     Activity = "Coding"
	ActivityMeditation Activity = "Meditation"
	ActivityWorkout    Activity = "Workout"
	ActivityOther      Activity = "Other"
)

// Activities lists every known activity in display order.
var Activities = []Activity{
	ActivityStudy,
	ActivityReading,
	ActivityCoding,
	ActivityMeditation,
	ActivityWorkout,
	ActivityOther,
}

// ParseActivity matches s case-insensitively against the known activities.
func ParseActivity(s string) (Activity, error) {
	for _, a := range Activities {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidActivity, s)
}

// Valid reports whether a is one of the known activities.
func (a Activity) Valid() bool {
	for _, known := range Activities {
		if a == known {
			return true
		}
	}
	return false
}

// Next returns the activity after a in display order, wrapping around.
func (a Activity) Next() Activity {
	for i, known := range Activities {
		if a == known {
			return Activities[(i+1)%len(Activities)]
		}
	}
	return Activities[0]
}
