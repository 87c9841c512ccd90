// Package api holds the wire types of the timer log HTTP API.
package api

import "time"

// ProfileHeader scopes every request to one user profile.
const ProfileHeader = "X-Profile-ID"

// Routes.
const (
	PathTimerLog      = "/timer-log"
	PathRecentTimes   = "/recent-times"
	PathCurrentStreak = "/current-streak"
	PathHealth        = "/healthz"
)

// RecentLimit is the number of logs returned by the recent times route.
const RecentLimit = 20

// TimerLogRequest is the body of POST /timer-log. Duration is in milliseconds.
type TimerLogRequest struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Duration  *int64 `json:"duration"`
	Activity  string `json:"activity"`
}

// TimerLog is one stored interval.
type TimerLog struct {
	ID        string    `json:"id,omitempty"`
	ProfileID string    `json:"profileId,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Duration  int64     `json:"duration"`
	Activity  string    `json:"activity"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// DailyTotalResponse is returned by GET /timer-log. The field name is
// historical; the value is in milliseconds.
type DailyTotalResponse struct {
	TotalMicroseconds int64 `json:"totalMicroseconds"`
}

// RecentTimesResponse is returned by GET /recent-times.
type RecentTimesResponse struct {
	Success string     `json:"success"`
	Logs    []TimerLog `json:"logs"`
}

// CurrentStreakResponse is returned by GET /current-streak. Times are in
// milliseconds.
type CurrentStreakResponse struct {
	TodayTime     int64 `json:"todayTime"`
	YesterdayTime int64 `json:"yesterdayTime"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	GeneratedAt time.Time `json:"generated_at"`
	Error       APIError  `json:"error"`
}
