package testutil

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/npratt/tempo/internal/api"
)

// CapturedRequest is one request seen by FakeLogAPI.
type CapturedRequest struct {
	Method  string
	Path    string
	Profile string
	Body    api.TimerLogRequest
}

// FakeLogAPI is an http.Handler standing in for the timer log API. It
// records every request and answers with Status (200 when zero). Total is
// returned as today's accrued time in milliseconds.
type FakeLogAPI struct {
	Status int
	Total  int64

	mu       sync.Mutex
	requests []CapturedRequest
}

// ServeHTTP implements http.Handler.
func (f *FakeLogAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cr := CapturedRequest{Method: r.Method, Path: r.URL.Path, Profile: r.Header.Get(api.ProfileHeader)}
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&cr.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, cr)
	status, total := f.Status, f.Total
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.APIError{Code: "x", Message: "nope"}})
		return
	}
	switch {
	case r.Method == http.MethodPost:
		_ = json.NewEncoder(w).Encode(api.TimerLog{ID: "log-1"})
	case r.URL.Path == api.PathTimerLog:
		_ = json.NewEncoder(w).Encode(api.DailyTotalResponse{TotalMicroseconds: total})
	case r.URL.Path == api.PathCurrentStreak:
		_ = json.NewEncoder(w).Encode(api.CurrentStreakResponse{TodayTime: 60000, YesterdayTime: 120000})
	default:
		_ = json.NewEncoder(w).Encode(api.RecentTimesResponse{Success: "recent times", Logs: []api.TimerLog{}})
	}
}

// Requests returns a copy of the recorded requests.
func (f *FakeLogAPI) Requests() []CapturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CapturedRequest(nil), f.requests...)
}
