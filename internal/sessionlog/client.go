// Package sessionlog submits finished intervals to the timer log API.
//
// Submission is a single attempt. A rejected or failed interval is reported
// to the caller and dropped; nothing is queued for retry.
package sessionlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/npratt/tempo/internal/api"
)

// Sentinel errors.
var (
	// ErrRejected means the API refused the request (4xx).
	ErrRejected = errors.New("log API rejected request")
	// ErrTransport means the request did not get a usable answer
	// (network failure or 5xx).
	ErrTransport = errors.New("log API unavailable")
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// StatusError carries the HTTP status of a failed call.
type StatusError struct {
	StatusCode int
	Body       string
	kind       error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("%v: status %d: %s", e.kind, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// Client talks to the timer log API.
type Client struct {
	baseURL string
	profile string
	http    *http.Client
}

// NewClient creates a client. timeout bounds each request.
func NewClient(baseURL, profile string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		http:    &http.Client{Timeout: timeout},
	}
}

// Append posts one interval and returns the stored record.
func (c *Client) Append(ctx context.Context, req api.TimerLogRequest) (api.TimerLog, error) {
	var out api.TimerLog
	err := c.do(ctx, http.MethodPost, api.PathTimerLog, req, &out)
	return out, err
}

// DailyTotal returns today's accrued time.
func (c *Client) DailyTotal(ctx context.Context) (time.Duration, error) {
	var out api.DailyTotalResponse
	if err := c.do(ctx, http.MethodGet, api.PathTimerLog, nil, &out); err != nil {
		return 0, err
	}
	return time.Duration(out.TotalMicroseconds) * time.Millisecond, nil
}

// Recent returns the most recent logs, newest first.
func (c *Client) Recent(ctx context.Context) ([]api.TimerLog, error) {
	var out api.RecentTimesResponse
	if err := c.do(ctx, http.MethodGet, api.PathRecentTimes, nil, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

// Comparison returns today's and yesterday's accrued time.
func (c *Client) Comparison(ctx context.Context) (today, yesterday time.Duration, err error) {
	var out api.CurrentStreakResponse
	if err := c.do(ctx, http.MethodGet, api.PathCurrentStreak, nil, &out); err != nil {
		return 0, 0, err
	}
	return time.Duration(out.TodayTime) * time.Millisecond,
		time.Duration(out.YesterdayTime) * time.Millisecond, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.profile != "" {
		req.Header.Set(api.ProfileHeader, c.profile)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := ErrTransport
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = ErrRejected
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: errorMessage(data), kind: kind}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrTransport, path, err)
	}
	return nil
}

// errorMessage extracts the message of an ErrorResponse, or the raw text.
func errorMessage(data []byte) string {
	var er api.ErrorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	return strings.TrimSpace(string(data))
}
