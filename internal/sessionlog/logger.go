package sessionlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/npratt/tempo/internal/api"
	"github.com/npratt/tempo/internal/timer"
)

// Appender is the part of Client the Logger needs.
type Appender interface {
	Append(ctx context.Context, req api.TimerLogRequest) (api.TimerLog, error)
	DailyTotal(ctx context.Context) (time.Duration, error)
}

// Logger turns finished intervals into log API submissions.
// It implements timer.Recorder.
type Logger struct {
	api     Appender
	filter  *Filter
	logger  *slog.Logger
	onTotal func(time.Duration)
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithFilter drops intervals matched by f.
func WithFilter(f *Filter) LoggerOption {
	return func(l *Logger) {
		l.filter = f
	}
}

// WithDailyTotal is called with the refreshed daily total after every
// successful submission.
func WithDailyTotal(fn func(time.Duration)) LoggerOption {
	return func(l *Logger) {
		l.onTotal = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) LoggerOption {
	return func(l *Logger) {
		l.logger = logger
	}
}

// NewLogger creates a Logger over a.
func NewLogger(a Appender, opts ...LoggerOption) *Logger {
	l := &Logger{api: a, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Request converts an interval to the API body. Timestamps are RFC 3339
// and the duration is in milliseconds.
func Request(iv timer.Interval) api.TimerLogRequest {
	ms := iv.Duration.Milliseconds()
	return api.TimerLogRequest{
		StartTime: iv.StartTime.UTC().Format(time.RFC3339Nano),
		EndTime:   iv.EndTime.UTC().Format(time.RFC3339Nano),
		Duration:  &ms,
		Activity:  string(iv.Activity),
	}
}

// Record submits iv once. Filtered intervals report false without a request.
func (l *Logger) Record(ctx context.Context, iv timer.Interval) (bool, error) {
	if l.filter.Drops(iv.Duration) {
		l.logger.Info("interval dropped by noise filter",
			"duration_ms", iv.Duration.Milliseconds(),
			"band_min_ms", l.filter.Min.Milliseconds(),
			"band_max_ms", l.filter.Max.Milliseconds(),
		)
		return false, nil
	}

	if _, err := l.api.Append(ctx, Request(iv)); err != nil {
		return false, fmt.Errorf("submit interval: %w", err)
	}

	if l.onTotal != nil {
		l.refresh(ctx)
	}
	return true, nil
}

// refresh reads the daily total after a write. Failures only log.
func (l *Logger) refresh(ctx context.Context) {
	total, err := l.api.DailyTotal(ctx)
	if err != nil {
		l.logger.Warn("daily total refresh failed", "error", err)
		return
	}
	l.onTotal(total)
}
