// Package logstore is the reference timer log API: a sqlite-backed store
// of finished intervals and the HTTP handlers that serve it.
package logstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/npratt/tempo/internal/api"
	"github.com/npratt/tempo/internal/timer"
)

var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrMissingFields   = errors.New("missing required fields")
)

// Store persists timer logs in sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ParseRequest validates a POST body and converts it to a TimerLog.
// Errors wrap ErrMissingFields or ErrInvalidInterval.
func ParseRequest(req api.TimerLogRequest) (api.TimerLog, error) {
	if req.StartTime == "" || req.EndTime == "" || req.Duration == nil || req.Activity == "" {
		return api.TimerLog{}, ErrMissingFields
	}
	start, err := time.Parse(time.RFC3339Nano, req.StartTime)
	if err != nil {
		return api.TimerLog{}, fmt.Errorf("%w: startTime: %v", ErrInvalidInterval, err)
	}
	end, err := time.Parse(time.RFC3339Nano, req.EndTime)
	if err != nil {
		return api.TimerLog{}, fmt.Errorf("%w: endTime: %v", ErrInvalidInterval, err)
	}
	rec := api.TimerLog{
		StartTime: start,
		EndTime:   end,
		Duration:  *req.Duration,
		Activity:  req.Activity,
	}
	if err := validate(rec); err != nil {
		return api.TimerLog{}, err
	}
	return rec, nil
}

func validate(rec api.TimerLog) error {
	if !rec.StartTime.Before(rec.EndTime) {
		return fmt.Errorf("%w: startTime must be before endTime", ErrInvalidInterval)
	}
	if rec.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInterval)
	}
	if !timer.Activity(rec.Activity).Valid() {
		return fmt.Errorf("%w: unknown activity %q", ErrInvalidInterval, rec.Activity)
	}
	return nil
}

// Append stores rec for profileID and returns it with ID and CreatedAt set.
func (s *Store) Append(ctx context.Context, profileID string, rec api.TimerLog) (api.TimerLog, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return api.TimerLog{}, fmt.Errorf("profile_id is required")
	}
	if err := validate(rec); err != nil {
		return api.TimerLog{}, err
	}
	rec.ID = uuid.NewString()
	rec.ProfileID = profileID
	rec.CreatedAt = time.Now().UTC()
	rec.StartTime = rec.StartTime.UTC()
	rec.EndTime = rec.EndTime.UTC()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO timer_logs(log_id, profile_id, start_ms, end_ms, duration_ms, activity, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, rec.ID, rec.ProfileID, rec.StartTime.UnixMilli(), rec.EndTime.UnixMilli(), rec.Duration, rec.Activity, ts(rec.CreatedAt))
	if err != nil {
		return api.TimerLog{}, fmt.Errorf("insert timer log: %w", err)
	}
	return rec, nil
}

// TotalBetween sums durations of logs whose start falls in [from, to).
func (s *Store) TotalBetween(ctx context.Context, profileID string, from, to time.Time) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
SELECT SUM(duration_ms) FROM timer_logs
WHERE profile_id = ? AND start_ms >= ? AND start_ms < ?
`, profileID, from.UnixMilli(), to.UnixMilli()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum timer logs: %w", err)
	}
	return total.Int64, nil
}

// Recent returns up to limit logs, newest start first.
func (s *Store) Recent(ctx context.Context, profileID string, limit int) ([]api.TimerLog, error) {
	if limit <= 0 {
		limit = api.RecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT log_id, profile_id, start_ms, end_ms, duration_ms, activity, created_at
FROM timer_logs
WHERE profile_id = ?
ORDER BY start_ms DESC, created_at DESC
LIMIT ?
`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent timer logs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]api.TimerLog, 0, limit)
	for rows.Next() {
		var (
			rec          api.TimerLog
			startMS      int64
			endMS        int64
			createdAtRaw string
		)
		if err := rows.Scan(&rec.ID, &rec.ProfileID, &startMS, &endMS, &rec.Duration, &rec.Activity, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("scan timer log: %w", err)
		}
		rec.StartTime = time.UnixMilli(startMS).UTC()
		rec.EndTime = time.UnixMilli(endMS).UTC()
		if rec.CreatedAt, err = parseTS(createdAtRaw); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timer logs: %w", err)
	}
	return out, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
