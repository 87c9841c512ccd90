package logstore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/npratt/tempo/internal/api"
)

// LogStore is the storage used by the HTTP handlers.
type LogStore interface {
	Append(ctx context.Context, profileID string, rec api.TimerLog) (api.TimerLog, error)
	TotalBetween(ctx context.Context, profileID string, from, to time.Time) (int64, error)
	Recent(ctx context.Context, profileID string, limit int) ([]api.TimerLog, error)
}

const profileKey = "profile_id"

// Server serves the timer log API.
type Server struct {
	store  LogStore
	router *gin.Engine
	logger *slog.Logger
	clock  clockwork.Clock
	loc    *time.Location
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for day boundaries.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithLocation sets the time zone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		s.loc = loc
	}
}

// NewServer creates the API server over store.
func NewServer(store LogStore, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		store:  store,
		router: router,
		logger: logger,
		clock:  clockwork.NewRealClock(),
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}

	router.Use(s.logRequests)
	router.GET(api.PathHealth, s.handleHealth)

	scoped := router.Group("/", s.requireProfile)
	{
		scoped.POST(api.PathTimerLog, s.handleAppend)
		scoped.GET(api.PathTimerLog, s.handleDailyTotal)
		scoped.GET(api.PathRecentTimes, s.handleRecent)
		scoped.GET(api.PathCurrentStreak, s.handleCurrentStreak)
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("log API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(c *gin.Context) {
	start := s.clock.Now()
	c.Next()
	s.logger.Debug("log API request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", s.clock.Since(start),
	)
}

func (s *Server) requireProfile(c *gin.Context) {
	profileID := c.GetHeader(api.ProfileHeader)
	if profileID == "" {
		s.writeError(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		c.Abort()
		return
	}
	c.Set(profileKey, profileID)
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAppend(c *gin.Context) {
	var req api.TimerLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	rec, err := ParseRequest(req)
	if err != nil {
		if errors.Is(err, ErrMissingFields) {
			s.writeError(c, http.StatusBadRequest, "missing_fields", "Missing required fields")
			return
		}
		s.writeError(c, http.StatusBadRequest, "invalid_interval", err.Error())
		return
	}

	created, err := s.store.Append(c.Request.Context(), c.GetString(profileKey), rec)
	if err != nil {
		if errors.Is(err, ErrInvalidInterval) {
			s.writeError(c, http.StatusBadRequest, "invalid_interval", err.Error())
			return
		}
		s.logger.Error("error creating timer log", "error", err)
		s.writeError(c, http.StatusInternalServerError, "internal", "Internal Server Error")
		return
	}
	c.JSON(http.StatusOK, created)
}

func (s *Server) handleDailyTotal(c *gin.Context) {
	todayStart, tomorrowStart := s.dayBounds(0)
	total, err := s.store.TotalBetween(c.Request.Context(), c.GetString(profileKey), todayStart, tomorrowStart)
	if err != nil {
		s.logger.Error("error reading daily total", "error", err)
		s.writeError(c, http.StatusInternalServerError, "internal", "Internal Server Error")
		return
	}
	c.JSON(http.StatusOK, api.DailyTotalResponse{TotalMicroseconds: total})
}

func (s *Server) handleRecent(c *gin.Context) {
	logs, err := s.store.Recent(c.Request.Context(), c.GetString(profileKey), api.RecentLimit)
	if err != nil {
		s.logger.Error("error reading recent logs", "error", err)
		s.writeError(c, http.StatusInternalServerError, "internal", "Internal Server Error")
		return
	}
	if logs == nil {
		logs = []api.TimerLog{}
	}
	c.JSON(http.StatusOK, api.RecentTimesResponse{Success: "recent times", Logs: logs})
}

func (s *Server) handleCurrentStreak(c *gin.Context) {
	ctx := c.Request.Context()
	profileID := c.GetString(profileKey)
	todayStart, tomorrowStart := s.dayBounds(0)
	yesterdayStart, _ := s.dayBounds(-1)

	today, err := s.store.TotalBetween(ctx, profileID, todayStart, tomorrowStart)
	if err != nil {
		s.logger.Error("error reading today total", "error", err)
		s.writeError(c, http.StatusInternalServerError, "internal", "Internal Server Error")
		return
	}
	yesterday, err := s.store.TotalBetween(ctx, profileID, yesterdayStart, todayStart)
	if err != nil {
		s.logger.Error("error reading yesterday total", "error", err)
		s.writeError(c, http.StatusInternalServerError, "internal", "Internal Server Error")
		return
	}
	c.JSON(http.StatusOK, api.CurrentStreakResponse{TodayTime: today, YesterdayTime: yesterday})
}

// dayBounds returns [start, end) of the local day offset days from today.
func (s *Server) dayBounds(offset int) (time.Time, time.Time) {
	now := s.clock.Now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day()+offset, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *Server) writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, api.ErrorResponse{
		GeneratedAt: s.clock.Now().UTC(),
		Error:       api.APIError{Code: code, Message: message},
	})
}
