package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/npratt/tempo/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// debugLogName is the file the TUI logs to, next to the hub log.
const debugLogName = "tempo-debug.log"

// TUILoggerResult contains the results of setting up logging for TUI mode.
type TUILoggerResult struct {
	Logger   *slog.Logger
	LogFile  io.WriteCloser
	FilePath string
}

// Close closes the log file if it was opened.
func (r *TUILoggerResult) Close() error {
	if r.LogFile != nil {
		return r.LogFile.Close()
	}
	return nil
}

// SetupTUILogger creates a logger that writes to a rotating file instead of stderr.
// This prevents log output from corrupting the TUI display.
func SetupTUILogger(logDir string, level slog.Leveler, rotationCfg config.LogRotationConfig) (*TUILoggerResult, error) {
	return SetupFileLogger(filepath.Join(logDir, debugLogName), level, rotationCfg), nil
}

// SetupFileLogger creates a JSON logger writing to path through lumberjack,
// rotated according to rotationCfg. The background hub logs this way since
// its stderr is detached.
func SetupFileLogger(path string, level slog.Leveler, rotationCfg config.LogRotationConfig) *TUILoggerResult {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotationCfg.MaxSizeMB,
		MaxBackups: rotationCfg.MaxBackups,
		MaxAge:     rotationCfg.MaxAgeDays,
		Compress:   rotationCfg.Compress,
	}

	return &TUILoggerResult{
		Logger:   slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})),
		LogFile:  w,
		FilePath: path,
	}
}

// SetupTUILoggerWithWriter creates a logger that writes to the given writer.
// This is useful for testing where we want to capture the output.
func SetupTUILoggerWithWriter(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
