package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/tempo/internal/config"
	"github.com/npratt/tempo/internal/daemon"
	"github.com/npratt/tempo/internal/shutdown"
)

// hubShutdownTimeout bounds how long the hub waits for connections to drain.
const hubShutdownTimeout = 5 * time.Second

func newHubCmd(logger *slog.Logger, logLevel *slog.LevelVar) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Run the session hub that relays timer state between tabs",
		Long: `Run the hub for this project. Every tab connects to the hub's unix
socket; the hub relays each tab's shared timer state to all other tabs.

A new hub starts a new session: tabs restore persisted shared state only
while the hub that wrote it is still running.

Use --daemon to run in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, projectRoot, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			client := daemon.NewClient(cfg.Paths.Socket)
			if client.IsRunning() {
				return fmt.Errorf("hub already running (socket: %s)", cfg.Paths.Socket)
			}

			pidFile := daemon.NewPIDFile(cfg.Paths.PID)
			if pidFile.CleanupStale(cfg.Paths.Socket) {
				logger.Info("removed stale hub files", "pid_file", cfg.Paths.PID)
			}

			if viper.GetBool(FlagDaemon) {
				shouldExit, _, err := daemon.Daemonize(cfg.Paths.Socket, cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("daemonize: %w", err)
				}
				if shouldExit {
					return nil
				}
			}

			if daemon.IsDaemonized() {
				fileLog := SetupFileLogger(cfg.Paths.Log, logLevel, cfg.LogRotation)
				defer func() { _ = fileLog.Close() }()
				logger = fileLog.Logger
			}

			if err := os.MkdirAll(filepath.Join(projectRoot, config.ProjectConfigDir), 0755); err != nil {
				return fmt.Errorf("create %s directory: %w", config.ProjectConfigDir, err)
			}

			if err := pidFile.Acquire(); err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return fmt.Errorf("hub already running (pid file: %s)", cfg.Paths.PID)
				}
				return err
			}
			defer pidFile.Release()

			return runHub(cmd.Context(), cfg, projectRoot, logger)
		},
	}

	cmd.Flags().Bool(FlagDaemon, false, "Run as a background daemon")
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
	return cmd
}

// runHub serves the hub until a termination signal or ctx is done, keeping
// hub.json in place for discovery while it runs.
func runHub(ctx context.Context, cfg *config.Config, projectRoot string, logger *slog.Logger) error {
	hub := daemon.New(cfg.Paths.Socket, logger)

	logger.Info("tempo hub starting",
		"version", version,
		"session_id", hub.SessionID(),
		"socket", cfg.Paths.Socket,
		"daemon_mode", daemon.IsDaemonized(),
	)

	infoPath := daemon.HubInfoPath(projectRoot)
	info := &daemon.HubInfo{
		SessionID:  hub.SessionID(),
		SocketPath: cfg.Paths.Socket,
		PIDPath:    cfg.Paths.PID,
		LogPath:    cfg.Paths.Log,
		StartTime:  time.Now(),
		PID:        os.Getpid(),
	}
	if err := daemon.WriteHubInfo(infoPath, info); err != nil {
		logger.Warn("failed to write hub info", "error", err)
	}
	defer func() { _ = daemon.RemoveHubInfo(infoPath) }()

	return shutdown.RunWithGracefulShutdown(
		ctx,
		logger,
		hubShutdownTimeout,
		hub.Start,
		func(context.Context) error {
			return hub.Stop()
		},
	)
}
