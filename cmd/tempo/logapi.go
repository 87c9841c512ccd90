package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/npratt/tempo/internal/api"
	"github.com/npratt/tempo/internal/config"
	"github.com/npratt/tempo/internal/logstore"
	"github.com/npratt/tempo/internal/sessionlog"
	"github.com/npratt/tempo/internal/shutdown"
	"github.com/npratt/tempo/internal/tab"
)

func newLogServerCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logserver",
		Short: "Serve the timer log API backed by sqlite",
		Long: `Serve the timer log API that tabs append finished focus intervals to.

Endpoints (all scoped by the X-Profile-ID header):
  POST /timer-log       append one interval
  GET  /timer-log       today's accrued time
  GET  /recent-times    the 20 most recent intervals
  GET  /current-streak  today's and yesterday's accrued time`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, projectRoot, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed(FlagAddr) {
				cfg.LogStore.Addr, _ = cmd.Flags().GetString(FlagAddr)
			}
			if cmd.Flags().Changed(FlagDBPath) {
				cfg.LogStore.DBPath, _ = cmd.Flags().GetString(FlagDBPath)
			}
			dbPath := cfg.LogStore.DBPath
			if !filepath.IsAbs(dbPath) {
				dbPath = filepath.Join(projectRoot, dbPath)
			}

			if !viper.GetBool(FlagVerbose) {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx := cmd.Context()
			store, err := logstore.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := logstore.ApplyMigrations(ctx, store.DB()); err != nil {
				return fmt.Errorf("migrate %s: %w", dbPath, err)
			}

			logger.Info("timer log API starting", "addr", cfg.LogStore.Addr, "db", dbPath)
			srv := logstore.NewServer(store, logger)
			return shutdown.RunWithGracefulShutdown(ctx, logger, 10*time.Second,
				func(runCtx context.Context) error {
					return srv.Run(runCtx, cfg.LogStore.Addr)
				},
				nil,
			)
		},
	}

	cmd.Flags().String(FlagAddr, "", "Listen address (default from logstore.addr)")
	cmd.Flags().String(FlagDBPath, "", "sqlite database path (default from logstore.db_path)")
	return cmd
}

// logAPIClient builds a timer log client from config and the log API flags.
func logAPIClient(cmd *cobra.Command) (*sessionlog.Client, *config.Config, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed(FlagProfile) {
		cfg.LogAPI.Profile, _ = cmd.Flags().GetString(FlagProfile)
	}
	if cmd.Flags().Changed(FlagBaseURL) {
		cfg.LogAPI.BaseURL, _ = cmd.Flags().GetString(FlagBaseURL)
	}
	return sessionlog.NewClient(cfg.LogAPI.BaseURL, cfg.LogAPI.Profile, cfg.LogAPI.Timeout), cfg, nil
}

func addLogAPIFlags(cmd *cobra.Command) {
	cmd.Flags().String(FlagProfile, "", "Profile id (default from log_api.profile)")
	cmd.Flags().String(FlagBaseURL, "", "Timer log API base URL (default from log_api.base_url)")
	cmd.Flags().Bool(FlagJSON, false, "Output as JSON")
}

func newTodayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show today's accrued focus time compared with yesterday",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := logAPIClient(cmd)
			if err != nil {
				return err
			}
			today, yesterday, err := client.Comparison(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool(FlagJSON); asJSON {
				return writeJSON(cmd.OutOrStdout(), api.CurrentStreakResponse{
					TodayTime:     today.Milliseconds(),
					YesterdayTime: yesterday.Milliseconds(),
				})
			}
			printComparison(cmd.OutOrStdout(), today, yesterday)
			return nil
		},
	}
	addLogAPIFlags(cmd)
	return cmd
}

func newRecentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent logged intervals",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := logAPIClient(cmd)
			if err != nil {
				return err
			}
			logs, err := client.Recent(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool(FlagJSON); asJSON {
				return writeJSON(cmd.OutOrStdout(), logs)
			}
			printRecent(cmd.OutOrStdout(), logs)
			return nil
		},
	}
	addLogAPIFlags(cmd)
	return cmd
}

// printComparison writes today's total and how it compares with yesterday.
func printComparison(w io.Writer, today, yesterday time.Duration) {
	_, _ = fmt.Fprintf(w, "Today:     %s\n", tab.FormatClock(today))
	_, _ = fmt.Fprintf(w, "Yesterday: %s\n", tab.FormatClock(yesterday))
	switch diff := today - yesterday; {
	case diff > 0:
		_, _ = fmt.Fprintf(w, "%s ahead of yesterday\n", tab.FormatClock(diff))
	case diff < 0:
		_, _ = fmt.Fprintf(w, "%s to match yesterday\n", tab.FormatClock(-diff))
	default:
		_, _ = fmt.Fprintln(w, "level with yesterday")
	}
}

// printRecent writes one line per interval, newest first as returned.
func printRecent(w io.Writer, logs []api.TimerLog) {
	if len(logs) == 0 {
		_, _ = fmt.Fprintln(w, "No intervals logged yet")
		return
	}
	for _, l := range logs {
		start := l.StartTime.Local()
		_, _ = fmt.Fprintf(w, "%s  %s-%s  %8s  %s\n",
			start.Format("2006-01-02"),
			start.Format("15:04"),
			l.EndTime.Local().Format("15:04"),
			tab.FormatClock(time.Duration(l.Duration)*time.Millisecond),
			l.Activity,
		)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
