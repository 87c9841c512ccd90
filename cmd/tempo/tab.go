package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/npratt/tempo/internal/config"
	"github.com/npratt/tempo/internal/daemon"
	"github.com/npratt/tempo/internal/notify"
	"github.com/npratt/tempo/internal/sessionlog"
	"github.com/npratt/tempo/internal/sharedstate"
	"github.com/npratt/tempo/internal/tab"
	"github.com/npratt/tempo/internal/timer"
	"github.com/npratt/tempo/internal/tui"
)

func newTabCmd(logger *slog.Logger, logLevel *slog.LevelVar) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tab",
		Short: "Open a timer tab connected to the session hub",
		Long: `Open a timer tab. The tab joins the running hub's session, restores the
session's shared state and shows stopwatch, countdown and pomodoro timers.

The terminal UI is used when stdout is a terminal; otherwise (or with
--headless) the tab reads line commands from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyTabOverrides(cmd, cfg)

			headless, _ := cmd.Flags().GetBool(FlagHeadless)
			tuiEnabled := !headless && term.IsTerminal(int(os.Stdout.Fd()))

			return runTab(cmd, cfg, tuiEnabled, logger, logLevel)
		},
	}

	cmd.Flags().Bool(FlagHeadless, false, "Read commands from stdin instead of showing the terminal UI")
	cmd.Flags().String(FlagMode, "", "Initial timer type (stopwatch, timer, pomodoro)")
	cmd.Flags().String(FlagActivity, "", "Activity tag for logged intervals")
	cmd.Flags().String(FlagTabID, "", "Tab id (default: generated)")
	cmd.Flags().String(FlagProfile, "", "Profile id sent to the timer log API")
	cmd.Flags().String(FlagBaseURL, "", "Timer log API base URL")
	return cmd
}

// applyTabOverrides applies tab flags that were explicitly set.
func applyTabOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed(FlagMode) {
		cfg.Mode, _ = flags.GetString(FlagMode)
	}
	if flags.Changed(FlagActivity) {
		cfg.Activity, _ = flags.GetString(FlagActivity)
	}
	if flags.Changed(FlagProfile) {
		cfg.LogAPI.Profile, _ = flags.GetString(FlagProfile)
	}
	if flags.Changed(FlagBaseURL) {
		cfg.LogAPI.BaseURL, _ = flags.GetString(FlagBaseURL)
	}
}

// hubSocket prefers the socket recorded in hub.json unless one was given.
func hubSocket(cmd *cobra.Command, cfg *config.Config) string {
	if !cmd.Flags().Changed(FlagSocketPath) {
		if info, err := daemon.FindHubInfo(""); err == nil {
			return info.SocketPath
		}
	}
	return cfg.Paths.Socket
}

func runTab(cmd *cobra.Command, cfg *config.Config, tuiEnabled bool, logger *slog.Logger, logLevel *slog.LevelVar) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The subscription outlives ctx so Close can still broadcast the unload.
	tabID, _ := cmd.Flags().GetString(FlagTabID)
	sub, err := daemon.NewClient(hubSocket(cmd, cfg)).Subscribe(cmd.Context(), tabID)
	if err != nil {
		return fmt.Errorf("join session: %w (start one with 'tempo hub --daemon')", err)
	}

	tabLogger := logger
	if tuiEnabled {
		tuiLog, err := SetupTUILogger(filepath.Dir(cfg.Paths.Log), logLevel, cfg.LogRotation)
		if err != nil {
			_ = sub.Close()
			return err
		}
		defer func() { _ = tuiLog.Close() }()
		tabLogger = tuiLog.Logger
		slog.SetDefault(tabLogger)
	}

	out := cmd.OutOrStdout()
	notices := make(chan tui.Notice, 16)
	totals := make(chan time.Duration, 4)
	sinks := tabSinks{ui: tuiEnabled, out: out, notices: notices, totals: totals, logger: tabLogger}

	var sender notify.Sender = notify.NewWriterSender(out, cfg.Notifications.Bell)
	if tuiEnabled {
		sender = notify.SenderFunc(sinks.notification)
	}

	t, err := tab.New(tab.Options{
		ID:            sub.TabID(),
		Config:        cfg,
		Channel:       sub,
		Storage:       sharedstate.NewFileStorage(cfg.Paths.State, sub.SessionID()),
		Appender:      sessionlog.NewClient(cfg.LogAPI.BaseURL, cfg.LogAPI.Profile, cfg.LogAPI.Timeout),
		Notifier:      notify.New(notify.FromEnabled(cfg.Notifications.Enabled), sender, tabLogger),
		Logger:        tabLogger,
		OnRecordError: sinks.recordError,
		OnDailyTotal:  sinks.dailyTotal,
	})
	if err != nil {
		_ = sub.Close()
		return err
	}
	defer func() {
		cancel()
		_ = t.Close()
	}()

	tabLogger.Info("tab joined session",
		"tab_id", t.ID(),
		"session_id", sub.SessionID(),
		"mode", cfg.Mode,
		"tui", tuiEnabled,
	)

	stopSignals := t.Guard().WatchSignals(func(os.Signal) { cancel() })
	defer stopSignals()

	go func() {
		if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			tabLogger.Warn("receive loop stopped", "error", err)
		}
		if ctx.Err() == nil {
			sinks.info("hub disconnected; this tab no longer syncs")
		}
	}()
	go func() {
		if _, err := t.RefreshDailyTotal(ctx); err != nil {
			tabLogger.Warn("daily total unavailable", "error", err)
		}
	}()

	if tuiEnabled {
		err = tui.New(t,
			tui.WithNotices(notices),
			tui.WithDailyTotals(totals),
			tui.WithOnQuit(cancel),
		).Run(ctx)
	} else {
		err = tab.NewConsole(t, out).Run(ctx, cmd.InOrStdin())
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// tabSinks routes tab feedback to the terminal UI or to plain output.
type tabSinks struct {
	ui      bool
	out     io.Writer
	notices chan tui.Notice
	totals  chan time.Duration
	logger  *slog.Logger
}

func (s tabSinks) post(text string, level tui.NoticeLevel) {
	if !s.ui {
		_, _ = fmt.Fprintln(s.out, text)
		return
	}
	select {
	case s.notices <- tui.Notice{Text: text, Level: level, At: time.Now()}:
	default:
		s.logger.Warn("notice dropped", "text", text)
	}
}

func (s tabSinks) info(text string) {
	s.post(text, tui.NoticeInfo)
}

func (s tabSinks) notification(title string, opts notify.Options) error {
	text := title
	if opts.Body != "" {
		text += ": " + opts.Body
	}
	s.post(text, tui.NoticeInfo)
	return nil
}

func (s tabSinks) recordError(iv timer.Interval, err error) {
	s.post(fmt.Sprintf("could not log %s of %s: %v", tab.FormatClock(iv.Duration), iv.Activity, err), tui.NoticeError)
}

func (s tabSinks) dailyTotal(d time.Duration) {
	if !s.ui {
		_, _ = fmt.Fprintf(s.out, "today %s\n", tab.FormatClock(d))
		return
	}
	select {
	case s.totals <- d:
	default:
	}
}
