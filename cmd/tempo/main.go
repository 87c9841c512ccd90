package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/tempo/internal/config"
	"github.com/npratt/tempo/internal/daemon"
	"github.com/npratt/tempo/internal/tab"
)

var version = "dev"

// loadConfig loads the layered configuration, applies the global path flag
// overrides and resolves every path against the project root.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed(FlagLogFile) {
		cfg.Paths.Log = viper.GetString(FlagLogFile)
	}
	if cmd.Flags().Changed(FlagStateFile) {
		cfg.Paths.State = viper.GetString(FlagStateFile)
	}
	if cmd.Flags().Changed(FlagSocketPath) {
		cfg.Paths.Socket = viper.GetString(FlagSocketPath)
	}

	projectRoot := daemon.FindProjectRoot("")
	cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
	if err != nil {
		return nil, "", fmt.Errorf("resolve paths: %w", err)
	}
	return cfg, projectRoot, nil
}

// getHubClient creates a hub client from hub.json, falling back to the
// configured socket path when no hub info is found.
func getHubClient(cmd *cobra.Command) (*daemon.Client, error) {
	if !cmd.Flags().Changed(FlagSocketPath) {
		if info, err := daemon.FindHubInfo(""); err == nil {
			return daemon.NewClient(info.SocketPath), nil
		}
	}
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return daemon.NewClient(cfg.Paths.Socket), nil
}

// printStatus writes the hub status in human-readable form.
func printStatus(w io.Writer, status *daemon.StatusResponse) {
	_, _ = fmt.Fprintf(w, "Session: %s\n", status.SessionID)
	_, _ = fmt.Fprintf(w, "Tabs: %d\n", status.Tabs)
	_, _ = fmt.Fprintf(w, "Uptime: %s\n", status.Uptime)
	_, _ = fmt.Fprintf(w, "Started: %s\n", status.StartTime)
	if status.Last == nil {
		_, _ = fmt.Fprintln(w, "Shared state: nothing relayed yet")
		return
	}
	last := status.Last
	_, _ = fmt.Fprintf(w, "Shared state:\n")
	_, _ = fmt.Fprintf(w, "  Running: %t (%d)\n", last.IsRunning, last.RunningCount)
	_, _ = fmt.Fprintf(w, "  Display: %s\n", tab.FormatClock(time.Duration(last.DisplayTime)*time.Millisecond))
	if last.StartTime != nil {
		_, _ = fmt.Fprintf(w, "  Last start: %s\n", last.StartTime.Local().Format(time.RFC3339))
	}
}

// tailLast prints the last n lines of the log file.
func tailLast(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = fmt.Fprintln(w, "No log entries yet (log file does not exist)")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}

	if len(lines) == 0 {
		_, _ = fmt.Fprintln(w, "No log entries yet")
		return nil
	}

	start := 0
	if len(lines) > n {
		start = len(lines) - n
	}
	for _, line := range lines[start:] {
		printLogLine(w, line)
	}
	return nil
}

// waitForFile waits for a file to be created and returns the opened file.
func waitForFile(ctx context.Context, path string) (*os.File, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			file, err := os.Open(path)
			if err == nil {
				return file, nil
			}
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("open file: %w", err)
			}
		}
	}
}

// tailFollow follows the log file and prints new lines as they appear.
func tailFollow(ctx context.Context, w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("open log file: %w", err)
		}
		_, _ = fmt.Fprintln(w, "Waiting for log file to be created...")
		file, err = waitForFile(ctx, path)
		if err != nil {
			return err
		}
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	_, _ = fmt.Fprintln(w, "Following hub log (Ctrl+C to stop)...")
	reader := bufio.NewReader(file)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					time.Sleep(100 * time.Millisecond)
					continue
				}
				return fmt.Errorf("read log: %w", err)
			}
			printLogLine(w, strings.TrimSuffix(line, "\n"))
		}
	}
}

// printLogLine prints one slog JSON line as "[15:04:05] LEVEL msg k=v ...".
func printLogLine(w io.Writer, line string) {
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		_, _ = fmt.Fprintln(w, line)
		return
	}

	timestamp := ""
	if ts, ok := entry[slog.TimeKey].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			timestamp = t.Local().Format("15:04:05")
		} else {
			timestamp = ts
		}
	}
	level, _ := entry[slog.LevelKey].(string)
	msg, _ := entry[slog.MessageKey].(string)

	var attrs []string
	for k, v := range entry {
		switch k {
		case slog.TimeKey, slog.LevelKey, slog.MessageKey:
			continue
		}
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(attrs)

	out := fmt.Sprintf("[%s] %-5s %s", timestamp, level, msg)
	if len(attrs) > 0 {
		out += " " + strings.Join(attrs, " ")
	}
	_, _ = fmt.Fprintln(w, out)
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("TEMPO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "tempo",
		Short: "Focus timers that stay in sync across terminals",
		Long: `tempo runs stopwatch, countdown and pomodoro timers in any number of
terminal tabs. Tabs of one session share a hub that relays a single
"something is running" signal, and finished focus intervals are logged
to a timer log API.

Start a hub once per project, then open as many tabs as you like.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
				logger.Debug("verbose logging enabled")
			}
		},
	}

	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .tempo/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Hub log file path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "Shared state file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path of the hub")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tempo %s\n", version)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show hub status and the shared running indicator",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getHubClient(cmd)
			if err != nil {
				return err
			}
			status, err := client.Status()
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool(FlagJSON)
			if asJSON {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear a stuck running indicator in every tab",
		Long: `Broadcast a zeroed shared state to every tab of the session.

Timers that are actually running keep running; only the shared
"something is running" indicator is cleared.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getHubClient(cmd)
			if err != nil {
				return err
			}
			if _, err := client.Reset(); err != nil {
				return err
			}
			fmt.Println("Shared state reset - running indicator cleared in every tab")
			return nil
		},
	}

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "View the hub log",
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath := ""
			if info, err := daemon.FindHubInfo(""); err == nil && !cmd.Flags().Changed(FlagLogFile) {
				logPath = info.LogPath
			} else {
				cfg, _, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				logPath = cfg.Paths.Log
			}

			count := viper.GetInt(FlagCount)
			if viper.GetBool(FlagFollow) {
				return tailFollow(cmd.Context(), cmd.OutOrStdout(), logPath)
			}
			return tailLast(cmd.OutOrStdout(), logPath, count)
		},
	}
	logsCmd.Flags().Bool(FlagFollow, false, "Follow the log (like tail -f)")
	logsCmd.Flags().Int(FlagCount, 20, "Number of recent lines to show")
	logsCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return cfg.WriteYAML(cmd.OutOrStdout())
		},
	}
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newHubCmd(logger, logLevel))
	rootCmd.AddCommand(newTabCmd(logger, logLevel))
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(newLogServerCmd(logger))
	rootCmd.AddCommand(newTodayCmd())
	rootCmd.AddCommand(newRecentCmd())
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
