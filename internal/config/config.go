// Package config provides configuration types and defaults for tempo.
package config

import "time"

// Config holds all configuration for tempo.
type Config struct {
	Pomodoro      PomodoroConfig      `yaml:"pomodoro" mapstructure:"pomodoro"`
	Countdown     CountdownConfig     `yaml:"countdown" mapstructure:"countdown"`
	NoiseFilter   NoiseFilterConfig   `yaml:"noise_filter" mapstructure:"noise_filter"`
	LogAPI        LogAPIConfig        `yaml:"log_api" mapstructure:"log_api"`
	LogStore      LogStoreConfig      `yaml:"logstore" mapstructure:"logstore"`
	Paths         PathsConfig         `yaml:"paths" mapstructure:"paths"`
	LogRotation   LogRotationConfig   `yaml:"log_rotation" mapstructure:"log_rotation"`
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
	TickInterval  time.Duration       `yaml:"tick_interval" mapstructure:"tick_interval"` // Local display recompute interval (0 disables the background ticker)
	Activity      string              `yaml:"activity" mapstructure:"activity"`           // Default activity tag for new intervals
	Mode          string              `yaml:"mode" mapstructure:"mode"`                   // Initial timer type: stopwatch, timer, pomodoro
}

// PomodoroConfig holds focus/break lengths and the cycle size.
type PomodoroConfig struct {
	Focus      time.Duration `yaml:"focus" mapstructure:"focus"`
	ShortBreak time.Duration `yaml:"short_break" mapstructure:"short_break"`
	LongBreak  time.Duration `yaml:"long_break" mapstructure:"long_break"`
	Cycles     int           `yaml:"cycles" mapstructure:"cycles"` // Focus/break pairs before the long break
}

// CountdownConfig holds the bounds for the countdown target duration.
// Targets are snapped to Step and clamped to [Min, Max].
type CountdownConfig struct {
	Min     time.Duration `yaml:"min" mapstructure:"min"`
	Max     time.Duration `yaml:"max" mapstructure:"max"`
	Step    time.Duration `yaml:"step" mapstructure:"step"`
	Default time.Duration `yaml:"default" mapstructure:"default"`
}

// NoiseFilterConfig controls dropping of intervals whose length sits inside
// a narrow band around one break length. Center 0 means "use the pomodoro
// short break".
type NoiseFilterConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Center    time.Duration `yaml:"center" mapstructure:"center"`
	Tolerance time.Duration `yaml:"tolerance" mapstructure:"tolerance"`
}

// LogAPIConfig holds the session log API client settings.
type LogAPIConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Profile string        `yaml:"profile" mapstructure:"profile"` // Sent as X-Profile-ID
}

// LogStoreConfig holds settings for the bundled log API server.
type LogStoreConfig struct {
	Addr   string `yaml:"addr" mapstructure:"addr"`
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// PathsConfig holds file paths for state, logs, and socket.
type PathsConfig struct {
	State  string `yaml:"state" mapstructure:"state"`
	Log    string `yaml:"log" mapstructure:"log"`
	Socket string `yaml:"socket" mapstructure:"socket"`
	PID    string `yaml:"pid" mapstructure:"pid"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the TUI debug log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// NotificationsConfig holds the notification permission.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Bell    bool `yaml:"bell" mapstructure:"bell"` // Ring the terminal bell with each notification
}

// FilterBounds returns the inclusive duration band dropped by the noise filter.
// ok is false when the filter is disabled.
func (c *Config) FilterBounds() (lo, hi time.Duration, ok bool) {
	if !c.NoiseFilter.Enabled {
		return 0, 0, false
	}
	center := c.NoiseFilter.Center
	if center <= 0 {
		center = c.Pomodoro.ShortBreak
	}
	lo = center - c.NoiseFilter.Tolerance
	if lo < 0 {
		lo = 0
	}
	return lo, center + c.NoiseFilter.Tolerance, true
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Pomodoro: PomodoroConfig{
			Focus:      25 * time.Minute,
			ShortBreak: 5 * time.Minute,
			LongBreak:  15 * time.Minute,
			Cycles:     4,
		},
		Countdown: CountdownConfig{
			Min:     10 * time.Minute,
			Max:     3 * time.Hour,
			Step:    10 * time.Minute,
			Default: 10 * time.Minute,
		},
		NoiseFilter: NoiseFilterConfig{
			Enabled:   true,
			Center:    0, // follows Pomodoro.ShortBreak
			Tolerance: 5 * time.Second,
		},
		LogAPI: LogAPIConfig{
			BaseURL: "http://127.0.0.1:7420",
			Timeout: 10 * time.Second,
			Profile: "default",
		},
		LogStore: LogStoreConfig{
			Addr:   "127.0.0.1:7420",
			DBPath: ".tempo/timerlog.db",
		},
		Paths: PathsConfig{
			State:  ".tempo/state.json",
			Log:    ".tempo/tempo.log",
			Socket: ".tempo/tempo.sock",
			PID:    ".tempo/tempo.pid",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Bell:    true,
		},
		TickInterval: 250 * time.Millisecond,
		Activity:     "Study",
		Mode:         "pomodoro",
	}
}
