package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagStateFile  = "state-file"
	FlagSocketPath = "socket-path"

	// Hub command flags
	FlagDaemon = "daemon"

	// Tab command flags
	FlagHeadless = "headless"
	FlagMode     = "mode"
	FlagActivity = "activity"
	FlagTabID    = "tab-id"

	// Log API flags
	FlagProfile = "profile"
	FlagBaseURL = "base-url"
	FlagAddr    = "addr"
	FlagDBPath  = "db-path"

	// Logs command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Output format flags
	FlagJSON = "json"
)
