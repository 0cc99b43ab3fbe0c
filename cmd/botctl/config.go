package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose  = "verbose"
	FlagConfig   = "config"
	FlagBaseURL  = "base-url"
	FlagWSURL    = "ws-url"
	FlagTimeout  = "timeout"
	FlagPrefs    = "prefs"
	FlagEventLog = "event-log"

	// Dashboard command flags
	FlagSimple = "simple"

	// Status command flags
	FlagJSON = "json"

	// Events command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Export command flags
	FlagFormat = "format"
	FlagDir    = "dir"

	// Reports command flags
	FlagStart = "start"
	FlagEnd   = "end"

	// Diagnose command flags
	FlagProxy = "proxy"
)
