package internal

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config directories and env var prefixes
	DefaultAppName       = "trdb"
	DefaultEnvPrefix     = "TRDB"
	DefaultConfigPath    = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultSnapshotDir   = filepath.Join(DefaultConfigPath, "snapshots")
	DefaultDatabaseFile  = "rt64.json"
	DefaultPackRoot      = "."
	DefaultAuditWorkers  = 8
	DefaultLogLevel      = "info"
	DefaultWatchDebounce = 250 // milliseconds
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// NewLogger builds a timestamped logger writing to w. An unknown level falls
// back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
