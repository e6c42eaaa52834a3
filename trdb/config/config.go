package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/texture-replacements/trdb"

	"github.com/spf13/viper"
)

// Config stores all configuration of the trdb tools.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig locates the replacement database and its snapshots.
type DatabaseConfig struct {
	Path            string `mapstructure:"path"`
	SnapshotDir     string `mapstructure:"snapshotDir"`
	WatchDebounceMs int    `mapstructure:"watchDebounceMs"`
}

// AuditConfig controls audit runs.
type AuditConfig struct {
	PackRoot string `mapstructure:"packRoot"`
	Workers  int    `mapstructure:"workers"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// WatchDebounce returns the configured debounce as a duration.
func (c DatabaseConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}

// LoadConfig reads configuration from file or environment variables. An
// explicit configPath must exist; otherwise a missing config file just
// means defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("database.path", internal.DefaultDatabaseFile)
	v.SetDefault("database.snapshotDir", internal.DefaultSnapshotDir)
	v.SetDefault("database.watchDebounceMs", internal.DefaultWatchDebounce)
	v.SetDefault("audit.packRoot", internal.DefaultPackRoot)
	v.SetDefault("audit.workers", internal.DefaultAuditWorkers)
	v.SetDefault("log.level", internal.DefaultLogLevel)

	// database.snapshotDir is read from TRDB_DATABASE_SNAPSHOTDIR
	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.resolve(v)
	return &cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.Audit.Workers < 1 {
		return fmt.Errorf("audit.workers must be at least 1, got %d", c.Audit.Workers)
	}
	if c.Database.WatchDebounceMs < 0 {
		return fmt.Errorf("database.watchDebounceMs cannot be negative")
	}
	return nil
}

// resolve makes relative paths written in a config file relative to that
// file. Defaults and environment values stay relative to the working
// directory.
func (c *Config) resolve(v *viper.Viper) {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		return
	}
	base := filepath.Dir(configFile)
	paths := map[string]*string{
		"database.path":        &c.Database.Path,
		"database.snapshotDir": &c.Database.SnapshotDir,
		"audit.packRoot":       &c.Audit.PackRoot,
	}
	for key, p := range paths {
		if !v.InConfig(key) || envSet(key) {
			continue
		}
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

func envSet(key string) bool {
	name := internal.DefaultEnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	_, ok := os.LookupEnv(name)
	return ok
}
