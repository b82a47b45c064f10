// Package config loads daemon and CLI settings via viper, the teacher's
// own config-loading stack (internal/config/config.go), rebuilt around the
// scan daemon's setting set (spec.md §6's daemon CLI flags) instead of the
// teacher's watch/libraries/Sonarr/Radarr fields.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lms-scan/lms-scan/internal/paths"
	"github.com/spf13/viper"
)

// CategoryConfig is one scan category's scope, mirroring spec.md §6's
// Categories property: a set of directory roots and the parser names
// allowed to claim files under them.
type CategoryConfig struct {
	Dirs    []string `mapstructure:"dirs"`
	Parsers []string `mapstructure:"parsers"`
}

// Config is the full daemon configuration.
type Config struct {
	DBPath           string                     `mapstructure:"db_path"`
	CommitInterval   int                        `mapstructure:"commit_interval"`
	SlaveTimeout     time.Duration              `mapstructure:"slave_timeout"`
	DeleteOlderThan  int                        `mapstructure:"delete_older_than"`
	Vacuum           bool                       `mapstructure:"vacuum"`
	StartupScan      bool                       `mapstructure:"startup_scan"`
	OmitScanProgress bool                       `mapstructure:"omit_scan_progress"`
	Charsets         []string                   `mapstructure:"charsets"`
	Categories       map[string]CategoryConfig  `mapstructure:"categories"`
	Listen           string                     `mapstructure:"listen"`
	Logging          LoggingConfig              `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DefaultConfig returns the documented defaults from spec.md §6's daemon
// CLI flag list (commit-interval=100, slave-timeout=60s,
// delete-older-than=30 days).
func DefaultConfig() *Config {
	return &Config{
		CommitInterval:  100,
		SlaveTimeout:    60 * time.Second,
		DeleteOlderThan: 30,
		Charsets:        []string{"all"},
		Categories:      map[string]CategoryConfig{},
		Listen:          "127.0.0.1:4180",
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// ConfigPath returns ${USER_CONFIG_DIR}/lightmediascannerd/config.toml.
func ConfigPath() (string, error) {
	dir, err := paths.DaemonDir()
	if err != nil {
		return "", err
	}
	return dir + "/config.toml", nil
}

// Load reads the config file if present, falling back to DefaultConfig for
// anything unset, then resolves DBPath to its spec.md §4.6 default if
// still empty.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	configPath := explicitPath
	if configPath == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("unable to resolve config path: %w", err)
		}
		configPath = p
	}
	v.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", configPath, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if cfg.DBPath == "" {
		dbPath, err := paths.DefaultDatabasePath()
		if err != nil {
			return nil, fmt.Errorf("unable to resolve default database path: %w", err)
		}
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// ParserNames returns the category's parser list, or ["all"] when the list
// is empty. "all" expands to every built-in plugin downstream, in
// internal/parser/catalog.ByNames; the "all-category" special of spec.md
// §6's -P/--parser flag is not recognised.
func ParserNames(cat CategoryConfig) []string {
	if len(cat.Parsers) == 0 {
		return []string{"all"}
	}
	return cat.Parsers
}

// Dirs applies the "defaults" directory special from spec.md §6's
// -D/--directory flag: an explicit "defaults" entry (or an empty list)
// means "use this category's configured directories".
func Dirs(cat CategoryConfig, requested []string) []string {
	if len(requested) == 0 {
		return cat.Dirs
	}
	out := make([]string, 0, len(requested))
	for _, d := range requested {
		if strings.EqualFold(d, "defaults") {
			out = append(out, cat.Dirs...)
			continue
		}
		out = append(out, d)
	}
	return out
}
