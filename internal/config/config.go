// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the FlowPulse engine.
// It handles loading and parsing YAML configuration files, and provides
// structured access to engine settings including the adaptation loop cadence,
// storage backend selection, the status API, and logging behavior.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Engine configures the adaptive personalization loop.
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Storage configures the persistent key-value store backend.
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// API configures the read-only status HTTP server.
	API APIConfig `yaml:"api" json:"api"`

	// SettingsFile is the path to the user settings document watched for
	// enable/disable changes and holding the active scheduling model.
	SettingsFile string `yaml:"settings-file" json:"settings-file"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory for rotating log files when LoggingToFile is set.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// LogsMaxTotalSizeMB limits the total size (in MB) of log files under the logs directory.
	// When exceeded, the oldest log files are deleted until within the limit. Set to 0 to disable.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`
}

// EngineConfig holds the adaptation loop settings.
// Durations are duration strings ("1h", "30s") parsed via time.ParseDuration;
// invalid values fall back to defaults during Normalize.
type EngineConfig struct {
	// Enabled toggles the periodic adaptation loop. Event recording still
	// works when disabled; only the tick pipeline is paused.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// TickInterval is the cadence of the adaptation cycle. Hourly is
	// sufficient for this domain.
	TickInterval string `yaml:"tick-interval" json:"tick-interval"`

	// FlushInterval is the cadence of the background event buffer flush.
	FlushInterval string `yaml:"flush-interval" json:"flush-interval"`

	// MonitoringInterval is how long an adaptation is observed before its
	// impact is evaluated.
	MonitoringInterval string `yaml:"monitoring-interval" json:"monitoring-interval"`

	// RollbackDelay defers rollback execution off the evaluation pass so a
	// slow rollback handler cannot stall monitoring of other adaptations.
	RollbackDelay string `yaml:"rollback-delay" json:"rollback-delay"`

	// GenerationBudget is the soft latency budget for model generation.
	// When exceeded, the candidate set is truncated rather than failing.
	GenerationBudget string `yaml:"generation-budget" json:"generation-budget"`

	// LearningHistoryCap bounds the learning data point history. On overflow
	// the history is trimmed to LearningHistoryKeep most-recent entries.
	LearningHistoryCap  int `yaml:"learning-history-cap" json:"learning-history-cap"`
	LearningHistoryKeep int `yaml:"learning-history-keep" json:"learning-history-keep"`
}

// StorageConfig selects and configures the persistent store backend.
type StorageConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend string `yaml:"backend" json:"backend"`

	// Path is the SQLite database file path (sqlite backend).
	Path string `yaml:"path" json:"path"`

	// DSN is the Postgres connection string (postgres backend).
	DSN string `yaml:"dsn" json:"dsn"`

	// ArchiveDir is where flushed event batches beyond the retention window
	// are compacted into gzip archives. Empty disables archiving.
	ArchiveDir string `yaml:"archive-dir" json:"archive-dir"`

	// RetentionDays is how long raw events are kept before archiving.
	RetentionDays int `yaml:"retention-days" json:"retention-days"`
}

// APIConfig holds the status API server settings.
type APIConfig struct {
	// Enabled toggles the read-only status API.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Host is the network host/interface on which the API server will bind.
	Host string `yaml:"host" json:"host"`

	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"port"`
}

// Default duration values applied by Normalize.
const (
	defaultTickInterval       = time.Hour
	defaultFlushInterval      = 30 * time.Second
	defaultMonitoringInterval = 7 * 24 * time.Hour
	defaultRollbackDelay      = 5 * time.Second
	defaultGenerationBudget   = 4 * time.Second
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Enabled:             true,
			TickInterval:        "1h",
			FlushInterval:       "30s",
			MonitoringInterval:  "168h",
			RollbackDelay:       "5s",
			GenerationBudget:    "4s",
			LearningHistoryCap:  100,
			LearningHistoryKeep: 50,
		},
		Storage: StorageConfig{
			Backend:       "sqlite",
			Path:          ".flowpulse/flowpulse.db",
			ArchiveDir:    ".flowpulse/archive",
			RetentionDays: 90,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8317,
		},
		SettingsFile: ".flowpulse/settings.json",
		LogDir:       "logs",
	}
}

// LoadConfig reads and parses the configuration file at the given path.
// A missing file is not an error; defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize resets invalid or missing values to defaults.
func (c *Config) Normalize() {
	if _, err := time.ParseDuration(c.Engine.TickInterval); err != nil {
		c.Engine.TickInterval = "1h"
	}
	if _, err := time.ParseDuration(c.Engine.FlushInterval); err != nil {
		c.Engine.FlushInterval = "30s"
	}
	if _, err := time.ParseDuration(c.Engine.MonitoringInterval); err != nil {
		c.Engine.MonitoringInterval = "168h"
	}
	if _, err := time.ParseDuration(c.Engine.RollbackDelay); err != nil {
		c.Engine.RollbackDelay = "5s"
	}
	if _, err := time.ParseDuration(c.Engine.GenerationBudget); err != nil {
		c.Engine.GenerationBudget = "4s"
	}
	if c.Engine.LearningHistoryCap < 1 {
		c.Engine.LearningHistoryCap = 100
	}
	if c.Engine.LearningHistoryKeep < 1 || c.Engine.LearningHistoryKeep > c.Engine.LearningHistoryCap {
		c.Engine.LearningHistoryKeep = c.Engine.LearningHistoryCap / 2
		if c.Engine.LearningHistoryKeep < 1 {
			c.Engine.LearningHistoryKeep = 1
		}
	}
	if c.Storage.RetentionDays < 1 {
		c.Storage.RetentionDays = 90
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("sqlite backend requires a database path")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("postgres backend requires a DSN")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		return fmt.Errorf("api port %d out of range", c.API.Port)
	}
	if c.SettingsFile == "" {
		return fmt.Errorf("settings file path cannot be empty")
	}
	return nil
}

// GetTickInterval returns the adaptation cycle cadence as a time.Duration.
func (c *Config) GetTickInterval() time.Duration {
	return parseDurationOr(c.Engine.TickInterval, defaultTickInterval)
}

// GetFlushInterval returns the event flush cadence as a time.Duration.
func (c *Config) GetFlushInterval() time.Duration {
	return parseDurationOr(c.Engine.FlushInterval, defaultFlushInterval)
}

// GetMonitoringInterval returns the adaptation observation window.
func (c *Config) GetMonitoringInterval() time.Duration {
	return parseDurationOr(c.Engine.MonitoringInterval, defaultMonitoringInterval)
}

// GetRollbackDelay returns the delay between evaluation and rollback execution.
func (c *Config) GetRollbackDelay() time.Duration {
	return parseDurationOr(c.Engine.RollbackDelay, defaultRollbackDelay)
}

// GetGenerationBudget returns the soft latency budget for model generation.
func (c *Config) GetGenerationBudget() time.Duration {
	return parseDurationOr(c.Engine.GenerationBudget, defaultGenerationBudget)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SaveConfig writes the configuration to the given path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
