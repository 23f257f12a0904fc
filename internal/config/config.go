// Package config loads and persists Foresight configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Foresight configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Engine tuning
	Engine EngineConfig `yaml:"engine"`

	// State persistence
	Store StoreConfig `yaml:"store"`

	// Workspace watcher (built-in context provider)
	Watcher WatcherConfig `yaml:"watcher"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig tunes the prediction engine.
type EngineConfig struct {
	// Per-category sliding history capacity.
	HistorySize int `yaml:"history_size"`

	// Ranked output truncation.
	MaxPredictions int `yaml:"max_predictions"`

	// Predictions below this confidence are dropped.
	MinConfidence float64 `yaml:"min_confidence"`

	// Quiet period collapsing input bursts into one prediction pass.
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Reserved configuration key. Defined for forward compatibility;
	// no component consumes it yet.
	LearningRate float64 `yaml:"learning_rate"`
}

// StoreConfig configures state persistence.
type StoreConfig struct {
	// SQLite database path. Empty means <data_dir>/state.db.
	DatabasePath string `yaml:"database_path"`

	// Base directory for all Foresight data (db, logs).
	DataDir string `yaml:"data_dir"`
}

// WatcherConfig configures the workspace watcher.
type WatcherConfig struct {
	Enabled bool `yaml:"enabled"`

	// Workspace root to watch. Empty means current directory.
	Root string `yaml:"root"`

	// Per-path event debounce.
	Debounce time.Duration `yaml:"debounce"`

	// Directory names never descended into.
	IgnoreDirs []string `yaml:"ignore_dirs"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "foresight",
		Version: "0.3.0",

		Engine: EngineConfig{
			HistorySize:      1000,
			MaxPredictions:   5,
			MinConfidence:    0.3,
			DebounceInterval: 100 * time.Millisecond,
			LearningRate:     0.1,
		},

		Store: StoreConfig{
			DataDir: ".foresight",
		},

		Watcher: WatcherConfig{
			Enabled:    true,
			Debounce:   500 * time.Millisecond,
			IgnoreDirs: []string{".git", ".foresight", "node_modules", "vendor", ".idea", ".vscode"},
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DatabasePath resolves the effective SQLite path.
func (c *Config) DatabasePath() string {
	if c.Store.DatabasePath != "" {
		return c.Store.DatabasePath
	}
	return filepath.Join(c.Store.DataDir, "state.db")
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("FORESIGHT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if dir := os.Getenv("FORESIGHT_DATA_DIR"); dir != "" {
		c.Store.DataDir = dir
	}
	if os.Getenv("FORESIGHT_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}
